package fetch

import "go.uber.org/zap"

type options struct {
	logger *zap.Logger
}

func newOptions(opts []Option) options {
	options := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Option adjusts fetch behaviour.
type Option func(*options)

// WithLogger routes fetch logging to the given logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
