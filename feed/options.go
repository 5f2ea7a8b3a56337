package feed

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

// Option adjusts how an Updater behaves.
type Option func(*options)

// WithLogger routes the updater's logging to the given logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
