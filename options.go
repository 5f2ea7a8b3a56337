package roadtiles

import "go.uber.org/zap"

type options struct {
	logger *zap.Logger
	noMmap bool
}

// Option adjusts how a dataset is opened.
type Option func(*options)

// WithLogger routes open time diagnostics (skipped entries, version skew
// warnings) to l instead of discarding them.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithoutMmap loads the archives into private heap memory instead of
// mapping them. Traffic mutations then stay within the process and are
// lost on Close.
func WithoutMmap() Option {
	return func(o *options) {
		o.noMmap = true
	}
}
