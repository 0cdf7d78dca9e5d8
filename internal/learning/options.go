package learning

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures an Engine, FeedbackProcessor or Analytics.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option, name string) options {
	o := options{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.Named(name)
	return o
}
