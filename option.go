package tokenpay

import (
	"time"

	"github.com/vitwit/tokenpay/logger"
	"github.com/vitwit/tokenpay/metrics"
	"github.com/vitwit/tokenpay/session"
)

type options struct {
	logger         logger.Logger
	metrics        metrics.Recorder
	flags          session.FlagStore
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

type Option func(*options)

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// WithTimeout bounds the wait for a payment confirmation.
func WithTimeout(t time.Duration) Option {
	return func(o *options) {
		o.confirmTimeout = t
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithFlagStore replaces the in-memory store that holds the user's
// disconnect choice.
func WithFlagStore(s session.FlagStore) Option {
	return func(o *options) {
		o.flags = s
	}
}

func (o *options) sessionOptions() []session.Option {
	return []session.Option{
		session.WithLogger(o.logger),
		session.WithMetrics(o.metrics),
		session.WithFlagStore(o.flags),
		session.WithConfirmationTimeout(o.confirmTimeout),
		session.WithPollInterval(o.pollInterval),
	}
}
