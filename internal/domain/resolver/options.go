package resolver

import (
	"context"
	"time"

	"github.com/okian/podium/pkg/logger"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithSleep replaces the backoff wait. It must return ctx.Err() when ctx
// ends first.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resolver) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithRand replaces the jitter source.
func WithRand(rnd func() float64) Option {
	return func(r *Resolver) {
		if rnd != nil {
			r.rand = rnd
		}
	}
}

// WithClock overrides the time source for synthesized results.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger overrides the resolver logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}
