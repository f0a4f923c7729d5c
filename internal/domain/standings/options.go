package standings

import (
	"time"

	"github.com/okian/podium/internal/domain/resolver"
	"github.com/okian/podium/internal/domain/scoring"
	"github.com/okian/podium/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithContention selects what a second concurrent refresh does.
func WithContention(c Contention) Option {
	return func(a *Aggregator) {
		if c == ContentionAwait || c == ContentionReject {
			a.contention = c
		}
	}
}

// WithConcurrency bounds concurrent placement lookups per refresh.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithRetryPolicy sets the placement retry policy.
func WithRetryPolicy(p resolver.RetryPolicy) Option {
	return func(a *Aggregator) {
		a.policy = p
	}
}

// WithTimeout sets the overall deadline of one refresh.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLiveBudget bounds the live placement phase. Identifiers not resolved
// within the budget keep their previous score.
func WithLiveBudget(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.liveBudget = d
		}
	}
}

// WithScoring sets the placement to points converter.
func WithScoring(c scoring.Converter) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.scoring = c
		}
	}
}

// WithClock overrides the time source for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTracer sets the tracer used for refresh spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Aggregator) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithLogger overrides the aggregator logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}
