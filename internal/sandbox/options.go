package sandbox

import (
	"time"

	"github.com/okian/podium/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAPIKey requires key in header on placement lookups.
func WithAPIKey(header, key string) Option {
	return func(s *Server) {
		s.keyHeader = header
		s.apiKey = key
	}
}

// WithFaultRate makes a fraction of placement lookups fail with 503.
func WithFaultRate(rate float64) Option {
	return func(s *Server) {
		if rate >= 0 && rate <= 1 {
			s.faultRate = rate
		}
	}
}

// WithThrottleRate makes a fraction of placement lookups answer 429 with a
// Retry-After of retryAfter.
func WithThrottleRate(rate float64, retryAfter time.Duration) Option {
	return func(s *Server) {
		if rate >= 0 && rate <= 1 {
			s.throttleRate = rate
			s.retryAfter = retryAfter
		}
	}
}

// WithLatency delays every placement lookup.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.latency = d
		}
	}
}

// WithSeed seeds the fault injection.
func WithSeed(seed uint64) Option {
	return func(s *Server) {
		s.seed = seed
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
