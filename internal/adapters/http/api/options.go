package api

import (
	"time"

	"github.com/okian/podium/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithCORSOrigins sets the origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithRefreshRateLimit caps refresh calls per client IP per minute. Zero
// disables the limit.
func WithRefreshRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute >= 0 {
			s.refreshLimit = perMinute
		}
	}
}

// WithClock overrides the time source used for snapshot ages.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
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
