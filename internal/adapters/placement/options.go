package placement

import (
	"net/http"
	"time"

	"github.com/okian/podium/pkg/logger"
	"golang.org/x/time/rate"
)

// BreakerSettings tunes the circuit breaker guarding the API.
type BreakerSettings struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

// DefaultBreakerSettings opens after 60% failures over at least 10 calls and
// lets a trial request through after 30 seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithAPIKey sends key in header on every request.
func WithAPIKey(header, key string) Option {
	return func(cl *Client) {
		if header != "" {
			cl.keyHeader = header
		}
		cl.apiKey = key
	}
}

// WithRateLimit caps outbound calls per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker overrides the breaker settings.
func WithBreaker(s BreakerSettings) Option {
	return func(cl *Client) {
		cl.breakerSettings = s
	}
}

// WithName labels the breaker in logs and metrics.
func WithName(name string) Option {
	return func(cl *Client) {
		if name != "" {
			cl.name = name
		}
	}
}

// WithClock overrides the time source used for ObservedAt and Retry-After dates.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		if now != nil {
			cl.now = now
		}
	}
}

// WithLogger overrides the client logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}
