package resolver

import "time"

const (
	defaultConcurrency    = 8
	defaultMaxAttempts    = 4
	defaultBaseDelay      = 250 * time.Millisecond
	defaultMaxDelay       = 5 * time.Second
	defaultJitter         = 0.2
	defaultPerCallTimeout = 3 * time.Second
)

// RetryPolicy bounds retries of rate-limited and transient lookups.
// MaxAttempts counts the first call. Zero fields take defaults.
type RetryPolicy struct {
	MaxAttempts    int           `koanf:"max_attempts" validate:"gte=0"`
	BaseDelay      time.Duration `koanf:"base_delay" validate:"gte=0"`
	MaxDelay       time.Duration `koanf:"max_delay" validate:"gte=0"`
	Jitter         float64       `koanf:"jitter" validate:"gte=0,lte=1"`
	PerCallTimeout time.Duration `koanf:"per_call_timeout" validate:"gte=0"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    defaultMaxAttempts,
		BaseDelay:      defaultBaseDelay,
		MaxDelay:       defaultMaxDelay,
		Jitter:         defaultJitter,
		PerCallTimeout: defaultPerCallTimeout,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.PerCallTimeout <= 0 {
		p.PerCallTimeout = d.PerCallTimeout
	}
	return p
}

// Backoff returns the wait before retry number attempt (0 for the first
// retry): BaseDelay * 2^attempt capped at MaxDelay, spread by ±Jitter using
// rnd in [0,1). A longer provider hint wins.
func (p RetryPolicy) Backoff(attempt int, hint time.Duration, rnd func() float64) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 && rnd != nil {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) - spread + 2*spread*rnd())
	}
	if hint > d {
		d = hint
	}
	return d
}
