package placement

import "errors"

// errUpstreamUnavailable marks outcomes that count against the circuit breaker.
var errUpstreamUnavailable = errors.New("placement upstream unavailable")

// ErrInvalidBaseURL is returned by NewClient for an unusable base URL.
var ErrInvalidBaseURL = errors.New("invalid placement base url")
