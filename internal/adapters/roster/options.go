package roster

import (
	"net/http"
	"time"

	"github.com/okian/podium/pkg/logger"
)

// Option configures a SheetProvider.
type Option func(*SheetProvider)

// WithHTTPClient sets the base client used for export downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(p *SheetProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithToken authenticates downloads with a bearer token.
func WithToken(token string) Option {
	return func(p *SheetProvider) {
		p.token = token
	}
}

// WithTimeout bounds a single export download.
func WithTimeout(d time.Duration) Option {
	return func(p *SheetProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMapping sets the header mapping.
func WithMapping(m FieldMapping) Option {
	return func(p *SheetProvider) {
		p.mapping = m
	}
}

// WithMaxBytes caps the export size read from the sheet service.
func WithMaxBytes(n int64) Option {
	return func(p *SheetProvider) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithClock overrides the time source used to stamp FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(p *SheetProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger overrides the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(p *SheetProvider) {
		if l != nil {
			p.logger = l
		}
	}
}
