package service

import (
	"time"

	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/resolver"
	"github.com/okian/podium/internal/domain/standings"
	"github.com/okian/podium/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRosterProvider replaces the spreadsheet roster provider.
func WithRosterProvider(p standings.RosterProvider) Option {
	return func(s *Service) {
		s.rosterOverride = p
	}
}

// WithLookup replaces the placement API client.
func WithLookup(l resolver.Lookup) Option {
	return func(s *Service) {
		s.lookupOverride = l
	}
}

// WithArchive sets the snapshot archive instead of opening the configured
// backend.
func WithArchive(a repository.Archive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
