package repository

import "github.com/okian/podium/pkg/logger"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithArchive writes every publish and invalidation through to a.
func WithArchive(a Archive) Option {
	return func(s *MemoryStore) {
		s.archive = a
	}
}

// WithLogger overrides the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}
