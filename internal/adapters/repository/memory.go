package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	model "github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// MemoryStore keeps one immutable snapshot per tournament. A publish swaps
// the pointer under the write lock; readers copy under the read lock.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*model.Snapshot
	archive   Archive
	logger    logger.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		snapshots: make(map[string]*model.Snapshot),
		logger:    logger.Get().Named("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, tournamentID string) (*model.Snapshot, bool) {
	s.mu.RLock()
	snap, ok := s.snapshots[tournamentID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

func (s *MemoryStore) Put(ctx context.Context, tournamentID string, snap *model.Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	if snap.TournamentID != tournamentID {
		return fmt.Errorf("%w: %q stored under %q", ErrTournamentMismatch, snap.TournamentID, tournamentID)
	}
	owned := snap.Clone()

	s.mu.Lock()
	if cur, ok := s.snapshots[tournamentID]; ok && cur.Version >= owned.Version {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s has v%d, got v%d", ErrStaleVersion, tournamentID, cur.Version, owned.Version)
	}
	s.snapshots[tournamentID] = owned
	n := len(s.snapshots)
	s.mu.Unlock()

	metrics.RecordCachePublish()
	metrics.UpdateCacheTournaments(n)

	if s.archive != nil {
		if err := s.archive.Save(ctx, owned); err != nil {
			metrics.RecordArchiveError(s.archive.Name(), "save")
			s.logger.Warn(ctx, "snapshot archive failed",
				logger.String("tournament", tournamentID),
				logger.Uint64("version", owned.Version),
				logger.String("backend", s.archive.Name()),
				logger.Error(err),
			)
		}
	}
	return nil
}

func (s *MemoryStore) Invalidate(ctx context.Context, tournamentID string) error {
	s.mu.Lock()
	_, existed := s.snapshots[tournamentID]
	delete(s.snapshots, tournamentID)
	n := len(s.snapshots)
	s.mu.Unlock()

	if existed {
		metrics.RecordCacheInvalidation()
		metrics.UpdateCacheTournaments(n)
	}
	if s.archive != nil {
		if err := s.archive.Delete(ctx, tournamentID); err != nil {
			metrics.RecordArchiveError(s.archive.Name(), "delete")
			return fmt.Errorf("invalidate %s: %w", tournamentID, err)
		}
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context) []Summary {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.snapshots))
	for id, snap := range s.snapshots {
		out = append(out, Summary{
			TournamentID: id,
			Version:      snap.Version,
			RoundID:      snap.RoundID,
			GeneratedAt:  snap.GeneratedAt,
			Entrants:     len(snap.Entrants),
		})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TournamentID < out[j].TournamentID })
	return out
}

func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Warm loads archived snapshots that are newer than what is cached. It
// returns the number of tournaments restored.
func (s *MemoryStore) Warm(ctx context.Context) (int, error) {
	if s.archive == nil {
		return 0, nil
	}
	snaps, err := s.archive.LoadAll(ctx)
	if err != nil {
		metrics.RecordArchiveError(s.archive.Name(), "load")
		return 0, fmt.Errorf("warm from %s: %w", s.archive.Name(), err)
	}

	restored := 0
	s.mu.Lock()
	for _, snap := range snaps {
		if snap == nil || snap.TournamentID == "" {
			continue
		}
		if cur, ok := s.snapshots[snap.TournamentID]; ok && cur.Version >= snap.Version {
			continue
		}
		s.snapshots[snap.TournamentID] = snap
		restored++
	}
	n := len(s.snapshots)
	s.mu.Unlock()

	metrics.UpdateCacheTournaments(n)
	s.logger.Info(ctx, "cache warmed",
		logger.String("backend", s.archive.Name()),
		logger.Int("restored", restored),
	)
	return restored, nil
}

// Close releases the archive, if any.
func (s *MemoryStore) Close() error {
	if s.archive == nil {
		return nil
	}
	return s.archive.Close()
}
