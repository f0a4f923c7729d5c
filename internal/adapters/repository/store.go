// Package repository holds the latest scoreboard snapshot per tournament and
// optionally archives it for warm restarts.
package repository

import (
	"context"
	"time"

	model "github.com/okian/podium/internal/domain/model"
)

// Summary describes one cached snapshot without its standings.
type Summary struct {
	TournamentID string    `json:"tournament_id"`
	Version      uint64    `json:"version"`
	RoundID      string    `json:"round_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Entrants     int       `json:"entrants"`
}

// Store provides read/write access to published snapshots. Readers always
// receive copies and never observe a partially written snapshot.
type Store interface {
	// Get returns the latest snapshot for a tournament.
	Get(ctx context.Context, tournamentID string) (*model.Snapshot, bool)
	// Put replaces the tournament's snapshot. Versions must increase.
	Put(ctx context.Context, tournamentID string, snap *model.Snapshot) error
	// Invalidate drops the tournament's snapshot.
	Invalidate(ctx context.Context, tournamentID string) error
	// List summarizes every cached tournament ordered by id.
	List(ctx context.Context) []Summary
	// Count returns the number of cached tournaments.
	Count(ctx context.Context) int
}

// Archive persists snapshots outside the process.
type Archive interface {
	Save(ctx context.Context, snap *model.Snapshot) error
	Delete(ctx context.Context, tournamentID string) error
	LoadAll(ctx context.Context) ([]*model.Snapshot, error)
	Close() error
	// Name labels the backend in logs and metrics.
	Name() string
}
