// Package scheduler periodically submits refresh requests for tournaments
// that opted into automatic refreshing.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
)

const (
	defaultInterval = time.Minute
	sourceScheduler = "scheduler"
)

// Submitter accepts refresh requests. It reports false when an identical
// request is already pending.
type Submitter interface {
	Submit(ctx context.Context, req model.RefreshRequest) (bool, error)
}

// Entry describes one scheduled refresh.
type Entry struct {
	TournamentID string
	Round        string
	FetchLive    bool
}

// Scheduler submits every entry once per interval.
type Scheduler struct {
	submitter Submitter
	entries   []Entry
	interval  time.Duration
	immediate bool
	now       func() time.Time
	logger    logger.Logger
}

// New creates a scheduler for the given entries.
func New(submitter Submitter, entries []Entry, opts ...Option) *Scheduler {
	s := &Scheduler{
		submitter: submitter,
		entries:   append([]Entry(nil), entries...),
		interval:  defaultInterval,
		immediate: true,
		now:       time.Now,
		logger:    logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve ticks until ctx ends. It returns nil on cancellation so a
// supervisor treats it as a clean stop.
func (s *Scheduler) Serve(ctx context.Context) error {
	if len(s.entries) == 0 {
		<-ctx.Done()
		return nil
	}

	s.logger.Info(ctx, "scheduler started",
		logger.Int("tournaments", len(s.entries)),
		logger.Duration("interval", s.interval),
	)
	if s.immediate && s.tick(ctx) {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.tick(ctx) {
				<-ctx.Done()
				return nil
			}
		}
	}
}

// Tick submits every entry once and returns how many were accepted.
func (s *Scheduler) Tick(ctx context.Context) int {
	n, _ := s.submitAll(ctx)
	return n
}

// String names the service in supervisor events.
func (s *Scheduler) String() string { return "refresh-scheduler" }

// tick reports whether the queue has closed for good.
func (s *Scheduler) tick(ctx context.Context) bool {
	_, err := s.submitAll(ctx)
	if errors.Is(err, queue.ErrQueueClosed) {
		s.logger.Info(ctx, "queue closed, scheduler idle")
		return true
	}
	return false
}

func (s *Scheduler) submitAll(ctx context.Context) (int, error) {
	accepted := 0
	for _, e := range s.entries {
		if ctx.Err() != nil {
			return accepted, ctx.Err()
		}
		req := model.RefreshRequest{
			RequestID:    uuid.NewString(),
			TournamentID: e.TournamentID,
			Round:        e.Round,
			FetchLive:    e.FetchLive,
			Source:       sourceScheduler,
			RequestedAt:  s.now(),
		}
		ok, err := s.submitter.Submit(ctx, req)
		switch {
		case errors.Is(err, queue.ErrQueueClosed):
			return accepted, err
		case err != nil:
			s.logger.Warn(ctx, "scheduled refresh not queued",
				logger.String("tournament", e.TournamentID),
				logger.Error(err),
			)
		case !ok:
			s.logger.Debug(ctx, "scheduled refresh already pending",
				logger.String("tournament", e.TournamentID))
		default:
			accepted++
		}
	}
	return accepted, nil
}
