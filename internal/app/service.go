// Package service wires the standings engine together and exposes the
// operations the HTTP API and CLI depend on.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/adapters/mq/scheduler"
	"github.com/okian/podium/internal/adapters/mq/worker"
	"github.com/okian/podium/internal/adapters/placement"
	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/adapters/roster"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/resolver"
	"github.com/okian/podium/internal/domain/scoring"
	"github.com/okian/podium/internal/domain/standings"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Request sources.
const (
	SourceAPI = "api"
	SourceCLI = "cli"
)

// Service implements the API dependencies for the standings engine.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	store      *repository.MemoryStore
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	scheduler  *scheduler.Scheduler
	aggregator *standings.Aggregator
	placements *placement.Client

	rosterOverride standings.RosterProvider
	lookupOverride resolver.Lookup
	archive        repository.Archive
	now            func() time.Time

	started bool

	logger logger.Logger
}

// New builds every component from cfg. Nothing runs until Start and the
// background services returned by Pool and Scheduler are served.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.archive == nil {
		archive, err := openArchive(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		s.archive = archive
	}
	storeOpts := []repository.Option{}
	if s.archive != nil {
		storeOpts = append(storeOpts, repository.WithArchive(s.archive))
	}
	s.store = repository.NewMemoryStore(storeOpts...)

	rosters := s.rosterOverride
	if rosters == nil {
		rosters = roster.NewSheetProvider(cfg.Sources(),
			roster.WithToken(cfg.Roster.Token),
			roster.WithTimeout(cfg.Roster.Timeout),
			roster.WithMaxBytes(cfg.Roster.MaxBytes),
			roster.WithMapping(cfg.Roster.Mapping),
		)
	}

	lookup := s.lookupOverride
	if lookup == nil {
		client, err := placement.NewClient(cfg.Placement.BaseURL,
			placement.WithAPIKey(cfg.Placement.APIKeyHeader, cfg.Placement.APIKey),
			placement.WithRateLimit(cfg.Placement.RatePerSecond, cfg.Placement.Burst),
			placement.WithBreaker(cfg.Placement.Breaker),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		s.placements = client
		lookup = client
	}

	table, err := scoring.NewTable(cfg.ScoringTable)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	s.aggregator = standings.New(rosters, resolver.New(lookup), s.store,
		standings.WithContention(standings.Contention(cfg.Refresh.Contention)),
		standings.WithConcurrency(cfg.Refresh.Concurrency),
		standings.WithRetryPolicy(cfg.Retry),
		standings.WithTimeout(cfg.Refresh.Timeout),
		standings.WithLiveBudget(cfg.Refresh.LiveBudget),
		standings.WithScoring(table),
		standings.WithClock(s.now),
	)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))
	s.pool = worker.NewPool(cfg.WorkerCount, s.queue, s.aggregator, worker.WithDeduper(s.deduper))

	var entries []scheduler.Entry
	for id, t := range cfg.Tournaments {
		if t.AutoRefresh {
			entries = append(entries, scheduler.Entry{TournamentID: id, Round: t.Round, FetchLive: t.FetchLive})
		}
	}
	s.scheduler = scheduler.New(s, entries,
		scheduler.WithInterval(cfg.Refresh.ScheduleInterval),
		scheduler.WithClock(s.now),
	)
	return s, nil
}

func openArchive(ctx context.Context, cfg config.ArchiveConfig) (repository.Archive, error) {
	switch cfg.Backend {
	case config.ArchiveBadger:
		a, err := repository.OpenBadgerArchive(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger archive: %w", err)
		}
		return a, nil
	case config.ArchiveRedis:
		a, err := repository.DialRedisArchive(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("open redis archive: %w", err)
		}
		return a, nil
	default:
		return nil, nil
	}
}

// Start warms the cache from the archive. A failed warm-up is logged and
// the service starts empty.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting standings service...")

	if n, err := s.store.Warm(ctx); err != nil {
		s.logger.Warn(ctx, "cache warm-up failed", logger.Error(err))
	} else if n > 0 {
		s.logger.Info(ctx, "restored snapshots", logger.Int("tournaments", n))
	}

	s.started = true
	s.logger.Info(ctx, "standings service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queue.Cap()),
		logger.Int("tournaments", len(s.cfg.Tournaments)),
	)
	return nil
}

// Stop drains the refresh queue and releases the archive.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping standings service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close archive: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "standings service stopped")
	return errors.Join(errs...)
}

// Pool returns the worker pool so a supervisor can serve it.
func (s *Service) Pool() *worker.Pool { return s.pool }

// Scheduler returns the periodic refresh scheduler.
func (s *Service) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Contention returns the configured contention policy.
func (s *Service) Contention() standings.Contention { return s.aggregator.Contention() }

// Refresh runs a synchronous refresh.
func (s *Service) Refresh(ctx context.Context, tournamentID, round string, live bool) (*model.Snapshot, error) {
	return s.aggregator.Refresh(ctx, tournamentID, standings.RefreshOptions{Round: round, FetchLive: live})
}

// RefreshWith runs a synchronous refresh against a caller-supplied roster.
func (s *Service) RefreshWith(ctx context.Context, r model.Roster, round string, live bool) (*model.Snapshot, error) {
	return s.aggregator.Refresh(ctx, r.TournamentID, standings.RefreshOptions{
		Round:          round,
		FetchLive:      live,
		RosterOverride: &r,
	})
}

// Scoreboard returns the latest published snapshot.
func (s *Service) Scoreboard(ctx context.Context, tournamentID string) (*model.Snapshot, bool) {
	return s.store.Get(ctx, tournamentID)
}

// Invalidate drops the cached snapshot for a tournament.
func (s *Service) Invalidate(ctx context.Context, tournamentID string) error {
	return s.store.Invalidate(ctx, tournamentID)
}

// Tournaments lists every cached snapshot.
func (s *Service) Tournaments(ctx context.Context) []repository.Summary {
	return s.store.List(ctx)
}

// Submit queues a refresh request unless an identical one is pending. It
// reports false for duplicates.
func (s *Service) Submit(ctx context.Context, req model.RefreshRequest) (bool, error) {
	if req.TournamentID == "" {
		return false, model.ErrTournamentUnknown
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = s.now()
	}

	key := req.Key()
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordQueueDuplicate()
		return false, nil
	}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		s.deduper.Unrecord(ctx, key)
		return false, err
	}
	s.logger.Debug(ctx, "refresh queued",
		logger.String("request_id", req.RequestID),
		logger.String("tournament", req.TournamentID),
		logger.String("source", req.Source),
	)
	return true, nil
}

// EnqueueRefresh queues an asynchronous refresh and returns its ticket.
func (s *Service) EnqueueRefresh(ctx context.Context, tournamentID, round string, live bool, source string) (types.Ticket, error) {
	req := model.RefreshRequest{
		RequestID:    uuid.NewString(),
		TournamentID: tournamentID,
		Round:        round,
		FetchLive:    live,
		Source:       source,
	}
	accepted, err := s.Submit(ctx, req)
	if err != nil {
		return types.Ticket{}, err
	}
	return types.Ticket{
		RequestID:    req.RequestID,
		TournamentID: tournamentID,
		Round:        round,
		Duplicate:    !accepted,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	st := types.Stats{
		Started:       started,
		Tournaments:   s.store.Count(ctx),
		Configured:    len(s.cfg.Tournaments),
		QueueLength:   s.queue.Len(ctx),
		QueueCapacity: s.queue.Cap(),
		Pending:       s.deduper.Size(),
		Workers:       s.pool.Size(),
		Processed:     s.pool.Processed(),
		Failed:        s.pool.Failed(),
		Contention:    string(s.aggregator.Contention()),
	}
	if s.placements != nil {
		st.Breaker = s.placements.BreakerState()
	}

	metrics.UpdateCacheTournaments(st.Tournaments)
	return st
}
