// Package standings merges rosters and live placements into versioned
// scoreboard snapshots.
package standings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	model "github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/resolver"
	"github.com/okian/podium/internal/domain/scoring"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultLiveBudget  = 20 * time.Second
	defaultConcurrency = 8
	tracerName         = "github.com/okian/podium/internal/domain/standings"
)

// Contention is the policy for a refresh that arrives while another refresh
// of the same tournament is running.
type Contention string

// Contention policies.
const (
	// ContentionAwait joins the running refresh and returns its result.
	ContentionAwait Contention = "await"
	// ContentionReject fails fast with ErrRefreshInProgress.
	ContentionReject Contention = "reject"
)

// RosterProvider returns a tournament's current roster.
type RosterProvider interface {
	Fetch(ctx context.Context, tournamentID string) (model.Roster, error)
}

// PlacementResolver resolves a batch of in-game identifiers.
type PlacementResolver interface {
	ResolveBatch(ctx context.Context, region string, ids []string, concurrency int, policy resolver.RetryPolicy) (map[string]model.PlacementResult, error)
}

// Cache holds the latest published snapshot per tournament.
type Cache interface {
	Get(ctx context.Context, tournamentID string) (*model.Snapshot, bool)
	Put(ctx context.Context, tournamentID string, snap *model.Snapshot) error
}

// RefreshOptions select what a refresh does. An empty Round means "latest".
// RosterOverride replaces the roster fetch.
type RefreshOptions struct {
	Round          string
	FetchLive      bool
	RosterOverride *model.Roster
}

// Aggregator is the only writer of the scoreboard cache. At most one refresh
// per tournament runs at a time; refreshes of different tournaments are
// independent.
type Aggregator struct {
	roster   RosterProvider
	resolver PlacementResolver
	cache    Cache

	scoring     scoring.Converter
	contention  Contention
	concurrency int
	policy      resolver.RetryPolicy
	timeout     time.Duration
	liveBudget  time.Duration

	group    singleflight.Group
	mu       sync.Mutex
	inflight map[string]struct{}
	versions map[string]uint64

	now    func() time.Time
	tracer trace.Tracer
	logger logger.Logger
}

// New creates an Aggregator.
func New(roster RosterProvider, res PlacementResolver, cache Cache, opts ...Option) *Aggregator {
	a := &Aggregator{
		roster:      roster,
		resolver:    res,
		cache:       cache,
		scoring:     scoring.DefaultTable(),
		contention:  ContentionAwait,
		concurrency: defaultConcurrency,
		policy:      resolver.DefaultRetryPolicy(),
		timeout:     defaultTimeout,
		liveBudget:  defaultLiveBudget,
		inflight:    make(map[string]struct{}),
		versions:    make(map[string]uint64),
		now:         time.Now,
		tracer:      otel.Tracer(tracerName),
		logger:      logger.Get().Named("aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Contention returns the configured contention policy.
func (a *Aggregator) Contention() Contention { return a.contention }

// InFlight reports whether a refresh of tournamentID is running.
func (a *Aggregator) InFlight(tournamentID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inflight[tournamentID]
	return ok
}

// Refresh rebuilds and publishes the tournament's snapshot and returns a copy
// of it. Concurrent calls for one tournament share a single underlying
// refresh, or fail with ErrRefreshInProgress under ContentionReject. If ctx
// ends before publish, nothing is published.
func (a *Aggregator) Refresh(ctx context.Context, tournamentID string, opts RefreshOptions) (*model.Snapshot, error) {
	if tournamentID == "" {
		return nil, fmt.Errorf("%w: empty tournament id", model.ErrTournamentUnknown)
	}
	if a.contention == ContentionReject {
		return a.refreshExclusive(ctx, tournamentID, opts)
	}

	for {
		ch := a.group.DoChan(tournamentID, func() (any, error) {
			a.claim(tournamentID)
			defer a.release(tournamentID)
			return a.run(ctx, tournamentID, opts)
		})
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("refresh %s: %w", tournamentID, ctx.Err())
		case res := <-ch:
			if res.Shared {
				metrics.RecordRefreshJoined()
			}
			// A joined flight abandoned by its own caller is retried for
			// callers that are still waiting.
			if res.Shared && errors.Is(res.Err, errFlightCancelled) && ctx.Err() == nil {
				continue
			}
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.(*model.Snapshot).Clone(), nil
		}
	}
}

// refreshExclusive runs a refresh only if none is in flight for the
// tournament. The check and the claim happen under one lock, so two
// simultaneous callers never both start or share a flight.
func (a *Aggregator) refreshExclusive(ctx context.Context, tournamentID string, opts RefreshOptions) (*model.Snapshot, error) {
	if !a.tryClaim(tournamentID) {
		metrics.RecordRefresh("rejected")
		return nil, fmt.Errorf("%w: %s", ErrRefreshInProgress, tournamentID)
	}

	type result struct {
		snap *model.Snapshot
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		snap, err := a.run(ctx, tournamentID, opts)
		// Released before delivery so the caller never observes its own
		// finished refresh as still in flight.
		a.release(tournamentID)
		ch <- result{snap: snap, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("refresh %s: %w", tournamentID, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.snap.Clone(), nil
	}
}

func (a *Aggregator) claim(tournamentID string) {
	a.mu.Lock()
	a.inflight[tournamentID] = struct{}{}
	a.mu.Unlock()
}

func (a *Aggregator) tryClaim(tournamentID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inflight[tournamentID]; busy {
		return false
	}
	a.inflight[tournamentID] = struct{}{}
	return true
}

func (a *Aggregator) release(tournamentID string) {
	a.mu.Lock()
	delete(a.inflight, tournamentID)
	a.mu.Unlock()
}

func (a *Aggregator) run(ctx context.Context, tournamentID string, opts RefreshOptions) (snap *model.Snapshot, err error) {
	metrics.AddRefreshInFlight(1)
	start := time.Now()

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	ctx, span := a.tracer.Start(ctx, "standings.refresh", trace.WithAttributes(
		attribute.String("tournament.id", tournamentID),
		attribute.String("round.requested", opts.Round),
		attribute.Bool("fetch_live", opts.FetchLive),
	))

	defer func() {
		metrics.AddRefreshInFlight(-1)
		metrics.RecordRefreshDuration(float64(time.Since(start).Milliseconds()))
		metrics.RecordRefresh(outcome(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	prior, _ := a.cache.Get(ctx, tournamentID)

	roster, err := a.fetchRoster(ctx, tournamentID, opts.RosterOverride)
	if err != nil {
		if cause := parent.Err(); cause != nil {
			return nil, fmt.Errorf("refresh %s: %w: %w", tournamentID, errFlightCancelled, cause)
		}
		failure := &RosterFetchFailure{TournamentID: tournamentID, Last: prior, Err: err}
		a.logger.Warn(ctx, "roster fetch failed, keeping last snapshot",
			logger.String("tournament", tournamentID),
			logger.Error(err),
		)
		return nil, failure
	}

	round := resolveRound(opts.Round, roster, prior)
	span.SetAttributes(attribute.String("round.id", round), attribute.Int("entrants", len(roster.Entrants)))

	var live map[string]model.PlacementResult
	if opts.FetchLive {
		live, err = a.resolveLive(ctx, roster)
		if err != nil {
			return nil, err
		}
	}
	// Caller cancellation is the last point at which a refresh may be
	// abandoned; an expired refresh deadline still publishes what it has.
	if cause := parent.Err(); cause != nil {
		return nil, fmt.Errorf("refresh %s: %w: %w", tournamentID, errFlightCancelled, cause)
	}

	allRounds := rounds(round, roster, prior)
	entrants := newMerger(round, a.scoring, prior, live).standings(roster, allRounds)

	a.mu.Lock()
	version := a.versions[tournamentID]
	if prior != nil && prior.Version > version {
		version = prior.Version
	}
	version++
	a.mu.Unlock()

	snap = &model.Snapshot{
		TournamentID: tournamentID,
		Region:       roster.Region,
		Version:      version,
		GeneratedAt:  a.now().UTC(),
		RoundID:      round,
		Rounds:       allRounds,
		Entrants:     entrants,
	}
	if err := a.cache.Put(context.WithoutCancel(ctx), tournamentID, snap); err != nil {
		return nil, fmt.Errorf("publish %s v%d: %w", tournamentID, version, err)
	}
	a.mu.Lock()
	a.versions[tournamentID] = version
	a.mu.Unlock()

	unknown := 0
	for _, st := range entrants {
		if sc, ok := st.Score(round); ok && !sc.Known() {
			unknown++
		}
	}
	metrics.UpdateSnapshot(tournamentID, version, len(entrants), unknown)
	span.SetAttributes(attribute.Int64("snapshot.version", int64(version)))
	a.logger.Info(ctx, "snapshot published",
		logger.String("tournament", tournamentID),
		logger.Uint64("version", version),
		logger.String("round", round),
		logger.Int("entrants", len(entrants)),
		logger.Int("pending", unknown),
		logger.Duration("took", time.Since(start)),
	)
	return snap, nil
}

func (a *Aggregator) fetchRoster(ctx context.Context, tournamentID string, override *model.Roster) (model.Roster, error) {
	if override != nil {
		r := *override
		r.TournamentID = tournamentID
		r.Entrants = append([]model.Entrant(nil), override.Entrants...)
		if r.FetchedAt.IsZero() {
			r.FetchedAt = a.now().UTC()
		}
		return r, nil
	}
	ctx, span := a.tracer.Start(ctx, "standings.fetch_roster")
	defer span.End()
	r, err := a.roster.Fetch(ctx, tournamentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster fetch failed")
		return model.Roster{}, err
	}
	return r, nil
}

// resolveLive runs the placement batch under the live budget. Only an
// invalid region is an error; everything else is per-identifier data.
func (a *Aggregator) resolveLive(ctx context.Context, roster model.Roster) (map[string]model.PlacementResult, error) {
	ids := roster.GameIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	liveCtx, cancel := context.WithTimeout(ctx, a.liveBudget)
	defer cancel()
	liveCtx, span := a.tracer.Start(liveCtx, "standings.resolve_live", trace.WithAttributes(
		attribute.String("region", roster.Region),
		attribute.Int("identifiers", len(ids)),
	))
	defer span.End()

	results, err := a.resolver.ResolveBatch(liveCtx, roster.Region, ids, a.concurrency, a.policy)
	switch {
	case errors.Is(err, resolver.ErrEmptyBatch):
		return nil, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch rejected")
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidConfig, err)
	}
	resolved := 0
	for _, r := range results {
		if r.IsResolved() {
			resolved++
		}
	}
	span.SetAttributes(attribute.Int("resolved", resolved))
	return results, nil
}

func outcome(err error) string {
	var rf *RosterFetchFailure
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rf):
		return "roster_failure"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, model.ErrInvalidConfig):
		return "invalid_config"
	default:
		return "error"
	}
}
