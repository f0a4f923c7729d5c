// Package resolver fans placement lookups out under bounded concurrency and
// retries the ones that may succeed later.
package resolver

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	model "github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Lookup resolves one identifier. Failures are encoded in the result status.
type Lookup interface {
	LatestPlacement(ctx context.Context, region, gameID string) model.PlacementResult
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, region, gameID string) model.PlacementResult

// LatestPlacement calls f.
func (f LookupFunc) LatestPlacement(ctx context.Context, region, gameID string) model.PlacementResult {
	return f(ctx, region, gameID)
}

// Resolver runs placement batches.
type Resolver struct {
	lookup Lookup
	sleep  func(ctx context.Context, d time.Duration) error
	rand   func() float64
	now    func() time.Time
	logger logger.Logger
}

// New creates a Resolver over lookup.
func New(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup: lookup,
		sleep:  sleepCtx,
		rand:   rand.Float64,
		now:    time.Now,
		logger: logger.Get().Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveBatch returns exactly one result per unique normalized identifier.
// At most concurrency lookups run at once (8 when concurrency <= 0).
// Identifiers still pending when ctx ends are recorded as transient errors.
// Only an empty identifier set or an invalid region fail the call.
func (r *Resolver) ResolveBatch(ctx context.Context, region string, ids []string, concurrency int, policy RetryPolicy) (map[string]model.PlacementResult, error) {
	if !validRegion(region) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil, ErrEmptyBatch
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	policy = policy.withDefaults()
	metrics.RecordBatchSize(len(unique))

	var (
		mu      sync.Mutex
		results = make(map[string]model.PlacementResult, len(unique))
		g       errgroup.Group
	)
	g.SetLimit(concurrency)
	for _, id := range unique {
		g.Go(func() error {
			res := r.resolveOne(ctx, region, id, policy)
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	counts := make(map[model.PlacementStatus]int, 5)
	for _, res := range results {
		counts[res.Status]++
		metrics.RecordPlacementLookup(string(res.Status))
	}
	r.logger.Debug(ctx, "placement batch resolved",
		logger.String("region", region),
		logger.Int("identifiers", len(unique)),
		logger.Int("resolved", counts[model.StatusResolved]),
		logger.Int("not_found", counts[model.StatusNotFound]),
		logger.Int("rate_limited", counts[model.StatusRateLimited]),
		logger.Int("transient", counts[model.StatusTransientError]),
		logger.Int("permanent", counts[model.StatusPermanentError]),
	)
	return results, nil
}

func (r *Resolver) resolveOne(ctx context.Context, region, id string, policy RetryPolicy) model.PlacementResult {
	if err := ctx.Err(); err != nil {
		return r.pending(id, err)
	}

	var res model.PlacementResult
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordPlacementRetry(string(res.Status))
			if err := r.sleep(ctx, policy.Backoff(attempt-2, res.RetryAfter, r.rand)); err != nil {
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, policy.PerCallTimeout)
		res = r.lookup.LatestPlacement(callCtx, region, id)
		cancel()

		res.Identifier = id
		res.Attempts = attempt
		if res.Status == "" {
			res.Status = model.StatusTransientError
			res.Detail = "lookup returned no status"
		}
		if res.ObservedAt.IsZero() {
			res.ObservedAt = r.now().UTC()
		}
		if !res.Status.Retryable() || ctx.Err() != nil {
			break
		}
	}
	return res
}

func (r *Resolver) pending(id string, cause error) model.PlacementResult {
	return model.PlacementResult{
		Identifier: id,
		Status:     model.StatusTransientError,
		ObservedAt: r.now().UTC(),
		Detail:     "batch deadline: " + cause.Error(),
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := model.NormalizeID(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// validRegion accepts routing values such as "euw", "na1" or "americas".
func validRegion(region string) bool {
	if len(region) < 2 || len(region) > 16 {
		return false
	}
	for _, c := range region {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
