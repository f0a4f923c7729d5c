package standings_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/okian/podium/internal/adapters/repository"
	model "github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/resolver"
	"github.com/okian/podium/internal/domain/standings"
	"github.com/okian/podium/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var t0 = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

// rosterSource counts fetches and can block or fail on demand.
type rosterSource struct {
	mu      sync.Mutex
	roster  model.Roster
	fail    error
	calls   atomic.Int64
	entered chan struct{}
	release chan struct{}
	only    string // when set, only this tournament blocks
}

func (r *rosterSource) Fetch(ctx context.Context, id string) (model.Roster, error) {
	r.calls.Add(1)
	gated := r.only == "" || r.only == id
	if r.entered != nil && gated {
		r.entered <- struct{}{}
	}
	if r.release != nil && gated {
		select {
		case <-r.release:
		case <-ctx.Done():
			return model.Roster{}, errors.Join(model.ErrRosterUnreachable, ctx.Err())
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return model.Roster{}, r.fail
	}
	out := r.roster
	out.TournamentID = id
	out.Entrants = append([]model.Entrant(nil), r.roster.Entrants...)
	return out, nil
}

func (r *rosterSource) setFail(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

// placements answers lookups from a mutable table and counts batches.
type placements struct {
	mu      sync.Mutex
	answers map[string]model.PlacementResult
	batches atomic.Int64
	block   bool
}

func (p *placements) set(id string, r model.PlacementResult) {
	p.mu.Lock()
	p.answers[id] = r
	p.mu.Unlock()
}

func (p *placements) LatestPlacement(ctx context.Context, _, id string) model.PlacementResult {
	p.mu.Lock()
	block := p.block
	r, ok := p.answers[id]
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return model.PlacementResult{Status: model.StatusTransientError, Detail: ctx.Err().Error()}
	}
	if !ok {
		return model.PlacementResult{Status: model.StatusNotFound, ObservedAt: t0}
	}
	return r
}

type countingResolver struct {
	inner   *resolver.Resolver
	batches *atomic.Int64
}

func (c countingResolver) ResolveBatch(ctx context.Context, region string, ids []string, n int, p resolver.RetryPolicy) (map[string]model.PlacementResult, error) {
	c.batches.Add(1)
	return c.inner.ResolveBatch(ctx, region, ids, n, p)
}

func live(placement int, match string) model.PlacementResult {
	return model.PlacementResult{Status: model.StatusResolved, Placement: placement, MatchID: match, ObservedAt: t0}
}

func entrant(id string, seq int, sheet map[string]int) model.Entrant {
	return model.Entrant{Identifier: id, DisplayName: id, GameID: id + "#EUW", Registered: true, Seq: seq, SheetPoints: sheet}
}

type fixture struct {
	roster *rosterSource
	lookup *placements
	cache  *repository.MemoryStore
	agg    *standings.Aggregator
}

func newFixture(entrants []model.Entrant, opts ...standings.Option) *fixture {
	f := &fixture{
		roster: &rosterSource{roster: model.Roster{Region: "euw", Entrants: entrants}},
		lookup: &placements{answers: make(map[string]model.PlacementResult)},
		cache:  repository.NewMemoryStore(),
	}
	res := resolver.New(f.lookup, resolver.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	base := []standings.Option{
		standings.WithClock(func() time.Time { return t0 }),
		standings.WithRetryPolicy(resolver.RetryPolicy{MaxAttempts: 2, PerCallTimeout: time.Second}),
	}
	f.agg = standings.New(f.roster, countingResolver{inner: res, batches: &f.lookup.batches}, f.cache, append(base, opts...)...)
	return f
}

func order(s *model.Snapshot) []string {
	ids := make([]string, len(s.Entrants))
	for i, st := range s.Entrants {
		ids[i] = st.Entrant.Identifier
	}
	return ids
}

func score(s *model.Snapshot, id, round string) model.RoundScore {
	st, _ := s.Standing(id)
	sc, _ := st.Score(round)
	return sc
}

func TestAggregator_Refresh(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given a roster of A, B and C with live placements for round 1", t, func() {
		f := newFixture([]model.Entrant{entrant("a", 0, nil), entrant("b", 1, nil), entrant("c", 2, nil)})
		f.lookup.set("a#euw", live(2, "M1"))
		f.lookup.set("c#euw", live(5, "M1"))

		Convey("When round 1 is refreshed with live data", func() {
			snap, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1", FetchLive: true})
			So(err, ShouldBeNil)

			Convey("Then placements convert to points and the rest are pending", func() {
				So(score(snap, "a", "1").Points, ShouldEqual, 7)
				So(score(snap, "a", "1").Source, ShouldEqual, model.SourceLive)
				So(score(snap, "a", "1").MatchID, ShouldEqual, "M1")
				So(score(snap, "b", "1").Points, ShouldEqual, 0)
				So(score(snap, "b", "1").Source, ShouldEqual, model.SourceUnknown)
				So(score(snap, "c", "1").Points, ShouldEqual, 4)
				So(score(snap, "c", "1").Source, ShouldEqual, model.SourceLive)
			})

			Convey("Then entrants are ordered by total", func() {
				So(order(snap), ShouldResemble, []string{"a", "c", "b"})
				So(snap.Entrants[0].Rank, ShouldEqual, 1)
				So(snap.Entrants[2].Rank, ShouldEqual, 3)
			})

			Convey("Then the snapshot is version 1 and cached", func() {
				So(snap.Version, ShouldEqual, 1)
				So(snap.RoundID, ShouldEqual, "1")
				So(snap.GeneratedAt, ShouldEqual, t0)
				cached, ok := f.cache.Get(ctx, "spring-cup")
				So(ok, ShouldBeTrue)
				So(cmp.Diff(snap, cached), ShouldBeEmpty)
			})

			Convey("And the roster service fails on the next refresh", func() {
				f.roster.setFail(errors.Join(model.ErrRosterUnreachable, errors.New("dial tcp: refused")))
				_, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1", FetchLive: true})

				Convey("Then the failure names the last known standings", func() {
					var rf *standings.RosterFetchFailure
					So(errors.As(err, &rf), ShouldBeTrue)
					So(errors.Is(err, model.ErrRosterUnreachable), ShouldBeTrue)
					So(rf.Last.Version, ShouldEqual, 1)
					So(rf.Message(), ShouldEqual, "could not refresh — showing last known standings (as of 2026-03-01T18:00:00Z)")
				})

				Convey("Then the cache still serves version 1 unchanged", func() {
					cached, _ := f.cache.Get(ctx, "spring-cup")
					So(cmp.Diff(snap, cached), ShouldBeEmpty)
				})
			})

			Convey("And it is refreshed again with nothing changed", func() {
				again, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1", FetchLive: true})
				So(err, ShouldBeNil)

				Convey("Then only the version differs", func() {
					So(again.Version, ShouldEqual, 2)
					So(cmp.Diff(snap.Entrants, again.Entrants), ShouldBeEmpty)
				})
			})

			Convey("And the next live lookup for A fails", func() {
				f.lookup.set("a#euw", model.PlacementResult{Status: model.StatusTransientError})
				again, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1", FetchLive: true})
				So(err, ShouldBeNil)

				Convey("Then A keeps its resolved score", func() {
					So(score(again, "a", "1"), ShouldResemble, score(snap, "a", "1"))
				})
			})

			Convey("And B resolves later", func() {
				f.lookup.set("b#euw", live(1, "M2"))
				again, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1", FetchLive: true})
				So(err, ShouldBeNil)

				Convey("Then B moves to the top", func() {
					So(order(again), ShouldResemble, []string{"b", "a", "c"})
					So(again.Entrants[0].Total, ShouldEqual, 8)
				})
			})

			Convey("And round 2 is refreshed", func() {
				f.lookup.set("a#euw", live(8, "M3"))
				f.lookup.set("b#euw", live(1, "M3"))
				f.lookup.set("c#euw", model.PlacementResult{Status: model.StatusNotFound})
				next, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "2", FetchLive: true})
				So(err, ShouldBeNil)

				Convey("Then round 1 live scores are carried and totals span both rounds", func() {
					So(next.Rounds, ShouldResemble, []string{"1", "2"})
					So(score(next, "a", "1").Points, ShouldEqual, 7)
					So(score(next, "a", "2").Points, ShouldEqual, 1)
					So(score(next, "c", "2").Source, ShouldEqual, model.SourceUnknown)
					So(order(next), ShouldResemble, []string{"a", "b", "c"})
				})
			})
		})

		Convey("When the live phase is skipped", func() {
			snap, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1"})
			So(err, ShouldBeNil)

			Convey("Then no placements are fetched and everyone is pending", func() {
				So(f.lookup.batches.Load(), ShouldEqual, 0)
				for _, st := range snap.Entrants {
					So(st.Total, ShouldEqual, 0)
				}
				So(order(snap), ShouldResemble, []string{"a", "b", "c"})
			})
		})
	})

	Convey("Given A and B scored live from match M1 in round 1", t, func() {
		f := newFixture([]model.Entrant{entrant("a", 0, nil), entrant("b", 1, nil)})
		f.lookup.set("a#euw", live(1, "M1"))
		f.lookup.set("b#euw", live(2, "M1"))
		first, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1", FetchLive: true})
		So(err, ShouldBeNil)
		So(first.Entrants[0].Total, ShouldEqual, 8)

		Convey("When round 2 is refreshed before A has played it", func() {
			f.lookup.set("b#euw", live(3, "M2"))
			next, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "2", FetchLive: true})
			So(err, ShouldBeNil)

			Convey("Then A's round 1 match is not counted again", func() {
				So(score(next, "a", "1").MatchID, ShouldEqual, "M1")
				So(score(next, "a", "2").Source, ShouldEqual, model.SourceUnknown)
				st, _ := next.Standing("a")
				So(st.Total, ShouldEqual, 8)
			})

			Convey("Then B's new match scores round 2", func() {
				So(score(next, "b", "2").MatchID, ShouldEqual, "M2")
				So(score(next, "b", "2").Points, ShouldEqual, 6)
				So(order(next), ShouldResemble, []string{"b", "a"})
			})

			Convey("And round 1 is refreshed again", func() {
				again, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1", FetchLive: true})
				So(err, ShouldBeNil)

				Convey("Then B's round 1 keeps its own match", func() {
					So(score(again, "b", "1").MatchID, ShouldEqual, "M1")
					So(score(again, "b", "1").Points, ShouldEqual, 7)
					So(score(again, "b", "2").MatchID, ShouldEqual, "M2")
					st, _ := again.Standing("b")
					So(st.Total, ShouldEqual, 13)
				})
			})
		})
	})

	Convey("Given sheet points for earlier rounds", t, func() {
		f := newFixture([]model.Entrant{
			entrant("a", 0, map[string]int{"1": 3, "2": 2}),
			entrant("b", 1, map[string]int{"1": 8}),
		})

		Convey("When the latest round is refreshed without live data", func() {
			snap, err := f.agg.Refresh(ctx, "autumn-cup", standings.RefreshOptions{Round: standings.LatestRound})
			So(err, ShouldBeNil)

			Convey("Then the highest sheet round is targeted and sheet points count", func() {
				So(snap.RoundID, ShouldEqual, "2")
				So(score(snap, "a", "2").Source, ShouldEqual, model.SourceSheet)
				So(score(snap, "b", "2").Source, ShouldEqual, model.SourceUnknown)
				So(snap.Entrants[0].Entrant.Identifier, ShouldEqual, "b")
				So(snap.Entrants[0].Total, ShouldEqual, 8)
				So(snap.Entrants[1].Total, ShouldEqual, 5)
			})
		})

		Convey("When a live placement exists for a sheet-scored round", func() {
			f.lookup.set("a#euw", live(1, "M9"))
			snap, err := f.agg.Refresh(ctx, "autumn-cup", standings.RefreshOptions{Round: "2", FetchLive: true})
			So(err, ShouldBeNil)

			Convey("Then the live value wins for the target round only", func() {
				So(score(snap, "a", "2").Source, ShouldEqual, model.SourceLive)
				So(score(snap, "a", "2").Points, ShouldEqual, 8)
				So(score(snap, "a", "1").Source, ShouldEqual, model.SourceSheet)
			})
		})

		Convey("When the region is invalid", func() {
			f.roster.roster.Region = "EU West"
			_, err := f.agg.Refresh(ctx, "autumn-cup", standings.RefreshOptions{FetchLive: true})

			Convey("Then the refresh fails as misconfigured", func() {
				So(errors.Is(err, model.ErrInvalidConfig), ShouldBeTrue)
				_, ok := f.cache.Get(ctx, "autumn-cup")
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a generated roster with entrants joining and leaving", t, func() {
		faker := gofakeit.New(42)
		entrants := make([]model.Entrant, 12)
		for i := range entrants {
			entrants[i] = entrant(faker.Username(), i, map[string]int{"1": faker.IntRange(0, 8)})
			entrants[i].Identifier = model.NormalizeID(entrants[i].Identifier) + "-" + faker.DigitN(4)
		}
		f := newFixture(entrants)
		first, err := f.agg.Refresh(ctx, "open", standings.RefreshOptions{Round: "1"})
		So(err, ShouldBeNil)

		f.roster.roster.Entrants = append(entrants[2:], entrant("late", 99, nil))
		second, err := f.agg.Refresh(ctx, "open", standings.RefreshOptions{Round: "1"})
		So(err, ShouldBeNil)

		Convey("Then each snapshot holds exactly the roster at fetch time", func() {
			ids := func(es []model.Entrant) []string {
				out := make([]string, len(es))
				for i, e := range es {
					out[i] = e.Identifier
				}
				return out
			}
			sorted := cmpopts.SortSlices(func(a, b string) bool { return a < b })
			So(cmp.Diff(ids(entrants), order(first), sorted), ShouldBeEmpty)
			So(cmp.Diff(ids(f.roster.roster.Entrants), order(second), sorted), ShouldBeEmpty)
		})

		Convey("Then totals never increase down the table", func() {
			for i := 1; i < len(second.Entrants); i++ {
				So(second.Entrants[i-1].Total, ShouldBeGreaterThanOrEqualTo, second.Entrants[i].Total)
				if second.Entrants[i-1].Total == second.Entrants[i].Total {
					So(second.Entrants[i-1].Entrant.Seq, ShouldBeLessThan, second.Entrants[i].Entrant.Seq)
				}
			}
		})
	})

	Convey("Given a roster override", t, func() {
		f := newFixture(nil)
		override := &model.Roster{Region: "euw", Entrants: []model.Entrant{entrant("x", 0, map[string]int{"1": 4})}}
		snap, err := f.agg.Refresh(ctx, "replay", standings.RefreshOptions{Round: "1", RosterOverride: override})

		Convey("Then the provider is not called", func() {
			So(err, ShouldBeNil)
			So(f.roster.calls.Load(), ShouldEqual, 0)
			So(snap.Entrants[0].Total, ShouldEqual, 4)
			So(snap.TournamentID, ShouldEqual, "replay")
		})
	})
}

func TestAggregator_Concurrency(t *testing.T) {
	_ = logger.Init()

	Convey("Given a roster fetch that blocks until released", t, func() {
		f := newFixture([]model.Entrant{entrant("a", 0, nil)})
		f.lookup.set("a#euw", live(1, "M1"))
		f.roster.entered = make(chan struct{}, 4)
		f.roster.release = make(chan struct{})

		Convey("When two refreshes for one tournament overlap", func() {
			var (
				wg      sync.WaitGroup
				results [2]*model.Snapshot
				errs    [2]error
			)
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[0], errs[0] = f.agg.Refresh(context.Background(), "cup", standings.RefreshOptions{FetchLive: true})
			}()
			<-f.roster.entered
			So(f.agg.InFlight("cup"), ShouldBeTrue)

			wg.Add(1)
			go func() {
				defer wg.Done()
				results[1], errs[1] = f.agg.Refresh(context.Background(), "cup", standings.RefreshOptions{FetchLive: true})
			}()
			time.Sleep(50 * time.Millisecond)
			close(f.roster.release)
			wg.Wait()

			Convey("Then they share one roster fetch and one placement batch", func() {
				So(errs[0], ShouldBeNil)
				So(errs[1], ShouldBeNil)
				So(f.roster.calls.Load(), ShouldEqual, 1)
				So(f.lookup.batches.Load(), ShouldEqual, 1)
				So(results[0].Version, ShouldEqual, 1)
				So(cmp.Diff(results[0], results[1]), ShouldBeEmpty)
				So(f.agg.InFlight("cup"), ShouldBeFalse)
			})
		})

		Convey("When the caller cancels mid-refresh", func() {
			cctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				_, err := f.agg.Refresh(cctx, "cup", standings.RefreshOptions{FetchLive: true})
				done <- err
			}()
			<-f.roster.entered
			cancel()
			err := <-done

			Convey("Then nothing is published and a new refresh can run", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				_, ok := f.cache.Get(context.Background(), "cup")
				So(ok, ShouldBeFalse)

				close(f.roster.release)
				snap, err := f.agg.Refresh(context.Background(), "cup", standings.RefreshOptions{FetchLive: true})
				So(err, ShouldBeNil)
				So(snap.Version, ShouldEqual, 1)
			})
		})
	})

	Convey("Given the reject contention policy", t, func() {
		f := newFixture([]model.Entrant{entrant("a", 0, nil)}, standings.WithContention(standings.ContentionReject))
		f.roster.entered = make(chan struct{}, 4)
		f.roster.release = make(chan struct{})
		f.roster.only = "cup"

		done := make(chan error, 1)
		go func() {
			_, err := f.agg.Refresh(context.Background(), "cup", standings.RefreshOptions{})
			done <- err
		}()
		<-f.roster.entered

		Convey("Then an overlapping refresh is rejected", func() {
			_, err := f.agg.Refresh(context.Background(), "cup", standings.RefreshOptions{})
			So(errors.Is(err, standings.ErrRefreshInProgress), ShouldBeTrue)
			So(f.agg.Contention(), ShouldEqual, standings.ContentionReject)

			close(f.roster.release)
			So(<-done, ShouldBeNil)
			So(f.roster.calls.Load(), ShouldEqual, 1)
		})

		Convey("Then other tournaments are unaffected", func() {
			_, err := f.agg.Refresh(context.Background(), "other", standings.RefreshOptions{})
			So(err, ShouldBeNil)
			close(f.roster.release)
			So(<-done, ShouldBeNil)
		})
	})

	Convey("Given the reject contention policy and a burst of simultaneous refreshes", t, func() {
		f := newFixture([]model.Entrant{entrant("a", 0, nil)}, standings.WithContention(standings.ContentionReject))
		f.roster.entered = make(chan struct{}, 8)
		f.roster.release = make(chan struct{})

		const callers = 8
		start := make(chan struct{})
		results := make(chan error, callers)
		for i := 0; i < callers; i++ {
			go func() {
				<-start
				_, err := f.agg.Refresh(context.Background(), "cup", standings.RefreshOptions{})
				results <- err
			}()
		}
		close(start)
		<-f.roster.entered

		Convey("Then exactly one starts and every other caller is rejected", func() {
			rejected := 0
			timeout := time.After(2 * time.Second)
			for rejected < callers-1 {
				select {
				case err := <-results:
					So(errors.Is(err, standings.ErrRefreshInProgress), ShouldBeTrue)
					rejected++
				case <-timeout:
					So(rejected, ShouldEqual, callers-1)
					return
				}
			}
			So(f.agg.InFlight("cup"), ShouldBeTrue)

			close(f.roster.release)
			So(<-results, ShouldBeNil)
			So(f.roster.calls.Load(), ShouldEqual, 1)
			So(f.agg.InFlight("cup"), ShouldBeFalse)

			Convey("And the next refresh runs once the first is done", func() {
				snap, err := f.agg.Refresh(context.Background(), "cup", standings.RefreshOptions{})
				So(err, ShouldBeNil)
				So(snap.Version, ShouldEqual, 2)
			})
		})
	})

	Convey("Given placement lookups that outlast the live budget", t, func() {
		f := newFixture([]model.Entrant{entrant("a", 0, map[string]int{"1": 5}), entrant("b", 1, nil)},
			standings.WithLiveBudget(30*time.Millisecond))
		f.lookup.block = true

		Convey("Then the snapshot is still published with what is known", func() {
			snap, err := f.agg.Refresh(context.Background(), "cup", standings.RefreshOptions{Round: "1", FetchLive: true})
			So(err, ShouldBeNil)
			So(score(snap, "a", "1").Source, ShouldEqual, model.SourceSheet)
			So(score(snap, "b", "1").Source, ShouldEqual, model.SourceUnknown)
		})
	})
}

func TestAggregator_Tracing(t *testing.T) {
	_ = logger.Init()
	ctx := context.Background()

	Convey("Given an aggregator recording spans", t, func() {
		rec := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
		f := newFixture([]model.Entrant{entrant("a", 0, nil), entrant("b", 1, nil)},
			standings.WithTracer(tp.Tracer("standings-test")))
		f.lookup.set("a#euw", live(1, "M1"))

		Convey("When a live refresh is published", func() {
			_, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1", FetchLive: true})
			So(err, ShouldBeNil)

			Convey("Then the refresh span carries the published version", func() {
				spans := map[string]sdktrace.ReadOnlySpan{}
				for _, s := range rec.Ended() {
					spans[s.Name()] = s
				}
				So(spans, ShouldContainKey, "standings.fetch_roster")
				So(spans, ShouldContainKey, "standings.resolve_live")
				So(spans, ShouldContainKey, "standings.refresh")

				attrs := map[string]any{}
				for _, kv := range spans["standings.refresh"].Attributes() {
					attrs[string(kv.Key)] = kv.Value.AsInterface()
				}
				So(attrs["snapshot.version"], ShouldEqual, int64(1))
				So(attrs["tournament.id"], ShouldEqual, "spring-cup")
				So(attrs["round.id"], ShouldEqual, "1")
				So(spans["standings.fetch_roster"].Parent().SpanID(), ShouldEqual, spans["standings.refresh"].SpanContext().SpanID())
			})
		})

		Convey("When the roster cannot be fetched", func() {
			f.roster.setFail(errors.Join(model.ErrRosterUnreachable, errors.New("dial tcp: refused")))
			_, err := f.agg.Refresh(ctx, "spring-cup", standings.RefreshOptions{Round: "1"})
			So(err, ShouldNotBeNil)

			Convey("Then the refresh span is marked failed", func() {
				var refresh sdktrace.ReadOnlySpan
				for _, s := range rec.Ended() {
					if s.Name() == "standings.refresh" {
						refresh = s
					}
				}
				So(refresh, ShouldNotBeNil)
				So(refresh.Status().Code, ShouldEqual, codes.Error)
			})
		})
	})
}
