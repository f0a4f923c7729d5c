package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/podium/internal/adapters/http/api"
	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/standings"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2026, 4, 12, 20, 0, 0, 0, time.UTC)

type refreshCall struct {
	tournament string
	round      string
	live       bool
}

type mockDeps struct {
	mu          sync.Mutex
	snapshots   map[string]*model.Snapshot
	refreshErr  error
	enqueueErr  error
	duplicate   bool
	refreshes   []refreshCall
	enqueues    []refreshCall
	invalidated []string
}

func newMockDeps() *mockDeps {
	return &mockDeps{snapshots: map[string]*model.Snapshot{}}
}

func (m *mockDeps) Refresh(_ context.Context, id, round string, live bool) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = append(m.refreshes, refreshCall{id, round, live})
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	prev := m.snapshots[id]
	snap := sampleSnapshot(id, 1)
	if prev != nil {
		snap.Version = prev.Version + 1
	}
	m.snapshots[id] = snap
	return snap, nil
}

func (m *mockDeps) EnqueueRefresh(_ context.Context, id, round string, live bool, _ string) (types.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueues = append(m.enqueues, refreshCall{id, round, live})
	if m.enqueueErr != nil {
		return types.Ticket{}, m.enqueueErr
	}
	return types.Ticket{RequestID: "req-1", TournamentID: id, Round: round, Duplicate: m.duplicate}, nil
}

func (m *mockDeps) Scoreboard(_ context.Context, id string) (*model.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[id]
	return snap, ok
}

func (m *mockDeps) Tournaments(_ context.Context) []repository.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Summary, 0, len(m.snapshots))
	for id, snap := range m.snapshots {
		out = append(out, repository.Summary{TournamentID: id, Version: snap.Version, Entrants: len(snap.Entrants)})
	}
	return out
}

func (m *mockDeps) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, id)
	delete(m.snapshots, id)
	return nil
}

type mockStats struct{}

func (mockStats) GetStats(context.Context) types.Stats {
	return types.Stats{Started: true, Workers: 4, QueueCapacity: 16, Contention: "await"}
}

func sampleSnapshot(id string, version uint64) *model.Snapshot {
	return &model.Snapshot{
		TournamentID: id,
		Region:       "euw1",
		Version:      version,
		GeneratedAt:  fixedNow.Add(-30 * time.Second),
		RoundID:      "1",
		Rounds:       []string{"1"},
		Entrants: []model.Standing{
			{
				Rank:    1,
				Entrant: model.Entrant{Identifier: "b", DisplayName: "Birch"},
				Total:   8,
				Scores:  []model.RoundScore{{EntrantID: "b", RoundID: "1", Points: 8, Source: model.SourceLive, Placement: 1}},
			},
			{
				Rank:    2,
				Entrant: model.Entrant{Identifier: "c", DisplayName: "Cedar"},
				Scores:  []model.RoundScore{{EntrantID: "c", RoundID: "1", Source: model.SourceUnknown}},
			},
		},
	}
}

func newTestServer(deps *mockDeps, opts ...api.Option) http.Handler {
	opts = append([]api.Option{api.WithClock(func() time.Time { return fixedNow })}, opts...)
	return api.NewServer(deps, mockStats{}, opts...).Routes()
}

func do(h http.Handler, method, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestScoreboardRoutes(t *testing.T) {
	Convey("Given a server with one published scoreboard", t, func() {
		deps := newMockDeps()
		deps.snapshots["spring-cup"] = sampleSnapshot("spring-cup", 3)
		h := newTestServer(deps)

		Convey("When fetching the scoreboard", func() {
			w := do(h, http.MethodGet, "/tournaments/spring-cup/scoreboard")

			Convey("Then it is rendered with its version tag", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("ETag"), ShouldEqual, `"spring-cup-3"`)

				var board types.Scoreboard
				decodeBody(w, &board)
				So(board.Version, ShouldEqual, 3)
				So(board.AgeSeconds, ShouldEqual, 30.0)
				So(board.Pending, ShouldEqual, 1)
				So(board.Standings, ShouldHaveLength, 2)
				So(board.Standings[0].Identifier, ShouldEqual, "b")
				So(board.Standings[1].Rounds["1"].Pending, ShouldBeTrue)
			})
		})

		Convey("When the caller already holds the current version", func() {
			w := do(h, http.MethodGet, "/tournaments/spring-cup/scoreboard", "If-None-Match", `"spring-cup-3"`)

			Convey("Then it answers not modified", func() {
				So(w.Code, ShouldEqual, http.StatusNotModified)
				So(w.Body.Len(), ShouldEqual, 0)
			})
		})

		Convey("When fetching an unknown tournament", func() {
			w := do(h, http.MethodGet, "/tournaments/autumn-cup/scoreboard")

			Convey("Then it answers not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(w.Body.String(), ShouldContainSubstring, "not_found")
			})
		})

		Convey("When deleting the scoreboard", func() {
			w := do(h, http.MethodDelete, "/tournaments/spring-cup/scoreboard")

			Convey("Then it is invalidated", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(deps.invalidated, ShouldResemble, []string{"spring-cup"})
				So(do(h, http.MethodGet, "/tournaments/spring-cup/scoreboard").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When listing tournaments", func() {
			w := do(h, http.MethodGet, "/tournaments")

			Convey("Then every cached scoreboard is summarized", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var list []repository.Summary
				decodeBody(w, &list)
				So(list, ShouldHaveLength, 1)
				So(list[0].TournamentID, ShouldEqual, "spring-cup")
				So(list[0].Version, ShouldEqual, 3)
			})
		})

		Convey("When the tournament id is too long", func() {
			w := do(h, http.MethodGet, "/tournaments/"+strings.Repeat("x", 65)+"/scoreboard")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRefreshRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps)

		Convey("When refreshing synchronously", func() {
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh?round=2&live=false")

			Convey("Then the new scoreboard is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("ETag"), ShouldEqual, `"spring-cup-1"`)
				So(deps.refreshes, ShouldResemble, []refreshCall{{"spring-cup", "2", false}})
			})
		})

		Convey("When the round is latest and live is omitted", func() {
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh?round=latest")

			Convey("Then the latest round is refreshed with live lookups", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.refreshes, ShouldResemble, []refreshCall{{"spring-cup", "", true}})
			})
		})

		Convey("When live is not a boolean", func() {
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh?live=sometimes")

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.refreshes, ShouldBeEmpty)
			})
		})

		Convey("When the round contains a slash", func() {
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh?round=a%2Fb")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When another refresh is running", func() {
			deps.refreshErr = fmt.Errorf("refresh spring-cup: %w", standings.ErrRefreshInProgress)
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh")

			Convey("Then it answers conflict", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(w.Body.String(), ShouldContainSubstring, "refresh_in_progress")
			})
		})

		Convey("When the roster fails and earlier standings exist", func() {
			last := sampleSnapshot("spring-cup", 7)
			deps.refreshErr = &standings.RosterFetchFailure{
				TournamentID: "spring-cup",
				Last:         last,
				Err:          model.ErrRosterUnreachable,
			}
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh")

			Convey("Then the last standings are served with a message", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				var board types.Scoreboard
				decodeBody(w, &board)
				So(board.Version, ShouldEqual, 7)
				So(board.Message, ShouldStartWith, "could not refresh")
				So(board.Message, ShouldContainSubstring, "last known standings")
			})
		})

		Convey("When the roster fails and nothing was published yet", func() {
			deps.refreshErr = &standings.RosterFetchFailure{TournamentID: "spring-cup", Err: model.ErrRosterUnreachable}
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh")

			Convey("Then it answers bad gateway", func() {
				So(w.Code, ShouldEqual, http.StatusBadGateway)
				So(w.Body.String(), ShouldContainSubstring, "roster_unavailable")
			})
		})

		Convey("When the tournament is not configured", func() {
			deps.refreshErr = &standings.RosterFetchFailure{TournamentID: "autumn-cup", Err: model.ErrTournamentUnknown}
			w := do(h, http.MethodPost, "/tournaments/autumn-cup/refresh")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the refresh times out", func() {
			deps.refreshErr = fmt.Errorf("refresh: %w", context.DeadlineExceeded)
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh")
			So(w.Code, ShouldEqual, http.StatusGatewayTimeout)
		})

		Convey("When the refresh deadline cuts off the roster fetch", func() {
			cause := fmt.Errorf("%w: %w", model.ErrRosterUnreachable, context.DeadlineExceeded)

			Convey("And earlier standings exist", func() {
				deps.refreshErr = &standings.RosterFetchFailure{
					TournamentID: "spring-cup",
					Last:         sampleSnapshot("spring-cup", 4),
					Err:          cause,
				}
				w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh")

				Convey("Then it answers gateway timeout with the last standings", func() {
					So(w.Code, ShouldEqual, http.StatusGatewayTimeout)
					var board types.Scoreboard
					decodeBody(w, &board)
					So(board.Version, ShouldEqual, 4)
					So(board.Message, ShouldContainSubstring, "last known standings")
				})
			})

			Convey("And nothing was published yet", func() {
				deps.refreshErr = &standings.RosterFetchFailure{TournamentID: "spring-cup", Err: cause}
				w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh")

				Convey("Then it answers gateway timeout", func() {
					So(w.Code, ShouldEqual, http.StatusGatewayTimeout)
					So(w.Body.String(), ShouldContainSubstring, "timeout")
				})
			})
		})

		Convey("When the refresh fails otherwise", func() {
			deps.refreshErr = errors.New("boom")
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestAsyncRefreshRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps)

		Convey("When a refresh is queued", func() {
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh/async?round=3")

			Convey("Then it is accepted with a ticket", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var ticket types.Ticket
				decodeBody(w, &ticket)
				So(ticket.RequestID, ShouldEqual, "req-1")
				So(ticket.Round, ShouldEqual, "3")
				So(deps.enqueues, ShouldResemble, []refreshCall{{"spring-cup", "3", true}})
			})
		})

		Convey("When an identical refresh is pending", func() {
			deps.duplicate = true
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh/async")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the queue is full", func() {
			deps.enqueueErr = queue.ErrQueueFull
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh/async")

			Convey("Then backpressure is signalled", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(w.Body.String(), ShouldContainSubstring, "backpressure")
			})
		})

		Convey("When the queue is closed", func() {
			deps.enqueueErr = queue.ErrQueueClosed
			w := do(h, http.MethodPost, "/tournaments/spring-cup/refresh/async")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestRefreshRateLimit(t *testing.T) {
	Convey("Given a server limited to two refreshes a minute", t, func() {
		deps := newMockDeps()
		h := newTestServer(deps, api.WithRefreshRateLimit(2))

		Convey("When a client refreshes three times", func() {
			codes := []int{}
			for range 3 {
				codes = append(codes, do(h, http.MethodPost, "/tournaments/spring-cup/refresh").Code)
			}

			Convey("Then the third call is rejected", func() {
				So(codes, ShouldResemble, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests})
				So(deps.refreshes, ShouldHaveLength, 2)
			})

			Convey("Then reads are not limited", func() {
				So(do(h, http.MethodGet, "/tournaments/spring-cup/scoreboard").Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a server", t, func() {
		h := newTestServer(newMockDeps())

		Convey("Then the health check answers ok", func() {
			w := do(h, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("Then stats are served", func() {
			w := do(h, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			var st types.Stats
			decodeBody(w, &st)
			So(st.Workers, ShouldEqual, 4)
			So(st.Contention, ShouldEqual, "await")
		})

		Convey("Then metrics are exposed", func() {
			So(do(h, http.MethodGet, "/healthz").Code, ShouldEqual, http.StatusOK)
			w := do(h, http.MethodGet, "/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the api docs are served", func() {
			So(do(h, http.MethodGet, "/openapi.yaml").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then a caller's request id is echoed", func() {
			w := do(h, http.MethodGet, "/healthz", "X-Request-ID", "trace-42")
			So(w.Header().Get("X-Request-ID"), ShouldEqual, "trace-42")
		})

		Convey("Then a request id is generated when missing", func() {
			w := do(h, http.MethodGet, "/healthz")
			So(w.Header().Get("X-Request-ID"), ShouldHaveLength, 36)
		})
	})
}
