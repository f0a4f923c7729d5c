// Package api serves scoreboards and refresh triggers to dashboards and bots.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/okian/podium/internal/adapters/http/swagger"
	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Refresh runs a synchronous refresh and returns the published snapshot.
	Refresh(ctx context.Context, tournamentID, round string, live bool) (*model.Snapshot, error)

	// EnqueueRefresh queues an asynchronous refresh.
	EnqueueRefresh(ctx context.Context, tournamentID, round string, live bool, source string) (types.Ticket, error)

	// Read operations expose cached scoreboards.
	Scoreboard(ctx context.Context, tournamentID string) (*model.Snapshot, bool)
	Tournaments(ctx context.Context) []repository.Summary
	Invalidate(ctx context.Context, tournamentID string) error
}

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) types.Stats
}

// Server wires HTTP routes for the read and refresh API.
type Server struct {
	deps  Dependencies
	stats StatsProvider

	corsOrigins  []string
	refreshLimit int
	now          func() time.Time
	validate     *validator.Validate
	logger       logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:        deps,
		stats:       stats,
		corsOrigins: []string{"*"},
		now:         time.Now,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", headerRequestID},
		ExposedHeaders: []string{"ETag", headerRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	r.Method(http.MethodGet, "/metrics", metricsHandler())
	r.Get("/stats", MetricsMiddleware(s.handleStats, "stats"))
	swagger.Register(context.Background(), r)

	r.Route("/tournaments", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.handleListTournaments, "tournaments"))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/scoreboard", MetricsMiddleware(s.handleGetScoreboard, "scoreboard"))
			r.Delete("/scoreboard", MetricsMiddleware(s.handleDeleteScoreboard, "scoreboard"))
			r.Group(func(r chi.Router) {
				if s.refreshLimit > 0 {
					r.Use(httprate.Limit(s.refreshLimit, time.Minute,
						httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
						httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
							writeError(w, http.StatusTooManyRequests, codeBackpressure, ErrBackpressure)
						}),
					))
				}
				r.Post("/refresh", MetricsMiddleware(s.handleRefresh, "refresh"))
				r.Post("/refresh/async", MetricsMiddleware(s.handleRefreshAsync, "refresh_async"))
			})
		})
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// tournamentID reads and checks the {id} path parameter.
func tournamentID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" || len(id) > maxIDLength {
		return "", false
	}
	return id, true
}
