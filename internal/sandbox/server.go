package sandbox

import (
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
)

// Server serves tournament fixtures over HTTP:
//
//	GET /sheets/{id}/export?format=csv|xlsx
//	GET /v1/{region}/players/{gameID}/matches/latest
type Server struct {
	mu          sync.RWMutex
	tournaments map[string]*Tournament
	forced      map[string]int
	sheetFaults map[string]int

	apiKey       string
	keyHeader    string
	faultRate    float64
	throttleRate float64
	retryAfter   time.Duration
	latency      time.Duration
	seed         uint64

	diceMu sync.Mutex
	dice   *gofakeit.Faker

	logger logger.Logger
}

// NewServer creates a sandbox serving tournaments.
func NewServer(tournaments []*Tournament, opts ...Option) *Server {
	s := &Server{
		tournaments: make(map[string]*Tournament, len(tournaments)),
		forced:      make(map[string]int),
		sheetFaults: make(map[string]int),
		keyHeader:   "X-Api-Key",
		retryAfter:  time.Second,
		logger:      logger.Get().Named("sandbox"),
	}
	for _, t := range tournaments {
		s.tournaments[t.ID] = t
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dice = gofakeit.New(s.seed)
	return s
}

// Tournament returns the fixture registered under id.
func (s *Server) Tournament(id string) (*Tournament, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournaments[id]
	return t, ok
}

// FailPlayer makes every lookup of gameID answer status until cleared with
// status 0.
func (s *Server) FailPlayer(gameID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.NormalizeID(gameID)
	if status == 0 {
		delete(s.forced, key)
		return
	}
	s.forced[key] = status
}

// FailSheet makes the export of tournament id answer status until cleared
// with status 0.
func (s *Server) FailSheet(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.sheetFaults, id)
		return
	}
	s.sheetFaults[id] = status
}

// SheetURL is the export URL of tournament id under base.
func SheetURL(base, id, format string) string {
	return base + "/sheets/" + url.PathEscape(id) + "/export?format=" + format
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/sheets/{id}/export", s.handleExport)
	r.Get("/v1/{region}/players/{gameID}/matches/latest", s.handleLatest)
	return r
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	t, ok := s.tournaments[id]
	fault := s.sheetFaults[id]
	s.mu.RUnlock()
	switch {
	case fault != 0:
		http.Error(w, http.StatusText(fault), fault)
		return
	case !ok:
		http.NotFound(w, r)
		return
	}

	var (
		body []byte
		err  error
	)
	switch r.URL.Query().Get("format") {
	case "xlsx":
		body, err = t.XLSX()
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		body, err = t.CSV()
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	}
	if err != nil {
		s.logger.Error(r.Context(), "export failed", logger.String("tournament", id), logger.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(body)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}
	if s.apiKey != "" && r.Header.Get(s.keyHeader) != s.apiKey {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}

	region := chi.URLParam(r, "region")
	gameID, err := url.PathUnescape(chi.URLParam(r, "gameID"))
	if err != nil {
		http.Error(w, "bad player id", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	forced := s.forced[model.NormalizeID(gameID)]
	s.mu.RUnlock()
	if forced == 0 {
		forced = s.roll()
	}
	switch forced {
	case 0:
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", strconv.Itoa(int(s.retryAfter.Seconds())))
		http.Error(w, "slow down", forced)
		return
	default:
		http.Error(w, http.StatusText(forced), forced)
		return
	}

	m, ok := s.latest(region, gameID)
	if !ok {
		http.Error(w, "no recent match", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

// roll draws the random fault for one lookup, or 0 for none.
func (s *Server) roll() int {
	if s.faultRate == 0 && s.throttleRate == 0 {
		return 0
	}
	s.diceMu.Lock()
	v := s.dice.Float64()
	s.diceMu.Unlock()
	switch {
	case v < s.faultRate:
		return http.StatusServiceUnavailable
	case v < s.faultRate+s.throttleRate:
		return http.StatusTooManyRequests
	default:
		return 0
	}
}

func (s *Server) latest(region, gameID string) (Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tournaments {
		if t.Region != region {
			continue
		}
		if m, ok := t.Latest(gameID); ok {
			return m, true
		}
	}
	return Match{}, false
}
