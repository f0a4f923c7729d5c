package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/okian/podium/internal/adapters/mq/queue"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/standings"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
)

const sourceAPI = "api"

// refreshQuery holds the refresh query parameters.
type refreshQuery struct {
	Round string `validate:"omitempty,max=32,excludesall=/"`
	Live  bool
}

func (s *Server) parseRefresh(r *http.Request) (refreshQuery, error) {
	q := refreshQuery{Round: r.URL.Query().Get("round"), Live: true}
	if q.Round == standings.LatestRound {
		q.Round = ""
	}
	if v := r.URL.Query().Get("live"); v != "" {
		live, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("%w: live must be a boolean", ErrBadRequest)
		}
		q.Live = live
	}
	if err := s.validate.Struct(q); err != nil {
		return q, fmt.Errorf("%w: invalid round", ErrBadRequest)
	}
	return q, nil
}

// handleRefresh handles POST /tournaments/{id}/refresh?round=&live= requests.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, ErrBadRequest)
		return
	}
	q, err := s.parseRefresh(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	snap, err := s.deps.Refresh(r.Context(), id, q.Round, q.Live)
	if err == nil {
		w.Header().Set("ETag", etag(snap))
		writeJSON(w, http.StatusOK, types.NewScoreboard(snap, s.now()))
		return
	}

	// A roster fetch cut off by the refresh deadline is a timeout, not an
	// upstream failure.
	var rff *standings.RosterFetchFailure
	errors.As(err, &rff)
	timedOut := errors.Is(err, context.DeadlineExceeded)
	switch {
	case errors.Is(err, standings.ErrRefreshInProgress):
		writeError(w, http.StatusConflict, codeInProgress, err)
	case rff != nil && rff.Last != nil:
		// Keep serving the last good standings alongside the failure.
		board := types.NewScoreboard(rff.Last, s.now())
		board.Message = rff.Message()
		status := http.StatusBadGateway
		if timedOut {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, board)
	case timedOut:
		writeError(w, http.StatusGatewayTimeout, codeTimeout, err)
	case errors.Is(err, model.ErrTournamentUnknown):
		writeError(w, http.StatusNotFound, codeTournamentUnknown, err)
	case rff != nil:
		writeError(w, http.StatusBadGateway, codeRosterUnavailable, errors.New(rff.Message()))
	default:
		s.logger.Error(r.Context(), "refresh failed",
			logger.String("request_id", chimiddleware.GetReqID(r.Context())),
			logger.String("tournament", id),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, codeInternal, err)
	}
}

// handleRefreshAsync handles POST /tournaments/{id}/refresh/async requests.
// A new request answers 202, a pending duplicate 200.
func (s *Server) handleRefreshAsync(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, ErrBadRequest)
		return
	}
	q, err := s.parseRefresh(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	ticket, err := s.deps.EnqueueRefresh(r.Context(), id, q.Round, q.Live, sourceAPI)
	switch {
	case err == nil && ticket.Duplicate:
		writeJSON(w, http.StatusOK, ticket)
	case err == nil:
		writeJSON(w, http.StatusAccepted, ticket)
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, codeBackpressure, fmt.Errorf("%w: %w", ErrBackpressure, err))
	case errors.Is(err, queue.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, codeShuttingDown, err)
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, err)
	}
}
