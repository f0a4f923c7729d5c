package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/types"
)

// handleGetScoreboard handles GET /tournaments/{id}/scoreboard requests.
// It answers 304 when If-None-Match carries the current version's ETag.
func (s *Server) handleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, ErrBadRequest)
		return
	}
	snap, ok := s.deps.Scoreboard(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, fmt.Errorf("%w: no standings for %s", ErrNotFound, id))
		return
	}

	tag := etag(snap)
	w.Header().Set("ETag", tag)
	if r.Header.Get("If-None-Match") == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, types.NewScoreboard(snap, s.now()))
}

// handleDeleteScoreboard handles DELETE /tournaments/{id}/scoreboard requests.
func (s *Server) handleDeleteScoreboard(w http.ResponseWriter, r *http.Request) {
	id, ok := tournamentID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, ErrBadRequest)
		return
	}
	if err := s.deps.Invalidate(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, codeInternal, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func etag(snap *model.Snapshot) string {
	return `"` + snap.TournamentID + "-" + strconv.FormatUint(snap.Version, 10) + `"`
}
