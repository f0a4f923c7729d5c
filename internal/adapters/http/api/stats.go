package api

import "net/http"

// handleStats handles GET /stats requests.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.GetStats(r.Context()))
}

// handleListTournaments handles GET /tournaments requests.
func (s *Server) handleListTournaments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Tournaments(r.Context()))
}
