package server

import "net/http"

func (s *Server) handleScrapeHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.history.ListScrapes(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runs": runs})
}

func (s *Server) handleUploadHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.history.ListUploads(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runs": runs})
}
