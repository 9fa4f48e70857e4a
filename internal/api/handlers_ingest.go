package api

import (
	"fmt"
	"net/http"

	"github.com/dgallion1/lawsearch/internal/service"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req service.IngestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.svc.Reingest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Async {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"run_id":   resp.RunID,
			"status":   resp.Status,
			"poll_url": fmt.Sprintf("/api/ingest/%s", resp.RunID),
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snap, ok := s.svc.Run(runID)
	if !ok {
		jsonError(w, "not_found", "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
