package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/service"
)

func (s *Server) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("open") != "false"
	conflicts, err := s.svc.ListConflicts(r.Context(), chi.URLParam(r, "processID"), openOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": s.conflictViews(r, conflicts)})
}

type resolveConflictRequest struct {
	Resolution   string            `json:"resolution"`
	FieldsToKeep map[string]string `json:"fieldsToKeep,omitempty"`
	Comment      string            `json:"comment,omitempty"`
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req resolveConflictRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	resolutionType, err := domain.ParseResolutionType(req.Resolution)
	if err != nil {
		writeError(w, err)
		return
	}

	conflict, err := s.svc.ResolveConflict(r.Context(),
		chi.URLParam(r, "conflictID"), requestUser(r), service.ResolveRequest{
			Type:         resolutionType,
			FieldsToKeep: req.FieldsToKeep,
			Comment:      req.Comment,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.conflictView(r, conflict))
}
