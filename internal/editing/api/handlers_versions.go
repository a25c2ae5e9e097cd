package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/service"
)

type completeEditRequest struct {
	Content       *domain.DocumentContent `json:"content,omitempty"`
	ChangeType    string                  `json:"changeType"`
	ChangeComment string                  `json:"changeComment,omitempty"`
}

func (s *Server) handleCompleteEdit(w http.ResponseWriter, r *http.Request) {
	var req completeEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	changeType, err := domain.ParseVersionChangeType(req.ChangeType)
	if err != nil {
		writeError(w, err)
		return
	}

	version, err := s.svc.CompleteEdit(r.Context(),
		chi.URLParam(r, "sessionID"), requestUser(r), service.CompleteRequest{
			Content:       req.Content,
			ChangeType:    changeType,
			ChangeComment: req.ChangeComment,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newVersionView(version))
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.svc.ListVersions(r.Context(), chi.URLParam(r, "processID"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]versionView, len(versions))
	for i, version := range versions {
		views[i] = newVersionView(version)
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": views})
}

func (s *Server) handleCurrentVersion(w http.ResponseWriter, r *http.Request) {
	version, err := s.svc.CurrentVersion(r.Context(), chi.URLParam(r, "processID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVersionView(version))
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := s.svc.GetVersion(r.Context(),
		chi.URLParam(r, "processID"), chi.URLParam(r, "versionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVersionView(version))
}

type publishVersionRequest struct {
	Comment string `json:"comment,omitempty"`
}

func (s *Server) handlePublishVersion(w http.ResponseWriter, r *http.Request) {
	var req publishVersionRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	processID := chi.URLParam(r, "processID")
	versionID := chi.URLParam(r, "versionID")
	if err := s.svc.PublishVersion(r.Context(), processID, versionID, requestUser(r)); err != nil {
		writeError(w, err)
		return
	}
	version, err := s.svc.GetVersion(r.Context(), processID, versionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVersionView(version))
}

func (s *Server) handleCompareVersions(w http.ResponseWriter, r *http.Request) {
	fromID := r.URL.Query().Get("from")
	toID := r.URL.Query().Get("to")
	if fromID == "" || toID == "" {
		writeBadRequest(w, "from and to version ids are required")
		return
	}

	diff, err := s.svc.CompareVersions(r.Context(), chi.URLParam(r, "processID"), fromID, toID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleCompareDraft(w http.ResponseWriter, r *http.Request) {
	diff, err := s.svc.CompareDraft(r.Context(),
		chi.URLParam(r, "sessionID"), requestUser(r), chi.URLParam(r, "versionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}
