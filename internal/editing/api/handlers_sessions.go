package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prosessportal/editing/internal/editing/domain"
	apperrors "github.com/prosessportal/editing/internal/platform/errors"
)

type startSessionRequest struct {
	Comment string `json:"comment"`
}

type startSessionResponse struct {
	Session       sessionView    `json:"session"`
	Draft         draftView      `json:"draft"`
	Reentrant     bool           `json:"reentrant"`
	OtherSessions []sessionView  `json:"otherSessions"`
	Conflicts     []conflictView `json:"conflicts"`
	// AutoSaveSeconds tells clients how often to post autosave snapshots.
	AutoSaveSeconds int `json:"autoSaveSeconds"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, apperrors.New(apperrors.CodeUserRequired, "X-User-ID header is required"))
		return
	}

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	result, err := s.svc.StartSession(r.Context(), chi.URLParam(r, "processID"), userID, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Reentrant {
		status = http.StatusOK
	}
	writeJSON(w, status, startSessionResponse{
		Session:         s.sessionView(r, result.Session),
		Draft:           newDraftView(result.Draft),
		Reentrant:       result.Reentrant,
		OtherSessions:   s.sessionViews(r, result.OtherSessions),
		Conflicts:       s.conflictViews(r, result.Conflicts),
		AutoSaveSeconds: int(s.svc.AutoSaveInterval().Seconds()),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.ListActiveSessions(r.Context(), chi.URLParam(r, "processID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessionViews(r, sessions)})
}

func (s *Server) handleMySession(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)
	if userID == "" {
		writeError(w, apperrors.New(apperrors.CodeUserRequired, "X-User-ID header is required"))
		return
	}
	session, err := s.svc.IsUserEditing(r.Context(), chi.URLParam(r, "processID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"editing": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"editing": true,
		"session": s.sessionView(r, *session),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r, session))
}

type endSessionRequest struct {
	Comment string `json:"comment"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil && err != io.EOF {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	discard := r.URL.Query().Get("discard") == "true"

	session, err := s.svc.EndSession(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r), req.Comment, discard)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(r, session))
}

type saveDraftRequest struct {
	Content domain.DocumentContent `json:"content"`
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req saveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	draft, err := s.svc.SaveDraft(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.svc.GetDraft(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

func (s *Server) handleAutoSave(w http.ResponseWriter, r *http.Request) {
	var req saveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	record, err := s.svc.AutoSave(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAutoSaveView(record))
}

func (s *Server) handleAutoSaveHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.AutoSaveHistory(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]autoSaveView, len(records))
	for i, record := range records {
		views[i] = newAutoSaveView(record)
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": views})
}

func (s *Server) handleRestoreAutoSave(w http.ResponseWriter, r *http.Request) {
	draft, err := s.svc.RestoreAutoSave(r.Context(),
		chi.URLParam(r, "sessionID"), requestUser(r), chi.URLParam(r, "recordID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	draft, err := s.svc.Undo(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	draft, err := s.svc.Redo(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftView(draft))
}

func (s *Server) handleUndoHistory(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.UndoHistory(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"undoDepth": state.UndoDepth,
		"redoDepth": state.RedoDepth,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Statistics(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"sessionsStarted":   stats.SessionsStarted,
		"sessionsCompleted": stats.SessionsCompleted,
		"versionsCreated":   stats.VersionsCreated,
		"conflictsInvolved": stats.ConflictsInvolved,
		"conflictsResolved": stats.ConflictsResolved,
	})
}
