package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type lockRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeBadRequest(w, "sessionId is required")
		return
	}

	lock, err := s.svc.AcquireLock(r.Context(), req.SessionID, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.lockView(r, lock))
}

func (s *Server) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeBadRequest(w, "sessionId is required")
		return
	}

	if err := s.svc.ReleaseLock(r.Context(), req.SessionID, requestUser(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.GetLockStatus(r.Context(), chi.URLParam(r, "processID"))
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"locked": status.Locked}
	if status.Lock != nil {
		body["lock"] = s.lockView(r, *status.Lock)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleExtendLock(w http.ResponseWriter, r *http.Request) {
	lock, err := s.svc.ExtendLock(r.Context(), chi.URLParam(r, "sessionID"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.lockView(r, lock))
}
