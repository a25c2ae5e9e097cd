package api

import (
	"net/http"
	"time"

	"github.com/prosessportal/editing/internal/editing/domain"
	"github.com/prosessportal/editing/internal/editing/storage"
)

// View types shape service results for JSON clients. Display names come
// from the pluggable resolver; everything else mirrors the domain shapes.

type sessionView struct {
	ID                string     `json:"id"`
	ProcessID         string     `json:"processId"`
	UserID            string     `json:"userId"`
	UserName          string     `json:"userName"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"startedAt"`
	LastActivity      time.Time  `json:"lastActivity"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	StartComment      string     `json:"startComment,omitempty"`
	CompletionComment string     `json:"completionComment,omitempty"`
	BaselineVersionID string     `json:"baselineVersionId,omitempty"`
	CreatedVersionID  *string    `json:"createdVersionId,omitempty"`
}

func (s *Server) sessionView(r *http.Request, session domain.Session) sessionView {
	return sessionView{
		ID:                session.ID,
		ProcessID:         session.ProcessID,
		UserID:            session.UserID,
		UserName:          s.resolve(r.Context(), session.UserID),
		Status:            session.Status.String(),
		StartedAt:         session.StartedAt,
		LastActivity:      session.LastActivity,
		CompletedAt:       session.CompletedAt,
		StartComment:      session.StartComment,
		CompletionComment: session.CompletionComment,
		BaselineVersionID: session.BaselineVersionID,
		CreatedVersionID:  session.CreatedVersionID,
	}
}

func (s *Server) sessionViews(r *http.Request, sessions []domain.Session) []sessionView {
	views := make([]sessionView, len(sessions))
	for i, session := range sessions {
		views[i] = s.sessionView(r, session)
	}
	return views
}

type draftView struct {
	SessionID string                 `json:"sessionId"`
	ProcessID string                 `json:"processId"`
	Content   domain.DocumentContent `json:"content"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

func newDraftView(draft storage.Draft) draftView {
	return draftView{
		SessionID: draft.SessionID,
		ProcessID: draft.ProcessID,
		Content:   draft.Content,
		UpdatedAt: draft.UpdatedAt,
	}
}

type lockView struct {
	ProcessID  string    `json:"processId"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func (s *Server) lockView(r *http.Request, lock domain.Lock) lockView {
	return lockView{
		ProcessID:  lock.ProcessID,
		SessionID:  lock.SessionID,
		UserID:     lock.UserID,
		UserName:   s.resolve(r.Context(), lock.UserID),
		AcquiredAt: lock.AcquiredAt,
		ExpiresAt:  lock.ExpiresAt,
	}
}

type resolutionView struct {
	Type       string    `json:"type"`
	ResolvedBy string    `json:"resolvedBy"`
	ResolvedAt time.Time `json:"resolvedAt"`
	Comment    string    `json:"comment,omitempty"`
}

type conflictView struct {
	ID         string          `json:"id"`
	ProcessID  string          `json:"processId"`
	SessionID1 string          `json:"sessionId1"`
	UserID1    string          `json:"userId1"`
	UserName1  string          `json:"userName1"`
	SessionID2 string          `json:"sessionId2"`
	UserID2    string          `json:"userId2"`
	UserName2  string          `json:"userName2"`
	DetectedAt time.Time       `json:"detectedAt"`
	Fields     []string        `json:"fields"`
	Resolution *resolutionView `json:"resolution,omitempty"`
}

func (s *Server) conflictView(r *http.Request, conflict domain.Conflict) conflictView {
	view := conflictView{
		ID:         conflict.ID,
		ProcessID:  conflict.ProcessID,
		SessionID1: conflict.SessionID1,
		UserID1:    conflict.UserID1,
		UserName1:  s.resolve(r.Context(), conflict.UserID1),
		SessionID2: conflict.SessionID2,
		UserID2:    conflict.UserID2,
		UserName2:  s.resolve(r.Context(), conflict.UserID2),
		DetectedAt: conflict.DetectedAt,
		Fields:     conflict.Fields,
	}
	if conflict.Resolution != nil {
		view.Resolution = &resolutionView{
			Type:       string(conflict.Resolution.Type),
			ResolvedBy: conflict.Resolution.ResolvedBy,
			ResolvedAt: conflict.Resolution.ResolvedAt,
			Comment:    conflict.Resolution.Comment,
		}
	}
	return view
}

func (s *Server) conflictViews(r *http.Request, conflicts []domain.Conflict) []conflictView {
	views := make([]conflictView, len(conflicts))
	for i, conflict := range conflicts {
		views[i] = s.conflictView(r, conflict)
	}
	return views
}

type versionView struct {
	ID          string                 `json:"id"`
	ProcessID   string                 `json:"processId"`
	Number      string                 `json:"number"`
	Content     domain.DocumentContent `json:"content"`
	ChangeLog   string                 `json:"changeLog,omitempty"`
	CreatedBy   string                 `json:"createdBy"`
	CreatedAt   time.Time              `json:"createdAt"`
	IsCurrent   bool                   `json:"isCurrent"`
	IsPublished bool                   `json:"isPublished"`
	PublishedAt *time.Time             `json:"publishedAt,omitempty"`
	PublishedBy *string                `json:"publishedBy,omitempty"`
}

func newVersionView(version domain.Version) versionView {
	return versionView{
		ID:          version.ID,
		ProcessID:   version.ProcessID,
		Number:      version.Number,
		Content:     version.Content,
		ChangeLog:   version.ChangeLog,
		CreatedBy:   version.CreatedBy,
		CreatedAt:   version.CreatedAt,
		IsCurrent:   version.IsCurrent,
		IsPublished: version.IsPublished,
		PublishedAt: version.PublishedAt,
		PublishedBy: version.PublishedBy,
	}
}

type autoSaveView struct {
	ID        string                 `json:"id"`
	SessionID string                 `json:"sessionId"`
	SavedAt   time.Time              `json:"savedAt"`
	Restored  bool                   `json:"restored"`
	Content   domain.DocumentContent `json:"content"`
}

func newAutoSaveView(record storage.AutoSaveRecord) autoSaveView {
	return autoSaveView{
		ID:        record.ID,
		SessionID: record.SessionID,
		SavedAt:   record.SavedAt,
		Restored:  record.Restored,
		Content:   record.Content,
	}
}
