// Package storage defines persistence contracts for collaborative editing state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/prosessportal/editing/internal/editing/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrLockHeld indicates another session holds an unexpired commit lock.
	ErrLockHeld = errors.New("lock held by another session")
	// ErrStaleBaseline indicates the current version moved since it was read.
	ErrStaleBaseline = errors.New("current version changed since baseline was read")
	// ErrSessionLimit indicates a process already has the maximum number of
	// live sessions.
	ErrSessionLimit = errors.New("process session limit reached")
)

// Draft is the session-private working copy of a process document.
// A draft exists iff its session is live. Seeded marks a draft still holding
// its start-time copy of the baseline, untouched by the user.
type Draft struct {
	SessionID string
	ProcessID string
	Content   domain.DocumentContent
	UpdatedAt time.Time
	Seeded    bool
}

// AutoSaveRecord is an immutable, append-only snapshot of a draft.
type AutoSaveRecord struct {
	ID        string
	SessionID string
	ProcessID string
	UserID    string
	Content   domain.DocumentContent
	SavedAt   time.Time
	Restored  bool
}

// Statistics aggregates one user's editing activity.
type Statistics struct {
	SessionsStarted   int
	SessionsCompleted int
	VersionsCreated   int
	ConflictsInvolved int
	ConflictsResolved int
}

// SessionStore persists edit sessions.
type SessionStore interface {
	PutSession(ctx context.Context, session domain.Session) error
	// InsertSessionWithinLimit creates a session inside one transaction with
	// the live-session count check, failing with ErrSessionLimit when the
	// process already has maxLive live sessions. Racing inserts cannot both
	// slip past the limit.
	InsertSessionWithinLimit(ctx context.Context, session domain.Session, maxLive int) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	// ListProcessSessions returns sessions on a process restricted to the
	// given statuses (all statuses when empty), ordered by start time.
	ListProcessSessions(ctx context.Context, processID string, statuses ...domain.SessionStatus) ([]domain.Session, error)
	// ListLiveSessions returns every live session across processes, for the
	// expiry sweep.
	ListLiveSessions(ctx context.Context) ([]domain.Session, error)
}

// DraftStore persists per-session drafts.
type DraftStore interface {
	PutDraft(ctx context.Context, draft Draft) error
	GetDraft(ctx context.Context, sessionID string) (Draft, error)
	DeleteDraft(ctx context.Context, sessionID string) error
}

// LockStore persists commit locks. At most one row exists per process;
// acquisition must be atomic with respect to concurrent callers.
type LockStore interface {
	// AcquireLock grants the lock when no live lock exists or the caller's
	// session already holds it (refreshing expiry). It returns ErrLockHeld
	// when a different session holds a live lock.
	AcquireLock(ctx context.Context, lock domain.Lock) error
	// ExtendLock pushes the expiry of a live lock held by the session.
	// Returns ErrNotFound when the session holds no live lock.
	ExtendLock(ctx context.Context, sessionID string, expiresAt, now time.Time) error
	// ReleaseLock removes the lock if held by the session; no-op otherwise.
	ReleaseLock(ctx context.Context, processID, sessionID string) error
	// GetLock returns the lock row for a process regardless of expiry.
	GetLock(ctx context.Context, processID string) (domain.Lock, error)
}

// ConflictStore persists edit conflicts. Conflicts are never deleted.
type ConflictStore interface {
	PutConflict(ctx context.Context, conflict domain.Conflict) error
	GetConflict(ctx context.Context, conflictID string) (domain.Conflict, error)
	// ListProcessConflicts returns conflicts on a process, unresolved only
	// when openOnly is set, ordered by detection time.
	ListProcessConflicts(ctx context.Context, processID string, openOnly bool) ([]domain.Conflict, error)
	// ListSessionConflicts returns conflicts involving a session.
	ListSessionConflicts(ctx context.Context, sessionID string, openOnly bool) ([]domain.Conflict, error)
}

// AutoSaveStore persists append-only auto-save records.
type AutoSaveStore interface {
	AppendAutoSave(ctx context.Context, record AutoSaveRecord) error
	GetAutoSave(ctx context.Context, recordID string) (AutoSaveRecord, error)
	// ListAutoSaves returns a session's records oldest to newest.
	ListAutoSaves(ctx context.Context, sessionID string) ([]AutoSaveRecord, error)
	// MarkAutoSaveRestored sets the restored flag; the record itself is
	// never altered or deleted.
	MarkAutoSaveRestored(ctx context.Context, recordID string) error
}

// DocumentStore is the narrow contract the versioning engine consumes from
// the document persistence collaborator.
type DocumentStore interface {
	// GetCurrentVersion returns the single current version of a process, or
	// ErrNotFound when the process has no versions yet.
	GetCurrentVersion(ctx context.Context, processID string) (domain.Version, error)
	// InsertVersionAndFlipCurrent atomically inserts the version with
	// IsCurrent set and clears the previous current version's flag. It
	// returns ErrStaleBaseline when the current version id no longer equals
	// previousCurrentID (empty for a first version).
	InsertVersionAndFlipCurrent(ctx context.Context, version domain.Version, previousCurrentID string) error
}

// VersionStore exposes version reads and the forward-only publish flip.
type VersionStore interface {
	DocumentStore
	GetVersion(ctx context.Context, processID, versionID string) (domain.Version, error)
	// ListVersions returns a process's versions newest first.
	ListVersions(ctx context.Context, processID string) ([]domain.Version, error)
	// PublishVersion sets the published flag forward-only.
	PublishVersion(ctx context.Context, processID, versionID, userID string, at time.Time) error
}

// StatisticsStore aggregates editing activity per user.
type StatisticsStore interface {
	UserStatistics(ctx context.Context, userID string) (Statistics, error)
}

// Store is the composite persistence surface the editing service requires.
type Store interface {
	SessionStore
	DraftStore
	LockStore
	ConflictStore
	AutoSaveStore
	VersionStore
	StatisticsStore
}
