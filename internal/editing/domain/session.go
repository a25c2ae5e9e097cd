package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/prosessportal/editing/internal/platform/errors"
	"github.com/prosessportal/editing/internal/platform/id"
)

// SessionStatus describes the lifecycle state of an edit session.
type SessionStatus int

const (
	// SessionStatusUnspecified represents an invalid session status value.
	SessionStatusUnspecified SessionStatus = iota
	// SessionStatusActive indicates the user is currently editing.
	SessionStatusActive
	// SessionStatusIdle indicates the session has seen no recent activity
	// but has not yet timed out.
	SessionStatusIdle
	// SessionStatusConflictDetected indicates an unresolved overlap with
	// another session on the same process.
	SessionStatusConflictDetected
	// SessionStatusCompleted indicates the session ended normally.
	SessionStatusCompleted
	// SessionStatusCancelled indicates the session was discarded.
	SessionStatusCancelled
	// SessionStatusExpired indicates the session timed out.
	SessionStatusExpired
)

var sessionStatusNames = map[SessionStatus]string{
	SessionStatusUnspecified:      "unspecified",
	SessionStatusActive:           "active",
	SessionStatusIdle:             "idle",
	SessionStatusConflictDetected: "conflict_detected",
	SessionStatusCompleted:        "completed",
	SessionStatusCancelled:        "cancelled",
	SessionStatusExpired:          "expired",
}

// String returns the storage/wire name for the status.
func (s SessionStatus) String() string {
	if name, ok := sessionStatusNames[s]; ok {
		return name
	}
	return "unspecified"
}

// MarshalJSON encodes the status as its string name.
func (s SessionStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ParseSessionStatus converts a storage name back to a status value.
func ParseSessionStatus(name string) (SessionStatus, error) {
	for status, candidate := range sessionStatusNames {
		if candidate == name {
			return status, nil
		}
	}
	return SessionStatusUnspecified, fmt.Errorf("unknown session status %q", name)
}

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusCancelled, SessionStatusExpired:
		return true
	}
	return false
}

// Live reports whether a session in this status holds a draft and counts
// against the concurrent-session limit.
func (s SessionStatus) Live() bool {
	switch s {
	case SessionStatusActive, SessionStatusIdle, SessionStatusConflictDetected:
		return true
	}
	return false
}

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusActive: {
		SessionStatusIdle, SessionStatusConflictDetected,
		SessionStatusCompleted, SessionStatusCancelled, SessionStatusExpired,
	},
	SessionStatusIdle: {
		SessionStatusActive, SessionStatusConflictDetected,
		SessionStatusCompleted, SessionStatusCancelled, SessionStatusExpired,
	},
	SessionStatusConflictDetected: {
		SessionStatusActive, SessionStatusCompleted, SessionStatusCancelled,
	},
}

// CanTransitionTo reports whether the lifecycle permits moving from s to next.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session represents one user's edit session on a process document.
type Session struct {
	ID                string
	ProcessID         string
	UserID            string
	Status            SessionStatus
	StartedAt         time.Time
	LastActivity      time.Time
	CompletedAt       *time.Time // nil until the session reaches a terminal status
	StartComment      string
	CompletionComment string
	BaselineVersionID string  // version the draft was seeded from; empty for unversioned processes
	CreatedVersionID  *string // set when the session produced a version
}

// StartSessionInput describes the metadata needed to start a session.
type StartSessionInput struct {
	ProcessID         string
	UserID            string
	Comment           string
	BaselineVersionID string
}

// StartSession creates a new session with a generated ID and timestamps.
// The session starts in ACTIVE status.
func StartSession(input StartSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.ProcessID = strings.TrimSpace(input.ProcessID)
	if input.ProcessID == "" {
		return Session{}, errors.New(errors.CodeInvalidArgument, "process id is required")
	}
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return Session{}, errors.New(errors.CodeUserRequired, "user id is required")
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	startedAt := now().UTC()
	return Session{
		ID:                sessionID,
		ProcessID:         input.ProcessID,
		UserID:            input.UserID,
		Status:            SessionStatusActive,
		StartedAt:         startedAt,
		LastActivity:      startedAt,
		StartComment:      strings.TrimSpace(input.Comment),
		BaselineVersionID: input.BaselineVersionID,
	}, nil
}

// ExpiredBy reports whether the session has been inactive longer than the
// timeout at the given instant. Terminal sessions never expire.
func (s Session) ExpiredBy(now time.Time, timeout time.Duration) bool {
	if s.Status.Terminal() {
		return false
	}
	return now.Sub(s.LastActivity) > timeout
}

// Transition moves the session to the next status, stamping CompletedAt on
// terminal transitions. It fails when the lifecycle forbids the move.
func (s *Session) Transition(next SessionStatus, at time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return errors.WithMetadata(errors.CodeSessionInvalidTransition,
			fmt.Sprintf("cannot transition session from %s to %s", s.Status, next),
			map[string]string{"from": s.Status.String(), "to": next.String()})
	}
	s.Status = next
	if next.Terminal() {
		completed := at.UTC()
		s.CompletedAt = &completed
	}
	return nil
}
