package domain

import (
	"time"

	"github.com/prosessportal/editing/internal/platform/errors"
)

// ResolutionType describes how an edit conflict was settled.
type ResolutionType string

const (
	// ResolutionKeepMine keeps the resolving session's values for every
	// conflicting field.
	ResolutionKeepMine ResolutionType = "keep_mine"
	// ResolutionKeepTheirs takes the other session's values for every
	// conflicting field.
	ResolutionKeepTheirs ResolutionType = "keep_theirs"
	// ResolutionMerge picks a winner per field; unlisted fields default to
	// the resolving session's value.
	ResolutionMerge ResolutionType = "merge"
	// ResolutionCancel abandons the resolving session instead of merging.
	ResolutionCancel ResolutionType = "cancel"
)

// ParseResolutionType validates a wire value.
func ParseResolutionType(value string) (ResolutionType, error) {
	switch ResolutionType(value) {
	case ResolutionKeepMine, ResolutionKeepTheirs, ResolutionMerge, ResolutionCancel:
		return ResolutionType(value), nil
	}
	return "", errors.WithMetadata(errors.CodeConflictInvalidChoice,
		"unknown conflict resolution type",
		map[string]string{"resolution": value})
}

// Resolution records how and by whom a conflict was settled.
type Resolution struct {
	Type       ResolutionType
	ResolvedBy string
	ResolvedAt time.Time
	Comment    string
}

// Conflict is a detected overlap of changed fields between two live sessions
// on the same process. Conflicts are created by detection, mutated only by
// resolution, and never deleted.
type Conflict struct {
	ID         string
	ProcessID  string
	SessionID1 string
	UserID1    string
	SessionID2 string
	UserID2    string
	DetectedAt time.Time
	Fields     []string
	Resolution *Resolution
}

// Resolved reports whether the conflict has been settled.
func (c Conflict) Resolved() bool {
	return c.Resolution != nil
}

// Involves reports whether the given session is one of the two parties.
func (c Conflict) Involves(sessionID string) bool {
	return c.SessionID1 == sessionID || c.SessionID2 == sessionID
}

// OtherSession returns the counterpart of the given session in the conflict.
func (c Conflict) OtherSession(sessionID string) string {
	if c.SessionID1 == sessionID {
		return c.SessionID2
	}
	return c.SessionID1
}

// SamePair reports whether the conflict is between the same two sessions,
// in either order. Used to keep detection idempotent.
func (c Conflict) SamePair(sessionA, sessionB string) bool {
	return (c.SessionID1 == sessionA && c.SessionID2 == sessionB) ||
		(c.SessionID1 == sessionB && c.SessionID2 == sessionA)
}

// Resolve stamps the resolution onto the conflict. Resolving twice fails.
func (c *Conflict) Resolve(resolution Resolution) error {
	if c.Resolved() {
		return errors.New(errors.CodeConflictAlreadyResolved, "conflict is already resolved")
	}
	c.Resolution = &resolution
	return nil
}
