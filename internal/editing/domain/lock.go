package domain

import "time"

// Lock is the exclusive, expiring permission to promote a draft into a new
// version. It gates commits only; drafting never requires a lock.
type Lock struct {
	ProcessID  string
	SessionID  string
	UserID     string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// ExpiredBy reports whether the lock has lapsed at the given instant.
// Expiry is evaluated lazily: an expired lock is treated as absent by every
// reader, no timer is needed for correctness.
func (l Lock) ExpiredBy(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// HeldBy reports whether the lock is live and owned by the given session.
func (l Lock) HeldBy(sessionID string, now time.Time) bool {
	return l.SessionID == sessionID && !l.ExpiredBy(now)
}
