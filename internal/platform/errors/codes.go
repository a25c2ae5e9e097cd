package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionNotFound           Code = "SESSION_NOT_FOUND"
	CodeSessionExpired            Code = "SESSION_EXPIRED"
	CodeSessionNotOwned           Code = "SESSION_NOT_OWNED"
	CodeSessionClosed             Code = "SESSION_CLOSED"
	CodeSessionInvalidTransition  Code = "SESSION_INVALID_STATUS_TRANSITION"
	CodeTooManyConcurrentSessions Code = "TOO_MANY_CONCURRENT_SESSIONS"

	// Lock errors
	CodeLockHeld     Code = "LOCK_HELD"
	CodeLockNotOwned Code = "LOCK_NOT_OWNED"
	CodeLockRequired Code = "LOCK_REQUIRED"

	// Conflict errors
	CodeConflictNotFound        Code = "CONFLICT_NOT_FOUND"
	CodeConflictUnresolved      Code = "CONFLICT_UNRESOLVED"
	CodeConflictAlreadyResolved Code = "CONFLICT_ALREADY_RESOLVED"
	CodeConflictInvalidChoice   Code = "CONFLICT_INVALID_CHOICE"

	// Versioning errors
	CodeStaleBaseline   Code = "STALE_BASELINE"
	CodeVersionNotFound Code = "VERSION_NOT_FOUND"

	// Process errors
	CodeProcessNotFound Code = "PROCESS_NOT_FOUND"

	// Draft and history errors
	CodeDraftNotFound    Code = "DRAFT_NOT_FOUND"
	CodeAutoSaveNotFound Code = "AUTOSAVE_NOT_FOUND"
	CodeNothingToUndo    Code = "NOTHING_TO_UNDO"
	CodeNothingToRedo    Code = "NOTHING_TO_REDO"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUserRequired    Code = "USER_REQUIRED"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSessionNotFound, CodeConflictNotFound, CodeVersionNotFound,
		CodeProcessNotFound, CodeDraftNotFound, CodeAutoSaveNotFound:
		return http.StatusNotFound
	case CodeSessionExpired, CodeSessionClosed:
		return http.StatusGone
	case CodeSessionNotOwned:
		return http.StatusForbidden
	case CodeTooManyConcurrentSessions, CodeLockHeld, CodeConflictUnresolved,
		CodeConflictAlreadyResolved, CodeStaleBaseline, CodeSessionInvalidTransition,
		CodeNothingToUndo, CodeNothingToRedo:
		return http.StatusConflict
	case CodeLockNotOwned, CodeLockRequired:
		return http.StatusPreconditionFailed
	case CodeInvalidArgument, CodeConflictInvalidChoice:
		return http.StatusBadRequest
	case CodeUserRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
