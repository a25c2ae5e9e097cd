package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := New(CodeLockHeld, "lock held by another session")
	wrapped := fmt.Errorf("acquire lock: %w", err)

	if !stderrors.Is(wrapped, New(CodeLockHeld, "")) {
		t.Fatal("expected wrapped error to match by code")
	}
	if stderrors.Is(wrapped, New(CodeLockNotOwned, "")) {
		t.Fatal("expected no match for different code")
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	if got := GetCode(New(CodeStaleBaseline, "current version moved")); got != CodeStaleBaseline {
		t.Fatalf("code = %q, want %q", got, CodeStaleBaseline)
	}
	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
	if got := GetCode(nil); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "write autosave", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause to be reachable via errors.Is")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code Code
		want int
	}{
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeSessionExpired, http.StatusGone},
		{CodeTooManyConcurrentSessions, http.StatusConflict},
		{CodeLockHeld, http.StatusConflict},
		{CodeLockRequired, http.StatusPreconditionFailed},
		{CodeStaleBaseline, http.StatusConflict},
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeUserRequired, http.StatusUnauthorized},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestGetMetadata(t *testing.T) {
	t.Parallel()

	err := WithMetadata(CodeLockHeld, "lock held", map[string]string{
		"holder_user_id": "user-2",
	})
	meta := GetMetadata(fmt.Errorf("acquire: %w", err))
	if meta["holder_user_id"] != "user-2" {
		t.Fatalf("metadata holder_user_id = %q, want %q", meta["holder_user_id"], "user-2")
	}
}
