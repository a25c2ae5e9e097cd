package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestServerStartSaveAndCommitRoundTrip(t *testing.T) {
	dbPath := t.TempDir() + "/editing.db"
	t.Setenv("PROSESSPORTAL_EDITING_DB_PATH", dbPath)

	srv, err := NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	base := "http://" + srv.Addr()
	client := &http.Client{Timeout: 5 * time.Second}

	do := func(method, path, user string, body any) (int, map[string]any) {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
		req, err := http.NewRequest(method, base+path, &buf)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if user != "" {
			req.Header.Set("X-User-ID", user)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		defer resp.Body.Close()
		decoded := map[string]any{}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
		return resp.StatusCode, decoded
	}

	status, started := do(http.MethodPost, "/processes/proc-1/sessions", "alice", nil)
	if status != http.StatusCreated {
		t.Fatalf("start session status = %d, want %d", status, http.StatusCreated)
	}
	session, ok := started["session"].(map[string]any)
	if !ok {
		t.Fatalf("start response missing session: %v", started)
	}
	sessionID, _ := session["id"].(string)
	if sessionID == "" {
		t.Fatalf("session id = %q, want non-empty", sessionID)
	}

	draftPath := fmt.Sprintf("/sessions/%s/draft", sessionID)
	status, _ = do(http.MethodPut, draftPath, "alice", map[string]any{
		"content": map[string]any{
			"title":       "Onboarding",
			"description": "How we onboard new hires",
		},
	})
	if status != http.StatusOK {
		t.Fatalf("save draft status = %d, want %d", status, http.StatusOK)
	}

	status, _ = do(http.MethodPost, "/processes/proc-1/lock", "alice", map[string]any{
		"sessionId": sessionID,
	})
	if status != http.StatusOK {
		t.Fatalf("acquire lock status = %d, want %d", status, http.StatusOK)
	}

	status, version := do(http.MethodPost, fmt.Sprintf("/sessions/%s/complete", sessionID), "alice", map[string]any{
		"changeType":    "minor",
		"changeComment": "initial onboarding doc",
	})
	if status != http.StatusCreated {
		t.Fatalf("complete edit status = %d, want %d", status, http.StatusCreated)
	}
	if got := version["number"]; got != "1.0.0" {
		t.Fatalf("version number = %v, want 1.0.0", got)
	}

	status, current := do(http.MethodGet, "/processes/proc-1/versions/current", "alice", nil)
	if status != http.StatusOK {
		t.Fatalf("current version status = %d, want %d", status, http.StatusOK)
	}
	content, ok := current["content"].(map[string]any)
	if !ok {
		t.Fatalf("current version missing content: %v", current)
	}
	if got := content["title"]; got != "Onboarding" {
		t.Fatalf("current title = %v, want Onboarding", got)
	}
}
