package inboxcli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
	"github.com/opsdeskhq/opsdesk/internal/session"
)

// testEnv wires a fake server, a config file pointing at it, and a saved
// session so commands run end to end.
type testEnv struct {
	configPath string
	server     *httptest.Server
}

func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "session.yaml")
	configPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`
global:
  data_dir: %s
  config_dir: %s
api:
  base_url: %s
  session_path: %s
snapshot:
  path: %s
`, dir, dir, srv.URL, sessionPath, filepath.Join(dir, "snapshot.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0644))

	store := session.NewStore(sessionPath)
	require.NoError(t, store.Save(&session.Session{
		Token:    "test-token",
		UserID:   "u1",
		UserName: "Jane",
		BaseURL:  srv.URL,
	}))

	return &testEnv{configPath: configPath, server: srv}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd("test")
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--config", e.configPath))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestListCommand(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/inbox/conversations", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(api.ConversationPage{
			Total: 1,
			Conversations: []inbox.Conversation{
				{
					ID:      "c1aaaaaaaaaa",
					Subject: "Quote request",
					Status:  inbox.StatusActive,
					Contact: &inbox.Contact{ID: "p1", Name: "Jane Doe"},
					LastMessage: &inbox.Message{
						CreatedAt: time.Now().Add(-2 * time.Minute),
					},
				},
			},
		})
	}))

	stdout, _, err := env.run(t, "list")
	require.NoError(t, err)
	require.Contains(t, stdout, "Jane Doe")
	require.Contains(t, stdout, "Quote request")
	require.Contains(t, stdout, "1 of 1 conversations")
}

func TestListCommandFallsBackToCache(t *testing.T) {
	var fail bool
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(api.ConversationPage{
			Total:         1,
			Conversations: []inbox.Conversation{{ID: "c1", Subject: "Cached subject", Status: inbox.StatusActive}},
		})
	}))

	// First call populates the cache.
	_, _, err := env.run(t, "list")
	require.NoError(t, err)

	fail = true
	stdout, stderr, err := env.run(t, "list")
	require.NoError(t, err)
	require.Contains(t, stderr, "cached")
	require.Contains(t, stdout, "Cached subject")
	require.Contains(t, stdout, "(cached)")
}

func TestShowCommandNotFound(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Conversation not found"})
	}))

	_, _, err := env.run(t, "show", "gone")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestShowCommandRendersThread(t *testing.T) {
	conv := inbox.Conversation{
		ID:      "c1",
		Subject: "Booking",
		Status:  inbox.StatusActive,
		Contact: &inbox.Contact{ID: "p1", Name: "Jane", Phone: "+15551234567"},
		Messages: []inbox.Message{
			{ID: "m1", Content: "Are you open?", Channel: inbox.ChannelSMS, Direction: inbox.DirectionInbound, CreatedAt: time.Now().Add(-time.Hour)},
			{ID: "m2", Content: "We are!", Channel: inbox.ChannelSMS, Direction: inbox.DirectionOutbound, CreatedAt: time.Now()},
		},
	}
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/inbox/conversations/c1", r.URL.Path)
		json.NewEncoder(w).Encode(conv)
	}))

	stdout, _, err := env.run(t, "show", "c1")
	require.NoError(t, err)
	require.Contains(t, stdout, "Booking")
	require.Contains(t, stdout, "+15551234567")
	require.Contains(t, stdout, "Are you open?")
	// One non-automated outbound message pauses automation.
	require.Contains(t, stdout, "Automation: paused")
	require.Contains(t, stdout, "Today")
}

func TestSendCommandValidates(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid draft must not reach the server")
	}))

	_, stderr, err := env.run(t, "send", "hello", "--channel", "sms", "--name", "Jane", "--phone", "555-1234")
	require.Error(t, err)
	require.Contains(t, stderr, "phone")
}

func TestSendCommand(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/inbox/messages", r.URL.Path)
		var req inbox.ComposeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, inbox.ChannelSMS, req.Channel)
		require.Equal(t, "+15551234567", req.ContactPhone)
		json.NewEncoder(w).Encode(api.SendResult{Status: "success", ConversationID: "c1", MessageID: "m1", ContactID: "p1"})
	}))

	stdout, _, err := env.run(t, "send", "hello", "--channel", "sms", "--name", "Jane", "--phone", "+15551234567")
	require.NoError(t, err)
	require.Contains(t, stdout, "Sent")
}

func TestResolveCommand(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "resolved", body["status"])
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "success",
			"conversation": inbox.Conversation{ID: "c1", Status: inbox.StatusResolved},
		})
	}))

	stdout, _, err := env.run(t, "resolve", "c1")
	require.NoError(t, err)
	require.Contains(t, stdout, "Resolved")
}

func TestAssignCommandToMe(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// The stored session user, without a profile round trip.
		require.Equal(t, "u1", body["assigned_to_id"])
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"conversation": inbox.Conversation{
				ID:         "c1",
				AssignedTo: &inbox.Assignee{ID: "u1", Name: "Jane"},
			},
		})
	}))

	stdout, _, err := env.run(t, "assign", "c1", "--me")
	require.NoError(t, err)
	require.Contains(t, stdout, "Assigned")
	require.Contains(t, stdout, "Jane")
}

func TestStatsCommand(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(inbox.Stats{TotalConversations: 5, MessagesToday: 3})
	}))

	stdout, _, err := env.run(t, "stats")
	require.NoError(t, err)
	require.Contains(t, stdout, "Total conversations")
	require.Contains(t, stdout, "5")
}

func TestCommandsRequireSession(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	// Wipe the saved session.
	dir := filepath.Dir(env.configPath)
	require.NoError(t, os.Remove(filepath.Join(dir, "session.yaml")))

	_, _, err := env.run(t, "list")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not logged in")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, ExitCodeAuth, exitErr.Code)
}
