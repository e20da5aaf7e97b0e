package inboxtui

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
	"github.com/opsdeskhq/opsdesk/internal/inboxtui/styles"
)

func testConversation() *inbox.Conversation {
	return &inbox.Conversation{
		ID:      "c1",
		Subject: "Order delayed",
		Status:  inbox.StatusActive,
		Contact: &inbox.Contact{ID: "p1", Name: "Jane Doe", Email: "jane@example.com"},
		Messages: []inbox.Message{
			{ID: "m1", Content: "Where is my order?", Channel: inbox.ChannelEmail, Direction: inbox.DirectionInbound, CreatedAt: time.Now().Add(-time.Hour)},
			{ID: "m2", Content: "Looking into it", Channel: inbox.ChannelEmail, Direction: inbox.DirectionOutbound, CreatedAt: time.Now()},
		},
	}
}

func newTestThreadView() *threadView {
	v := newThreadView(api.NewClient("http://localhost:8000", time.Second), nil, time.Second, "u1")
	v.id = "c1"
	v.polling = true
	return v
}

func TestThreadKeepsDataOnLoadError(t *testing.T) {
	v := newTestThreadView()

	v.applyLoaded(threadLoadedMsg{id: "c1", now: time.Now(), conv: testConversation()})
	require.NotNil(t, v.conv)
	require.NoError(t, v.lastErr)

	v.applyLoaded(threadLoadedMsg{id: "c1", now: time.Now(), err: errors.New("connection refused")})
	require.NotNil(t, v.conv)
	require.Len(t, v.conv.Messages, 2)
	require.Error(t, v.lastErr)

	// Transient errors do not stop the poll loop.
	require.NotNil(t, v.Update(threadTickMsg{}))
}

func TestThreadNotFoundStopsPolling(t *testing.T) {
	v := newTestThreadView()
	v.applyLoaded(threadLoadedMsg{id: "c1", now: time.Now(), conv: testConversation()})

	v.applyLoaded(threadLoadedMsg{id: "c1", now: time.Now(), err: api.ErrNotFound})
	require.True(t, v.notFound)
	require.Nil(t, v.conv)

	// The next tick ends the loop instead of re-fetching a 404.
	require.Nil(t, v.Update(threadTickMsg{}))
	require.False(t, v.polling)

	// Re-showing the view does not resume polling a deleted conversation.
	require.Nil(t, v.Init())
}

func TestThreadReinitRestartsPolling(t *testing.T) {
	v := newThreadView(api.NewClient("http://localhost:8000", time.Second), nil, time.Second, "u1")
	v.id = "c1"

	require.NotNil(t, v.Init())
	covered := v.gen

	// While another view sat on top, this view's pending tick was routed
	// to that view and the loop died. Re-showing must start a fresh loop,
	// not resume the dead one.
	require.NotNil(t, v.Init())
	require.Greater(t, v.gen, covered)
	require.True(t, v.polling)

	// The orphaned tick dies quietly instead of doubling the loop.
	require.Nil(t, v.Update(threadTickMsg{gen: covered}))
	// The fresh loop keeps re-arming.
	require.NotNil(t, v.Update(threadTickMsg{gen: v.gen}))
}

func TestThreadDiscardsLoadsForOtherConversations(t *testing.T) {
	v := newTestThreadView()
	v.applyLoaded(threadLoadedMsg{id: "c1", now: time.Now(), conv: testConversation()})

	other := testConversation()
	other.ID = "c9"
	v.applyLoaded(threadLoadedMsg{id: "c9", now: time.Now(), conv: other})
	require.Equal(t, "c1", v.conv.ID)
}

func TestSetConversationResetsTerminalState(t *testing.T) {
	v := newTestThreadView()
	v.applyLoaded(threadLoadedMsg{id: "c1", now: time.Now(), err: api.ErrNotFound})
	require.True(t, v.notFound)
	v.polling = false

	cmd := v.SetConversation("c2")
	require.NotNil(t, cmd)
	require.False(t, v.notFound)
	require.Equal(t, "c2", v.id)
	require.True(t, v.polling)
}

func TestThreadStopInvalidatesOutstandingWork(t *testing.T) {
	v := newTestThreadView()
	v.applyLoaded(threadLoadedMsg{id: "c1", now: time.Now(), conv: testConversation()})

	v.Stop()
	require.False(t, v.polling)

	// Both the tick loop and any in-flight load carry the old gen and
	// must not touch the view anymore.
	require.Nil(t, v.Update(threadTickMsg{gen: 0}))
	newer := testConversation()
	newer.Status = inbox.StatusResolved
	v.applyLoaded(threadLoadedMsg{id: "c1", now: time.Now(), conv: newer})
	require.Equal(t, inbox.StatusActive, v.conv.Status)
}

func TestReplyKeptOnSendFailure(t *testing.T) {
	v := newTestThreadView()
	v.conv = testConversation()
	v.replyActive = true
	v.replyInput = "On its way, sorry for the delay"
	v.replySending = true

	cmd := v.applyReplyResult(replyResultMsg{id: "c1", err: errors.New("502 bad gateway")})
	require.Nil(t, cmd)
	require.True(t, v.replyActive)
	require.Equal(t, "On its way, sorry for the delay", v.replyInput)
	require.NotEmpty(t, v.replyErr)
}

func TestReplyClearedOnSuccess(t *testing.T) {
	v := newTestThreadView()
	v.conv = testConversation()
	v.replyActive = true
	v.replyInput = "On its way"
	v.replySending = true

	cmd := v.applyReplyResult(replyResultMsg{id: "c1", result: &api.ReplyResult{Status: "success", MessageID: "m3"}})
	require.NotNil(t, cmd)
	require.False(t, v.replyActive)
	require.Empty(t, v.replyInput)
	require.Empty(t, v.replyErr)
}

func TestReplyRejectedOnResolvedConversation(t *testing.T) {
	v := newTestThreadView()
	v.conv = testConversation()
	v.conv.Status = inbox.StatusResolved

	require.Nil(t, v.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}))
	require.False(t, v.replyActive)
	require.NotEmpty(t, v.replyErr)
}

func TestResolveAndAssignRequests(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		bodies = append(bodies, body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "success",
			"conversation": map[string]any{"id": "c1", "status": "resolved"},
		})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, time.Second)
	client.SetToken("test-token")
	v := newThreadView(client, nil, time.Second, "u1")
	v.id = "c1"
	v.conv = testConversation()

	msg, ok := v.resolveCmd()().(conversationUpdatedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)

	msg, ok = v.assignCmd()().(conversationUpdatedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)

	require.Len(t, bodies, 2)
	require.Equal(t, "resolved", bodies[0]["status"])
	require.NotContains(t, bodies[0], "assigned_to_id")
	require.Equal(t, "u1", bodies[1]["assigned_to_id"])
	require.NotContains(t, bodies[1], "status")
}

func TestMessageColorByOrigin(t *testing.T) {
	palette := styles.DefaultTheme
	require.Equal(t, palette.Message.Inbound, messageColor(inbox.Message{Direction: inbox.DirectionInbound}, palette))
	require.Equal(t, palette.Message.Outbound, messageColor(inbox.Message{Direction: inbox.DirectionOutbound}, palette))
	require.Equal(t, palette.Message.Automated, messageColor(inbox.Message{Direction: inbox.DirectionOutbound, Automated: true}, palette))
}

func TestConversationUpdateMergeKeepsMessages(t *testing.T) {
	v := newTestThreadView()
	v.conv = testConversation()

	updated := &inbox.Conversation{ID: "c1", Status: inbox.StatusResolved}
	cmd := v.applyUpdated(conversationUpdatedMsg{id: "c1", conv: updated})
	require.NotNil(t, cmd)
	require.Equal(t, inbox.StatusResolved, v.conv.Status)
	require.Len(t, v.conv.Messages, 2)
}
