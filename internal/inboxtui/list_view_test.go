package inboxtui

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
	"github.com/opsdeskhq/opsdesk/internal/snapshot"
)

func testConversations() []inbox.Conversation {
	return []inbox.Conversation{
		{ID: "c1", Subject: "Order delayed", Status: inbox.StatusActive, AwaitingReply: true,
			Contact: &inbox.Contact{ID: "p1", Name: "Jane Doe", Email: "jane@example.com"}},
		{ID: "c2", Subject: "Refund", Status: inbox.StatusResolved,
			Contact: &inbox.Contact{ID: "p2", Name: "Sam Lee", Phone: "+15551234567"}},
	}
}

func newTestListView() *listView {
	return newListView(api.NewClient("http://localhost:8000", time.Second), nil, time.Second, 50, 300*time.Millisecond)
}

func TestListKeepsDataOnLoadError(t *testing.T) {
	v := newTestListView()

	v.applyLoaded(listLoadedMsg{
		now:  time.Now(),
		page: &api.ConversationPage{Total: 2, Conversations: testConversations()},
	})
	require.Len(t, v.conversations, 2)
	require.NoError(t, v.lastErr)

	v.applyLoaded(listLoadedMsg{now: time.Now(), err: errors.New("connection refused")})
	require.Len(t, v.conversations, 2)
	require.Error(t, v.lastErr)

	// A later successful poll clears the error.
	v.applyLoaded(listLoadedMsg{
		now:  time.Now(),
		page: &api.ConversationPage{Total: 1, Conversations: testConversations()[:1]},
	})
	require.NoError(t, v.lastErr)
	require.Len(t, v.conversations, 1)
}

func TestListDiscardsStaleLoads(t *testing.T) {
	v := newTestListView()
	v.applyLoaded(listLoadedMsg{
		now:  time.Now(),
		page: &api.ConversationPage{Total: 2, Conversations: testConversations()},
	})

	// A query change invalidates everything already in flight.
	v.rev = 3
	v.applyLoaded(listLoadedMsg{rev: 1, now: time.Now(), page: &api.ConversationPage{Total: 0}})
	require.Len(t, v.conversations, 2)
}

func TestListSearchDebounceRevGuard(t *testing.T) {
	v := newTestListView()
	v.searchActive = true

	cmd := v.handleSearchKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	require.NotNil(t, cmd)
	first := v.rev

	cmd = v.handleSearchKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	require.NotNil(t, cmd)
	require.Greater(t, v.rev, first)

	// The first keystroke's debounce timer fires and must be ignored.
	require.Nil(t, v.Update(listSearchDebounceMsg{rev: first}))
	require.NotNil(t, v.Update(listSearchDebounceMsg{rev: v.rev}))
}

func TestListFilterCycle(t *testing.T) {
	v := newTestListView()
	require.Equal(t, inbox.FilterAll, v.filter)

	seen := []string{}
	for i := 0; i < 4; i++ {
		cmd := v.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
		require.NotNil(t, cmd)
		seen = append(seen, v.filter)
	}
	require.Equal(t, []string{inbox.FilterUnanswered, inbox.FilterMine, inbox.FilterUnassigned, inbox.FilterAll}, seen)
}

func TestListEnterOpensSelected(t *testing.T) {
	v := newTestListView()
	v.applyLoaded(listLoadedMsg{
		now:  time.Now(),
		page: &api.ConversationPage{Total: 2, Conversations: testConversations()},
	})
	v.selected = 1

	cmd := v.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(openConversationMsg)
	require.True(t, ok)
	require.Equal(t, "c2", msg.id)
}

func TestListPollTickRearms(t *testing.T) {
	v := newTestListView()
	require.NotNil(t, v.Update(listTickMsg{}))
}

func TestListRedisplayDoesNotStackPollLoops(t *testing.T) {
	v := newTestListView()
	require.NotNil(t, v.Init())
	covered := v.gen

	// Coming back from a detour starts a fresh loop.
	require.NotNil(t, v.Init())
	require.Greater(t, v.gen, covered)

	// The previous loop's pending tick must not re-arm alongside it.
	require.Nil(t, v.Update(listTickMsg{gen: covered}))
	require.NotNil(t, v.Update(listTickMsg{gen: v.gen}))
}

func TestListSeedsFromSnapshot(t *testing.T) {
	store, err := snapshot.Open(filepath.Join(t.TempDir(), "snapshot.db"), 5000)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveListPage(context.Background(), listCacheKey(inbox.FilterAll, ""), 2, testConversations()))

	v := newListView(api.NewClient("http://localhost:8000", time.Second), store, time.Second, 50, 300*time.Millisecond)
	require.NotNil(t, v.Init())
	require.True(t, v.cached)
	require.Len(t, v.conversations, 2)
	require.Equal(t, 2, v.total)
}
