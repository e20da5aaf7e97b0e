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
)

func typeRunes(m *Model, s string) tea.Cmd {
	return m.handleComposeKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestComposeDebounceDiscardsStaleRevisions(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()

	cmd := typeRunes(m, "j")
	require.NotNil(t, cmd)
	first := m.compose.rev

	cmd = typeRunes(m, "a")
	require.NotNil(t, cmd)
	require.Greater(t, m.compose.rev, first)

	// The older keystroke's debounce timer fires; nothing may be queried
	// for it.
	require.Nil(t, m.updateCompose(contactSearchDebounceMsg{rev: first}))
	require.NotNil(t, m.updateCompose(contactSearchDebounceMsg{rev: m.compose.rev}))
}

func TestComposeStaleResultsDiscarded(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()
	typeRunes(m, "jane")
	typeRunes(m, " doe")

	stale := []inbox.Contact{{ID: "p9", Name: "Someone Else"}}
	require.Nil(t, m.updateCompose(contactsLoadedMsg{rev: m.compose.rev - 1, contacts: stale}))
	require.Empty(t, m.compose.results)

	fresh := []inbox.Contact{{ID: "p1", Name: "Jane Doe", Email: "jane@example.com"}}
	m.updateCompose(contactsLoadedMsg{rev: m.compose.rev, contacts: fresh})
	require.Equal(t, fresh, m.compose.results)
	require.True(t, m.compose.showResults)
}

func TestComposeEscHidesSuggestionsBeforeClosing(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()
	typeRunes(m, "j")
	m.updateCompose(contactsLoadedMsg{rev: m.compose.rev, contacts: []inbox.Contact{{ID: "p1", Name: "Jane"}}})
	require.True(t, m.compose.showResults)

	require.Nil(t, m.handleComposeKey(tea.KeyMsg{Type: tea.KeyEsc}))
	require.False(t, m.compose.showResults)
	require.True(t, m.compose.active)
}

func TestComposeEmptyNameSchedulesNoSearch(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()
	typeRunes(m, "j")
	require.True(t, m.compose.searching)

	cmd := m.handleComposeKey(tea.KeyMsg{Type: tea.KeyBackspace})
	require.Nil(t, cmd)
	require.False(t, m.compose.searching)
	require.Empty(t, m.compose.results)
}

func TestComposePickContactFillsFields(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()
	typeRunes(m, "jane")
	m.updateCompose(contactsLoadedMsg{rev: m.compose.rev, contacts: []inbox.Contact{
		{ID: "p1", Name: "Jane Doe", Email: "jane@example.com", Phone: "+15551234567"},
	}})

	m.handleComposeKey(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, "Jane Doe", m.compose.name)
	require.Equal(t, "jane@example.com", m.compose.email)
	require.Equal(t, "+15551234567", m.compose.phone)
	require.False(t, m.compose.showResults)
}

func TestComposeChannelToggleSwapsFields(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()
	require.Equal(t, inbox.ChannelEmail, m.compose.channel)
	require.Contains(t, m.composeFields(), composeFieldSubject)

	m.handleComposeKey(tea.KeyMsg{Type: tea.KeyCtrlT})
	require.Equal(t, inbox.ChannelSMS, m.compose.channel)
	require.Contains(t, m.composeFields(), composeFieldPhone)
	require.NotContains(t, m.composeFields(), composeFieldEmail)
	require.NotContains(t, m.composeFields(), composeFieldSubject)
}

func TestComposeValidationKeepsDraft(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()
	m.compose.name = "Jane Doe"
	m.compose.email = "not-an-address"
	m.compose.content = ""

	require.Nil(t, m.submitCompose())
	require.NotEmpty(t, m.compose.errs)
	require.False(t, m.compose.sending)
	require.True(t, m.compose.active)
	require.Equal(t, "Jane Doe", m.compose.name)
	require.Equal(t, "not-an-address", m.compose.email)

	fields := make([]string, 0, len(m.compose.errs))
	for _, ve := range m.compose.errs {
		fields = append(fields, ve.Field)
	}
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "content")
}

func TestComposeSendFailureKeepsDraft(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()
	m.compose.name = "Jane Doe"
	m.compose.email = "jane@example.com"
	m.compose.subject = "Hello"
	m.compose.content = "Quick question"
	m.compose.sending = true

	cmd := m.handleComposeSendResult(composeSendResultMsg{err: errors.New("502 bad gateway")})
	require.Nil(t, cmd)
	require.True(t, m.compose.active)
	require.Equal(t, "Quick question", m.compose.content)
	require.NotEmpty(t, m.compose.err)
	require.False(t, m.compose.sending)
}

func TestComposeSendSuccessOpensConversation(t *testing.T) {
	m := newTestModel(nil)
	m.openCompose()
	m.compose.content = "Quick question"

	cmd := m.handleComposeSendResult(composeSendResultMsg{result: &api.SendResult{
		Status:         "success",
		ConversationID: "c9",
	}})
	require.NotNil(t, cmd)
	require.False(t, m.compose.active)
	require.NotEmpty(t, m.toast)

	msg, ok := cmd().(openConversationMsg)
	require.True(t, ok)
	require.Equal(t, "c9", msg.id)
}

func TestComposeSubmitSendsChannelRecipientOnly(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "success",
			"message_id":      "m1",
			"conversation_id": "c1",
			"contact_id":      "p1",
		})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, time.Second)
	client.SetToken("test-token")
	m := newTestModel(client)
	m.openCompose()
	m.compose.name = "Jane Doe"
	m.compose.email = "jane@example.com"
	m.compose.phone = "+15551234567"
	m.compose.subject = "Hello"
	m.compose.content = "Quick question"

	cmd := m.submitCompose()
	require.NotNil(t, cmd)
	require.True(t, m.compose.sending)

	result, ok := cmd().(composeSendResultMsg)
	require.True(t, ok)
	require.NoError(t, result.err)

	require.Equal(t, "email", body["channel"])
	require.Equal(t, "jane@example.com", body["contact_email"])
	// An email draft keeps a phone the operator happened to paste out of
	// the request entirely.
	require.NotContains(t, body, "contact_phone")
}
