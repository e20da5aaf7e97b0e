package inboxtui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
	"github.com/opsdeskhq/opsdesk/internal/inboxtui/styles"
)

type composeField int

const (
	composeFieldName composeField = iota
	composeFieldEmail
	composeFieldPhone
	composeFieldSubject
	composeFieldContent
)

type contactSearchDebounceMsg struct {
	rev int
}

type contactsLoadedMsg struct {
	rev      int
	contacts []inbox.Contact
	err      error
}

type composeSendResultMsg struct {
	result *api.SendResult
	err    error
}

type composeState struct {
	active  bool
	focus   composeField
	channel inbox.Channel

	name    string
	email   string
	phone   string
	subject string
	content string

	rev         int
	searching   bool
	results     []inbox.Contact
	resultSel   int
	showResults bool

	sending bool
	errs    []inbox.ValidationError
	err     string
}

func (m *Model) openCompose() {
	m.compose = composeState{
		active:  true,
		focus:   composeFieldName,
		channel: inbox.ChannelEmail,
	}
}

func (m *Model) closeCompose() {
	m.compose = composeState{}
}

// composeFields lists the fields visible for the selected channel, in
// tab order.
func (m *Model) composeFields() []composeField {
	if m.compose.channel == inbox.ChannelSMS {
		return []composeField{composeFieldName, composeFieldPhone, composeFieldContent}
	}
	return []composeField{composeFieldName, composeFieldEmail, composeFieldSubject, composeFieldContent}
}

func (m *Model) updateCompose(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case contactSearchDebounceMsg:
		if !m.compose.active || typed.rev != m.compose.rev {
			return nil
		}
		return m.contactSearchCmd(typed.rev, m.compose.name)
	case contactsLoadedMsg:
		if !m.compose.active || typed.rev != m.compose.rev {
			return nil
		}
		m.compose.searching = false
		if typed.err != nil {
			// Suggestions are a convenience; a failed lookup should not
			// block composing.
			m.compose.results = nil
			m.compose.showResults = false
			return nil
		}
		m.compose.results = typed.contacts
		m.compose.resultSel = 0
		m.compose.showResults = len(typed.contacts) > 0
		return nil
	case composeSendResultMsg:
		return m.handleComposeSendResult(typed)
	}
	return nil
}

func (m *Model) handleComposeKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if m.compose.sending {
		return nil
	}

	switch msg.String() {
	case "esc":
		if m.compose.showResults {
			m.compose.showResults = false
			return nil
		}
		m.closeCompose()
		return nil
	case "tab":
		m.focusNextField(1)
		return nil
	case "shift+tab":
		m.focusNextField(-1)
		return nil
	case "ctrl+t":
		m.toggleChannel()
		return nil
	case "ctrl+s":
		return m.submitCompose()
	}

	if m.compose.focus == composeFieldName && m.compose.showResults {
		switch msg.String() {
		case "down":
			m.compose.resultSel = clampInt(m.compose.resultSel+1, 0, maxInt(0, len(m.compose.results)-1))
			return nil
		case "up":
			m.compose.resultSel = clampInt(m.compose.resultSel-1, 0, maxInt(0, len(m.compose.results)-1))
			return nil
		case "enter":
			m.pickContact()
			return nil
		}
	}

	switch msg.Type {
	case tea.KeyEnter:
		if m.compose.focus == composeFieldContent {
			m.compose.content += "\n"
		}
		return nil
	case tea.KeyBackspace, tea.KeyDelete:
		return m.editFocusedField(func(s string) string {
			runes := []rune(s)
			if len(runes) == 0 {
				return s
			}
			return string(runes[:len(runes)-1])
		})
	case tea.KeySpace:
		return m.editFocusedField(func(s string) string { return s + " " })
	case tea.KeyRunes:
		text := string(msg.Runes)
		return m.editFocusedField(func(s string) string { return s + text })
	}
	return nil
}

func (m *Model) focusNextField(delta int) {
	fields := m.composeFields()
	idx := 0
	for i, f := range fields {
		if f == m.compose.focus {
			idx = i
			break
		}
	}
	m.compose.focus = fields[(idx+delta+len(fields))%len(fields)]
	m.compose.showResults = false
}

func (m *Model) toggleChannel() {
	if m.compose.channel == inbox.ChannelEmail {
		m.compose.channel = inbox.ChannelSMS
	} else {
		m.compose.channel = inbox.ChannelEmail
	}
	// The focused field may not exist on the other channel.
	fields := m.composeFields()
	found := false
	for _, f := range fields {
		if f == m.compose.focus {
			found = true
			break
		}
	}
	if !found {
		m.compose.focus = composeFieldName
	}
}

func (m *Model) editFocusedField(edit func(string) string) tea.Cmd {
	switch m.compose.focus {
	case composeFieldName:
		m.compose.name = edit(m.compose.name)
		return m.bumpContactSearch()
	case composeFieldEmail:
		m.compose.email = edit(m.compose.email)
	case composeFieldPhone:
		m.compose.phone = edit(m.compose.phone)
	case composeFieldSubject:
		m.compose.subject = edit(m.compose.subject)
	case composeFieldContent:
		m.compose.content = edit(m.compose.content)
	}
	return nil
}

// bumpContactSearch schedules a suggestion lookup behind the debounce
// window. Every keystroke bumps rev so slow responses for older input
// are discarded instead of clobbering newer results.
func (m *Model) bumpContactSearch() tea.Cmd {
	query := strings.TrimSpace(m.compose.name)
	m.compose.rev++
	if query == "" {
		m.compose.searching = false
		m.compose.results = nil
		m.compose.showResults = false
		return nil
	}
	m.compose.searching = true
	rev := m.compose.rev
	debounce := m.cfg.Sync.SearchDebounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return tea.Tick(debounce, func(time.Time) tea.Msg {
		return contactSearchDebounceMsg{rev: rev}
	})
}

func (m *Model) contactSearchCmd(rev int, query string) tea.Cmd {
	client := m.client
	limit := m.cfg.Sync.SearchLimit
	return func() tea.Msg {
		contacts, err := client.SearchContacts(context.Background(), strings.TrimSpace(query), limit)
		return contactsLoadedMsg{rev: rev, contacts: contacts, err: err}
	}
}

func (m *Model) pickContact() {
	if m.compose.resultSel < 0 || m.compose.resultSel >= len(m.compose.results) {
		return
	}
	contact := m.compose.results[m.compose.resultSel]
	m.compose.name = contact.Name
	if contact.Email != "" {
		m.compose.email = contact.Email
	}
	if contact.Phone != "" {
		m.compose.phone = contact.Phone
	}
	// Follow the contact's reachable channel, email preferred.
	if channel := contact.PreferredChannel(); channel != "" {
		m.compose.channel = channel
	}
	m.compose.showResults = false
	// Stop any in-flight lookup from reopening the list.
	m.compose.rev++
	m.compose.searching = false
}

func (m *Model) composeDraft() inbox.Compose {
	return inbox.Compose{
		Channel:     m.compose.channel,
		ContactName: m.compose.name,
		Email:       m.compose.email,
		Phone:       m.compose.phone,
		Subject:     m.compose.subject,
		Content:     m.compose.content,
	}
}

func (m *Model) submitCompose() tea.Cmd {
	draft := m.composeDraft()
	if errs := draft.Validate(); len(errs) > 0 {
		m.compose.errs = errs
		m.compose.err = ""
		return nil
	}
	m.compose.errs = nil
	m.compose.err = ""
	m.compose.sending = true

	client := m.client
	req := draft.Request()
	return func() tea.Msg {
		result, err := client.SendMessage(context.Background(), req)
		return composeSendResultMsg{result: result, err: err}
	}
}

// handleComposeSendResult keeps the draft on failure so a network blip
// never eats a typed message. On success it closes the overlay and
// jumps into the new conversation.
func (m *Model) handleComposeSendResult(msg composeSendResultMsg) tea.Cmd {
	m.compose.sending = false
	if msg.err != nil {
		m.compose.err = msg.err.Error()
		return nil
	}
	conversationID := msg.result.ConversationID
	m.closeCompose()
	m.setToast("Sent ✓")
	if conversationID != "" {
		return openConversationCmd(conversationID)
	}
	if active := m.activeView(); active != nil {
		return active.Init()
	}
	return nil
}

func (m *Model) renderComposeOverlay(width, height int) string {
	palette := themePalette(m.theme)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Muted))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Foreground))
	focusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Accent)).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Status.Awaiting))

	innerW := maxInt(24, width-6)

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(palette.Chrome.Breadcrumb)).Render("New message"),
		labelStyle.Render("channel: ") + focusStyle.Render(string(m.compose.channel)) + labelStyle.Render("  (ctrl+t to switch)"),
		"",
	}

	for _, field := range m.composeFields() {
		label, value := m.fieldLabelValue(field)
		style := valueStyle
		cursor := ""
		if field == m.compose.focus {
			style = focusStyle
			cursor = "▌"
		}
		lines = append(lines, labelStyle.Render(label+": ")+style.Render(truncateVis(value+cursor, innerW-len(label)-2)))

		if field == composeFieldName && m.compose.showResults {
			for i, contact := range m.compose.results {
				marker := "   "
				if i == m.compose.resultSel {
					marker = " > "
				}
				entry := contact.Name
				if address := contact.Recipient(); address != "" {
					entry += "  " + address
				}
				lines = append(lines, labelStyle.Render(marker)+valueStyle.Render(truncateVis(entry, innerW-3)))
			}
		}
		if field == composeFieldName && m.compose.searching {
			lines = append(lines, labelStyle.Render("   searching..."))
		}
	}

	for _, ve := range m.compose.errs {
		lines = append(lines, errStyle.Render(truncateVis(ve.Field+": "+ve.Message, innerW)))
	}
	if m.compose.err != "" {
		lines = append(lines, errStyle.Render(truncateVis("send failed: "+m.compose.err, innerW)))
	}
	if m.compose.sending {
		lines = append(lines, labelStyle.Render("sending..."))
	}

	box := styles.PanelStyle(palette, true).
		Padding(1, 2).
		Width(minInt(width-2, innerW+4)).
		Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) fieldLabelValue(field composeField) (string, string) {
	switch field {
	case composeFieldName:
		return "contact", m.compose.name
	case composeFieldEmail:
		return "email", m.compose.email
	case composeFieldPhone:
		return "phone", m.compose.phone
	case composeFieldSubject:
		return "subject", m.compose.subject
	default:
		return "message", m.compose.content
	}
}
