package inboxtui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
	"github.com/opsdeskhq/opsdesk/internal/inboxtui/styles"
	"github.com/opsdeskhq/opsdesk/internal/snapshot"
)

type threadTickMsg struct {
	gen int
}

type threadLoadedMsg struct {
	gen  int
	id   string
	now  time.Time
	conv *inbox.Conversation
	err  error
}

type replyResultMsg struct {
	id     string
	result *api.ReplyResult
	err    error
}

type conversationUpdatedMsg struct {
	id   string
	conv *inbox.Conversation
	err  error
}

type threadView struct {
	client       *api.Client
	snapshots    *snapshot.Store
	pollInterval time.Duration
	userID       string

	id   string
	conv *inbox.Conversation

	// gen invalidates the tick loop and in-flight loads when the view is
	// torn down or pointed at another conversation.
	gen int

	now      time.Time
	lastErr  error
	notFound bool
	cached   bool
	polling  bool

	scroll int

	replyActive  bool
	replyInput   string
	replySending bool
	replyErr     string
}

func newThreadView(client *api.Client, snapshots *snapshot.Store, pollInterval time.Duration, userID string) *threadView {
	return &threadView{
		client:       client,
		snapshots:    snapshots,
		pollInterval: pollInterval,
		userID:       userID,
	}
}

func (v *threadView) Init() tea.Cmd {
	if v.id == "" || v.notFound {
		return nil
	}
	// Init runs again whenever the view returns to the top of the stack.
	// While it was covered, its pending tick was routed elsewhere and the
	// loop died, so always start a fresh one. Bumping gen kills any tick
	// or load still in flight from before, so loops never stack.
	v.gen++
	v.polling = true
	return tea.Batch(v.loadCmd(), v.tickCmd())
}

func (v *threadView) SetConversation(id string) tea.Cmd {
	next := strings.TrimSpace(id)
	if next == "" {
		return nil
	}
	if next != v.id {
		// Init bumps gen, so the old conversation's loop and in-flight
		// loads die on their own.
		v.id = next
		v.conv = nil
		v.lastErr = nil
		v.notFound = false
		v.cached = false
		v.scroll = 0
		v.replyActive = false
		v.replyInput = ""
		v.replyErr = ""
		v.seedFromSnapshot()
	}
	return v.Init()
}

// Stop invalidates the poll loop and any in-flight fetches. Called when
// the view leaves the stack so nothing mutates it afterwards.
func (v *threadView) Stop() {
	v.gen++
	v.polling = false
}

func (v *threadView) seedFromSnapshot() {
	if v.snapshots == nil {
		return
	}
	conv, err := v.snapshots.LoadConversation(context.Background(), v.id)
	if err != nil {
		return
	}
	v.conv = conv
	v.cached = true
}

func (v *threadView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case threadTickMsg:
		// A superseded loop's tick dies quietly; the current loop owns
		// v.polling.
		if typed.gen != v.gen {
			return nil
		}
		// A deleted conversation stays gone; polling it again would only
		// repeat the 404.
		if v.notFound || v.id == "" {
			v.polling = false
			return nil
		}
		return tea.Batch(v.loadCmd(), v.tickCmd())
	case threadLoadedMsg:
		v.applyLoaded(typed)
		return nil
	case replyResultMsg:
		return v.applyReplyResult(typed)
	case conversationUpdatedMsg:
		return v.applyUpdated(typed)
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *threadView) applyLoaded(msg threadLoadedMsg) {
	if msg.gen != v.gen || msg.id != v.id {
		return
	}
	v.now = msg.now
	v.lastErr = msg.err
	if msg.err != nil {
		if errors.Is(msg.err, api.ErrNotFound) {
			v.notFound = true
			v.conv = nil
		}
		return
	}
	v.conv = msg.conv
	v.cached = false
}

func (v *threadView) loadCmd() tea.Cmd {
	gen := v.gen
	id := v.id
	client := v.client
	snapshots := v.snapshots

	return func() tea.Msg {
		now := time.Now().UTC()
		conv, err := client.GetConversation(context.Background(), id, true)
		if err != nil {
			if snapshots != nil && errors.Is(err, api.ErrNotFound) {
				// The cache must not resurrect a deleted conversation.
				_ = snapshots.DeleteConversation(context.Background(), id)
			}
			return threadLoadedMsg{gen: gen, id: id, now: now, err: err}
		}
		if snapshots != nil {
			_ = snapshots.SaveConversation(context.Background(), conv)
		}
		return threadLoadedMsg{gen: gen, id: id, now: now, conv: conv}
	}
}

func (v *threadView) tickCmd() tea.Cmd {
	gen := v.gen
	return tea.Tick(v.pollInterval, func(time.Time) tea.Msg {
		return threadTickMsg{gen: gen}
	})
}

// CapturingInput reports whether keystrokes belong to the reply input.
func (v *threadView) CapturingInput() bool {
	return v.replyActive
}

func (v *threadView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.replyActive {
		return v.handleReplyKey(msg)
	}

	switch msg.String() {
	case "esc", "backspace":
		return popViewCmd()
	case "j", "down":
		v.scroll = maxInt(0, v.scroll-1)
		return nil
	case "k", "up":
		v.scroll++
		return nil
	case "G", "end":
		v.scroll = 0
		return nil
	case "r":
		if v.conv == nil || v.notFound {
			return nil
		}
		if v.conv.Resolved() {
			v.replyErr = "conversation is resolved"
			return nil
		}
		v.replyActive = true
		v.replyErr = ""
		return nil
	case "x":
		if v.conv == nil || v.notFound || v.conv.Resolved() {
			return nil
		}
		return v.resolveCmd()
	case "a":
		if v.conv == nil || v.notFound || v.userID == "" {
			return nil
		}
		return v.assignCmd()
	}
	return nil
}

func (v *threadView) handleReplyKey(msg tea.KeyMsg) tea.Cmd {
	if v.replySending {
		return nil
	}
	switch msg.Type {
	case tea.KeyEsc:
		v.replyActive = false
		v.replyErr = ""
		return nil
	case tea.KeyEnter:
		return v.sendReplyCmd()
	case tea.KeyBackspace, tea.KeyDelete:
		runes := []rune(v.replyInput)
		if len(runes) > 0 {
			v.replyInput = string(runes[:len(runes)-1])
		}
		return nil
	case tea.KeySpace:
		v.replyInput += " "
		return nil
	case tea.KeyRunes:
		v.replyInput += string(msg.Runes)
		return nil
	}
	return nil
}

func (v *threadView) sendReplyCmd() tea.Cmd {
	content := strings.TrimSpace(v.replyInput)
	if content == "" {
		v.replyErr = "reply is empty"
		return nil
	}
	if v.conv == nil || v.conv.Contact == nil {
		v.replyErr = "no contact on conversation"
		return nil
	}
	channel := v.conv.Contact.PreferredChannel()
	if channel == "" {
		v.replyErr = "contact has no email or phone"
		return nil
	}

	v.replySending = true
	v.replyErr = ""
	id := v.id
	client := v.client
	return func() tea.Msg {
		result, err := client.Reply(context.Background(), id, content, channel)
		return replyResultMsg{id: id, result: result, err: err}
	}
}

// applyReplyResult keeps the typed reply when sending fails so nothing
// is lost to a flaky network.
func (v *threadView) applyReplyResult(msg replyResultMsg) tea.Cmd {
	if msg.id != v.id {
		return nil
	}
	v.replySending = false
	if msg.err != nil {
		v.replyErr = msg.err.Error()
		return nil
	}
	v.replyActive = false
	v.replyInput = ""
	v.replyErr = ""
	v.scroll = 0
	return v.loadCmd()
}

func (v *threadView) resolveCmd() tea.Cmd {
	id := v.id
	client := v.client
	return func() tea.Msg {
		conv, err := client.ResolveConversation(context.Background(), id)
		return conversationUpdatedMsg{id: id, conv: conv, err: err}
	}
}

func (v *threadView) assignCmd() tea.Cmd {
	id := v.id
	userID := v.userID
	client := v.client
	return func() tea.Msg {
		conv, err := client.AssignConversation(context.Background(), id, userID)
		return conversationUpdatedMsg{id: id, conv: conv, err: err}
	}
}

func (v *threadView) applyUpdated(msg conversationUpdatedMsg) tea.Cmd {
	if msg.id != v.id {
		return nil
	}
	if msg.err != nil {
		v.lastErr = msg.err
		return nil
	}
	// Update responses may omit the message list; merge the workflow
	// fields and refresh the thread in the background.
	if v.conv != nil && len(msg.conv.Messages) == 0 {
		v.conv.Status = msg.conv.Status
		v.conv.AssignedTo = msg.conv.AssignedTo
		v.conv.AwaitingReply = msg.conv.AwaitingReply
	} else {
		v.conv = msg.conv
	}
	v.lastErr = nil
	return v.loadCmd()
}

func (v *threadView) View(width, height int, theme Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if v.now.IsZero() {
		v.now = time.Now().UTC()
	}

	palette := themePalette(theme)
	base := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Foreground)).Background(lipgloss.Color(palette.Base.Background))

	if v.notFound {
		gone := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Status.Resolved)).
			Render("This conversation no longer exists.\nPress Esc to go back.")
		return base.Render(gone)
	}
	if v.conv == nil {
		status := "loading..."
		if v.lastErr != nil {
			status = "load error: " + v.lastErr.Error()
		}
		return base.Render(lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Muted)).Render(truncateVis(status, width)))
	}

	header := v.renderThreadHeader(width, palette)
	footer := v.renderThreadFooter(width, palette)
	bodyHeight := maxInt(1, height-lipgloss.Height(header)-lipgloss.Height(footer))

	lines := v.renderMessages(width, palette)
	v.scroll = clampInt(v.scroll, 0, maxInt(0, len(lines)-bodyHeight))
	end := len(lines) - v.scroll
	start := maxInt(0, end-bodyHeight)
	body := strings.Join(lines[start:end], "\n")

	return base.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
}

func (v *threadView) renderThreadHeader(width int, palette styles.Theme) string {
	conv := v.conv
	subject := strings.TrimSpace(conv.Subject)
	if subject == "" {
		subject = "(no subject)"
	}
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(palette.Chrome.Breadcrumb)).
		Render(truncateVis(conv.ContactName()+": "+subject, width))

	parts := []string{conv.Status, fmt.Sprintf("%d messages", len(conv.Messages))}
	if conv.AssignedTo != nil {
		parts = append(parts, "assigned @"+conv.AssignedTo.Name)
	}
	if inbox.AutomationPaused(conv.Messages) {
		parts = append(parts, "automation paused")
	}
	if v.cached {
		parts = append(parts, "cached")
	}
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Muted)).
		Render(truncateVis(strings.Join(parts, "  "), width))
	return lipgloss.JoinVertical(lipgloss.Left, title, meta)
}

func (v *threadView) renderThreadFooter(width int, palette styles.Theme) string {
	if v.replyActive {
		prompt := "reply> " + v.replyInput + "▌"
		if v.replySending {
			prompt = "sending..."
		}
		line := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Accent)).Render(truncateVis(prompt, width))
		if v.replyErr != "" {
			errLine := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Status.Awaiting)).Render(truncateVis(v.replyErr, width))
			return lipgloss.JoinVertical(lipgloss.Left, errLine, line)
		}
		return line
	}

	hint := "r reply  x resolve  a assign to me  j/k scroll  Esc back"
	line := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Muted)).Render(truncateVis(hint, width))
	switch {
	case v.lastErr != nil:
		errLine := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Status.Awaiting)).
			Render(truncateVis("sync error: "+v.lastErr.Error()+" (showing last known data)", width))
		return lipgloss.JoinVertical(lipgloss.Left, errLine, line)
	case v.replyErr != "":
		errLine := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Status.Awaiting)).Render(truncateVis(v.replyErr, width))
		return lipgloss.JoinVertical(lipgloss.Left, errLine, line)
	}
	return line
}

func (v *threadView) renderMessages(width int, palette styles.Theme) []string {
	groups := inbox.GroupMessagesByDay(v.conv.Messages)
	lines := make([]string, 0, len(v.conv.Messages)*3)
	for _, group := range groups {
		lines = append(lines, "── "+inbox.DayLabel(group.Day, v.now)+" ──")
		for _, msg := range group.Messages {
			lines = append(lines, v.renderMessage(msg, width, palette)...)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "no messages yet")
	}
	return lines
}

func (v *threadView) renderMessage(msg inbox.Message, width int, palette styles.Theme) []string {
	head := fmt.Sprintf("%s %s %s", msg.CreatedAt.Local().Format("15:04"), directionMark(msg), msg.Channel)
	headStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(messageColor(msg, palette)))
	body := wordwrap.String(msg.Content, maxInt(16, width-4))

	out := []string{headStyle.Render(head)}
	for _, line := range strings.Split(body, "\n") {
		out = append(out, "  "+line)
	}
	out = append(out, "")
	return out
}

func directionMark(msg inbox.Message) string {
	if msg.Direction == inbox.DirectionInbound {
		return "<"
	}
	if msg.Automated {
		return ">a"
	}
	return ">"
}

func messageColor(msg inbox.Message, palette styles.Theme) string {
	switch {
	case msg.Automated:
		return palette.Message.Automated
	case msg.Direction == inbox.DirectionInbound:
		return palette.Message.Inbound
	default:
		return palette.Message.Outbound
	}
}
