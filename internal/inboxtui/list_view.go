package inboxtui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
	"github.com/opsdeskhq/opsdesk/internal/inboxtui/styles"
	"github.com/opsdeskhq/opsdesk/internal/snapshot"
)

// filterCycle is the order the f key walks through.
var filterCycle = []string{inbox.FilterAll, inbox.FilterUnanswered, inbox.FilterMine, inbox.FilterUnassigned}

var statusCycle = []string{"", inbox.StatusActive, inbox.StatusResolved}

type listTickMsg struct {
	gen int
}

type listSearchDebounceMsg struct {
	rev int
}

type listLoadedMsg struct {
	rev  int
	now  time.Time
	page *api.ConversationPage
	err  error
}

type listView struct {
	client       *api.Client
	snapshots    *snapshot.Store
	pollInterval time.Duration
	pageSize     int
	debounce     time.Duration

	now     time.Time
	lastErr error

	filter string
	status string

	searchActive bool
	search       string
	rev          int
	searching    bool

	// gen invalidates the poll loop when the view is re-shown, so a tick
	// left over from before it was covered cannot start a second loop.
	gen int

	total         int
	conversations []inbox.Conversation
	cached        bool
	cachedAt      time.Time

	selected     int
	top          int
	viewportRows int

	seeded bool
}

func newListView(client *api.Client, snapshots *snapshot.Store, pollInterval time.Duration, pageSize int, debounce time.Duration) *listView {
	if pageSize <= 0 {
		pageSize = 50
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &listView{
		client:       client,
		snapshots:    snapshots,
		pollInterval: pollInterval,
		pageSize:     pageSize,
		debounce:     debounce,
		filter:       inbox.FilterAll,
	}
}

func (v *listView) Init() tea.Cmd {
	v.seedFromSnapshot()
	v.gen++
	return tea.Batch(v.loadCmd(), v.tickCmd())
}

// seedFromSnapshot paints the last known page while the first fetch is
// in flight. It only runs once and never overrides live data.
func (v *listView) seedFromSnapshot() {
	if v.seeded {
		return
	}
	v.seeded = true
	if v.snapshots == nil || len(v.conversations) > 0 {
		return
	}
	page, err := v.snapshots.LoadListPage(context.Background(), listCacheKey(v.filter, v.status))
	if err != nil {
		if !errors.Is(err, snapshot.ErrMiss) {
			v.lastErr = err
		}
		return
	}
	v.total = page.Total
	v.conversations = page.Conversations
	v.cached = true
	v.cachedAt = page.SavedAt
}

func (v *listView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case listTickMsg:
		if typed.gen != v.gen {
			return nil
		}
		return tea.Batch(v.loadCmd(), v.tickCmd())
	case listSearchDebounceMsg:
		if typed.rev != v.rev {
			return nil
		}
		return v.loadCmd()
	case listLoadedMsg:
		v.applyLoaded(typed)
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *listView) applyLoaded(msg listLoadedMsg) {
	if msg.rev != v.rev {
		return
	}
	v.now = msg.now
	v.searching = false
	v.lastErr = msg.err
	if msg.err != nil {
		return
	}

	prevSelected := v.selectedID()
	v.total = msg.page.Total
	v.conversations = msg.page.Conversations
	v.cached = false
	v.cachedAt = time.Time{}

	if prevSelected != "" {
		for i := range v.conversations {
			if v.conversations[i].ID == prevSelected {
				v.selected = i
				break
			}
		}
	}
	v.selected = clampInt(v.selected, 0, maxInt(0, len(v.conversations)-1))
	v.ensureVisible()
}

func (v *listView) loadCmd() tea.Cmd {
	rev := v.rev
	filter := v.filter
	status := v.status
	search := strings.TrimSpace(v.search)
	limit := v.pageSize
	client := v.client
	snapshots := v.snapshots

	return func() tea.Msg {
		now := time.Now().UTC()
		page, err := client.ListConversations(context.Background(), api.ListOptions{
			Search: search,
			Filter: filter,
			Status: status,
			Limit:  limit,
			Poll:   true,
		})
		if err != nil {
			return listLoadedMsg{rev: rev, now: now, err: err}
		}
		if snapshots != nil && search == "" {
			_ = snapshots.SaveListPage(context.Background(), listCacheKey(filter, status), page.Total, page.Conversations)
		}
		return listLoadedMsg{rev: rev, now: now, page: page}
	}
}

func (v *listView) tickCmd() tea.Cmd {
	gen := v.gen
	return tea.Tick(v.pollInterval, func(time.Time) tea.Msg {
		return listTickMsg{gen: gen}
	})
}

func (v *listView) debounceCmd() tea.Cmd {
	rev := v.rev
	return tea.Tick(v.debounce, func(time.Time) tea.Msg {
		return listSearchDebounceMsg{rev: rev}
	})
}

// bumpQuery invalidates in-flight loads after a query change and
// schedules a fresh one behind the debounce window.
func (v *listView) bumpQuery() tea.Cmd {
	v.rev++
	v.searching = true
	return v.debounceCmd()
}

// reload invalidates in-flight loads and fetches immediately. Used for
// filter changes, which should not wait out a debounce.
func (v *listView) reload() tea.Cmd {
	v.rev++
	v.searching = true
	return v.loadCmd()
}

// CapturingInput reports whether keystrokes belong to the search box.
func (v *listView) CapturingInput() bool {
	return v.searchActive
}

func (v *listView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.searchActive {
		return v.handleSearchKey(msg)
	}

	switch msg.String() {
	case "j", "down":
		v.moveSelection(1)
		return nil
	case "k", "up":
		v.moveSelection(-1)
		return nil
	case "ctrl+d":
		v.moveSelection(maxInt(1, v.viewportRows/2))
		return nil
	case "ctrl+u":
		v.moveSelection(-maxInt(1, v.viewportRows/2))
		return nil
	case "g":
		v.selected = 0
		v.top = 0
		return nil
	case "G", "end":
		v.selected = maxInt(0, len(v.conversations)-1)
		v.ensureVisible()
		return nil
	case "f":
		v.filter = nextInCycle(filterCycle, v.filter)
		v.selected = 0
		v.top = 0
		return v.reload()
	case "s":
		v.status = nextInCycle(statusCycle, v.status)
		v.selected = 0
		v.top = 0
		return v.reload()
	case "/":
		v.searchActive = true
		return nil
	case "r":
		return v.reload()
	case "enter":
		if id := v.selectedID(); id != "" {
			return openConversationCmd(id)
		}
		return nil
	}
	return nil
}

func (v *listView) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		v.searchActive = false
		if v.search != "" {
			v.search = ""
			return v.reload()
		}
		return nil
	case tea.KeyEnter:
		v.searchActive = false
		return nil
	case tea.KeyBackspace, tea.KeyDelete:
		if v.search == "" {
			return nil
		}
		runes := []rune(v.search)
		v.search = string(runes[:len(runes)-1])
		return v.bumpQuery()
	case tea.KeyRunes:
		v.search += string(msg.Runes)
		return v.bumpQuery()
	case tea.KeySpace:
		v.search += " "
		return v.bumpQuery()
	}
	return nil
}

func (v *listView) moveSelection(delta int) {
	if len(v.conversations) == 0 {
		v.selected = 0
		v.top = 0
		return
	}
	v.selected = clampInt(v.selected+delta, 0, len(v.conversations)-1)
	v.ensureVisible()
}

func (v *listView) ensureVisible() {
	if v.selected < v.top {
		v.top = v.selected
	}
	visible := maxInt(1, v.viewportRows)
	if v.selected >= v.top+visible {
		v.top = v.selected - visible + 1
	}
	v.top = clampInt(v.top, 0, maxInt(0, len(v.conversations)-1))
}

func (v *listView) selectedID() string {
	if v.selected < 0 || v.selected >= len(v.conversations) {
		return ""
	}
	return v.conversations[v.selected].ID
}

func (v *listView) View(width, height int, theme Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if v.now.IsZero() {
		v.now = time.Now().UTC()
	}

	palette := themePalette(theme)
	header := v.renderListHeader(width, palette.Chrome.Breadcrumb, palette.Base.Muted)

	footerLines := 0
	var errLine string
	if v.lastErr != nil {
		errLine = lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Status.Awaiting)).
			Render(truncateVis("sync error: "+v.lastErr.Error()+" (showing last known data)", width))
		footerLines++
	}

	bodyHeight := maxInt(1, height-lipgloss.Height(header)-footerLines)
	v.viewportRows = bodyHeight
	v.ensureVisible()

	lines := make([]string, 0, bodyHeight)
	endRow := minInt(len(v.conversations), v.top+bodyHeight)
	for i := v.top; i < endRow; i++ {
		lines = append(lines, v.renderRow(i, width, palette))
	}
	if len(v.conversations) == 0 {
		empty := "no conversations"
		if v.searching {
			empty = "searching..."
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Muted)).Render(empty))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"))
	if errLine != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, errLine)
	}
	base := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Foreground)).Background(lipgloss.Color(palette.Base.Background))
	return base.Render(content)
}

func (v *listView) renderListHeader(width int, titleColor, mutedColor string) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(titleColor)).Render("Conversations")

	parts := []string{fmt.Sprintf("filter:%s", v.filter)}
	if v.status != "" {
		parts = append(parts, "status:"+v.status)
	}
	if v.searchActive || v.search != "" {
		query := v.search
		if v.searchActive {
			query += "▌"
		}
		parts = append(parts, "search:"+query)
	}
	parts = append(parts, fmt.Sprintf("%d of %d", len(v.conversations), v.total))
	if v.cached {
		parts = append(parts, "cached "+relativeTime(v.cachedAt, v.now)+" ago")
	}
	meta := lipgloss.NewStyle().Foreground(lipgloss.Color(mutedColor)).Render(truncateVis(strings.Join(parts, "  "), width))
	return lipgloss.JoinVertical(lipgloss.Left, truncateVis(title, width), meta)
}

func (v *listView) renderRow(idx, width int, palette styles.Theme) string {
	conv := v.conversations[idx]
	selected := idx == v.selected

	marker := "  "
	if selected {
		marker = "> "
	}
	awaiting := " "
	if conv.AwaitingReply {
		awaiting = "●"
	}

	contact := truncatePlain(conv.ContactName(), 18)
	subject := conv.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(no subject)"
	}
	assigned := ""
	if conv.AssignedTo != nil {
		assigned = "@" + conv.AssignedTo.Name
	}

	line := fmt.Sprintf("%s%s %-18s %s  %s %s %s",
		marker, awaiting, contact, truncatePlain(subject, maxInt(8, width-52)),
		conv.Status, assigned, relativeTime(conv.UpdatedAt, v.now))

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Foreground))
	if conv.Resolved() {
		style = style.Foreground(lipgloss.Color(palette.Status.Resolved))
	} else if conv.AwaitingReply {
		style = style.Foreground(lipgloss.Color(palette.Status.Awaiting))
	}
	if selected {
		style = style.Bold(true).Foreground(lipgloss.Color(palette.Chrome.SelectedItem))
	}
	return style.Render(truncateVis(line, width))
}

func listCacheKey(filter, status string) string {
	return filter + "|" + status
}

func nextInCycle(cycle []string, current string) string {
	for i, value := range cycle {
		if value == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}
