package inboxtui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/inbox"
)

type statsTickMsg struct {
	gen int
}

type statsLoadedMsg struct {
	now   time.Time
	stats *inbox.Stats
	err   error
}

type statsView struct {
	client       *api.Client
	pollInterval time.Duration

	// gen invalidates ticks left over from a previous showing.
	gen int

	now     time.Time
	lastErr error
	stats   *inbox.Stats
}

func newStatsView(client *api.Client, pollInterval time.Duration) *statsView {
	return &statsView{client: client, pollInterval: pollInterval}
}

func (v *statsView) Init() tea.Cmd {
	v.gen++
	return tea.Batch(v.loadCmd(), v.tickCmd())
}

func (v *statsView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case statsTickMsg:
		if typed.gen != v.gen {
			return nil
		}
		return tea.Batch(v.loadCmd(), v.tickCmd())
	case statsLoadedMsg:
		v.now = typed.now
		v.lastErr = typed.err
		if typed.err != nil {
			return nil
		}
		v.stats = typed.stats
		return nil
	case tea.KeyMsg:
		if typed.String() == "esc" || typed.String() == "backspace" {
			return popViewCmd()
		}
	}
	return nil
}

func (v *statsView) loadCmd() tea.Cmd {
	client := v.client
	return func() tea.Msg {
		now := time.Now().UTC()
		stats, err := client.Stats(context.Background())
		return statsLoadedMsg{now: now, stats: stats, err: err}
	}
}

func (v *statsView) tickCmd() tea.Cmd {
	gen := v.gen
	return tea.Tick(v.pollInterval, func(time.Time) tea.Msg {
		return statsTickMsg{gen: gen}
	})
}

func (v *statsView) View(width, height int, theme Theme) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	palette := themePalette(theme)
	base := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Base.Foreground)).Background(lipgloss.Color(palette.Base.Background))
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(palette.Chrome.Breadcrumb)).Render("Inbox stats")

	if v.stats == nil {
		status := "loading..."
		if v.lastErr != nil {
			status = "load error: " + v.lastErr.Error()
		}
		return base.Render(lipgloss.JoinVertical(lipgloss.Left, title, truncateVis(status, width)))
	}

	rows := []string{
		fmt.Sprintf("%-22s %d", "Total conversations", v.stats.TotalConversations),
		fmt.Sprintf("%-22s %d", "Active", v.stats.ActiveConversations),
		fmt.Sprintf("%-22s %d", "Awaiting reply", v.stats.AwaitingReply),
		fmt.Sprintf("%-22s %d", "Unassigned", v.stats.Unassigned),
		fmt.Sprintf("%-22s %d", "Messages today", v.stats.MessagesToday),
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"))
	if v.lastErr != nil {
		errLine := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Status.Awaiting)).
			Render(truncateVis("sync error: "+v.lastErr.Error()+" (showing last known data)", width))
		content = lipgloss.JoinVertical(lipgloss.Left, content, errLine)
	}
	return base.Render(content)
}
