// Package inboxtui implements the opsdesk terminal UI on bubbletea.
package inboxtui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opsdeskhq/opsdesk/internal/api"
	"github.com/opsdeskhq/opsdesk/internal/config"
	"github.com/opsdeskhq/opsdesk/internal/logging"
	"github.com/opsdeskhq/opsdesk/internal/session"
	"github.com/opsdeskhq/opsdesk/internal/snapshot"
)

const defaultPollInterval = 10 * time.Second

type Theme string

const (
	ThemeDefault      Theme = "default"
	ThemeHighContrast Theme = "high-contrast"
)

type ViewID string

const (
	ViewConversations ViewID = "conversations"
	ViewThread        ViewID = "thread"
	ViewStats         ViewID = "stats"
)

var viewSwitchKeys = map[string]ViewID{
	"S": ViewStats,
}

// Config carries the TUI launch options. Zero values fall back to the
// loaded opsdesk config.
type Config struct {
	ConfigPath   string
	Theme        string
	PollInterval time.Duration
}

type Model struct {
	cfg       *config.Config
	client    *api.Client
	snapshots *snapshot.Store
	userID    string
	userName  string

	theme        Theme
	pollInterval time.Duration

	width    int
	height   int
	showHelp bool

	toast      string
	toastUntil time.Time

	viewStack []ViewID
	views     map[ViewID]viewModel

	compose composeState
}

type viewModel interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int, theme Theme) string
}

type pushViewMsg struct {
	id ViewID
}

type popViewMsg struct{}

type openConversationMsg struct {
	id string
}

func pushViewCmd(id ViewID) tea.Cmd {
	return func() tea.Msg {
		return pushViewMsg{id: id}
	}
}

func popViewCmd() tea.Cmd {
	return func() tea.Msg {
		return popViewMsg{}
	}
}

func openConversationCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return openConversationMsg{id: id}
	}
}

func NewModel(opts Config) (*Model, error) {
	loader := config.NewLoader()
	if strings.TrimSpace(opts.ConfigPath) != "" {
		loader.SetConfigFile(opts.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})

	sessions := session.NewStore(cfg.SessionPath())
	sess, err := sessions.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.IsEmpty() {
		return nil, fmt.Errorf("not logged in; run 'opsdesk login' first")
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	client.SetToken(sess.Token)
	client.SetUnauthorizedHook(func() {
		_ = sessions.Clear()
	})

	var snapshots *snapshot.Store
	if err := cfg.EnsureDirectories(); err == nil {
		if store, err := snapshot.Open(cfg.SnapshotPath(), cfg.Snapshot.BusyTimeoutMs); err == nil {
			snapshots = store
		} else {
			logging.Warn().Err(err).Msg("snapshot cache unavailable")
		}
	}

	theme := Theme(strings.TrimSpace(opts.Theme))
	if theme == "" {
		theme = Theme(cfg.TUI.Theme)
	}
	switch theme {
	case ThemeDefault, ThemeHighContrast:
	case "":
		theme = ThemeDefault
	default:
		return nil, fmt.Errorf("invalid theme %q", theme)
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = cfg.Sync.PollInterval
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	m := &Model{
		cfg:          cfg,
		client:       client,
		snapshots:    snapshots,
		userID:       sess.UserID,
		userName:     sess.UserName,
		theme:        theme,
		pollInterval: pollInterval,
		viewStack:    []ViewID{ViewConversations},
		views:        make(map[ViewID]viewModel),
	}
	m.initViews()
	return m, nil
}

func Run(opts Config) error {
	model, err := NewModel(opts)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func (m *Model) Close() error {
	if m == nil || m.snapshots == nil {
		return nil
	}
	return m.snapshots.Close()
}

func (m *Model) Init() tea.Cmd {
	if view := m.activeView(); view != nil {
		return view.Init()
	}
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case openConversationMsg:
		if view := m.views[ViewThread]; view != nil {
			if setter, ok := view.(interface {
				SetConversation(string) tea.Cmd
			}); ok {
				m.pushView(ViewThread)
				return m, setter.SetConversation(typed.id)
			}
		}
		return m, nil
	case pushViewMsg:
		m.pushView(typed.id)
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case popViewMsg:
		if stopper, ok := m.activeView().(interface{ Stop() }); ok {
			stopper.Stop()
		}
		m.popView()
		if view := m.activeView(); view != nil {
			return m, view.Init()
		}
		return m, nil
	case contactSearchDebounceMsg, contactsLoadedMsg, composeSendResultMsg:
		return m, m.updateCompose(msg)
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.compose.active {
			return m, m.handleComposeKey(typed)
		}
		// Views with an open text input get keys untouched, otherwise
		// typing a name would trip the global shortcuts.
		capturing := false
		if capt, ok := m.activeView().(interface{ CapturingInput() bool }); ok {
			capturing = capt.CapturingInput()
		}
		if !capturing {
			if cmd, handled := m.handleGlobalKey(typed); handled {
				return m, cmd
			}
		}
	}

	if active := m.activeView(); active != nil {
		return m, active.Update(msg)
	}
	return m, nil
}

func (m *Model) View() string {
	active := m.activeView()
	if active == nil {
		return "no active view"
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}

	body := active.View(m.width, contentHeight, m.theme)
	if m.compose.active {
		body = m.renderComposeOverlay(m.width, contentHeight)
	}
	if toast := m.renderToast(m.width); toast != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, toast, body)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit, true
	case "?":
		m.showHelp = !m.showHelp
		return nil, true
	case "c":
		m.openCompose()
		return nil, true
	}

	if next, ok := viewSwitchKeys[msg.String()]; ok {
		m.pushView(next)
		if view := m.activeView(); view != nil {
			return view.Init(), true
		}
		return nil, true
	}
	return nil, false
}

func (m *Model) activeView() viewModel {
	return m.views[m.activeViewID()]
}

func (m *Model) activeViewID() ViewID {
	if len(m.viewStack) == 0 {
		return ViewConversations
	}
	return m.viewStack[len(m.viewStack)-1]
}

func (m *Model) pushView(id ViewID) {
	if id == "" {
		return
	}
	if _, ok := m.views[id]; !ok {
		return
	}
	if m.activeViewID() == id {
		return
	}
	m.viewStack = append(m.viewStack, id)
}

func (m *Model) popView() {
	if len(m.viewStack) <= 1 {
		return
	}
	m.viewStack = m.viewStack[:len(m.viewStack)-1]
}

func (m *Model) initViews() {
	m.views[ViewConversations] = newListView(m.client, m.snapshots, m.pollInterval, m.cfg.Sync.PageSize, m.cfg.Sync.SearchDebounce)
	m.views[ViewThread] = newThreadView(m.client, m.snapshots, m.pollInterval, m.userID)
	m.views[ViewStats] = newStatsView(m.client, m.pollInterval)
}

func (m *Model) setToast(text string) {
	m.toast = strings.TrimSpace(text)
	m.toastUntil = time.Now().UTC().Add(2 * time.Second)
}

func (m *Model) renderToast(width int) string {
	if strings.TrimSpace(m.toast) == "" || (!m.toastUntil.IsZero() && time.Now().UTC().After(m.toastUntil)) {
		return ""
	}
	palette := themePalette(m.theme)
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(palette.Status.Awaiting)).
		Background(lipgloss.Color(palette.Base.Background)).
		Padding(0, 1).
		Render(truncateVis(m.toast, width))
}
