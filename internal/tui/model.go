// Package tui is the terminal view over a melody player: a file browser for
// melody documents and a player view highlighting the sounding note.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/icco/melodyplay/internal/melody"
	"github.com/icco/melodyplay/internal/player"
)

const (
	keyUp    = "up"
	keyDown  = "down"
	keyEnter = "enter"
	keyQuit  = "q"
	keyCtrlC = "ctrl+c"
	keyEsc   = "esc"

	tickInterval = 30 * time.Millisecond
)

// View modes
type viewMode int

const (
	fileBrowserMode viewMode = iota
	playerMode
)

// Controller is the playback surface the view drives.
type Controller interface {
	Play(ctx context.Context, m *melody.Response) error
	Stop()
	Status() player.Status
	Close() error
}

// tickMsg is used for playback animation timing
type tickMsg time.Time

// playResultMsg reports the outcome of a play request.
type playResultMsg struct{ err error }

// reloadMsg is sent when a watched melody file changed.
type reloadMsg struct{ path string }

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAFF")).
			Bold(true)

	midiStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

// Model represents the application state
type Model struct {
	mode        viewMode
	fileBrowser fileBrowserModel
	player      playerModel
	ctrl        Controller
	ctx         context.Context
	load        func(path string) (*melody.Response, error)
	reload      <-chan string
	standalone  bool // opened on a single file; leaving the player quits
	width       int
	height      int
}

// Option configures a Model.
type Option func(*Model)

// WithReload feeds watched file changes into the player view.
func WithReload(ch <-chan string) Option {
	return func(m *Model) { m.reload = ch }
}

// WithLoader replaces melody.LoadFile.
func WithLoader(load func(path string) (*melody.Response, error)) Option {
	return func(m *Model) { m.load = load }
}

// NewBrowser starts in the file browser at dir.
func NewBrowser(ctx context.Context, ctrl Controller, dir string, opts ...Option) Model {
	fb := fileBrowserModel{
		currentDir: dir,
		cursor:     0,
	}
	fb.loadFiles()

	m := Model{
		mode:        fileBrowserMode,
		fileBrowser: fb,
		player:      newPlayerModel(),
		ctrl:        ctrl,
		ctx:         ctx,
		load:        melody.LoadFile,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// NewPlayer opens the player view directly on an already loaded melody and
// starts playing it.
func NewPlayer(ctx context.Context, ctrl Controller, path string, mel *melody.Response, opts ...Option) Model {
	m := Model{
		mode:       playerMode,
		player:     newPlayerModel(),
		ctrl:       ctrl,
		ctx:        ctx,
		load:       melody.LoadFile,
		standalone: true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.player.open(path, mel)
	m.player.loading = true
	return m
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.reload != nil {
		cmds = append(cmds, waitForReload(m.reload))
	}
	if m.mode == playerMode {
		cmds = append(cmds, m.playCmd(m.player.melody), tick())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.mode != playerMode {
			return m, nil
		}
		m.player.refresh(m.ctrl.Status())
		return m, tick()

	case playResultMsg:
		m.player.loading = false
		if msg.err != nil {
			m.player.message = "Playback failed: " + msg.err.Error()
		}
		return m, nil

	case reloadMsg:
		return m.handleReload(msg)

	case tea.KeyMsg:
		if msg.String() == keyCtrlC {
			return m, m.quit()
		}

		// Route to appropriate mode handler
		switch m.mode {
		case fileBrowserMode:
			return m.updateFileBrowser(msg)
		case playerMode:
			return m.updatePlayer(msg)
		}
	}

	return m, nil
}

func (m Model) View() string {
	switch m.mode {
	case fileBrowserMode:
		return m.viewFileBrowser()
	case playerMode:
		return m.viewPlayer()
	default:
		return "Unknown mode"
	}
}

// quit tears playback down before the program exits so no timer outlives
// the view.
func (m Model) quit() tea.Cmd {
	_ = m.ctrl.Close()
	return tea.Quit
}

func (m Model) playCmd(mel *melody.Response) tea.Cmd {
	ctx := m.ctx
	ctrl := m.ctrl
	return func() tea.Msg {
		return playResultMsg{err: ctrl.Play(ctx, mel)}
	}
}

func (m Model) handleReload(msg reloadMsg) (tea.Model, tea.Cmd) {
	next := waitForReload(m.reload)
	if m.mode != playerMode || msg.path == "" {
		return m, next
	}

	mel, err := m.load(msg.path)
	if err != nil {
		m.player.message = "Reload failed: " + err.Error()
		return m, next
	}
	m.player.open(msg.path, mel)
	m.player.loading = true
	m.player.message = "Reloaded " + msg.path
	return m, tea.Batch(next, m.playCmd(mel))
}

func waitForReload(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		path, ok := <-ch
		if !ok {
			return nil
		}
		return reloadMsg{path: path}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
