// Package tui renders the conversation store with bubbletea and feeds key
// presses to the input machine.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tOgg1/ostruka/internal/commands"
	"github.com/tOgg1/ostruka/internal/instance"
	"github.com/tOgg1/ostruka/internal/session"
)

const DefaultTickInterval = 100 * time.Millisecond

// Config wires the screen to a session.
type Config struct {
	Store *instance.Instance
	Input *session.InputMachine
	User  string
	// Server is shown in the header.
	Server string
	Theme  string

	TickInterval time.Duration

	// Network, when set, runs alongside the program. Its result is shown in
	// the header; the program keeps running so the user can read the pages.
	Network func(ctx context.Context) error
}

type tickMsg time.Time

type networkDoneMsg struct {
	err error
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	store  *instance.Instance
	input  *session.InputMachine
	user   string
	server string
	tick   time.Duration

	keys   KeyMap
	help   help.Model
	theme  Theme
	styles styles

	width  int
	height int

	netErr  error
	netDone bool
}

// NewModel builds the chat screen model.
func NewModel(cfg Config) (*Model, error) {
	if cfg.Store == nil || cfg.Input == nil {
		return nil, errors.New("store and input machine are required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	theme := ThemeByName(cfg.Theme)
	return &Model{
		store:  cfg.Store,
		input:  cfg.Input,
		user:   cfg.User,
		server: cfg.Server,
		tick:   cfg.TickInterval,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		theme:  theme,
		styles: newStyles(theme),
	}, nil
}

func (m *Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.help.Width = typed.Width
		return m, nil
	case tickMsg:
		// Redraw picks up whatever the network loop changed since last frame.
		return m, m.tickCmd()
	case networkDoneMsg:
		m.netDone = true
		m.netErr = typed.err
		return m, nil
	case tea.KeyMsg:
		if key.Matches(typed, m.keys.Quit) {
			return m, tea.Quit
		}
		k, ok := m.keys.translate(typed)
		if !ok {
			return m, nil
		}
		if m.input.Feed(k) == commands.Exit {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

// Run starts the full-screen program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, cfg Config) error {
	model, err := NewModel(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if cfg.Network != nil {
		go func() {
			err := cfg.Network(ctx)
			program.Send(networkDoneMsg{err: err})
		}()
	}

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	return nil
}
