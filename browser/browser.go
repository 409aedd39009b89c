// Package browser is a terminal client of the explorer's gRPC service.
//
// It starts in an initial state and follows enabled actions one at a time,
// showing the properties of every state it visits and the discoveries of the
// checker running behind the explorer.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"twopc/checker"
	"twopc/server"
)

// The calls the browser makes. Implemented by *server.Client.
type Explorer interface {
	Init(ctx context.Context) ([]server.StateView, error)
	Successors(ctx context.Context, fp uint64) (server.StateView, error)
	Status(ctx context.Context) (checker.Status, error)
}

const refreshInterval = time.Second

type viewMsg struct{ view server.StateView }

// A state reached by following an action. Pushed onto the history.
type stepMsg struct{ view server.StateView }

type statusMsg struct{ status checker.Status }

type refreshMsg struct{}

type errMsg struct{ err error }

type Model struct {
	ctx    context.Context
	client Explorer

	view    server.StateView
	history []server.StateView
	cursor  int
	status  checker.Status
	loaded  bool
	err     error
}

func New(ctx context.Context, client Explorer) Model {
	return Model{ctx: ctx, client: client}
}

// Run the browser until the user quits.
func Run(ctx context.Context, client Explorer) error {
	p := tea.NewProgram(New(ctx, client))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadInit, m.fetchStatus)
}

func (m Model) loadInit() tea.Msg {
	states, err := m.client.Init(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	if len(states) == 0 {
		return errMsg{checker.ErrNoInitialStates}
	}
	return m.load(states[0].Fingerprint, false)
}

func (m Model) load(fp uint64, step bool) tea.Msg {
	view, err := m.client.Successors(m.ctx, fp)
	if err != nil {
		return errMsg{err}
	}
	if step {
		return stepMsg{view}
	}
	return viewMsg{view}
}

func (m Model) fetchStatus() tea.Msg {
	status, err := m.client.Status(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	return statusMsg{status}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.key(msg)
	case viewMsg:
		m.view, m.cursor, m.loaded, m.err = msg.view, 0, true, nil
	case stepMsg:
		m.history = append(m.history, m.view)
		m.view, m.cursor, m.err = msg.view, 0, nil
	case statusMsg:
		m.status = msg.status
		if m.status.Running {
			return m, tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
		}
	case refreshMsg:
		return m, m.fetchStatus
	case errMsg:
		m.err = msg.err
	}
	return m, nil
}

func (m Model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.view.Actions)-1 {
			m.cursor++
		}
	case "enter", "right", "l":
		if m.cursor >= len(m.view.Actions) {
			return m, nil
		}
		a := m.view.Actions[m.cursor]
		if !a.Applicable {
			m.err = fmt.Errorf("%v is not applicable", a.Action)
			return m, nil
		}
		fp, err := strconv.ParseUint(a.Fingerprint, 10, 64)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, func() tea.Msg { return m.load(fp, true) }
	case "backspace", "left", "h":
		if n := len(m.history); n > 0 {
			m.view, m.history, m.cursor = m.history[n-1], m.history[:n-1], 0
		}
	case "i":
		m.history = nil
		return m, m.loadInit
	case "r":
		return m, m.fetchStatus
	case "d":
		// Jump to the first discovery of the checker.
		if len(m.status.Discoveries) == 0 {
			return m, nil
		}
		m.history = nil
		fp := m.status.Discoveries[0].Fingerprint
		return m, func() tea.Msg { return m.load(fp, false) }
	}
	return m, nil
}

func (m Model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "twopc browser")
	fmt.Fprintln(b)
	m.viewStatus(b)
	fmt.Fprintln(b)
	if !m.loaded {
		fmt.Fprintln(b, "Loading...")
	} else {
		m.viewState(b)
	}
	if m.err != nil {
		fmt.Fprintf(b, "\nError: %v\n", m.err)
	}
	fmt.Fprintln(b, "\nup/down select, enter follow, backspace back, i initial state, d discovery, r refresh, q quit")
	return b.String()
}

func (m Model) viewStatus(b *strings.Builder) {
	state := "Checked"
	if m.status.Running {
		state = "Checking"
	}
	fmt.Fprintf(b, "%v: %v unique states, depth %v\n", state, m.status.UniqueStates, m.status.MaxDepth)
	for _, d := range m.status.Discoveries {
		kind := "example"
		if d.Failure {
			kind = "counterexample"
		}
		fmt.Fprintf(b, "  %v %v: %v at depth %v\n", d.Expectation, d.Property, kind, len(d.Path))
	}
}

func (m Model) viewState(b *strings.Builder) {
	path := "init"
	if len(m.view.Path) > 0 {
		path += " -> " + strings.Join(m.view.Path, " -> ")
	}
	fmt.Fprintf(b, "Path: %v\n", path)
	fmt.Fprintf(b, "State: %v\n", m.view.State)
	for _, p := range m.view.Properties {
		mark := ""
		if p.Discovery {
			mark = "  <- discovery"
		}
		fmt.Fprintf(b, "  %v %v%v\n", p.Expectation, p.Name, mark)
	}
	fmt.Fprintln(b)
	fmt.Fprintln(b, "Actions:")
	for i, a := range m.view.Actions {
		marker := " "
		if i == m.cursor {
			marker = ">"
		}
		if a.Applicable {
			fmt.Fprintf(b, " %s %v -> %v\n", marker, a.Action, a.State)
		} else {
			fmt.Fprintf(b, " %s %v (inapplicable)\n", marker, a.Action)
		}
	}
}
