package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"twopc/checker"
	"twopc/model"
	"twopc/server"
)

// Calls the explorer directly instead of over gRPC.
type local struct {
	e *server.Explorer[model.System, model.Action]
}

func (l local) Init(context.Context) ([]server.StateView, error) { return l.e.Init(), nil }

func (l local) Successors(_ context.Context, fp uint64) (server.StateView, error) {
	return l.e.Successors(fp)
}

func (l local) Status(context.Context) (checker.Status, error) { return l.e.Status(), nil }

func newTestModel(t *testing.T, crash model.CrashMode) Model {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := model.New(2, model.WithCrashMode(crash))
	c := checker.New[model.System, model.Action](m, checker.WithLogger(logger))
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	e := server.NewExplorer[model.System, model.Action](m, c, server.WithLogger(logger))
	return New(context.Background(), local{e})
}

// Run the command, feed its message back to the model and return the new model.
func step(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatalf("Expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func press(m Model, key string) (Model, tea.Cmd) {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestBrowse(t *testing.T) {
	m := newTestModel(t, model.CrashNone)
	if !strings.Contains(m.View(), "Loading...") {
		t.Errorf("Expected the browser to be loading. Got:\n%v", m.View())
	}
	m = step(t, m, m.loadInit)
	m = step(t, m, m.fetchStatus)
	if !m.loaded || len(m.view.Path) != 0 {
		t.Fatalf("Expected the initial state to be loaded. Got: %+v", m.view)
	}

	m, cmd := press(selectAction(t, m, "Start(0)"), "enter")
	m = step(t, m, cmd)
	if len(m.history) != 1 || strings.Join(m.view.Path, ",") != "Start(0)" {
		t.Errorf("Expected to follow Start(0). Got: %v", m.view.Path)
	}
	if !strings.Contains(m.View(), "Path: init -> Start(0)") {
		t.Errorf("Expected the path in the view. Got:\n%v", m.View())
	}

	m, _ = press(m, "backspace")
	if len(m.history) != 0 || len(m.view.Path) != 0 {
		t.Errorf("Expected to be back in the initial state. Got: %v", m.view.Path)
	}

	if _, cmd := press(m, "q"); cmd == nil {
		t.Errorf("Expected q to quit")
	}
}

// Move the cursor to the action.
func selectAction(t *testing.T, m Model, action string) Model {
	t.Helper()
	m.cursor = 0
	for m.view.Actions[m.cursor].Action != action {
		if m.cursor == len(m.view.Actions)-1 {
			t.Fatalf("Expected %v to be enabled. Got: %v", action, m.view.Actions)
		}
		var cmd tea.Cmd
		if m, cmd = press(m, "down"); cmd != nil {
			t.Fatalf("Expected no command when moving the cursor")
		}
	}
	return m
}

func TestInapplicableAction(t *testing.T) {
	m := newTestModel(t, model.CrashNone)
	m = step(t, m, m.loadInit)
	for _, action := range []string{"Start(0)", "RequestPrepare(0)"} {
		next, cmd := press(selectAction(t, m, action), "enter")
		m = step(t, next, cmd)
	}

	// The coordinator no longer accepts joins.
	m = selectAction(t, m, "RequestJoin(1)")
	if !strings.Contains(m.View(), "> RequestJoin(1) (inapplicable)") {
		t.Errorf("Expected RequestJoin(1) to be inapplicable. Got:\n%v", m.View())
	}
	m, cmd := press(m, "enter")
	if cmd != nil || m.err == nil {
		t.Errorf("Expected an error for an inapplicable action. Got: %v", m.err)
	}
}

func TestJumpToDiscovery(t *testing.T) {
	m := newTestModel(t, model.CrashAmnesia)
	m = step(t, m, m.loadInit)
	m = step(t, m, m.fetchStatus)
	if len(m.status.Discoveries) != 1 {
		t.Fatalf("Expected a counterexample. Got: %v", m.status.Discoveries)
	}
	if !strings.Contains(m.View(), "always ACID: counterexample") {
		t.Errorf("Expected the counterexample in the view. Got:\n%v", m.View())
	}

	m, cmd := press(m, "d")
	m = step(t, m, cmd)
	if strings.Join(m.view.Path, ",") != strings.Join(m.status.Discoveries[0].Path, ",") {
		t.Errorf("Expected the path of the counterexample. Got: %v", m.view.Path)
	}
	if !m.view.Properties[0].Discovery {
		t.Errorf("Expected the state to violate ACID")
	}
}

func TestError(t *testing.T) {
	m := newTestModel(t, model.CrashNone)
	unknown := errors.New("unknown state")
	next, _ := m.Update(errMsg{unknown})
	if view := next.View(); !strings.Contains(view, "Error: unknown state") {
		t.Errorf("Expected the error in the view. Got:\n%v", view)
	}
}
