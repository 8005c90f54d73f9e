package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

var (
	crdsURN = stack.NewURN("dev", "kubernetes:yaml:ConfigGroup", "crds")
	lbcURN  = stack.NewURN("dev", "awslbc:index:Deployment", "lbc")
	appURN  = stack.NewURN("dev", "kubernetes:yaml:ConfigFile", "app")
)

func event(typ stack.EventType, urn stack.URN, at time.Time, err error) ResourceMsg {
	return ResourceMsg{Event: stack.Event{Type: typ, URN: urn, Timestamp: at, Err: err}}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{3600 * time.Second, "1h0m"},
		{3661 * time.Second, "1h1m"},
	}
	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestCalculateProgress(t *testing.T) {
	m := NewModel("dev", "apply", []stack.URN{crdsURN, lbcURN, appURN})
	if p := calculateProgress(m); p != 0 {
		t.Errorf("expected 0, got %v", p)
	}

	m.Rows[0].Status = StatusDone
	m.Rows[1].Status = StatusFailed
	if p := calculateProgress(m); p < 0.66 || p > 0.67 {
		t.Errorf("expected ~0.67, got %v", p)
	}

	m.Done = true
	if p := calculateProgress(m); p != 1.0 {
		t.Errorf("expected 1.0, got %v", p)
	}

	if p := calculateProgress(Model{}); p != 0 {
		t.Errorf("expected 0 for an empty stack, got %v", p)
	}
}

func TestModelUpdateResource(t *testing.T) {
	m := NewModel("dev", "apply", []stack.URN{crdsURN, lbcURN, appURN})
	start := time.Now()

	updated, _ := m.Update(event(stack.EventResourceApplying, crdsURN, start, nil))
	m = updated.(Model)
	if m.Rows[0].Status != StatusActive {
		t.Errorf("expected crds to be active, got %v", m.Rows[0].Status)
	}

	updated, _ = m.Update(event(stack.EventResourceApplied, crdsURN, start.Add(2*time.Second), nil))
	m = updated.(Model)
	if m.Rows[0].Status != StatusDone {
		t.Errorf("expected crds to be done, got %v", m.Rows[0].Status)
	}
	if m.Rows[0].Elapsed != 2*time.Second {
		t.Errorf("expected 2s elapsed, got %v", m.Rows[0].Elapsed)
	}

	boom := errors.New("admission denied")
	updated, _ = m.Update(event(stack.EventResourceFailed, lbcURN, start, boom))
	m = updated.(Model)
	updated, _ = m.Update(event(stack.EventResourceSkipped, appURN, start, nil))
	m = updated.(Model)

	if m.Rows[1].Status != StatusFailed || !errors.Is(m.Rows[1].Err, boom) {
		t.Errorf("expected lbc to fail with %v, got %v %v", boom, m.Rows[1].Status, m.Rows[1].Err)
	}
	if m.Rows[2].Status != StatusSkipped {
		t.Errorf("expected app to be skipped, got %v", m.Rows[2].Status)
	}
	if m.Finished() != 3 {
		t.Errorf("expected 3 finished resources, got %d", m.Finished())
	}
}

func TestModelUpdate_UndeclaredResource(t *testing.T) {
	m := NewModel("dev", "destroy", nil)
	orphan := stack.NewURN("dev", "kubernetes:yaml:ConfigFile", "old")

	updated, _ := m.Update(event(stack.EventResourceDeleting, orphan, time.Now(), nil))
	m = updated.(Model)

	if len(m.Rows) != 1 || m.Rows[0].URN != orphan {
		t.Fatalf("expected a row for %s, got %+v", orphan, m.Rows)
	}
}

func TestModelUpdate_Quit(t *testing.T) {
	m := NewModel("dev", "apply", nil)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if !errors.Is(updated.(Model).Err, ErrInterrupted) {
		t.Errorf("expected ErrInterrupted, got %v", updated.(Model).Err)
	}

	updated, cmd = m.Update(DoneMsg{})
	if cmd == nil || !updated.(Model).Done {
		t.Error("expected DoneMsg to finish the model")
	}
}

func TestRenderView(t *testing.T) {
	m := NewModel("dev", "apply", []stack.URN{crdsURN, lbcURN})
	m.Rows[0].Status = StatusDone
	m.Rows[1].Status = StatusFailed
	m.Rows[1].Err = errors.New("admission denied")

	view := m.View()
	for _, want := range []string{"awslbc apply: stack dev", "1/2", "crds", "awslbc:index:Deployment", "admission denied", "q: quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

// fakeProgram feeds messages to the model synchronously.
type fakeProgram struct {
	model tea.Model
	msgs  chan tea.Msg
}

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs <- msg }

func (f *fakeProgram) Run() (tea.Model, error) {
	for msg := range f.msgs {
		var cmd tea.Cmd
		f.model, cmd = f.model.Update(msg)
		if cmd == nil {
			continue
		}
		if _, ok := cmd().(tea.QuitMsg); ok {
			return f.model, nil
		}
	}
	return f.model, nil
}

func useFakeProgram(t *testing.T, queued ...tea.Msg) **fakeProgram {
	t.Helper()
	orig := newProgram
	t.Cleanup(func() { newProgram = orig })

	var created *fakeProgram
	newProgram = func(m tea.Model) program {
		created = &fakeProgram{model: m, msgs: make(chan tea.Msg, 64)}
		for _, msg := range queued {
			created.msgs <- msg
		}
		return created
	}
	return &created
}

func TestRun(t *testing.T) {
	created := useFakeProgram(t)

	err := Run(context.Background(), NewModel("dev", "apply", []stack.URN{lbcURN}),
		func(ctx context.Context, observer stack.Observer) error {
			observer.Event(ctx, stack.Event{Type: stack.EventResourceApplying, URN: lbcURN, Timestamp: time.Now()})
			observer.Event(ctx, stack.Event{Type: stack.EventResourceApplied, URN: lbcURN, Timestamp: time.Now()})
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := (*created).model.(Model)
	if !final.Done || final.Rows[0].Status != StatusDone {
		t.Errorf("expected a completed model, got %+v", final)
	}
}

func TestRun_OperationError(t *testing.T) {
	useFakeProgram(t)
	boom := errors.New("boom")

	err := Run(context.Background(), NewModel("dev", "apply", nil),
		func(context.Context, stack.Observer) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}

func TestRun_Interrupted(t *testing.T) {
	useFakeProgram(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	err := Run(context.Background(), NewModel("dev", "destroy", nil),
		func(ctx context.Context, _ stack.Observer) error {
			<-ctx.Done()
			return ctx.Err()
		})
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("expected ErrInterrupted, got %v", err)
	}
}
