package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// program is the part of tea.Program the runner uses.
type program interface {
	Run() (tea.Model, error)
	Send(msg tea.Msg)
}

// newProgram creates the Bubble Tea program. Replaced in tests.
var newProgram = func(m tea.Model) program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

// Observer forwards engine events to a running program.
type Observer struct {
	send func(tea.Msg)
}

// Event implements stack.Observer.
func (o Observer) Event(_ context.Context, event stack.Event) {
	o.send(ResourceMsg{Event: event})
}

// Run displays m while fn runs the operation in the background. fn receives
// an observer to install on the stack environment. Quitting the display
// cancels the context passed to fn and waits for it to return.
func Run(ctx context.Context, m Model, fn func(ctx context.Context, observer stack.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := newProgram(m)

	done := make(chan error, 1)
	go func() {
		err := fn(ctx, Observer{send: p.Send})
		done <- err
		if err != nil {
			p.Send(ErrMsg{Err: err})
			return
		}
		p.Send(DoneMsg{})
	}()

	finalModel, err := p.Run()
	cancel()
	opErr := <-done
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if fm, ok := finalModel.(Model); ok && errors.Is(fm.Err, ErrInterrupted) {
		return ErrInterrupted
	}
	return opErr
}
