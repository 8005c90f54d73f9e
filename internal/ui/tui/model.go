package tui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// ErrInterrupted is returned when the user quits before the operation ends.
var ErrInterrupted = errors.New("interrupted")

// Status is the display state of a resource.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusDone
	StatusSkipped
	StatusFailed
)

// ResourceRow is one resource in the display.
type ResourceRow struct {
	URN       stack.URN
	Status    Status
	Message   string
	Err       error
	StartedAt time.Time
	Elapsed   time.Duration
}

// Model is the Bubble Tea model for an apply or destroy run.
type Model struct {
	Stack     string
	Operation string

	// Rows are listed in the order the resources were declared. Resources
	// only known from state are appended when their first event arrives.
	Rows []ResourceRow

	StartTime time.Time

	// Animation
	SpinnerFrame int

	// UI state
	Width  int
	Height int
	Err    error
	Done   bool
}

// NewModel creates a model for operation on the given resources.
func NewModel(stackName, operation string, urns []stack.URN) Model {
	rows := make([]ResourceRow, 0, len(urns))
	for _, urn := range urns {
		rows = append(rows, ResourceRow{URN: urn})
	}
	return Model{
		Stack:     stackName,
		Operation: operation,
		Rows:      rows,
		StartTime: time.Now(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Err = ErrInterrupted
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case ResourceMsg:
		m.updateResource(msg.Event)

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) row(urn stack.URN) *ResourceRow {
	for i := range m.Rows {
		if m.Rows[i].URN == urn {
			return &m.Rows[i]
		}
	}
	m.Rows = append(m.Rows, ResourceRow{URN: urn})
	return &m.Rows[len(m.Rows)-1]
}

func (m *Model) updateResource(event stack.Event) {
	row := m.row(event.URN)
	row.Message = event.Message

	switch event.Type {
	case stack.EventResourceApplying, stack.EventResourceDeleting:
		row.Status = StatusActive
		row.StartedAt = event.Timestamp
	case stack.EventResourceApplied, stack.EventResourceDeleted:
		row.Status = StatusDone
	case stack.EventResourceSkipped:
		row.Status = StatusSkipped
	case stack.EventResourceFailed:
		row.Status = StatusFailed
		row.Err = event.Err
	}

	if row.Status != StatusActive && !row.StartedAt.IsZero() {
		row.Elapsed = event.Timestamp.Sub(row.StartedAt)
	}
}

// Finished counts resources that reached a final status.
func (m Model) Finished() int {
	n := 0
	for _, row := range m.Rows {
		if row.Status >= StatusDone {
			n++
		}
	}
	return n
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
