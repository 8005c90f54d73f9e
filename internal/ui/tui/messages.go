// Package tui provides a Bubble Tea terminal UI that follows a stack
// operation resource by resource.
package tui

import "github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"

// ResourceMsg carries an engine progress event.
type ResourceMsg struct {
	Event stack.Event
}

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// ErrMsg carries the error that ended the operation.
type ErrMsg struct{ Err error }

// DoneMsg signals that the operation is complete.
type DoneMsg struct{}
