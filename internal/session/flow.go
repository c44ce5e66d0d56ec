package session

import (
	"errors"
	"sync"
)

// ErrInFlight is returned when a flow is started while already running
var ErrInFlight = errors.New("operation already in progress")

// FlowState is the lifecycle of one user-triggered pipeline
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowInFlight
	FlowDone
	FlowFailed
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowInFlight:
		return "in-flight"
	case FlowDone:
		return "done"
	case FlowFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Flow guards a pipeline so only one run is in flight. Done and failed
// flows may be started again.
type Flow struct {
	name string

	mu    sync.Mutex
	state FlowState
	err   error
}

// NewFlow creates an idle flow
func NewFlow(name string) *Flow {
	return &Flow{name: name}
}

// Begin moves the flow in flight or fails with ErrInFlight
func (f *Flow) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FlowInFlight {
		return ErrInFlight
	}
	f.state = FlowInFlight
	f.err = nil
	return nil
}

// Finish records the outcome of the current run
func (f *Flow) Finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = FlowFailed
	} else {
		f.state = FlowDone
	}
	f.err = err
}

// Reset returns the flow to idle regardless of its state
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FlowIdle
	f.err = nil
}

// State returns the current state and the error of a failed run
func (f *Flow) State() (FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

// Name identifies the flow in logs
func (f *Flow) Name() string {
	return f.name
}
