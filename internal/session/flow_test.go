package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ppiankov/langlearn/internal/fhe"
	"github.com/ppiankov/langlearn/internal/ledger"
)

func TestFlow_Lifecycle(t *testing.T) {
	f := NewFlow("create")
	if state, _ := f.State(); state != FlowIdle {
		t.Fatalf("expected idle, got %s", state)
	}

	if err := f.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := f.Begin(); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	f.Finish(errors.New("boom"))
	state, err := f.State()
	if state != FlowFailed || err == nil {
		t.Errorf("expected failed with error, got %s %v", state, err)
	}

	if err := f.Begin(); err != nil {
		t.Fatalf("expected restart after failure, got %v", err)
	}
	f.Finish(nil)
	if state, err := f.State(); state != FlowDone || err != nil {
		t.Errorf("expected done, got %s %v", state, err)
	}

	f.Reset()
	if state, _ := f.State(); state != FlowIdle {
		t.Errorf("expected idle after reset, got %s", state)
	}
}

func TestFlowState_String(t *testing.T) {
	tests := map[FlowState]string{
		FlowIdle:      "idle",
		FlowInFlight:  "in-flight",
		FlowDone:      "done",
		FlowFailed:    "failed",
		FlowState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotConnected, "wallet not connected"},
		{ErrInFlight, "operation already in progress"},
		{fmt.Errorf("encrypt: %w: status 400: bad input", fhe.ErrRefused), "relayer refused the request"},
		{fmt.Errorf("relayer: %w: unknown handle", ledger.ErrNotFound), "record not found"},
		{errors.New("stack trace: internal detail"), "Unknown error"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v): expected %q, got %q", tt.err, tt.want, got)
		}
	}
}
