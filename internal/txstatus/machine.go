// Package txstatus holds the single user-facing status slot for the
// operation currently driving feedback.
package txstatus

import (
	"sync"
	"time"

	"github.com/ppiankov/langlearn/internal/model"
)

const (
	DefaultSuccessTTL = 2 * time.Second
	DefaultErrorTTL   = 3 * time.Second
)

// Timer is a scheduled callback that can be cancelled
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d
type AfterFunc func(d time.Duration, f func()) Timer

// Machine is the idle -> pending -> success|error -> idle state machine.
// Every transition supersedes the previous one and cancels its timer;
// an auto-clear only applies if nothing happened since it was scheduled.
type Machine struct {
	mu         sync.Mutex
	current    model.TxStatus
	gen        uint64
	timer      Timer
	after      AfterFunc
	now        func() time.Time
	successTTL time.Duration
	errorTTL   time.Duration
	subs       map[int]func(model.TxStatus)
	nextSub    int
}

// Option configures a Machine
type Option func(*Machine)

// WithTTL sets how long success and error stay visible
func WithTTL(success, failure time.Duration) Option {
	return func(m *Machine) {
		if success > 0 {
			m.successTTL = success
		}
		if failure > 0 {
			m.errorTTL = failure
		}
	}
}

// WithClock replaces the timer source and the wall clock
func WithClock(after AfterFunc, now func() time.Time) Option {
	return func(m *Machine) {
		m.after = after
		m.now = now
	}
}

// NewMachine creates an idle machine
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		after: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		now:        time.Now,
		successTTL: DefaultSuccessTTL,
		errorTTL:   DefaultErrorTTL,
		subs:       make(map[int]func(model.TxStatus)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.current = model.TxStatus{Kind: model.TxIdle, At: m.now()}
	return m
}

// Pending shows an in-progress message and returns its generation
func (m *Machine) Pending(msg string) uint64 {
	return m.transition(model.TxPending, msg)
}

// Success shows msg and clears to idle after the success TTL
func (m *Machine) Success(msg string) {
	m.transition(model.TxSuccess, msg)
}

// Error shows msg and clears to idle after the error TTL
func (m *Machine) Error(msg string) {
	m.transition(model.TxError, msg)
}

// Reset returns to idle immediately
func (m *Machine) Reset() {
	m.transition(model.TxIdle, "")
}

// ResetIf returns to idle only if gen is still the latest transition.
// Callers use it to withdraw their own pending status.
func (m *Machine) ResetIf(gen uint64) bool {
	m.mu.Lock()
	if gen == 0 || gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.apply(model.TxIdle, "")
	status, subs := m.current, m.snapshotSubs()
	m.mu.Unlock()

	notify(subs, status)
	return true
}

// Current returns the visible status
func (m *Machine) Current() model.TxStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers fn for every change. The returned func unsubscribes.
func (m *Machine) Subscribe(fn func(model.TxStatus)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Machine) transition(kind model.TxKind, msg string) uint64 {
	m.mu.Lock()
	gen := m.apply(kind, msg)
	status, subs := m.current, m.snapshotSubs()
	m.mu.Unlock()

	notify(subs, status)
	return gen
}

// apply installs a new status and its auto-clear timer. m.mu must be held.
func (m *Machine) apply(kind model.TxKind, msg string) uint64 {
	m.gen++
	gen := m.gen
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.current = model.TxStatus{Kind: kind, Message: msg, At: m.now()}

	var ttl time.Duration
	switch kind {
	case model.TxSuccess:
		ttl = m.successTTL
	case model.TxError:
		ttl = m.errorTTL
	}
	if ttl > 0 {
		m.timer = m.after(ttl, func() { m.expire(gen) })
	}
	return gen
}

// expire clears to idle if gen is still the latest transition
func (m *Machine) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.timer = nil
	m.current = model.TxStatus{Kind: model.TxIdle, At: m.now()}
	status, subs := m.current, m.snapshotSubs()
	m.mu.Unlock()

	notify(subs, status)
}

func (m *Machine) snapshotSubs() []func(model.TxStatus) {
	out := make([]func(model.TxStatus), 0, len(m.subs))
	for _, fn := range m.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(model.TxStatus), status model.TxStatus) {
	for _, fn := range subs {
		fn(status)
	}
}
