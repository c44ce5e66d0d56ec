package fhe

import (
	"context"
	"sync"
)

// Initializer runs SDK initialization once. Concurrent callers wait for
// the same attempt; a failed attempt is retried by the next caller.
type Initializer struct {
	sdk  SDK
	mu   sync.Mutex
	done bool
	busy chan struct{}
	err  error
}

// NewInitializer wraps sdk
func NewInitializer(sdk SDK) *Initializer {
	return &Initializer{sdk: sdk}
}

// Initialize initializes the SDK if needed
func (i *Initializer) Initialize(ctx context.Context) error {
	for {
		i.mu.Lock()
		if i.done {
			i.mu.Unlock()
			return nil
		}
		if i.busy != nil {
			busy := i.busy
			i.mu.Unlock()
			select {
			case <-busy:
				i.mu.Lock()
				done, err := i.done, i.err
				i.mu.Unlock()
				if done {
					return nil
				}
				if err != nil {
					return err
				}
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		busy := make(chan struct{})
		i.busy = busy
		i.mu.Unlock()

		err := i.sdk.Initialize(ctx)

		i.mu.Lock()
		i.done = err == nil
		i.err = err
		i.busy = nil
		i.mu.Unlock()
		close(busy)
		return err
	}
}

// Ready reports whether initialization has succeeded
func (i *Initializer) Ready() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.done
}
