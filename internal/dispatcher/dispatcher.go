// Package dispatcher tracks runs executing in the background so they can be
// stopped by ID and drained on shutdown.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Go after Close has begun.
var ErrClosed = errors.New("dispatcher closed")

// Stopper is the cooperative stop handle of a run.
type Stopper interface {
	Stop()
}

// Dispatcher runs background jobs and keeps their stop handles.
type Dispatcher struct {
	mu     sync.Mutex
	active map[string]Stopper
	closed bool
	wg     sync.WaitGroup
}

// New creates a Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{active: make(map[string]Stopper)}
}

// Go runs fn on its own goroutine under id. The handle is forgotten once fn
// returns.
func (d *Dispatcher) Go(id string, handle Stopper, fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, exists := d.active[id]; exists {
		return fmt.Errorf("run %s already dispatched", id)
	}
	d.active[id] = handle
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.forget(id)
		fn()
	}()
	return nil
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
}

// Stop asks the run to stop. It reports whether id was active.
func (d *Dispatcher) Stop(id string) bool {
	d.mu.Lock()
	handle, ok := d.active[id]
	d.mu.Unlock()
	if ok {
		handle.Stop()
	}
	return ok
}

// Active returns the number of runs in flight.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// Close refuses new runs, stops the active ones and waits for them to return
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	handles := make([]Stopper, 0, len(d.active))
	for _, h := range d.active {
		handles = append(handles, h)
	}
	d.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs: %w", ctx.Err())
	}
}
