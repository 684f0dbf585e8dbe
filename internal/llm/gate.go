package llm

import (
	"context"
	"sync"
)

// Gate bounds concurrent model-inference calls for the whole process. The
// inference backend is the scarce resource, so one gate is constructed at
// startup and passed to every client explicitly; it is never package state.
type Gate struct {
	sem chan struct{}

	mu   sync.Mutex
	held int
	peak int
}

// NewGate creates a gate with the given number of permits.
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = 1
	}
	return &Gate{sem: make(chan struct{}, capacity)}
}

// Acquire blocks until a permit is available or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	g.mu.Lock()
	g.held++
	if g.held > g.peak {
		g.peak = g.held
	}
	g.mu.Unlock()
	return nil
}

// Release returns a permit. Must pair with a successful Acquire.
func (g *Gate) Release() {
	g.mu.Lock()
	g.held--
	g.mu.Unlock()
	<-g.sem
}

// InUse reports permits currently held.
func (g *Gate) InUse() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Peak reports the highest number of permits held at once.
func (g *Gate) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
