package concurrency

import (
	"context"
	"errors"
	"sync"
)

var ErrBusy = errors.New("another operation is already in progress")

// Guard serializes an operation that must not overlap with itself, e.g. one
// user-initiated send at a time. It rejects instead of queueing.
type Guard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewGuard() *Guard {
	return &Guard{}
}

// Execute runs task unless another task is already running, in which case it
// returns ErrBusy immediately.
func (g *Guard) Execute(task func() error) error {
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// ExecuteWithContext is Execute for tasks that take a context. The guard does
// not cancel the task; the caller's context does.
func (g *Guard) ExecuteWithContext(ctx context.Context, task func(context.Context) error) error {
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task(ctx)
}

func (g *Guard) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return false
	}
	g.isBusy = true
	return true
}

func (g *Guard) release() {
	g.mu.Lock()
	g.isBusy = false
	g.mu.Unlock()
}
