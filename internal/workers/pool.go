package workers

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"openroom/internal/logging"
)

// Pool bounds how many jobs run at once.
type Pool struct {
	name   string
	size   int
	sem    *semaphore.Weighted
	active atomic.Int64
}

// NewPool returns a pool admitting size concurrent jobs. A size below 1 is
// treated as 1.
func NewPool(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	logging.Debug("Created %s worker pool with %d workers", name, size)
	return &Pool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Active returns the number of jobs currently running.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Do runs fn once a slot is free. It returns ctx.Err() without running fn
// if ctx ends first.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		logging.Debug("Waiting for %s worker cancelled: %v", p.name, err)
		return err
	}
	defer p.sem.Release(1)

	p.active.Add(1)
	defer p.active.Add(-1)

	return fn()
}
