package dataset

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ThreadPool bounds the number of scan tasks executing at the same time
// across every scan sharing it.
type ThreadPool struct {
	capacity int
	sem      *semaphore.Weighted
}

func NewThreadPool(capacity int) *ThreadPool {
	if capacity < 1 {
		capacity = 1
	}
	return &ThreadPool{
		capacity: capacity,
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

var (
	defaultPoolOnce sync.Once
	defaultPool     *ThreadPool
)

// DefaultThreadPool returns the process-wide pool sized to GOMAXPROCS.
func DefaultThreadPool() *ThreadPool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewThreadPool(runtime.GOMAXPROCS(0))
	})
	return defaultPool
}

func (p *ThreadPool) Capacity() int { return p.capacity }

// Acquire blocks until a slot is free or the context is done.
func (p *ThreadPool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

func (p *ThreadPool) Release() {
	p.sem.Release(1)
}
