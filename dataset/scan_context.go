package dataset

import "github.com/apache/arrow/go/v10/arrow/memory"

// ScanContext carries the execution resources of a scan. It is immutable
// and safe for concurrent use.
type ScanContext struct {
	pool *ThreadPool
	mem  memory.Allocator
}

type ScanContextOption func(*ScanContext)

func WithAllocator(mem memory.Allocator) ScanContextOption {
	return func(c *ScanContext) {
		c.mem = mem
	}
}

func WithThreadPool(pool *ThreadPool) ScanContextOption {
	return func(c *ScanContext) {
		c.pool = pool
	}
}

func NewScanContext(opts ...ScanContextOption) *ScanContext {
	sctx := &ScanContext{}
	for _, opt := range opts {
		opt(sctx)
	}
	if sctx.mem == nil {
		sctx.mem = memory.DefaultAllocator
	}
	if sctx.pool == nil {
		sctx.pool = DefaultThreadPool()
	}
	return sctx
}

func (c *ScanContext) Pool() *ThreadPool { return c.pool }

func (c *ScanContext) Allocator() memory.Allocator { return c.mem }
