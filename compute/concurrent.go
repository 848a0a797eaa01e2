package compute

import (
	"context"
	"io"
	"sync"

	"github.com/apache/arrow/go/v10/arrow"
)

type maybeBatch struct {
	batch arrow.Record
	err   error
}

// Concurrent reads ahead from an iterator in a background goroutine,
// buffering up to bufferSize records.
type Concurrent struct {
	iterator BatchIterator

	once   sync.Once
	buffer chan maybeBatch

	ctx    context.Context
	cancel context.CancelFunc
}

func NewConcurrent(iterator BatchIterator, bufferSize int64) *Concurrent {
	c := &Concurrent{
		iterator: iterator,
		buffer:   make(chan maybeBatch, bufferSize),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.pullNextBatch()

	return c
}

func (c *Concurrent) NextBatch() (arrow.Record, error) {
	nextBatch, ok := <-c.buffer
	if !ok {
		return nil, io.EOF
	}
	return nextBatch.batch, nextBatch.err
}

func (c *Concurrent) pullNextBatch() {
	defer close(c.buffer)
	for {
		batch, err := c.iterator.NextBatch()
		select {
		case <-c.ctx.Done():
			if batch != nil {
				batch.Release()
			}
			return
		case c.buffer <- maybeBatch{batch: batch, err: err}:
		}
		if err != nil {
			return
		}
	}
}

// Close stops the read-ahead, releases buffered records and closes the
// underlying iterator.
func (c *Concurrent) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		for next := range c.buffer {
			if next.batch != nil {
				next.batch.Release()
			}
		}
		err = c.iterator.Close()
	})
	return err
}
