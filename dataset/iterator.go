package dataset

import (
	"io"
	"sync/atomic"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
)

// RecordBatchIterator is a lazy, pull-based sequence of record batches.
// NextBatch returns io.EOF after the last batch. Each batch is retained for
// the caller, who releases it once done.
type RecordBatchIterator interface {
	io.Closer
	NextBatch() (arrow.Record, error)
}

type sliceIterator struct {
	batches []arrow.Record
	next    int
}

// NewSliceIterator replays batches in order without copying them.
func NewSliceIterator(batches []arrow.Record) RecordBatchIterator {
	return &sliceIterator{batches: batches}
}

func (s *sliceIterator) NextBatch() (arrow.Record, error) {
	if s.next >= len(s.batches) {
		return nil, io.EOF
	}
	batch := s.batches[s.next]
	s.next++

	batch.Retain()
	return batch, nil
}

func (s *sliceIterator) Close() error {
	s.next = len(s.batches)
	return nil
}

// Collect drains and closes an iterator. If the iterator fails, the
// batches collected so far are released and the error is returned.
func Collect(it RecordBatchIterator) ([]arrow.Record, error) {
	var batches []arrow.Record
	for {
		batch, err := it.NextBatch()
		if err == io.EOF {
			break
		}
		if err != nil {
			releaseAll(batches)
			_ = it.Close()
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, it.Close()
}

func releaseAll(batches []arrow.Record) {
	for _, b := range batches {
		b.Release()
	}
}

type recordReader struct {
	refCount int64
	schema   *arrow.Schema
	iterator RecordBatchIterator

	current arrow.Record
	err     error
	done    bool
}

// NewRecordReader adapts an iterator to an array.RecordReader. Releasing
// the last reference to the reader closes the iterator.
func NewRecordReader(schema *arrow.Schema, it RecordBatchIterator) array.RecordReader {
	return &recordReader{
		refCount: 1,
		schema:   schema,
		iterator: it,
	}
}

func (r *recordReader) Retain() {
	atomic.AddInt64(&r.refCount, 1)
}

func (r *recordReader) Release() {
	if atomic.AddInt64(&r.refCount, -1) == 0 {
		if r.current != nil {
			r.current.Release()
			r.current = nil
		}
		_ = r.iterator.Close()
	}
}

func (r *recordReader) Schema() *arrow.Schema { return r.schema }

func (r *recordReader) Next() bool {
	if r.current != nil {
		r.current.Release()
		r.current = nil
	}
	if r.done {
		return false
	}

	batch, err := r.iterator.NextBatch()
	if err != nil {
		r.done = true
		if err != io.EOF {
			r.err = err
		}
		return false
	}
	r.current = batch
	return true
}

// Record returns the current batch. It is only valid until the next call
// to Next.
func (r *recordReader) Record() arrow.Record { return r.current }

func (r *recordReader) Err() error { return r.err }

// ScanTaskIterator is an ordered, finite sequence of scan tasks.
// NextTask returns io.EOF after the last task.
type ScanTaskIterator interface {
	NextTask() (ScanTask, error)
}

type scanTaskSliceIterator struct {
	tasks []ScanTask
	next  int
}

func NewScanTaskSliceIterator(tasks []ScanTask) ScanTaskIterator {
	return &scanTaskSliceIterator{tasks: tasks}
}

func (s *scanTaskSliceIterator) NextTask() (ScanTask, error) {
	if s.next >= len(s.tasks) {
		return nil, io.EOF
	}
	task := s.tasks[s.next]
	s.next++
	return task, nil
}

func CollectScanTasks(it ScanTaskIterator) ([]ScanTask, error) {
	var tasks []ScanTask
	for {
		task, err := it.NextTask()
		if err == io.EOF {
			return tasks, nil
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
}
