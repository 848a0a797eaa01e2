package dataset

import (
	"context"
	"io"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/docker/go-units"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"fpetkovski/arrow-dataset/compute"
)

// Scanner executes the scan tasks of every fragment of a dataset.
type Scanner struct {
	dataset *Dataset
	options *ScanOptions
	sctx    *ScanContext

	logger    log.Logger
	metrics   *Metrics
	readahead int
}

type ScannerOption func(*Scanner)

func WithLogger(logger log.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

func WithMetrics(metrics *Metrics) ScannerOption {
	return func(s *Scanner) {
		s.metrics = metrics
	}
}

// WithReadahead makes ToReader decode up to n batches ahead of the consumer.
func WithReadahead(n int) ScannerOption {
	return func(s *Scanner) {
		s.readahead = n
	}
}

// WithOptions replaces the scan options of a scanner created with Dataset.NewScan.
func WithOptions(options *ScanOptions) ScannerOption {
	return func(s *Scanner) {
		s.options = options
	}
}

// WithContext replaces the scan context of a scanner created with Dataset.NewScan.
func WithContext(sctx *ScanContext) ScannerOption {
	return func(s *Scanner) {
		s.sctx = sctx
	}
}

func NewScanner(ds *Dataset, options *ScanOptions, sctx *ScanContext, opts ...ScannerOption) (*Scanner, error) {
	if ds == nil {
		return nil, errors.Wrap(ErrConstruction, "scanner requires a dataset")
	}
	s := &Scanner{
		dataset: ds,
		options: options,
		sctx:    sctx,
		logger:  log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := checkScanArgs(s.options, s.sctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scanner) Options() *ScanOptions { return s.options }

func (s *Scanner) Context() *ScanContext { return s.sctx }

// ScanTasks returns the tasks of all fragments in fragment order.
func (s *Scanner) ScanTasks() (ScanTaskIterator, error) {
	tasks, err := s.collectTasks()
	if err != nil {
		return nil, err
	}
	return NewScanTaskSliceIterator(tasks), nil
}

func (s *Scanner) collectTasks() ([]ScanTask, error) {
	var tasks []ScanTask
	for i, fragment := range s.dataset.Fragments() {
		it, err := fragment.Scan(s.options, s.sctx)
		if err != nil {
			return nil, errors.Wrapf(err, "scan fragment %d", i)
		}
		fragmentTasks, err := CollectScanTasks(it)
		if err != nil {
			return nil, errors.Wrapf(err, "scan fragment %d", i)
		}
		tasks = append(tasks, fragmentTasks...)
	}
	return tasks, nil
}

// execute runs a task with the filter of the scan applied to its batches.
func (s *Scanner) execute(task ScanTask) RecordBatchIterator {
	var it RecordBatchIterator = task.Execute()
	if filter := s.options.Filter(); filter != nil {
		it = compute.NewFilteringIterator(it, filter, s.sctx.Allocator())
	}
	return s.metrics.instrument(it)
}

// ToReader streams the batches of all tasks, one task after another.
func (s *Scanner) ToReader() (array.RecordReader, error) {
	tasks, err := s.collectTasks()
	if err != nil {
		return nil, err
	}
	level.Debug(s.logger).Log("msg", "streaming scan", "tasks", len(tasks), "readahead", s.readahead)

	var it RecordBatchIterator = &taskChainIterator{tasks: tasks, execute: s.execute}
	if s.readahead > 0 {
		it = compute.NewConcurrent(it, int64(s.readahead))
	}
	return NewRecordReader(s.options.Schema(), it), nil
}

// ToRecords executes tasks concurrently on the thread pool of the scan
// context and returns their batches in task order.
func (s *Scanner) ToRecords(ctx context.Context) ([]arrow.Record, error) {
	results, err := s.executeAll(ctx)
	if err != nil {
		return nil, err
	}

	var (
		records []arrow.Record
		size    int
		rows    int64
	)
	for _, batches := range results {
		for _, batch := range batches {
			size += recordSize(batch)
			rows += batch.NumRows()
		}
		records = append(records, batches...)
	}
	level.Debug(s.logger).Log("msg", "scan finished", "batches", len(records), "rows", rows, "size", units.BytesSize(float64(size)))
	return records, nil
}

// CountRows returns the number of rows matching the scan.
func (s *Scanner) CountRows(ctx context.Context) (int64, error) {
	results, err := s.executeAll(ctx)
	if err != nil {
		return 0, err
	}

	var rows int64
	for _, batches := range results {
		for _, batch := range batches {
			rows += batch.NumRows()
		}
		releaseAll(batches)
	}
	return rows, nil
}

func (s *Scanner) executeAll(ctx context.Context) ([][]arrow.Record, error) {
	tasks, err := s.collectTasks()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([][]arrow.Record, len(tasks))
	pool := s.sctx.Pool()
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		if err := pool.Acquire(gctx); err != nil {
			break
		}
		i, task := i, task
		g.Go(func() error {
			defer pool.Release()
			if err := gctx.Err(); err != nil {
				return err
			}

			level.Debug(s.logger).Log("msg", "executing scan task", "task", i, "fragment", task.Fragment())
			batches, err := Collect(s.execute(task))
			if err != nil {
				return errors.Wrapf(err, "scan task %d", i)
			}
			results[i] = batches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, batches := range results {
			releaseAll(batches)
		}
		level.Error(s.logger).Log("msg", "scan failed", "err", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		for _, batches := range results {
			releaseAll(batches)
		}
		return nil, err
	}

	level.Info(s.logger).Log("msg", "executed scan tasks", "tasks", len(tasks), "concurrency", pool.Capacity(), "duration", time.Since(start))
	return results, nil
}

// taskChainIterator concatenates the sequences of tasks in order.
type taskChainIterator struct {
	tasks   []ScanTask
	execute func(ScanTask) RecordBatchIterator

	next    int
	current RecordBatchIterator
}

func (c *taskChainIterator) NextBatch() (arrow.Record, error) {
	for {
		if c.current == nil {
			if c.next >= len(c.tasks) {
				return nil, io.EOF
			}
			c.current = c.execute(c.tasks[c.next])
			c.next++
		}

		batch, err := c.current.NextBatch()
		if err == io.EOF {
			closeErr := c.current.Close()
			c.current = nil
			if closeErr != nil {
				return nil, closeErr
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return batch, nil
	}
}

func (c *taskChainIterator) Close() error {
	c.next = len(c.tasks)
	if c.current == nil {
		return nil
	}
	err := c.current.Close()
	c.current = nil
	return err
}

func recordSize(rec arrow.Record) int {
	var size int
	for _, col := range rec.Columns() {
		size += arraySize(col.Data())
	}
	return size
}

func arraySize(data arrow.ArrayData) int {
	var size int
	for _, buf := range data.Buffers() {
		if buf != nil {
			size += buf.Len()
		}
	}
	for _, child := range data.Children() {
		size += arraySize(child)
	}
	return size
}
