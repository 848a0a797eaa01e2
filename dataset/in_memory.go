package dataset

import (
	"fmt"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

// InMemoryFragment is a fragment backed by a list of record batches.
type InMemoryFragment struct {
	id      string
	schema  *arrow.Schema
	batches []arrow.Record

	batchesPerTask int
}

type InMemoryFragmentOption func(*InMemoryFragment)

// WithBatchesPerTask splits the batches of a fragment into one task per n
// consecutive batches. By default a single task covers all batches.
func WithBatchesPerTask(n int) InMemoryFragmentOption {
	return func(f *InMemoryFragment) {
		f.batchesPerTask = n
	}
}

// NewInMemoryFragment creates a fragment from batches sharing the given
// schema. The fragment retains the batches until Release is called.
func NewInMemoryFragment(schema *arrow.Schema, batches []arrow.Record, opts ...InMemoryFragmentOption) (*InMemoryFragment, error) {
	if schema == nil {
		return nil, errors.Wrap(ErrConstruction, "in-memory fragment requires a schema")
	}
	for i, batch := range batches {
		if batch == nil {
			return nil, errors.Wrapf(ErrConstruction, "batch %d is nil", i)
		}
		if !batch.Schema().Equal(schema) {
			return nil, errors.Wrapf(ErrConstruction, "batch %d has schema %s, expected %s", i, batch.Schema(), schema)
		}
	}

	f := &InMemoryFragment{
		id:      ulid.Make().String(),
		schema:  schema,
		batches: make([]arrow.Record, len(batches)),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.batchesPerTask < 0 {
		return nil, errors.Wrapf(ErrConstruction, "batches per task must not be negative, got %d", f.batchesPerTask)
	}
	for i, batch := range batches {
		batch.Retain()
		f.batches[i] = batch
	}
	return f, nil
}

func (f *InMemoryFragment) Schema() *arrow.Schema { return f.schema }

// Batches returns the stored batches without retaining them.
func (f *InMemoryFragment) Batches() []arrow.Record {
	return append([]arrow.Record(nil), f.batches...)
}

func (f *InMemoryFragment) Scan(options *ScanOptions, sctx *ScanContext) (ScanTaskIterator, error) {
	if err := checkScanArgs(options, sctx); err != nil {
		return nil, err
	}
	if _, err := newProjection(f.schema, options.Schema()); err != nil {
		return nil, errors.Wrapf(err, "scan fragment %s", f.id)
	}

	groups := f.taskGroups()
	tasks := make([]ScanTask, 0, len(groups))
	for _, group := range groups {
		task, err := NewInMemoryScanTask(group, options, sctx, f)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return NewScanTaskSliceIterator(tasks), nil
}

func (f *InMemoryFragment) taskGroups() [][]arrow.Record {
	n := f.batchesPerTask
	if n == 0 || n >= len(f.batches) {
		return [][]arrow.Record{f.batches}
	}

	groups := make([][]arrow.Record, 0, (len(f.batches)+n-1)/n)
	for from := 0; from < len(f.batches); from += n {
		to := from + n
		if to > len(f.batches) {
			to = len(f.batches)
		}
		groups = append(groups, f.batches[from:to:to])
	}
	return groups
}

// Release drops the references to the stored batches.
func (f *InMemoryFragment) Release() {
	releaseAll(f.batches)
	f.batches = nil
}

func (f *InMemoryFragment) String() string {
	return fmt.Sprintf("InMemoryFragment{id=%s, batches=%d}", f.id, len(f.batches))
}

// InMemoryScanTask replays a list of batches. When the requested schema
// differs from the native schema each batch is projected by field name.
type InMemoryScanTask struct {
	batches  []arrow.Record
	options  *ScanOptions
	sctx     *ScanContext
	fragment Fragment

	projection *projection
}

func NewInMemoryScanTask(batches []arrow.Record, options *ScanOptions, sctx *ScanContext, fragment Fragment) (*InMemoryScanTask, error) {
	if err := checkScanArgs(options, sctx); err != nil {
		return nil, err
	}
	if fragment == nil {
		return nil, errors.Wrap(ErrConstruction, "scan task requires a fragment")
	}

	native := fragment.Schema()
	for i, batch := range batches {
		if batch == nil || !batch.Schema().Equal(native) {
			return nil, errors.Wrapf(ErrConstruction, "batch %d does not match the fragment schema", i)
		}
	}
	proj, err := newProjection(native, options.Schema())
	if err != nil {
		return nil, err
	}

	return &InMemoryScanTask{
		batches:    batches,
		options:    options,
		sctx:       sctx,
		fragment:   fragment,
		projection: proj,
	}, nil
}

func (t *InMemoryScanTask) Options() *ScanOptions { return t.options }

func (t *InMemoryScanTask) Context() *ScanContext { return t.sctx }

func (t *InMemoryScanTask) Fragment() Fragment { return t.fragment }

func (t *InMemoryScanTask) Execute() RecordBatchIterator {
	return newProjectingIterator(NewSliceIterator(t.batches), t.projection)
}

func checkScanArgs(options *ScanOptions, sctx *ScanContext) error {
	if options == nil {
		return errors.Wrap(ErrConstruction, "scan requires options")
	}
	if sctx == nil {
		return errors.Wrap(ErrConstruction, "scan requires a context")
	}
	return nil
}
