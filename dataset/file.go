package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/thanos-io/objstore"

	"fpetkovski/arrow-dataset/expr"
	"fpetkovski/arrow-dataset/storage"
)

// FileSource locates a file in a bucket.
type FileSource struct {
	bucket     objstore.BucketReader
	path       string
	readerOpts []storage.BucketReaderOpt
}

func NewFileSource(bucket objstore.BucketReader, path string, opts ...storage.BucketReaderOpt) FileSource {
	return FileSource{
		bucket:     bucket,
		path:       path,
		readerOpts: opts,
	}
}

func (s FileSource) Path() string { return s.path }

func (s FileSource) Open(ctx context.Context) (*storage.BucketReader, error) {
	return storage.NewBucketReader(ctx, s.path, s.bucket, s.readerOpts...)
}

// FileFormat knows how to plan and read files of a particular format.
type FileFormat interface {
	fmt.Stringer
	// Inspect reads what is needed to plan scans of the file, so that
	// scanning the resulting fragment needs no further I/O.
	Inspect(ctx context.Context, source FileSource) (FileMetadata, error)
}

// FileMetadata describes an inspected file made of independently readable parts.
type FileMetadata interface {
	Schema() *arrow.Schema
	NumParts() int
	// CheckSchema fails with ErrSchemaMismatch when fields of the requested
	// schema cannot be read from the file.
	CheckSchema(requested *arrow.Schema) error
	// Parts returns the parts which may contain rows matching the filter.
	// A nil filter selects all parts.
	Parts(filter expr.Expression) []int
	// ReadPart reads the columns of the requested schema from one part.
	ReadPart(ctx context.Context, source FileSource, part int, options *ScanOptions, mem memory.Allocator) (RecordBatchIterator, error)
}

// FileFragment is a fragment backed by a single file.
type FileFragment struct {
	id       string
	source   FileSource
	format   FileFormat
	metadata FileMetadata
}

func NewFileFragment(ctx context.Context, source FileSource, format FileFormat) (*FileFragment, error) {
	if format == nil {
		return nil, errors.Wrap(ErrConstruction, "file fragment requires a format")
	}
	metadata, err := format.Inspect(ctx, source)
	if err != nil {
		return nil, executionFailed(err, "inspect %s file %s", format, source.Path())
	}

	return &FileFragment{
		id:       ulid.Make().String(),
		source:   source,
		format:   format,
		metadata: metadata,
	}, nil
}

func (f *FileFragment) Schema() *arrow.Schema { return f.metadata.Schema() }

// NumParts returns the number of independently readable parts of the file.
func (f *FileFragment) NumParts() int { return f.metadata.NumParts() }

func (f *FileFragment) Scan(options *ScanOptions, sctx *ScanContext) (ScanTaskIterator, error) {
	if err := checkScanArgs(options, sctx); err != nil {
		return nil, err
	}
	if _, err := fieldIndices(f.Schema(), options.Schema()); err != nil {
		return nil, errors.Wrapf(err, "scan file %s", f.source.Path())
	}
	if err := f.metadata.CheckSchema(options.Schema()); err != nil {
		return nil, errors.Wrapf(err, "scan file %s", f.source.Path())
	}

	parts := f.metadata.Parts(options.Filter())
	tasks := make([]ScanTask, 0, len(parts))
	for _, part := range parts {
		tasks = append(tasks, &FileScanTask{
			part:     part,
			options:  options,
			sctx:     sctx,
			fragment: f,
		})
	}
	return NewScanTaskSliceIterator(tasks), nil
}

func (f *FileFragment) String() string {
	return fmt.Sprintf("FileFragment{id=%s, path=%s, format=%s}", f.id, f.source.Path(), f.format)
}

// FileScanTask reads one part of a file, such as a Parquet row group.
type FileScanTask struct {
	part     int
	options  *ScanOptions
	sctx     *ScanContext
	fragment *FileFragment
}

func (t *FileScanTask) Options() *ScanOptions { return t.options }

func (t *FileScanTask) Context() *ScanContext { return t.sctx }

func (t *FileScanTask) Fragment() Fragment { return t.fragment }

func (t *FileScanTask) Part() int { return t.part }

// Execute returns a sequence which opens the file on the first call to NextBatch.
func (t *FileScanTask) Execute() RecordBatchIterator {
	return &fileIterator{task: t}
}

type fileIterator struct {
	task *FileScanTask

	cancel   context.CancelFunc
	iterator RecordBatchIterator
	err      error
	closed   bool
}

// NextBatch turns panics of the file decoders into execution errors.
func (it *fileIterator) NextBatch() (batch arrow.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch = nil
			err = executionFailed(errors.Errorf("panic: %v", r), "read part %d of %s", it.task.part, it.task.fragment.source.Path())
			it.err = err
		}
	}()

	if it.closed {
		return nil, io.EOF
	}
	if it.err != nil {
		return nil, it.err
	}
	if it.iterator == nil {
		if err := it.open(); err != nil {
			it.err = err
			return nil, err
		}
	}

	batch, err = it.iterator.NextBatch()
	if err != nil {
		err = executionFailed(err, "read part %d of %s", it.task.part, it.task.fragment.source.Path())
		if err != io.EOF {
			it.err = err
		}
		return nil, err
	}
	return batch, nil
}

func (it *fileIterator) open() error {
	var (
		fragment = it.task.fragment
		ctx      context.Context
	)
	ctx, it.cancel = context.WithCancel(context.Background())

	iterator, err := fragment.metadata.ReadPart(ctx, fragment.source, it.task.part, it.task.options, it.task.sctx.Allocator())
	if err != nil {
		return executionFailed(err, "open part %d of %s", it.task.part, fragment.source.Path())
	}
	it.iterator = &namedProjectionIterator{iterator: iterator, schema: it.task.options.Schema()}
	return nil
}

func (it *fileIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.cancel != nil {
		it.cancel()
	}
	if it.iterator != nil {
		return it.iterator.Close()
	}
	return nil
}

// namedProjectionIterator shapes batches read from files into the requested
// schema. File readers may return columns in file order and with their own
// nullability, so the projection is resolved from each batch.
type namedProjectionIterator struct {
	iterator RecordBatchIterator
	schema   *arrow.Schema
}

func (p *namedProjectionIterator) NextBatch() (arrow.Record, error) {
	batch, err := p.iterator.NextBatch()
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	if batch.Schema().Equal(p.schema) {
		batch.Retain()
		return batch, nil
	}
	proj, err := newProjection(batch.Schema(), p.schema)
	if err != nil {
		return nil, err
	}
	return proj.project(batch), nil
}

func (p *namedProjectionIterator) Close() error {
	return p.iterator.Close()
}
