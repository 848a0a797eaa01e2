package dataset

import (
	"context"
	"io"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/ipc"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/pkg/errors"

	"fpetkovski/arrow-dataset/expr"
)

// IPCFileFormat reads Arrow IPC files. Each record batch in the file is
// scanned by its own task.
type IPCFileFormat struct{}

func NewIPCFileFormat() *IPCFileFormat { return &IPCFileFormat{} }

func (f *IPCFileFormat) String() string { return "ipc" }

func (f *IPCFileFormat) Inspect(ctx context.Context, source FileSource) (FileMetadata, error) {
	reader, err := source.Open(ctx)
	if err != nil {
		return nil, err
	}
	ipcReader, err := ipc.NewFileReader(reader)
	if err != nil {
		return nil, errors.Wrap(err, "open ipc file")
	}
	defer ipcReader.Close()

	return &ipcMetadata{
		schema:     ipcReader.Schema(),
		numRecords: ipcReader.NumRecords(),
	}, nil
}

type ipcMetadata struct {
	schema     *arrow.Schema
	numRecords int
}

func (m *ipcMetadata) Schema() *arrow.Schema { return m.schema }

func (m *ipcMetadata) NumParts() int { return m.numRecords }

// CheckSchema accepts every schema. Fields are matched by name on the
// records read from the file.
func (m *ipcMetadata) CheckSchema(*arrow.Schema) error { return nil }

// Parts returns every record batch. IPC files carry no statistics to prune with.
func (m *ipcMetadata) Parts(expr.Expression) []int {
	parts := make([]int, m.numRecords)
	for i := range parts {
		parts[i] = i
	}
	return parts
}

func (m *ipcMetadata) ReadPart(ctx context.Context, source FileSource, part int, _ *ScanOptions, mem memory.Allocator) (RecordBatchIterator, error) {
	reader, err := source.Open(ctx)
	if err != nil {
		return nil, err
	}
	ipcReader, err := ipc.NewFileReader(reader, ipc.WithAllocator(mem))
	if err != nil {
		return nil, errors.Wrap(err, "open ipc file")
	}
	return &ipcRecordIterator{reader: ipcReader, index: part}, nil
}

type ipcRecordIterator struct {
	reader *ipc.FileReader
	index  int
	done   bool
}

func (it *ipcRecordIterator) NextBatch() (arrow.Record, error) {
	if it.done {
		return nil, io.EOF
	}
	it.done = true

	rec, err := it.reader.Record(it.index)
	if err != nil {
		return nil, errors.Wrapf(err, "read record %d", it.index)
	}
	rec.Retain()
	return rec, nil
}

func (it *ipcRecordIterator) Close() error {
	return it.reader.Close()
}
