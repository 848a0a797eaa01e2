package dataset

import (
	"context"
	"io"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/metadata"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/model/labels"

	"fpetkovski/arrow-dataset/expr"
)

// ParquetFileFormat reads Parquet files. Each row group is scanned by its
// own task and row groups whose statistics rule out the filter are skipped.
type ParquetFileFormat struct {
	parallel bool
}

type ParquetOption func(*ParquetFileFormat)

// WithParallelColumnReads decodes the columns of a row group concurrently.
func WithParallelColumnReads(parallel bool) ParquetOption {
	return func(f *ParquetFileFormat) {
		f.parallel = parallel
	}
}

func NewParquetFileFormat(opts ...ParquetOption) *ParquetFileFormat {
	f := &ParquetFileFormat{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ParquetFileFormat) String() string { return "parquet" }

func (f *ParquetFileFormat) Inspect(ctx context.Context, source FileSource) (FileMetadata, error) {
	reader, err := source.Open(ctx)
	if err != nil {
		return nil, err
	}
	pqReader, err := file.NewParquetReader(reader)
	if err != nil {
		return nil, errors.Wrap(err, "open parquet file")
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, errors.Wrap(err, "create arrow reader")
	}
	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, errors.Wrap(err, "read arrow schema")
	}

	leaves := make(map[string][]int, len(arrowReader.Manifest.Fields))
	for _, field := range arrowReader.Manifest.Fields {
		leaves[field.Field.Name] = leafColumns(field, nil)
	}

	return &parquetMetadata{
		format:       f,
		schema:       schema,
		meta:         pqReader.MetaData(),
		numRowGroups: pqReader.NumRowGroups(),
		leaves:       leaves,
	}, nil
}

// leafColumns appends the indices of the Parquet leaf columns storing field.
func leafColumns(field pqarrow.SchemaField, indices []int) []int {
	if len(field.Children) == 0 {
		if field.ColIndex >= 0 {
			indices = append(indices, field.ColIndex)
		}
		return indices
	}
	for _, child := range field.Children {
		indices = leafColumns(child, indices)
	}
	return indices
}

type parquetMetadata struct {
	format       *ParquetFileFormat
	schema       *arrow.Schema
	meta         *metadata.FileMetaData
	numRowGroups int
	// leaves maps top level fields to their Parquet leaf column indices.
	leaves map[string][]int
}

func (m *parquetMetadata) Schema() *arrow.Schema { return m.schema }

func (m *parquetMetadata) NumParts() int { return m.numRowGroups }

func (m *parquetMetadata) CheckSchema(requested *arrow.Schema) error {
	for _, field := range requested.Fields() {
		if len(m.leaves[field.Name]) == 0 {
			return errors.Wrapf(ErrSchemaMismatch, "field %q has no parquet columns", field.Name)
		}
	}
	return nil
}

func (m *parquetMetadata) Parts(filter expr.Expression) []int {
	rowGroups := make([]int, 0, m.numRowGroups)
	for i := 0; i < m.numRowGroups; i++ {
		if filter != nil && !mayMatch(filter, m.rowGroupStats(i)) {
			continue
		}
		rowGroups = append(rowGroups, i)
	}
	return rowGroups
}

func (m *parquetMetadata) ReadPart(ctx context.Context, source FileSource, rowGroup int, options *ScanOptions, mem memory.Allocator) (RecordBatchIterator, error) {
	if err := m.CheckSchema(options.Schema()); err != nil {
		return nil, err
	}
	var columns []int
	for _, field := range options.Schema().Fields() {
		columns = append(columns, m.leaves[field.Name]...)
	}

	reader, err := source.Open(ctx)
	if err != nil {
		return nil, err
	}
	pqReader, err := file.NewParquetReader(reader)
	if err != nil {
		return nil, errors.Wrap(err, "open parquet file")
	}
	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{
		BatchSize: options.BatchSize(),
		Parallel:  m.format.parallel,
	}, mem)
	if err != nil {
		pqReader.Close()
		return nil, errors.Wrap(err, "create arrow reader")
	}

	records, err := arrowReader.GetRecordReader(ctx, columns, []int{rowGroup})
	if err != nil {
		pqReader.Close()
		return nil, errors.Wrapf(err, "read row group %d", rowGroup)
	}
	return &recordReaderIterator{records: records, closer: pqReader}, nil
}

// recordReaderIterator turns a pqarrow.RecordReader into an iterator.
type recordReaderIterator struct {
	records pqarrow.RecordReader
	closer  io.Closer
}

func (r *recordReaderIterator) NextBatch() (arrow.Record, error) {
	batch, err := r.records.Read()
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, io.EOF
	}
	batch.Retain()
	return batch, nil
}

func (r *recordReaderIterator) Close() error {
	r.records.Release()
	return r.closer.Close()
}

// statsRange compares the minimum and maximum value of a column with a
// literal. ok is false when no usable statistics exist.
type statsRange func(column string, value expr.Literal) (cmpMin, cmpMax int, ok bool)

// mayMatch reports whether rows described by column statistics can match
// the filter. Expressions it cannot reason about are assumed to match.
func mayMatch(filter expr.Expression, stats statsRange) bool {
	switch e := filter.(type) {
	case *expr.Comparison:
		cmpMin, cmpMax, ok := stats(e.Field().Name(), e.Value())
		if !ok {
			return true
		}
		return e.MayMatchRange(cmpMin, cmpMax)
	case *expr.AndExpr:
		for _, op := range e.Operands() {
			if !mayMatch(op, stats) {
				return false
			}
		}
		return true
	case *expr.OrExpr:
		for _, op := range e.Operands() {
			if mayMatch(op, stats) {
				return true
			}
		}
		return false
	case *expr.MatcherExpr:
		m := e.Matcher()
		if m.Type != labels.MatchEqual || m.Value == "" {
			return true
		}
		return mayMatch(expr.Equal(expr.Field(m.Name), m.Value), stats)
	}
	return true
}

func (m *parquetMetadata) rowGroupStats(rowGroup int) statsRange {
	rg := m.meta.RowGroup(rowGroup)
	return func(column string, value expr.Literal) (int, int, bool) {
		if !m.hasSignedOrder(column) {
			return 0, 0, false
		}
		leaves := m.leaves[column]
		if len(leaves) != 1 {
			return 0, 0, false
		}
		chunk, err := rg.ColumnChunk(leaves[0])
		if err != nil {
			return 0, 0, false
		}
		if set, err := chunk.StatsSet(); err != nil || !set {
			return 0, 0, false
		}
		stats, err := chunk.Statistics()
		if err != nil || stats == nil || !stats.HasMinMax() {
			return 0, 0, false
		}

		switch s := stats.(type) {
		case *metadata.BooleanStatistics:
			return compareRange(value.CompareBool, s.Min(), s.Max())
		case *metadata.Int32Statistics:
			return compareRange(value.CompareInt64, int64(s.Min()), int64(s.Max()))
		case *metadata.Int64Statistics:
			return compareRange(value.CompareInt64, s.Min(), s.Max())
		case *metadata.Float32Statistics:
			return compareRange(value.CompareFloat64, float64(s.Min()), float64(s.Max()))
		case *metadata.Float64Statistics:
			return compareRange(value.CompareFloat64, s.Min(), s.Max())
		case *metadata.ByteArrayStatistics:
			return compareRange(value.CompareString, string(s.Min()), string(s.Max()))
		}
		return 0, 0, false
	}
}

// hasSignedOrder excludes columns whose Parquet statistics use an ordering
// that differs from the comparison of their Arrow values.
func (m *parquetMetadata) hasSignedOrder(column string) bool {
	indices := m.schema.FieldIndices(column)
	if len(indices) != 1 {
		return false
	}
	switch m.schema.Field(indices[0]).Type.ID() {
	case arrow.BOOL, arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.FLOAT32, arrow.FLOAT64, arrow.STRING, arrow.BINARY:
		return true
	}
	return false
}

func compareRange[T any](compare func(T) (int, bool), min, max T) (int, int, bool) {
	cmpMin, ok := compare(min)
	if !ok {
		return 0, 0, false
	}
	cmpMax, ok := compare(max)
	if !ok {
		return 0, 0, false
	}
	return cmpMin, cmpMax, true
}
