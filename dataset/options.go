package dataset

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/pkg/errors"

	"fpetkovski/arrow-dataset/expr"
)

// DefaultBatchSize is the maximum number of rows per batch requested from
// file formats when no batch size is set.
const DefaultBatchSize int64 = 1 << 20

// ScanOptions describe what a consumer wants from a scan: the schema of
// the produced batches, an optional filter and a batch size hint.
// ScanOptions are immutable and shared by pointer between the tasks of a scan.
type ScanOptions struct {
	schema    *arrow.Schema
	filter    expr.Expression
	batchSize int64
}

type ScanOption func(*ScanOptions)

func WithFilter(filter expr.Expression) ScanOption {
	return func(o *ScanOptions) {
		o.filter = filter
	}
}

func WithBatchSize(batchSize int64) ScanOption {
	return func(o *ScanOptions) {
		o.batchSize = batchSize
	}
}

func NewScanOptions(schema *arrow.Schema, opts ...ScanOption) (*ScanOptions, error) {
	options := &ScanOptions{
		schema:    schema,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	return options, nil
}

func (o *ScanOptions) validate() error {
	if o.schema == nil {
		return errors.Wrap(ErrConstruction, "scan options require a schema")
	}
	if len(o.schema.Fields()) == 0 {
		return errors.Wrap(ErrConstruction, "scan options require a schema with at least one field")
	}
	if o.batchSize <= 0 {
		return errors.Wrapf(ErrConstruction, "batch size must be positive, got %d", o.batchSize)
	}
	if o.filter != nil {
		if err := o.filter.Validate(o.schema); err != nil {
			return errors.Wrapf(ErrConstruction, "filter %s: %s", o.filter, err)
		}
	}
	return nil
}

func (o *ScanOptions) Schema() *arrow.Schema { return o.schema }

// Filter returns the filter of the scan, or nil when all rows are requested.
func (o *ScanOptions) Filter() expr.Expression { return o.filter }

func (o *ScanOptions) BatchSize() int64 { return o.batchSize }

// Project returns new options producing only the named columns, in the
// given order. The filter must only reference projected columns.
func (o *ScanOptions) Project(columns ...string) (*ScanOptions, error) {
	fields := make([]arrow.Field, 0, len(columns))
	for _, column := range columns {
		indices := o.schema.FieldIndices(column)
		if len(indices) != 1 {
			return nil, errors.Wrapf(ErrConstruction, "cannot project column %q", column)
		}
		fields = append(fields, o.schema.Field(indices[0]))
	}

	metadata := o.schema.Metadata()
	return NewScanOptions(
		arrow.NewSchema(fields, &metadata),
		WithFilter(o.filter),
		WithBatchSize(o.batchSize),
	)
}
