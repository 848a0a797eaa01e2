package dataset

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/pkg/errors"
)

// projection maps the fields of a requested schema onto the columns of a
// native schema by name.
type projection struct {
	schema  *arrow.Schema
	indices []int
}

// newProjection returns nil when the requested schema equals the native one.
func newProjection(native, requested *arrow.Schema) (*projection, error) {
	if requested.Equal(native) {
		return nil, nil
	}

	indices, err := fieldIndices(native, requested)
	if err != nil {
		return nil, err
	}
	return &projection{schema: requested, indices: indices}, nil
}

func fieldIndices(native, requested *arrow.Schema) ([]int, error) {
	indices := make([]int, 0, len(requested.Fields()))
	for _, field := range requested.Fields() {
		matches := native.FieldIndices(field.Name)
		switch len(matches) {
		case 0:
			return nil, errors.Wrapf(ErrSchemaMismatch, "field %q not found", field.Name)
		case 1:
		default:
			return nil, errors.Wrapf(ErrSchemaMismatch, "field %q is ambiguous", field.Name)
		}

		nativeField := native.Field(matches[0])
		if !arrow.TypeEqual(nativeField.Type, field.Type) {
			return nil, errors.Wrapf(ErrSchemaMismatch, "field %q has type %s, requested %s", field.Name, nativeField.Type, field.Type)
		}
		indices = append(indices, matches[0])
	}
	return indices, nil
}

// project selects and reorders the columns of rec. Arrays are shared with
// the input record.
func (p *projection) project(rec arrow.Record) arrow.Record {
	columns := make([]arrow.Array, 0, len(p.indices))
	for _, i := range p.indices {
		columns = append(columns, rec.Column(i))
	}
	return array.NewRecord(p.schema, columns, rec.NumRows())
}

type projectingIterator struct {
	iterator   RecordBatchIterator
	projection *projection
}

func newProjectingIterator(it RecordBatchIterator, p *projection) RecordBatchIterator {
	if p == nil {
		return it
	}
	return &projectingIterator{iterator: it, projection: p}
}

func (p *projectingIterator) NextBatch() (arrow.Record, error) {
	batch, err := p.iterator.NextBatch()
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	return p.projection.project(batch), nil
}

func (p *projectingIterator) Close() error {
	return p.iterator.Close()
}
