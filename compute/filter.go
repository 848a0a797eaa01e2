package compute

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/pkg/errors"

	"fpetkovski/arrow-dataset/expr"
	"fpetkovski/arrow-dataset/generic"
)

// FilterRecord returns a record with the rows of rec matched by e.
// The returned record must be released by the caller.
func FilterRecord(rec arrow.Record, e expr.Expression, mem memory.Allocator) (arrow.Record, error) {
	rows, err := e.Evaluate(rec)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %s", e)
	}
	if int64(rows.GetCardinality()) == rec.NumRows() {
		rec.Retain()
		return rec, nil
	}
	return TakeRanges(rec, SelectRanges(rows), mem)
}

// TakeRanges copies the selected row ranges of rec into a new record.
// A single range is returned as a zero-copy slice.
func TakeRanges(rec arrow.Record, selection Selection, mem memory.Allocator) (arrow.Record, error) {
	switch len(selection) {
	case 0:
		return rec.NewSlice(0, 0), nil
	case 1:
		return rec.NewSlice(selection[0].From, selection[0].To), nil
	}

	columns := make([]arrow.Array, rec.NumCols())
	err := generic.ParallelEach(rec.Columns(), func(i int, column arrow.Array) error {
		parts := make([]arrow.Array, 0, len(selection))
		for _, r := range selection {
			parts = append(parts, array.NewSlice(column, r.From, r.To))
		}
		defer releaseArrays(parts)

		var err error
		columns[i], err = array.Concatenate(parts, mem)
		return err
	})
	defer releaseArrays(columns)
	if err != nil {
		return nil, errors.Wrap(err, "concatenate selected rows")
	}

	return array.NewRecord(rec.Schema(), columns, selection.NumRows()), nil
}

func releaseArrays(arrays []arrow.Array) {
	for _, a := range arrays {
		if a != nil {
			a.Release()
		}
	}
}

type filteringIterator struct {
	iterator BatchIterator
	filter   expr.Expression
	mem      memory.Allocator
}

// NewFilteringIterator applies a filter to every record of an iterator.
// Records left without rows are still returned.
func NewFilteringIterator(iterator BatchIterator, filter expr.Expression, mem memory.Allocator) BatchIterator {
	return &filteringIterator{
		iterator: iterator,
		filter:   filter,
		mem:      mem,
	}
}

func (f *filteringIterator) NextBatch() (arrow.Record, error) {
	rec, err := f.iterator.NextBatch()
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	return FilterRecord(rec, f.filter, f.mem)
}

func (f *filteringIterator) Close() error {
	return f.iterator.Close()
}
