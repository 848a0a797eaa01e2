package dataset

import (
	"testing"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var pointSchema = arrow.NewSchema([]arrow.Field{
	{Name: "visible", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "point", Type: arrow.PrimitiveTypes.Int32},
}, nil)

func newPointBatch(mem memory.Allocator, visible []bool, points []int32) arrow.Record {
	b := array.NewRecordBuilder(mem, pointSchema)
	defer b.Release()

	b.Field(0).(*array.BooleanBuilder).AppendValues(visible, nil)
	b.Field(1).(*array.Int32Builder).AppendValues(points, nil)
	return b.NewRecord()
}

// newPointBatches returns the two batches used throughout the tests.
func newPointBatches(mem memory.Allocator) []arrow.Record {
	return []arrow.Record{
		newPointBatch(mem, []bool{true, false, true}, []int32{1, 2, 3}),
		newPointBatch(mem, []bool{false, true, false, true}, []int32{-1, -2, -3, -4}),
	}
}

func pointsOf(batches ...arrow.Record) []int32 {
	points := []int32{}
	for _, b := range batches {
		idx := b.Schema().FieldIndices("point")[0]
		points = append(points, b.Column(idx).(*array.Int32).Int32Values()...)
	}
	return points
}

func visibleOf(batches ...arrow.Record) []bool {
	visible := []bool{}
	for _, b := range batches {
		idx := b.Schema().FieldIndices("visible")[0]
		col := b.Column(idx).(*array.Boolean)
		for i := 0; i < col.Len(); i++ {
			visible = append(visible, col.Value(i))
		}
	}
	return visible
}
