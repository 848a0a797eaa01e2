package expr

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/pkg/errors"
)

// Field references a column by name.
type Field string

func (f Field) Name() string { return string(f) }

// Comparison compares a column with a literal. Null values never match.
type Comparison struct {
	field Field
	op    Op
	value Literal
}

func Equal(f Field, v any) *Comparison        { return newComparison(f, OpEqual, v) }
func NotEqual(f Field, v any) *Comparison     { return newComparison(f, OpNotEqual, v) }
func Less(f Field, v any) *Comparison         { return newComparison(f, OpLess, v) }
func LessEqual(f Field, v any) *Comparison    { return newComparison(f, OpLessEqual, v) }
func Greater(f Field, v any) *Comparison      { return newComparison(f, OpGreater, v) }
func GreaterEqual(f Field, v any) *Comparison { return newComparison(f, OpGreaterEqual, v) }

func newComparison(f Field, op Op, v any) *Comparison {
	return &Comparison{field: f, op: op, value: LiteralOf(v)}
}

func (c *Comparison) Field() Field { return c.field }

func (c *Comparison) Value() Literal { return c.value }

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.field, c.op, c.value)
}

func (c *Comparison) Fields() []string { return []string{c.field.Name()} }

func (c *Comparison) Validate(schema *arrow.Schema) error {
	f, err := lookupField(schema, c.field.Name())
	if err != nil {
		return err
	}
	if !comparable(f.Type, c.value) {
		return errors.Wrapf(ErrInvalidExpression, "cannot compare field %q of type %s with %s", f.Name, f.Type, c.value)
	}
	return nil
}

// MayMatchRange reports whether a column whose values all lie between a
// minimum and a maximum can contain a matching value. cmpMin and cmpMax are
// the three-way comparisons of the minimum and maximum with the literal.
func (c *Comparison) MayMatchRange(cmpMin, cmpMax int) bool {
	switch c.op {
	case OpEqual:
		return cmpMin <= 0 && cmpMax >= 0
	case OpNotEqual:
		return !(cmpMin == 0 && cmpMax == 0)
	case OpLess:
		return cmpMin < 0
	case OpLessEqual:
		return cmpMin <= 0
	case OpGreater:
		return cmpMax > 0
	case OpGreaterEqual:
		return cmpMax >= 0
	}
	return true
}

func (c *Comparison) Evaluate(rec arrow.Record) (*roaring.Bitmap, error) {
	col, err := lookupColumn(rec, c.field.Name())
	if err != nil {
		return nil, err
	}
	var cmp func(i int) (int, bool)
	switch arr := col.(type) {
	case *array.Boolean:
		cmp = func(i int) (int, bool) { return c.value.CompareBool(arr.Value(i)) }
	case *array.Int8:
		cmp = func(i int) (int, bool) { return c.value.CompareInt64(int64(arr.Value(i))) }
	case *array.Int16:
		cmp = func(i int) (int, bool) { return c.value.CompareInt64(int64(arr.Value(i))) }
	case *array.Int32:
		cmp = func(i int) (int, bool) { return c.value.CompareInt64(int64(arr.Value(i))) }
	case *array.Int64:
		cmp = func(i int) (int, bool) { return c.value.CompareInt64(arr.Value(i)) }
	case *array.Uint8:
		cmp = func(i int) (int, bool) { return c.value.CompareUint64(uint64(arr.Value(i))) }
	case *array.Uint16:
		cmp = func(i int) (int, bool) { return c.value.CompareUint64(uint64(arr.Value(i))) }
	case *array.Uint32:
		cmp = func(i int) (int, bool) { return c.value.CompareUint64(uint64(arr.Value(i))) }
	case *array.Uint64:
		cmp = func(i int) (int, bool) { return c.value.CompareUint64(arr.Value(i)) }
	case *array.Float32:
		cmp = func(i int) (int, bool) { return c.value.CompareFloat64(float64(arr.Value(i))) }
	case *array.Float64:
		cmp = func(i int) (int, bool) { return c.value.CompareFloat64(arr.Value(i)) }
	case *array.String:
		cmp = func(i int) (int, bool) { return c.value.CompareString(arr.Value(i)) }
	case *array.LargeString:
		cmp = func(i int) (int, bool) { return c.value.CompareString(arr.Value(i)) }
	case *array.Binary:
		cmp = func(i int) (int, bool) { return c.value.CompareString(string(arr.Value(i))) }
	default:
		return nil, errors.Wrapf(ErrInvalidExpression, "unsupported column type %s for field %q", col.DataType(), c.field)
	}

	result := roaring.New()
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}
		res, ok := cmp(i)
		if ok && c.op.Matches(res) {
			result.Add(uint32(i))
		}
	}
	return result, nil
}

func comparable(dt arrow.DataType, l Literal) bool {
	switch dt.ID() {
	case arrow.BOOL:
		return l.IsBool()
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return l.IsNumeric()
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY:
		return l.IsString()
	}
	return false
}
