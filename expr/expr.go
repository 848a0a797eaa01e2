package expr

import (
	"fmt"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/pkg/errors"
)

// Expression is a boolean predicate over the rows of a record.
type Expression interface {
	fmt.Stringer
	// Fields returns the names of the columns referenced by the expression.
	Fields() []string
	// Validate checks that every referenced column exists in the schema
	// and can be compared with the literals it is used with.
	Validate(schema *arrow.Schema) error
	// Evaluate returns the indices of the rows matching the expression.
	Evaluate(rec arrow.Record) (*roaring.Bitmap, error)
}

var ErrInvalidExpression = errors.New("invalid expression")

type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	}
	return "?"
}

// Matches reports whether a three-way comparison result between a column
// value and a literal satisfies the operator.
func (o Op) Matches(cmp int) bool {
	switch o {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	}
	return false
}

type kind int

const (
	kindInvalid kind = iota
	kindBool
	kindInt
	kindUint
	kindFloat
	kindString
)

// Literal is a constant operand of a comparison.
type Literal struct {
	kind kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	raw  any
}

func LiteralOf(v any) Literal {
	l := Literal{raw: v}
	switch val := v.(type) {
	case bool:
		l.kind, l.b = kindBool, val
	case int:
		l.kind, l.i = kindInt, int64(val)
	case int8:
		l.kind, l.i = kindInt, int64(val)
	case int16:
		l.kind, l.i = kindInt, int64(val)
	case int32:
		l.kind, l.i = kindInt, int64(val)
	case int64:
		l.kind, l.i = kindInt, val
	case uint:
		l.kind, l.u = kindUint, uint64(val)
	case uint8:
		l.kind, l.u = kindUint, uint64(val)
	case uint16:
		l.kind, l.u = kindUint, uint64(val)
	case uint32:
		l.kind, l.u = kindUint, uint64(val)
	case uint64:
		l.kind, l.u = kindUint, val
	case float32:
		l.kind, l.f = kindFloat, float64(val)
	case float64:
		l.kind, l.f = kindFloat, val
	case string:
		l.kind, l.s = kindString, val
	case []byte:
		l.kind, l.s = kindString, string(val)
	}
	return l
}

func (l Literal) IsNumeric() bool {
	return l.kind == kindInt || l.kind == kindUint || l.kind == kindFloat
}

func (l Literal) IsString() bool { return l.kind == kindString }

func (l Literal) IsBool() bool { return l.kind == kindBool }

func (l Literal) String() string {
	if l.kind == kindString {
		return fmt.Sprintf("%q", l.s)
	}
	return fmt.Sprintf("%v", l.raw)
}

// CompareInt64 compares v with the literal. The second result is false when
// the two are not comparable.
func (l Literal) CompareInt64(v int64) (int, bool) {
	switch l.kind {
	case kindInt:
		return compareOrdered(v, l.i), true
	case kindUint:
		if v < 0 {
			return -1, true
		}
		return compareOrdered(uint64(v), l.u), true
	case kindFloat:
		return compareFloats(float64(v), l.f)
	}
	return 0, false
}

func (l Literal) CompareUint64(v uint64) (int, bool) {
	switch l.kind {
	case kindInt:
		if l.i < 0 {
			return 1, true
		}
		return compareOrdered(v, uint64(l.i)), true
	case kindUint:
		return compareOrdered(v, l.u), true
	case kindFloat:
		return compareFloats(float64(v), l.f)
	}
	return 0, false
}

func (l Literal) CompareFloat64(v float64) (int, bool) {
	switch l.kind {
	case kindInt:
		return compareFloats(v, float64(l.i))
	case kindUint:
		return compareFloats(v, float64(l.u))
	case kindFloat:
		return compareFloats(v, l.f)
	}
	return 0, false
}

func (l Literal) CompareString(v string) (int, bool) {
	if l.kind != kindString {
		return 0, false
	}
	return strings.Compare(v, l.s), true
}

func (l Literal) CompareBool(v bool) (int, bool) {
	if l.kind != kindBool {
		return 0, false
	}
	return compareOrdered(boolToInt(v), boolToInt(l.b)), true
}

type ordered interface {
	~int | ~int64 | ~uint64
}

func compareOrdered[T ordered](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func compareFloats(a, b float64) (int, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, false
	}
	if a < b {
		return -1, true
	}
	if a > b {
		return 1, true
	}
	return 0, true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func dedupFields(fields []string) []string {
	seen := make(map[string]struct{}, len(fields))
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		result = append(result, f)
	}
	return result
}

func lookupField(schema *arrow.Schema, name string) (arrow.Field, error) {
	indices := schema.FieldIndices(name)
	switch len(indices) {
	case 0:
		return arrow.Field{}, errors.Wrapf(ErrInvalidExpression, "field %q not found", name)
	case 1:
		return schema.Field(indices[0]), nil
	default:
		return arrow.Field{}, errors.Wrapf(ErrInvalidExpression, "field %q is ambiguous", name)
	}
}

func lookupColumn(rec arrow.Record, name string) (arrow.Array, error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) != 1 {
		return nil, errors.Wrapf(ErrInvalidExpression, "field %q not found in record", name)
	}
	return rec.Column(indices[0]), nil
}
