package expr

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/model/labels"
)

// MatcherExpr applies a Prometheus label matcher to a string column.
// Nulls are matched as the empty string, the same way Prometheus treats a
// missing label.
type MatcherExpr struct {
	matcher *labels.Matcher
}

func Match(m *labels.Matcher) *MatcherExpr { return &MatcherExpr{matcher: m} }

// FromMatchers combines label matchers into a conjunction.
func FromMatchers(matchers ...*labels.Matcher) Expression {
	if len(matchers) == 1 {
		return Match(matchers[0])
	}
	operands := make([]Expression, 0, len(matchers))
	for _, m := range matchers {
		operands = append(operands, Match(m))
	}
	return And(operands...)
}

func (m *MatcherExpr) Matcher() *labels.Matcher { return m.matcher }

func (m *MatcherExpr) String() string { return m.matcher.String() }

func (m *MatcherExpr) Fields() []string { return []string{m.matcher.Name} }

func (m *MatcherExpr) Validate(schema *arrow.Schema) error {
	f, err := lookupField(schema, m.matcher.Name)
	if err != nil {
		return err
	}
	switch f.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY:
		return nil
	}
	return errors.Wrapf(ErrInvalidExpression, "matcher %s requires a string column, got %s", m.matcher, f.Type)
}

func (m *MatcherExpr) Evaluate(rec arrow.Record) (*roaring.Bitmap, error) {
	col, err := lookupColumn(rec, m.matcher.Name)
	if err != nil {
		return nil, err
	}
	var value func(i int) string
	switch arr := col.(type) {
	case *array.String:
		value = arr.Value
	case *array.LargeString:
		value = arr.Value
	case *array.Binary:
		value = arr.ValueString
	default:
		return nil, errors.Wrapf(ErrInvalidExpression, "unsupported column type %s for matcher %s", col.DataType(), m.matcher)
	}

	result := roaring.New()
	for i := 0; i < col.Len(); i++ {
		v := ""
		if col.IsValid(i) {
			v = value(i)
		}
		if m.matcher.Matches(v) {
			result.Add(uint32(i))
		}
	}
	return result, nil
}
