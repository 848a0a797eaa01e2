package expr

import (
	"strings"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/pkg/errors"
)

// AndExpr matches rows matched by all of its operands.
type AndExpr struct {
	operands []Expression
}

// OrExpr matches rows matched by any of its operands.
type OrExpr struct {
	operands []Expression
}

// NotExpr selects every row its operand does not select, including rows
// where the operand compared a null.
type NotExpr struct {
	operand Expression
}

func And(operands ...Expression) *AndExpr { return &AndExpr{operands: operands} }

func Or(operands ...Expression) *OrExpr { return &OrExpr{operands: operands} }

func Not(operand Expression) *NotExpr { return &NotExpr{operand: operand} }

func (a *AndExpr) Operands() []Expression { return a.operands }

func (a *AndExpr) String() string { return join(a.operands, " AND ") }

func (a *AndExpr) Fields() []string { return fieldsOf(a.operands) }

func (a *AndExpr) Validate(schema *arrow.Schema) error { return validateAll(schema, a.operands) }

func (a *AndExpr) Evaluate(rec arrow.Record) (*roaring.Bitmap, error) {
	if len(a.operands) == 0 {
		return allRows(rec), nil
	}
	result, err := a.operands[0].Evaluate(rec)
	if err != nil {
		return nil, err
	}
	for _, op := range a.operands[1:] {
		if result.IsEmpty() {
			break
		}
		bm, err := op.Evaluate(rec)
		if err != nil {
			return nil, err
		}
		result.And(bm)
	}
	return result, nil
}

func (o *OrExpr) Operands() []Expression { return o.operands }

func (o *OrExpr) String() string { return join(o.operands, " OR ") }

func (o *OrExpr) Fields() []string { return fieldsOf(o.operands) }

func (o *OrExpr) Validate(schema *arrow.Schema) error { return validateAll(schema, o.operands) }

func (o *OrExpr) Evaluate(rec arrow.Record) (*roaring.Bitmap, error) {
	result := roaring.New()
	for _, op := range o.operands {
		bm, err := op.Evaluate(rec)
		if err != nil {
			return nil, err
		}
		result.Or(bm)
	}
	return result, nil
}

func (n *NotExpr) String() string { return "NOT (" + n.operand.String() + ")" }

func (n *NotExpr) Fields() []string { return n.operand.Fields() }

func (n *NotExpr) Validate(schema *arrow.Schema) error {
	if n.operand == nil {
		return errors.Wrap(ErrInvalidExpression, "NOT without operand")
	}
	return n.operand.Validate(schema)
}

func (n *NotExpr) Evaluate(rec arrow.Record) (*roaring.Bitmap, error) {
	bm, err := n.operand.Evaluate(rec)
	if err != nil {
		return nil, err
	}
	bm.Flip(0, uint64(rec.NumRows()))
	return bm, nil
}

func allRows(rec arrow.Record) *roaring.Bitmap {
	bm := roaring.New()
	bm.AddRange(0, uint64(rec.NumRows()))
	return bm
}

func join(operands []Expression, sep string) string {
	parts := make([]string, 0, len(operands))
	for _, op := range operands {
		parts = append(parts, op.String())
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func fieldsOf(operands []Expression) []string {
	var fields []string
	for _, op := range operands {
		fields = append(fields, op.Fields()...)
	}
	return dedupFields(fields)
}

func validateAll(schema *arrow.Schema, operands []Expression) error {
	for _, op := range operands {
		if op == nil {
			return errors.Wrap(ErrInvalidExpression, "nil operand")
		}
		if err := op.Validate(schema); err != nil {
			return err
		}
	}
	return nil
}
