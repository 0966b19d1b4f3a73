package simt

import (
	"github.com/pkg/errors"
)

// ExprEvaluator evaluates expressions using known array values.
type ExprEvaluator struct {
	m map[uint64][]uint64 // mapping of array id to cell values
}

// NewExprEvaluator returns a new instance of ExprEvaluator with the given
// array/value mapping. Each value slice holds one entry per array cell.
func NewExprEvaluator(arrays []*Array, values [][]uint64) *ExprEvaluator {
	assert(len(arrays) == len(values), "array/value count mismatch: %d != %d", len(arrays), len(values))

	m := make(map[uint64][]uint64)
	for i, array := range arrays {
		_, ok := m[array.ID]
		assert(!ok, "duplicate array: id=%d", array.ID)
		assert(uint(len(values[i])) == array.Size, "array value size mismatch: id=%d %d != %d", array.ID, len(values[i]), array.Size)
		m[array.ID] = values[i]
	}

	return &ExprEvaluator{m: m}
}

// Evaluate evaluates expr to a constant expression.
// Returns an error if an unbound array is encountered.
func (ee *ExprEvaluator) Evaluate(expr Expr) (*ConstantExpr, error) {
	switch expr := expr.(type) {
	case *BinaryExpr:
		lhs, err := ee.Evaluate(expr.LHS)
		if err != nil {
			return nil, errors.Wrap(err, "lhs")
		}
		rhs, err := ee.Evaluate(expr.RHS)
		if err != nil {
			return nil, errors.Wrap(err, "rhs")
		}
		return NewBinaryExpr(expr.Op, lhs, rhs).(*ConstantExpr), nil
	case *ConstantExpr:
		return expr, nil
	case *NotExpr:
		exp, err := ee.Evaluate(expr.Expr)
		if err != nil {
			return nil, err
		}
		return exp.Not(), nil
	case *SelectExpr:
		i, err := ee.Evaluate(expr.Index)
		if err != nil {
			return nil, errors.Wrap(err, "select index")
		}

		cells, ok := ee.m[expr.Array.ID]
		if !ok {
			return nil, errors.Errorf("array not bound: id=%d", expr.Array.ID)
		} else if i.Value >= uint64(len(cells)) {
			return nil, errors.Errorf("select index out of bounds: %d >= %d", i.Value, len(cells))
		}
		return NewConstantExpr(cells[i.Value], expr.Array.Width), nil

	default:
		return nil, errors.Errorf("invalid expression type: %T", expr)
	}
}
