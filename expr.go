package simt

import (
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/immutable"
)

// Expr represents an immutable, hash-consed symbolic expression.
//
// Constructors canonicalize (constants are folded, constant operands are
// moved to the left, double negation cancels) and intern the result, so
// structurally identical expressions are pointer-identical. Expressions
// must never be mutated after construction.
type Expr interface {
	expr()
	String() string
}

func (*BinaryExpr) expr()   {}
func (*ConstantExpr) expr() {}
func (*NotExpr) expr()      {}
func (*SelectExpr) expr()   {}

// ExprWidth returns the bit width of the expression.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *SelectExpr:
		return expr.Array.Width
	case *NotExpr:
		return ExprWidth(expr.Expr)
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return WidthBool
		}
		return ExprWidth(expr.LHS)
	default:
		panic("unreachable")
	}
}

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations. Comparisons are canonicalized to EQ/ULT/ULE/SLT/SLE;
// the remaining comparison operators are rewritten during construction and
// never appear in a built expression.
const (
	arithmeticOpBegin = BinaryOp(iota)
	ADD
	SUB
	MUL
	AND
	OR
	XOR
	arithmeticOpEnd

	compareOpBegin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compareOpEnd
)

var binaryOps = [...]string{
	ADD: "add",
	SUB: "sub",
	MUL: "mul",
	AND: "and",
	OR:  "or",
	XOR: "xor",
	EQ:  "eq",
	NE:  "ne",
	ULT: "ult",
	ULE: "ule",
	UGT: "ugt",
	UGE: "uge",
	SLT: "slt",
	SLE: "sle",
	SGT: "sgt",
	SGE: "sge",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmeticOpBegin && op < arithmeticOpEnd
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compareOpBegin && op < compareOpEnd
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns the canonical expression for op applied to lhs & rhs.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(ExprWidth(lhs) == ExprWidth(rhs), "binary expr width mismatch: op=%s %d != %d", op, ExprWidth(lhs), ExprWidth(rhs))

	switch op {
	// Arithmetic operators
	case ADD:
		return newAddExpr(lhs, rhs)
	case SUB:
		return newSubExpr(lhs, rhs)
	case MUL:
		return newMulExpr(lhs, rhs)
	case AND:
		return newAndExpr(lhs, rhs)
	case OR:
		return newOrExpr(lhs, rhs)
	case XOR:
		return newXorExpr(lhs, rhs)

	// Comparison operators
	case EQ:
		return newEqExpr(lhs, rhs)
	case NE:
		return NewNotExpr(newEqExpr(lhs, rhs))
	case ULT:
		return newUltExpr(lhs, rhs)
	case UGT:
		return newUltExpr(rhs, lhs) // reverse
	case ULE:
		return newUleExpr(lhs, rhs)
	case UGE:
		return newUleExpr(rhs, lhs) // reverse
	case SLT:
		return newSltExpr(lhs, rhs)
	case SGT:
		return newSltExpr(rhs, lhs) // reverse
	case SLE:
		return newSleExpr(lhs, rhs)
	case SGE:
		return newSleExpr(rhs, lhs) // reverse

	default:
		panic("unreachable")
	}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// newAddExpr returns the expression representing the sum of lhs & rhs.
func newAddExpr(lhs, rhs Expr) Expr {
	// Move constant expression to left hand side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Addition of booleans is XOR.
	if ExprWidth(lhs) == WidthBool {
		return newXorExpr(lhs, rhs)
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value == 0 {
			return rhs
		} else if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Add(rhs)
		}
	}
	return intern(&BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs})
}

// newSubExpr returns an expression representing the difference of lhs & rhs.
func newSubExpr(lhs, rhs Expr) Expr {
	// Subtracting a value from itself is zero.
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Sub(rhs)
		}
	}

	// Subtraction of booleans is XOR.
	if ExprWidth(lhs) == WidthBool {
		return newXorExpr(lhs, rhs)
	}

	// If constant is on right side, refactor to addition with the constant
	// negated and moved to the left.
	if rhs, ok := rhs.(*ConstantExpr); ok && !IsConstantExpr(lhs) {
		return newAddExpr(NewConstantExpr(0, rhs.Width).Sub(rhs), lhs)
	}
	return intern(&BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs})
}

// newMulExpr returns an expression that represents the product of lhs & rhs.
func newMulExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if IsConstantExpr(rhs) && !IsConstantExpr(lhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Mul(rhs)
		}
	}

	// Multiplication of booleans is AND.
	if ExprWidth(lhs) == WidthBool {
		return newAndExpr(lhs, rhs)
	}

	// Optimize for multiplication with a constant 1 or 0.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value == 1 {
			return rhs
		} else if lhs.Value == 0 {
			return lhs
		}
	}
	return intern(&BinaryExpr{Op: MUL, LHS: lhs, RHS: rhs})
}

// newAndExpr returns an expression that represents the bitwise AND of lhs & rhs.
func newAndExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.And(rhs)
		}
	}

	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return lhs
		} else if rhs.Value == 0 {
			return rhs
		}
	}

	// AND of a value with itself is the value.
	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	}
	return intern(&BinaryExpr{Op: AND, LHS: lhs, RHS: rhs})
}

// newOrExpr returns an expression that represents the bitwise OR of lhs & rhs.
func newOrExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Or(rhs)
		}
	}

	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return rhs
		} else if rhs.Value == 0 {
			return lhs
		}
	}

	// OR of a value with itself is the value.
	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	}
	return intern(&BinaryExpr{Op: OR, LHS: lhs, RHS: rhs})
}

// newXorExpr returns an expression that represents the bitwise XOR of lhs & rhs.
func newXorExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value == 0 {
			return rhs
		} else if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Xor(rhs)
		}
	}

	// XOR of a value with itself is zero.
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return intern(&BinaryExpr{Op: XOR, LHS: lhs, RHS: rhs})
}

// newEqExpr returns an expression that represents the equality of lhs and rhs.
func newEqExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Eq(rhs)
		}

		// Comparing a boolean constant reduces to the value or its negation.
		if lhs.Width == WidthBool {
			if lhs.IsTrue() {
				return rhs
			}
			return NewNotExpr(rhs)
		}
	}

	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(1, WidthBool)
	}
	return intern(&BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs})
}

// newUltExpr returns an expression that represents if lhs is less than rhs (unsigned).
func newUltExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Ult(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, WidthBool)
	}
	return intern(&BinaryExpr{Op: ULT, LHS: lhs, RHS: rhs})
}

// newUleExpr returns an expression that represents if lhs is less than or equal to rhs (unsigned).
func newUleExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Ule(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(1, WidthBool)
	}
	return intern(&BinaryExpr{Op: ULE, LHS: lhs, RHS: rhs})
}

// newSltExpr returns an expression that represents if lhs is less than rhs (signed).
func newSltExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Slt(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, WidthBool)
	}
	return intern(&BinaryExpr{Op: SLT, LHS: lhs, RHS: rhs})
}

// newSleExpr returns an expression that represents if lhs is less than or equal to rhs (signed).
func newSleExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Sle(rhs)
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(1, WidthBool)
	}
	return intern(&BinaryExpr{Op: SLE, LHS: lhs, RHS: rhs})
}

// SelectExpr represents a read of one cell of a symbolic array.
type SelectExpr struct {
	Array *Array
	Index Expr
}

// NewSelectExpr returns the canonical expression reading array at index.
func NewSelectExpr(a *Array, index Expr) Expr {
	assert(a != nil, "select: nil array")
	return intern(&SelectExpr{Array: a, Index: index})
}

// String returns the string representation of the expression.
func (e *SelectExpr) String() string {
	return fmt.Sprintf("(select %s %s)", e.Array, e.Index)
}

// NotExpr represents a bitwise NOT of an expression. For boolean-width
// expressions this is logical negation.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns the canonical negation of expr.
// Double negation cancels, so negating twice restores the identical value.
func NewNotExpr(expr Expr) Expr {
	if expr, ok := expr.(*ConstantExpr); ok {
		return expr.Not()
	}
	if expr, ok := expr.(*NotExpr); ok {
		return expr.Expr
	}
	return intern(&NotExpr{Expr: expr})
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// ConstantExpr represents a fixed-width integer constant.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns the canonical constant for value at width.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	return intern(&ConstantExpr{
		Value: value & bitmask(width),
		Width: width,
	}).(*ConstantExpr)
}

// NewConstantExpr32 returns a 32-bit constant expression.
func NewConstantExpr32(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width32)
}

// NewConstantExpr64 returns a 64-bit constant expression.
func NewConstantExpr64(value uint64) *ConstantExpr {
	return NewConstantExpr(value, Width64)
}

// NewBoolConstantExpr is an ease of use function for creating constant boolean expressions.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return NewConstantExpr(1, WidthBool)
	}
	return NewConstantExpr(0, WidthBool)
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	return fmt.Sprintf("(const %d %d)", e.Value, e.Width)
}

// IsTrue returns true if this is a boolean true expression.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value != 0
}

// IsFalse returns true if this is a boolean false expression.
func (e *ConstantExpr) IsFalse() bool {
	return e.Width == WidthBool && e.Value == 0
}

// IsZero returns true if the value is a constant zero of any width.
func (e *ConstantExpr) IsZero() bool {
	return e.Value == 0
}

// IsAllOnes returns true if all bits in the value are one.
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value == bitmask(e.Width)
}

// Add returns the sum of e and other.
func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "add: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value+other.Value, e.Width)
}

// Sub returns the difference of e and other.
func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "sub: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value-other.Value, e.Width)
}

// Mul returns the product of e and other.
func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "mul: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value*other.Value, e.Width)
}

// And returns the bitwise AND of e and other.
func (e *ConstantExpr) And(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "and: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value&other.Value, e.Width)
}

// Or returns the bitwise OR of e and other.
func (e *ConstantExpr) Or(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "or: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value|other.Value, e.Width)
}

// Xor returns the bitwise XOR of e and other.
func (e *ConstantExpr) Xor(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "xor: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value^other.Value, e.Width)
}

// Not returns the bitwise NOT of the expression.
func (e *ConstantExpr) Not() *ConstantExpr {
	return NewConstantExpr((^e.Value)&bitmask(e.Width), e.Width)
}

// Eq returns the equality of e and other.
func (e *ConstantExpr) Eq(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "eq: width mismatch: %d != %d", e.Width, other.Width)
	return NewBoolConstantExpr(e.Value == other.Value)
}

// Ult returns the unsigned less than comparison of e to other.
func (e *ConstantExpr) Ult(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "ult: width mismatch: %d != %d", e.Width, other.Width)
	return NewBoolConstantExpr(e.Value < other.Value)
}

// Ule returns the unsigned less than or equal to comparison of e to other.
func (e *ConstantExpr) Ule(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "ule: width mismatch: %d != %d", e.Width, other.Width)
	return NewBoolConstantExpr(e.Value <= other.Value)
}

// Slt returns the signed less than comparison of e to other.
func (e *ConstantExpr) Slt(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "slt: width mismatch: %d != %d", e.Width, other.Width)
	return NewBoolConstantExpr(signed(e.Value, e.Width) < signed(other.Value, other.Width))
}

// Sle returns the signed less than or equal to comparison of e to other.
func (e *ConstantExpr) Sle(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "sle: width mismatch: %d != %d", e.Width, other.Width)
	return NewBoolConstantExpr(signed(e.Value, e.Width) <= signed(other.Value, other.Width))
}

// signed reinterprets a width-bit value as a signed integer.
func signed(value uint64, width uint) int64 {
	switch width {
	case WidthBool:
		return int64(value)
	case Width8:
		return int64(int8(value))
	case Width16:
		return int64(int16(value))
	case Width32:
		return int64(int32(value))
	case Width64:
		return int64(value)
	default:
		panic(fmt.Sprintf("signed: non-standard width: %d", width))
	}
}

func bitmask(width uint) uint64 {
	return (1 << width) - 1
}

// IsConstantExpr returns true if expr is an instance of ConstantExpr.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsConstantTrue returns true if expr is an instance of ConstantExpr and is true.
func IsConstantTrue(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsTrue()
}

// IsConstantFalse returns true if expr is an instance of ConstantExpr and is false.
func IsConstantFalse(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsFalse()
}

// IsConstantZero returns true if expr is an instance of ConstantExpr and is zero.
func IsConstantZero(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsZero()
}

// NewIsZeroExpr returns an expression that checks the equality of other to zero.
func NewIsZeroExpr(other Expr) Expr {
	return NewBinaryExpr(EQ, other, NewConstantExpr(0, ExprWidth(other)))
}

// CompareExpr returns an integer comparing two expressions structurally.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareExpr(a, b Expr) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if ak, bk := exprKind(a), exprKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *SelectExpr:
		return compareSelectExpr(a, b.(*SelectExpr))
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	default:
		panic("unreachable")
	}
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}

	if a.Value < b.Value {
		return -1
	} else if a.Value > b.Value {
		return 1
	}
	return 0
}

func compareSelectExpr(a, b *SelectExpr) int {
	if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
		return cmp
	}
	return CompareArray(a.Array, b.Array)
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *SelectExpr:
		return 2
	case *NotExpr:
		return 3
	case *BinaryExpr:
		return 4
	default:
		panic("unreachable")
	}
}

func exprKindName(expr Expr) string {
	switch expr.(type) {
	case *ConstantExpr:
		return "const"
	case *SelectExpr:
		return "select"
	case *NotExpr:
		return "not"
	case *BinaryExpr:
		return "binary"
	default:
		panic("unreachable")
	}
}

// internTable is the process-wide de-duplication table. Keys are compared
// structurally so canonicalization is independent of allocation addresses.
var internTable = struct {
	mu     sync.Mutex
	m      *immutable.SortedMap
	counts map[string]int
}{
	m:      immutable.NewSortedMap(&exprComparer{}),
	counts: make(map[string]int),
}

// intern returns the canonical instance of expr, registering it on first use.
func intern(expr Expr) Expr {
	internTable.mu.Lock()
	defer internTable.mu.Unlock()

	if v, ok := internTable.m.Get(expr); ok {
		return v.(Expr)
	}
	internTable.m = internTable.m.Set(expr, expr)
	internTable.counts[exprKindName(expr)]++
	return expr
}

// InternedExprCount returns the number of distinct expressions ever interned.
func InternedExprCount() int {
	internTable.mu.Lock()
	defer internTable.mu.Unlock()

	var n int
	for _, c := range internTable.counts {
		n += c
	}
	return n
}

// InternStats returns the per-kind count of distinct interned expressions.
func InternStats() map[string]int {
	internTable.mu.Lock()
	defer internTable.mu.Unlock()

	m := make(map[string]int, len(internTable.counts))
	for k, v := range internTable.counts {
		m[k] = v
	}
	return m
}

// exprComparer compares expressions structurally. Implements immutable.Comparer.
type exprComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b,
// and returns 0 if a is equal to b. Panic if a or b is not an Expr.
func (c *exprComparer) Compare(a, b interface{}) int {
	return CompareExpr(a.(Expr), b.(Expr))
}

// WalkExpr visits expr and its children in depth-first pre-order.
// Descent below a node stops when fn returns false.
func WalkExpr(fn func(Expr) bool, expr Expr) {
	if expr == nil || !fn(expr) {
		return
	}

	switch expr := expr.(type) {
	case *BinaryExpr:
		WalkExpr(fn, expr.LHS)
		WalkExpr(fn, expr.RHS)
	case *NotExpr:
		WalkExpr(fn, expr.Expr)
	case *SelectExpr:
		WalkExpr(fn, expr.Index)
	case *ConstantExpr:
		// nop
	default:
		panic("unreachable")
	}
}

// FindArrays returns all symbolic arrays in the expression trees, sorted.
func FindArrays(exprs ...Expr) []*Array {
	m := make(map[uint64]*Array)
	for _, expr := range exprs {
		WalkExpr(func(e Expr) bool {
			if e, ok := e.(*SelectExpr); ok {
				if _, ok := m[e.Array.ID]; !ok {
					m[e.Array.ID] = e.Array
				}
			}
			return true
		}, expr)
	}

	a := make([]*Array, 0, len(m))
	for _, array := range m {
		a = append(a, array)
	}
	sort.Slice(a, func(i, j int) bool { return CompareArray(a[i], a[j]) == -1 })
	return a
}
