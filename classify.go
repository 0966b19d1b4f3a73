package simt

import (
	"fmt"

	"github.com/pkg/errors"
)

// BranchKind classifies a branch condition.
type BranchKind int

const (
	// TDC marks a condition that depends only on block/thread identity.
	// Every thread can decide it by concrete evaluation against its own id,
	// so successors are statically partitionable without a solver.
	TDC BranchKind = iota

	// SYM marks a data-dependent condition that requires a feasibility
	// check per successor and true path forking.
	SYM

	// ACCUM marks a conjunction of previously resolved thread-dependent
	// decisions, carried forward after a forked region merges back into a
	// single bookkeeping node.
	ACCUM

	// OtherBranch marks everything else, such as an unconditional successor
	// or a concretely decided condition.
	OtherBranch
)

var branchKinds = [...]string{
	TDC:         "tdc",
	SYM:         "sym",
	ACCUM:       "accum",
	OtherBranch: "other",
}

// String returns the string representation of the kind.
func (k BranchKind) String() string {
	if k >= 0 && int(k) < len(branchKinds) {
		return branchKinds[k]
	}
	return fmt.Sprintf("BranchKind<%d>", int(k))
}

// Classify determines the kind of a branch condition by inspecting which
// array spaces it reads. A condition reading any data array is SYM; one
// reading only thread/block identity is TDC; a condition reading no arrays
// at all (constant or nil) is OtherBranch. ACCUM is never inferred here;
// it is assigned explicitly when divergent regions are merged.
func Classify(cond Expr) BranchKind {
	if cond == nil {
		return OtherBranch
	}

	var hasIdentity, hasData bool
	WalkExpr(func(e Expr) bool {
		if e, ok := e.(*SelectExpr); ok {
			if e.Array.IsIdentity() {
				hasIdentity = true
			} else {
				hasData = true
			}
		}
		return true
	}, cond)

	switch {
	case hasData:
		return SYM
	case hasIdentity:
		return TDC
	default:
		return OtherBranch
	}
}

// EvalForThread concretely evaluates a thread-dependent condition for one
// thread by binding every identity array to the thread's block/thread id.
// Returns an error if the condition reads a data array.
func EvalForThread(cond Expr, blockID, threadID uint) (bool, error) {
	arrays := FindArrays(cond)
	values := make([][]uint64, len(arrays))
	for i, array := range arrays {
		var v uint64
		switch array.Space {
		case ThreadIDSpace:
			v = uint64(threadID)
		case BlockIDSpace:
			v = uint64(blockID)
		default:
			return false, errors.Errorf("condition is data-dependent: %s", array)
		}

		cells := make([]uint64, array.Size)
		for j := range cells {
			cells[j] = v
		}
		values[i] = cells
	}

	c, err := NewExprEvaluator(arrays, values).Evaluate(cond)
	if err != nil {
		return false, errors.Wrapf(err, "eval for thread (%d,%d)", blockID, threadID)
	}
	return !c.IsZero(), nil
}
