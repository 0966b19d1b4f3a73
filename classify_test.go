package simt_test

import (
	"testing"

	"github.com/simtexec/simt"
)

func TestClassify(t *testing.T) {
	t.Run("TDC", func(t *testing.T) {
		cond := simt.NewBinaryExpr(simt.ULT, threadIDExpr(1), simt.NewConstantExpr32(2))
		if kind := simt.Classify(cond); kind != simt.TDC {
			t.Fatalf("unexpected kind: %s", kind)
		}
	})

	t.Run("TDCBlock", func(t *testing.T) {
		bid := simt.NewSelectExpr(simt.NewBlockIDArray(2), simt.NewConstantExpr32(0))
		cond := simt.NewIsZeroExpr(bid)
		if kind := simt.Classify(cond); kind != simt.TDC {
			t.Fatalf("unexpected kind: %s", kind)
		}
	})

	t.Run("SYM", func(t *testing.T) {
		data := simt.NewSelectExpr(simt.NewDataArray(3, 1, 32), simt.NewConstantExpr32(0))
		cond := simt.NewBinaryExpr(simt.ULT, data, simt.NewConstantExpr32(10))
		if kind := simt.Classify(cond); kind != simt.SYM {
			t.Fatalf("unexpected kind: %s", kind)
		}
	})

	t.Run("SYMMixed", func(t *testing.T) {
		// A condition mixing identity and data is still data-dependent.
		data := simt.NewSelectExpr(simt.NewDataArray(4, 1, 32), simt.NewConstantExpr32(0))
		cond := simt.NewBinaryExpr(simt.ULT, threadIDExpr(1), data)
		if kind := simt.Classify(cond); kind != simt.SYM {
			t.Fatalf("unexpected kind: %s", kind)
		}
	})

	t.Run("Other", func(t *testing.T) {
		if kind := simt.Classify(simt.NewBoolConstantExpr(true)); kind != simt.OtherBranch {
			t.Fatalf("unexpected kind: %s", kind)
		}
	})

	t.Run("Nil", func(t *testing.T) {
		if kind := simt.Classify(nil); kind != simt.OtherBranch {
			t.Fatalf("unexpected kind: %s", kind)
		}
	})
}

func TestEvalForThread(t *testing.T) {
	t.Run("ThreadID", func(t *testing.T) {
		cond := simt.NewBinaryExpr(simt.ULT, threadIDExpr(1), simt.NewConstantExpr32(2))

		for tid, want := range map[uint]bool{0: true, 1: true, 2: false, 3: false} {
			if got, err := simt.EvalForThread(cond, 0, tid); err != nil {
				t.Fatal(err)
			} else if got != want {
				t.Fatalf("tid %d: unexpected result: %v", tid, got)
			}
		}
	})

	t.Run("BlockID", func(t *testing.T) {
		bid := simt.NewSelectExpr(simt.NewBlockIDArray(2), simt.NewConstantExpr32(0))
		cond := simt.NewIsZeroExpr(bid)

		if got, err := simt.EvalForThread(cond, 0, 5); err != nil {
			t.Fatal(err)
		} else if !got {
			t.Fatal("expected true for block 0")
		}
		if got, err := simt.EvalForThread(cond, 1, 5); err != nil {
			t.Fatal(err)
		} else if got {
			t.Fatal("expected false for block 1")
		}
	})

	t.Run("ErrDataDependent", func(t *testing.T) {
		data := simt.NewSelectExpr(simt.NewDataArray(3, 1, 32), simt.NewConstantExpr32(0))
		cond := simt.NewIsZeroExpr(data)
		if _, err := simt.EvalForThread(cond, 0, 0); err == nil {
			t.Fatal("expected error")
		}
	})
}
