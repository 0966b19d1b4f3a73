package simt_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/simtexec/simt"
)

// dataCond returns a data-dependent boolean condition over a fresh array id.
func dataCond(id uint64) simt.Expr {
	cell := simt.NewSelectExpr(simt.NewDataArray(id, 1, 32), simt.NewConstantExpr32(0))
	return simt.NewIsZeroExpr(cell)
}

// checkPartition fails the test unless the node's config ranges exactly
// partition [0, frontier): no gaps, no overlaps.
func checkPartition(tb testing.TB, node *simt.DivergenceNode) {
	tb.Helper()

	var next uint
	for i := range node.Configs {
		cfg := &node.Configs[i]
		if cfg.Start != next {
			tb.Fatalf("config %d: range [%d,%d) does not continue at %d", i, cfg.Start, cfg.End, next)
		}
		if cfg.End < cfg.Start {
			tb.Fatalf("config %d: inverted range [%d,%d)", i, cfg.Start, cfg.End)
		}
		next = cfg.End
	}
}

func TestDivergenceTree_Insert(t *testing.T) {
	tree := simt.NewDivergenceTree()
	if !tree.Empty() || tree.NodeCount() != 0 {
		t.Fatal("expected empty tree")
	}

	root := simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil)
	tree.Insert(root)
	if tree.Root() != root || tree.Current() != root {
		t.Fatal("expected root to become current")
	}
	if tree.NodeCount() != 1 {
		t.Fatalf("unexpected node count: %d", tree.NodeCount())
	}

	cond := dataCond(1)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, cond, 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)

	child := simt.NewDivergenceNode(2, 100, simt.OtherBranch, false, false, cond, nil)
	tree.Insert(child)
	if tree.Current() != child || child.Parent() != root {
		t.Fatal("expected cursor to advance to child")
	}
	if root.Children[0] != child {
		t.Fatal("expected child attached at explored successor")
	}
	if tree.NodeCount() != 2 {
		t.Fatalf("unexpected node count: %d", tree.NodeCount())
	}

	t.Run("ErrStaleCursor", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		tree.ResetCurrentToRoot()
		tree.Insert(simt.NewDivergenceNode(3, 100, simt.OtherBranch, false, false, nil, nil))
	})
}

func TestDivergenceTree_RangeBookkeeping(t *testing.T) {
	// Threads 0 and 1 take a data-dependent branch under condition c,
	// threads 2 and 3 take the complement.
	tree := simt.NewDivergenceTree()
	tree.Insert(simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil))

	cond := dataCond(1)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, cond, 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)
	tree.IncrementCurrentRange(1, 0)

	notCond := simt.NewNotExpr(cond)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 2, notCond, 2, 2), simt.SYM)
	tree.InitCurrentRange(2, 1)
	tree.IncrementCurrentRange(3, 1)

	node := tree.Current()
	checkPartition(t, node)

	want := []simt.BranchConfig{
		{BlockID: 0, ThreadID: 0, Cond: cond, Start: 0, End: 2},
		{BlockID: 0, ThreadID: 2, Cond: notCond, Start: 2, End: 4},
	}
	if diff := cmp.Diff(want, node.Configs); diff != "" {
		t.Fatalf("unexpected configs (-want +got):\n%s", diff)
	}

	if !node.RepThreads[0].Has(0) || !node.RepThreads[0].Has(1) {
		t.Fatal("expected threads 0,1 replicated under config 0")
	}
	if !node.DivThreads[1].Has(2) {
		t.Fatal("expected thread 2 recorded as diverged")
	}
	if tid := tree.SymbolicThreadID(1); tid != 2 {
		t.Fatalf("unexpected representative tid: %d", tid)
	}
	if !tree.CurrentSuccessorNil() {
		t.Fatal("expected unexpanded successor")
	}
	if path := tree.CurrentPath(); path != 1 {
		t.Fatalf("unexpected successor index: %d", path)
	}
}

func TestDivergenceTree_UniformBranch(t *testing.T) {
	// A branch whose condition is concretely true for every live thread
	// yields a single config spanning the full range and no divergence.
	tree := simt.NewDivergenceTree()
	tree.Insert(simt.NewDivergenceNode(1, 100, simt.OtherBranch, true, true, nil, nil))

	cond := simt.Expr(simt.NewBoolConstantExpr(true))
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, cond, 0, 0), simt.Classify(cond))
	tree.InitCurrentRange(0, 0)
	for tid := uint(1); tid < 4; tid++ {
		tree.IncrementCurrentRange(tid, 0)
	}

	node := tree.Current()
	checkPartition(t, node)
	if node.Kind != simt.OtherBranch {
		t.Fatalf("unexpected kind: %s", node.Kind)
	}
	if len(node.Configs) != 1 || node.Configs[0].Start != 0 || node.Configs[0].End != 4 {
		t.Fatalf("unexpected configs: %v", node.Configs)
	}
	if len(node.DivThreads[0]) != 0 {
		t.Fatal("expected empty divergence set")
	}
	if pc := tree.CurrentPathCond(); !simt.IsConstantTrue(pc) {
		t.Fatalf("unexpected path condition: %s", pc)
	}
}

func TestDivergenceTree_KindMismatch(t *testing.T) {
	// A thread-id-dependent condition at the same instruction as an
	// existing data-dependent branch is a different branch and must not be
	// merged into the SYM node's configs.
	tree := simt.NewDivergenceTree()
	tree.Insert(simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil))

	cond := dataCond(1)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, cond, 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 1, simt.NewNotExpr(cond), 1, 1), simt.SYM)
	tree.InitCurrentRange(1, 1)

	tdcCond := simt.NewBinaryExpr(simt.ULT, threadIDExpr(9), simt.NewConstantExpr32(2))
	if kind := simt.Classify(tdcCond); kind != simt.TDC {
		t.Fatalf("unexpected kind: %s", kind)
	}

	t.Run("MergeRejected", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 2, tdcCond, 2, 2), simt.TDC)
	})

	// The thread-dependent branch gets its own node instead.
	sym := tree.Current()
	tdc := simt.NewDivergenceNode(1, 100, simt.TDC, true, true, nil, tdcCond)
	tree.Insert(tdc)

	if tree.Current() != tdc || tdc.Parent() != sym {
		t.Fatal("expected separate child node for the thread-dependent branch")
	}
	if sym.Kind != simt.SYM || len(sym.Configs) != 2 {
		t.Fatalf("expected SYM node untouched, got kind=%s configs=%d", sym.Kind, len(sym.Configs))
	}
}

func TestDivergenceTree_Clone(t *testing.T) {
	tree := simt.NewDivergenceTree()
	tree.Insert(simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil))

	cond := dataCond(1)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, cond, 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)
	tree.Insert(simt.NewDivergenceNode(2, 100, simt.OtherBranch, false, false, cond, nil))

	other := tree.Clone()
	if other.NodeCount() != tree.NodeCount() {
		t.Fatalf("unexpected node count: %d", other.NodeCount())
	}
	if other.Root() == tree.Root() || other.Current() == tree.Current() {
		t.Fatal("expected reference-disjoint clone")
	}
	if other.Current().Site != tree.Current().Site {
		t.Fatalf("unexpected cursor position: %s", other.Current().Site)
	}

	// Shared condition values stay identity-equal.
	if other.Root().Configs[0].Cond != tree.Root().Configs[0].Cond {
		t.Fatal("expected shared immutable condition values")
	}

	// Mutating the clone must not affect the original.
	other.ResetCurrentToRoot()
	other.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 5, simt.NewNotExpr(cond), 1, 1), simt.SYM)
	other.InitCurrentRange(5, 1)
	if len(tree.Root().Configs) != 1 {
		t.Fatal("clone mutation leaked into original")
	}
	if tree.Root().RepThreads[0].Has(5) || tree.Root().DivThreads[0].Has(5) {
		t.Fatal("clone thread sets leaked into original")
	}
}

func TestDivergenceTree_Destroy(t *testing.T) {
	tree := simt.NewDivergenceTree()
	tree.Insert(simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil))

	cond := dataCond(1)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, cond, 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)
	child := simt.NewDivergenceNode(2, 100, simt.SYM, true, false, cond, nil)
	tree.Insert(child)

	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, dataCond(2), 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)
	tree.Insert(simt.NewDivergenceNode(3, 100, simt.OtherBranch, false, false, nil, nil))

	if tree.NodeCount() != 3 {
		t.Fatalf("unexpected node count: %d", tree.NodeCount())
	}

	t.Run("Subtree", func(t *testing.T) {
		root := tree.Root()
		tree.Destroy(child)
		if tree.NodeCount() != 1 {
			t.Fatalf("unexpected node count: %d", tree.NodeCount())
		}
		if tree.Current() != root {
			t.Fatal("expected cursor to retreat to the subtree's parent")
		}
		if root.Children[0] != nil {
			t.Fatal("expected child detached from parent")
		}
	})

	t.Run("Root", func(t *testing.T) {
		tree.Destroy(tree.Root())
		if tree.NodeCount() != 0 || !tree.Empty() || tree.Current() != nil {
			t.Fatalf("expected empty tree, count=%d", tree.NodeCount())
		}
	})
}

func TestDivergenceTree_ResetAndRewalk(t *testing.T) {
	tree := simt.NewDivergenceTree()

	// Insert a fixed chain of nodes along one path.
	sites := []simt.SiteID{1, 2, 3}
	for i, site := range sites {
		node := simt.NewDivergenceNode(site, 100, simt.SYM, true, true, nil, nil)
		tree.Insert(node)
		if i < len(sites)-1 {
			tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, dataCond(uint64(i+1)), 0, 0), simt.SYM)
			tree.InitCurrentRange(0, 0)
		}
	}

	tree.ResetCurrentToRoot()
	if tree.Current() != tree.Root() {
		t.Fatal("expected cursor at root")
	}

	// Re-walking the recorded successor choices reproduces the path.
	var got []simt.SiteID
	for n := tree.Root(); n != nil; {
		got = append(got, n.Site)
		ws := n.WhichSuccessor
		if ws < 0 || ws >= len(n.Children) {
			break
		}
		n = n.Children[ws]
	}
	if diff := cmp.Diff(sites, got); diff != "" {
		t.Fatalf("unexpected path (-want +got):\n%s", diff)
	}
}

func TestDivergenceTree_TDCCond(t *testing.T) {
	tdcCond := simt.NewBinaryExpr(simt.ULT, threadIDExpr(1), simt.NewConstantExpr32(2))

	tree := simt.NewDivergenceTree()
	tree.Insert(simt.NewDivergenceNode(1, 100, simt.TDC, true, true, nil, tdcCond))
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, tdcCond, 0, 0), simt.TDC)
	tree.InitCurrentRange(0, 0)

	symCond := dataCond(1)
	child := simt.NewDivergenceNode(2, 101, simt.SYM, true, false, tdcCond, nil)
	tree.Insert(child)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, symCond, 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)

	if got := tree.CurrentTDCCond(); got != tdcCond {
		t.Fatalf("unexpected tdc condition: %s", got)
	}

	want := simt.NewBinaryExpr(simt.AND, tdcCond, symCond)
	if got := tree.CurrentPathCond(); got != want {
		t.Fatalf("unexpected path condition: %s", got)
	}

	t.Run("NegateAndReset", func(t *testing.T) {
		tree.NegateCurrentPathCond()
		if got := child.Configs[0].Cond; got != simt.NewNotExpr(symCond) {
			t.Fatalf("unexpected negated condition: %s", got)
		}
		// The thread-id conjunct is enumerated, not negated.
		if got := tree.Root().Configs[0].Cond; got != tdcCond {
			t.Fatalf("unexpected tdc conjunct: %s", got)
		}

		tree.ResetCurrentPathCond()
		if got := child.Configs[0].Cond; got != symCond {
			t.Fatalf("expected identical restored condition: %s", got)
		}
	})
}

func TestDivergenceTree_EncounterImplicitBarrier(t *testing.T) {
	tree := simt.NewDivergenceTree()
	root := simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil)
	tree.Insert(root)

	cond := dataCond(1)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, cond, 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)

	child := simt.NewDivergenceNode(2, 101, simt.SYM, true, false, cond, nil)
	tree.Insert(child)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, dataCond(2), 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 1, simt.NewNotExpr(dataCond(2)), 1, 1), simt.SYM)
	tree.InitCurrentRange(1, 1)

	// Only the second range has reached the postdominator: no reconvergence.
	tree.EncounterImplicitBarrier(child, root)
	if child.AllSync || tree.Current() != child {
		t.Fatal("expected divergence to stay open")
	}

	// Once the remaining range reaches it, control returns to the parent.
	child.WhichSuccessor = 0
	tree.EncounterImplicitBarrier(child, root)
	if !child.AllSync {
		t.Fatal("expected divergence closed")
	}
	if tree.Current() != root {
		t.Fatal("expected cursor back at parent")
	}
	if !root.Configs[0].SyncEncounter {
		t.Fatal("expected parent range marked synchronized")
	}
}

func TestDivergenceTree_UpdateConfigsAfterBarriers(t *testing.T) {
	tree := simt.NewDivergenceTree()

	t.Run("NoConfigs", func(t *testing.T) {
		node := simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil)
		if tree.UpdateConfigsAfterBarriers(node) {
			t.Fatal("expected no-op on node without successors")
		}
	})

	t.Run("Partial", func(t *testing.T) {
		tree.Insert(simt.NewDivergenceNode(1, 100, simt.TDC, true, true, nil, nil))
		tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, nil, 0, 0), simt.TDC)
		tree.InitCurrentRange(0, 0)
		tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 1, nil, 1, 1), simt.TDC)
		tree.InitCurrentRange(1, 1)

		node := tree.Current()
		node.Configs[0].SyncEncounter = true
		if tree.UpdateConfigsAfterBarriers(node) {
			t.Fatal("expected no-op while a range is unsynced")
		}

		node.Configs[1].PostDomEncounter = true
		if !tree.UpdateConfigsAfterBarriers(node) {
			t.Fatal("expected collapse once every range synced")
		}
		if !node.AllSync {
			t.Fatal("expected node marked all-sync")
		}
		if node.Kind != simt.ACCUM {
			t.Fatalf("expected merged thread-dependent node to accumulate, got %s", node.Kind)
		}
	})
}

func TestDivergenceTree_EncounterExplicitBarrier(t *testing.T) {
	buildDivergedBlock := func() (*simt.DivergenceTree, *simt.DivergenceNode, []simt.ThreadSlot) {
		tree := simt.NewDivergenceTree()
		node := simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil)
		tree.Insert(node)

		cond := dataCond(1)
		tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, cond, 0, 0), simt.SYM)
		tree.InitCurrentRange(0, 0)
		tree.IncrementCurrentRange(1, 0)
		tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 2, simt.NewNotExpr(cond), 2, 2), simt.SYM)
		tree.InitCurrentRange(2, 1)
		tree.IncrementCurrentRange(3, 1)

		slots := []simt.ThreadSlot{
			simt.NewThreadSlot(0, 0, 0, nil),
			simt.NewThreadSlot(0, 1, 0, nil),
			simt.NewThreadSlot(0, 2, 0, nil),
			simt.NewThreadSlot(0, 3, 0, nil),
		}
		return tree, node, slots
	}

	t.Run("AllArrive", func(t *testing.T) {
		tree, node, slots := buildDivergedBlock()

		st := tree.EncounterExplicitBarrier(slots, 0)
		if st.Satisfied() || st.Arrived != 1 || st.Total != 4 {
			t.Fatalf("unexpected status: %s", st)
		}
		if !slots[0].BarrierEncounter || !slots[0].SyncEncounter {
			t.Fatal("expected slot marked at barrier")
		}

		if st := tree.EncounterExplicitBarrier(slots, 1); st.Satisfied() {
			t.Fatalf("unexpected status: %s", st)
		}
		if st := tree.EncounterExplicitBarrier(slots, 2); st.Arrived != 3 {
			t.Fatalf("unexpected status: %s", st)
		}

		st = tree.EncounterExplicitBarrier(slots, 3)
		if !st.Satisfied() {
			t.Fatalf("unexpected status: %s", st)
		}
		if !node.AllSync {
			t.Fatal("expected node collapsed once every range arrived")
		}
		for i := range slots {
			if slots[i].BarrierEncounter {
				t.Fatalf("expected barrier flag reset on slot %d", i)
			}
			if !slots[i].SyncEncounter {
				t.Fatalf("expected sync flag set on slot %d", i)
			}
		}
	})

	t.Run("DivergedArmNeverArrives", func(t *testing.T) {
		// The barrier call sits inside one arm only; threads 2 and 3 can
		// never reach it. The pending state persists and is queryable as a
		// divergence/deadlock finding.
		tree, node, slots := buildDivergedBlock()

		tree.EncounterExplicitBarrier(slots, 0)
		st := tree.EncounterExplicitBarrier(slots, 1)
		if st.Satisfied() {
			t.Fatalf("unexpected status: %s", st)
		}
		if diff := cmp.Diff([]uint{2, 3}, st.Pending); diff != "" {
			t.Fatalf("unexpected pending threads (-want +got):\n%s", diff)
		}

		// The arm that reached the barrier is synchronized, the sibling is
		// not, and the node stays open.
		if !node.Configs[0].SyncEncounter {
			t.Fatal("expected arrived range marked synchronized")
		}
		if node.Configs[1].SyncEncounter || node.AllSync {
			t.Fatal("expected sibling range to keep the barrier pending")
		}

		if got := simt.BlockBarrierStatus(slots, 0); got.Satisfied() {
			t.Fatal("expected pending state to persist")
		} else if !strings.Contains(got.String(), "2/4") {
			t.Fatalf("unexpected status string: %s", got)
		}
	})
}

func TestDivergenceTree_Dump(t *testing.T) {
	tree := simt.NewDivergenceTree()
	tree.Insert(simt.NewDivergenceNode(1, 100, simt.SYM, true, true, nil, nil))
	tree.UpdateCurrentOnNewConfig(simt.NewBranchConfig(0, 0, dataCond(1), 0, 0), simt.SYM)
	tree.InitCurrentRange(0, 0)

	s := tree.Dump()
	if !strings.Contains(s, "DIVERGENCE TREE") || !strings.Contains(s, "site<1>") {
		t.Fatalf("unexpected dump:\n%s", s)
	}
}
