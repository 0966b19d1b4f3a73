package simt

import (
	"bytes"
	"fmt"
	"strings"
)

// DivergenceTree tracks how the simulated threads of a symbolic state
// diverge and reconverge. It owns the node hierarchy and maintains a
// non-owning cursor marking where the scheduler's simulated execution
// currently is.
//
// The scheduler drives the tree with a fixed protocol. When the threads of
// the current node reach a branch, they are visited in deterministic index
// order: the scheduler records each candidate successor with
// UpdateCurrentOnNewConfig, claims a one-thread range with InitCurrentRange
// when a thread opens a new outcome, and grows that range with
// IncrementCurrentRange for every following thread committing to the same
// outcome. Exploring a successor's own branches attaches a child node via
// Insert, which advances the cursor. Barrier and postdominator events flow
// through EncounterExplicitBarrier and EncounterImplicitBarrier, which
// collapse nodes whose ranges have all synchronized.
//
// Violating the protocol (inserting past a nil cursor, addressing a
// nonexistent successor) is a caller bug and panics; silent continuation
// would corrupt the partition invariants downstream race checks trust.
type DivergenceTree struct {
	nodeCount int
	root      *DivergenceNode
	current   *DivergenceNode
}

// NewDivergenceTree returns an empty tree.
func NewDivergenceTree() *DivergenceTree {
	return &DivergenceTree{}
}

// Root returns the root node, or nil if the tree is empty.
func (t *DivergenceTree) Root() *DivergenceNode { return t.root }

// Current returns the cursor node, or nil if the tree is empty.
func (t *DivergenceTree) Current() *DivergenceNode { return t.current }

// Empty returns true if the tree has no nodes.
func (t *DivergenceTree) Empty() bool { return t.root == nil }

// NodeCount returns the number of live nodes in the tree.
func (t *DivergenceTree) NodeCount() int { return t.nodeCount }

// Insert attaches node as the child of the cursor at the successor being
// explored and advances the cursor to it. The first inserted node becomes
// the root.
func (t *DivergenceTree) Insert(node *DivergenceNode) {
	assert(node != nil, "insert: nil node")

	if t.root == nil {
		t.root, t.current = node, node
		t.nodeCount++
		return
	}

	n := t.current
	assert(n != nil, "insert: nil cursor")
	ws := n.WhichSuccessor
	assert(ws >= 0 && ws < len(n.Configs), "insert: successor %d out of range (%d configs)", ws, len(n.Configs))
	assert(n.Children[ws] == nil, "insert: successor %d already expanded", ws)

	node.parent = n
	n.Children[ws] = node
	t.current = node
	t.nodeCount++
}

// UpdateCurrentOnNewConfig records a candidate successor at the cursor.
// A config whose range matches an existing one merges into it; otherwise
// the config is appended at the range frontier, preserving the exact
// partition of the node's thread range.
func (t *DivergenceTree) UpdateCurrentOnNewConfig(config BranchConfig, kind BranchKind) {
	n := t.current
	assert(n != nil, "update config: nil cursor")

	for i := range n.Configs {
		if n.Configs[i].Start == config.Start && n.Configs[i].End == config.End {
			n.Configs[i].BlockID = config.BlockID
			n.Configs[i].ThreadID = config.ThreadID
			n.Configs[i].Cond = config.Cond
			n.mergeKind(kind)
			return
		}
	}

	assert(config.Start >= n.rangeFrontier(), "update config: range [%d,%d) overlaps frontier %d", config.Start, config.End, n.rangeFrontier())
	n.mergeKind(kind)
	n.Configs = append(n.Configs, config)
	n.Children = append(n.Children, nil)
	n.RepThreads = append(n.RepThreads, make(ThreadSet))
	n.DivThreads = append(n.DivThreads, make(ThreadSet))
}

// InitCurrentRange claims the next one-thread slice for the cursor's config
// at index pos and marks that successor as the one being explored. The
// first thread of the first config replicates the uniform flow; a thread
// opening any later config diverges.
func (t *DivergenceTree) InitCurrentRange(tid uint, pos int) {
	n := t.current
	assert(n != nil, "init range: nil cursor")
	assert(pos >= 0 && pos < len(n.Configs), "init range: config %d out of range (%d configs)", pos, len(n.Configs))

	cfg := &n.Configs[pos]
	start := n.rangeFrontier()
	cfg.Start, cfg.End = start, start+1
	cfg.ThreadID = tid

	if pos == 0 {
		n.RepThreads[0].add(tid)
	} else {
		n.DivThreads[pos].add(tid)
	}
	n.WhichSuccessor = pos
}

// IncrementCurrentRange grows the cursor's config at index pos by one
// thread. The config must own the range frontier; growing any other config
// would tear the partition.
func (t *DivergenceTree) IncrementCurrentRange(tid uint, pos int) {
	n := t.current
	assert(n != nil, "increment range: nil cursor")
	assert(pos >= 0 && pos < len(n.Configs), "increment range: config %d out of range (%d configs)", pos, len(n.Configs))

	cfg := &n.Configs[pos]
	assert(cfg.Start < cfg.End, "increment range: config %d not initialized", pos)
	assert(cfg.End == n.rangeFrontier(), "increment range: config %d not at frontier", pos)
	cfg.End++

	n.RepThreads[pos].add(tid)
	n.WhichSuccessor = pos
}

// UpdateConfigsAfterBarriers collapses the per-range bookkeeping of node
// once every config range has reached a barrier or the merge point, so
// exploration can continue past the node as a single merged thread range.
// Reports whether the node collapsed; a node with unsynced ranges, or with
// no successor recorded yet at the sync point, is left untouched.
func (t *DivergenceTree) UpdateConfigsAfterBarriers(node *DivergenceNode) bool {
	if node == nil || len(node.Configs) == 0 {
		return false
	}
	for i := range node.Configs {
		if !node.Configs[i].Synced() {
			return false
		}
	}

	for i := range node.Configs {
		node.Configs[i].SyncEncounter = false
		node.Configs[i].PostDomEncounter = false
	}
	node.AllSync = true

	// The per-thread decisions are resolved; what remains of a
	// thread-dependent branch is the accumulated commitment of each range.
	if node.Kind == TDC {
		node.Kind = ACCUM
	}
	return true
}

// EncounterImplicitBarrier handles reconvergence at a branch's
// postdominator without an explicit barrier call. The range currently
// being explored is marked as having reached the merge point; once every
// range of node has, the divergence is closed and the cursor returns to
// parent's single thread range.
func (t *DivergenceTree) EncounterImplicitBarrier(node, parent *DivergenceNode) {
	if node == nil || len(node.Configs) == 0 {
		return
	}

	if ws := node.WhichSuccessor; ws >= 0 && ws < len(node.Configs) {
		node.Configs[ws].PostDomEncounter = true
	}

	for i := range node.Configs {
		if !node.Configs[i].Synced() {
			return
		}
	}

	node.AllSync = true
	if parent == nil {
		t.current = node
		return
	}
	if pw := parent.WhichSuccessor; pw >= 0 && pw < len(parent.Configs) {
		parent.Configs[pw].SyncEncounter = true
	}
	t.current = parent
}

// EncounterExplicitBarrier records that the given thread reached an
// explicit barrier, propagates the arrival through the ancestor nodes, and
// reports how far the thread's block has progressed toward the barrier.
//
// The returned status is an analysis result, not an error: when threads in
// a sibling branch have not reached the barrier, the status stays pending
// and remains queryable; a permanently pending barrier is the divergence
// deadlock finding this core exists to surface. Once every live thread of
// the block has arrived, the barrier completes and the per-thread barrier
// flags reset for the next one.
func (t *DivergenceTree) EncounterExplicitBarrier(slots []ThreadSlot, tid uint) BarrierStatus {
	assert(int(tid) < len(slots), "barrier: thread %d out of range (%d slots)", tid, len(slots))

	slot := &slots[tid]
	slot.BarrierEncounter = true
	slot.SyncEncounter = true

	// A range has reached the barrier once every thread recorded under it
	// has. Walk the ancestor chain so enclosing branches observe arrival.
	for n := t.current; n != nil; n = n.parent {
		for i := range n.Configs {
			if n.Configs[i].SyncEncounter {
				continue
			}
			tids := n.configThreads(i)
			if len(tids) == 0 {
				continue
			}
			arrived := true
			for _, id := range tids {
				if int(id) >= len(slots) || !slots[id].Live() {
					continue
				}
				if !slots[id].BarrierEncounter {
					arrived = false
					break
				}
			}
			if arrived {
				n.Configs[i].SyncEncounter = true
			}
		}
		t.UpdateConfigsAfterBarriers(n)
	}

	status := BlockBarrierStatus(slots, slot.BlockID)
	if status.Satisfied() {
		for i := range slots {
			if slots[i].BlockID == slot.BlockID && slots[i].Live() {
				slots[i].BarrierEncounter = false
				slots[i].SyncEncounter = true
			}
		}
	}
	return status
}

// pathToCurrent returns the nodes from the root to the cursor, inclusive.
func (t *DivergenceTree) pathToCurrent() []*DivergenceNode {
	var rev []*DivergenceNode
	for n := t.current; n != nil; n = n.parent {
		rev = append(rev, n)
	}
	path := make([]*DivergenceNode, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// CurrentTDCCond returns the conjunction of the thread/block-id-only
// conditions from the root to the cursor. Returns constant true if no node
// on the path carries one.
func (t *DivergenceTree) CurrentTDCCond() Expr {
	cond := Expr(NewBoolConstantExpr(true))
	for _, n := range t.pathToCurrent() {
		if n.TDCCond != nil {
			cond = NewBinaryExpr(AND, cond, n.TDCCond)
		}
	}
	return cond
}

// CurrentPathCond returns the full path condition: the conjunction of the
// conditions of the successors taken from the root to the cursor.
func (t *DivergenceTree) CurrentPathCond() Expr {
	cond := Expr(NewBoolConstantExpr(true))
	for _, n := range t.pathToCurrent() {
		if ws := n.WhichSuccessor; ws >= 0 && ws < len(n.Configs) && n.Configs[ws].Cond != nil {
			cond = NewBinaryExpr(AND, cond, n.Configs[ws].Cond)
		}
	}
	return cond
}

// NegateCurrentPathCond flips the sign of the data-dependent conjuncts
// along the current path, materializing the complementary path without
// rebuilding the whole condition. Thread-id-derived conjuncts are left
// untouched; their successors are enumerated, not negated.
func (t *DivergenceTree) NegateCurrentPathCond() {
	for _, n := range t.pathToCurrent() {
		if n.Kind != SYM {
			continue
		}
		if ws := n.WhichSuccessor; ws >= 0 && ws < len(n.Configs) && n.Configs[ws].Cond != nil {
			n.Configs[ws].Cond = NewNotExpr(n.Configs[ws].Cond)
		}
	}
}

// ResetCurrentPathCond restores the conjuncts flipped by
// NegateCurrentPathCond. Double negation cancels under hash-consing, so
// restoring yields the identical condition values.
func (t *DivergenceTree) ResetCurrentPathCond() {
	t.NegateCurrentPathCond()
}

// SymbolicThreadID returns the representative thread id of the cursor's
// i-th config.
func (t *DivergenceTree) SymbolicThreadID(i int) uint {
	n := t.current
	assert(n != nil, "symbolic tid: nil cursor")
	assert(i >= 0 && i < len(n.Configs), "symbolic tid: config %d out of range (%d configs)", i, len(n.Configs))
	return n.Configs[i].ThreadID
}

// CurrentSuccessorNil returns true if the successor being explored at the
// cursor has no expanded child node.
func (t *DivergenceTree) CurrentSuccessorNil() bool {
	n := t.current
	if n == nil {
		return true
	}
	ws := n.WhichSuccessor
	return ws < 0 || ws >= len(n.Children) || n.Children[ws] == nil
}

// CurrentPath returns the successor index being explored at the cursor.
func (t *DivergenceTree) CurrentPath() int {
	assert(t.current != nil, "current path: nil cursor")
	return t.current.WhichSuccessor
}

// ResetCurrentToRoot rewinds the cursor to the root without mutating the
// tree structure.
func (t *DivergenceTree) ResetCurrentToRoot() {
	t.current = t.root
}

// Clone returns a structurally identical, reference-disjoint copy of the
// tree. Every owned node and config is freshly allocated; condition values
// are shared since expressions are immutable and hash-consed. The clone's
// cursor points at the copy of the original's cursor node, so forked
// symbolic states evolve independently.
func (t *DivergenceTree) Clone() *DivergenceTree {
	other := NewDivergenceTree()
	other.nodeCount = t.nodeCount
	if t.root != nil {
		other.root = t.root.cloneSubtree(nil, t.current, &other.current)
	}
	return other
}

// Destroy tears down the subtree rooted at node, visiting every owned node
// exactly once and decrementing the live-node counter accordingly. If the
// cursor was inside the subtree it retreats to the destroyed subtree's
// parent. Destroying the root empties the tree.
func (t *DivergenceTree) Destroy(node *DivergenceNode) {
	if node == nil {
		return
	}

	parent := node.parent
	if parent != nil {
		for i, child := range parent.Children {
			if child == node {
				parent.Children[i] = nil
			}
		}
	}
	if t.current != nil && underSubtree(t.current, node) {
		t.current = parent
	}

	isRoot := node == t.root
	t.destroySubtree(node)
	if isRoot {
		t.root, t.current = nil, nil
	}
}

// underSubtree returns true if n is root or one of root's descendants.
func underSubtree(n, root *DivergenceNode) bool {
	for ; n != nil; n = n.parent {
		if n == root {
			return true
		}
	}
	return false
}

func (t *DivergenceTree) destroySubtree(n *DivergenceNode) {
	for i, child := range n.Children {
		if child != nil {
			t.destroySubtree(child)
			n.Children[i] = nil
		}
	}
	n.parent = nil
	n.Children = nil
	n.Configs = nil
	n.RepThreads = nil
	n.DivThreads = nil
	t.nodeCount--
}

// Dump returns the contents of the tree as a string.
func (t *DivergenceTree) Dump() string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "DIVERGENCE TREE")
	fmt.Fprintln(&buf, "===============")
	fmt.Fprintf(&buf, "nodes=%d\n\n", t.nodeCount)
	if t.root != nil {
		t.dumpNode(&buf, t.root, 0)
	}
	return buf.String()
}

func (t *DivergenceTree) dumpNode(buf *bytes.Buffer, n *DivergenceNode, depth int) {
	indent := strings.Repeat("  ", depth)
	marker := ""
	if n == t.current {
		marker = "=> "
	}
	for _, line := range strings.Split(strings.TrimRight(n.Dump(), "\n"), "\n") {
		fmt.Fprintf(buf, "%s%s%s\n", indent, marker, line)
		marker = ""
	}
	for _, child := range n.Children {
		if child != nil {
			t.dumpNode(buf, child, depth+1)
		}
	}
}
