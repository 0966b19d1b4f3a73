package simt

import (
	"bytes"
	"fmt"
)

// ThreadSet is a set of thread ids.
type ThreadSet map[uint]struct{}

// NewThreadSet returns a set containing the given thread ids.
func NewThreadSet(tids ...uint) ThreadSet {
	s := make(ThreadSet, len(tids))
	for _, tid := range tids {
		s[tid] = struct{}{}
	}
	return s
}

func (s ThreadSet) add(tid uint) {
	s[tid] = struct{}{}
}

// Has returns true if tid is in the set.
func (s ThreadSet) Has(tid uint) bool {
	_, ok := s[tid]
	return ok
}

func (s ThreadSet) clone() ThreadSet {
	other := make(ThreadSet, len(s))
	for tid := range s {
		other[tid] = struct{}{}
	}
	return other
}

// DivergenceNode is one node of the divergence tree, corresponding to one
// branch site. It owns the configs describing the branch's candidate
// successors and the child nodes for successors that have been expanded.
//
// Children runs parallel to Configs; an entry stays nil until the branch
// behind that config is actually explored. RepThreads and DivThreads also
// run parallel to Configs: RepThreads[i] holds threads that replicated an
// outcome already taken by an earlier thread, DivThreads[i] holds threads
// that diverged onto a new outcome. Both feed downstream race checks.
type DivergenceNode struct {
	Site    SiteID
	PostDom SiteID

	Kind     BranchKind
	IsCondBr bool
	AllSync  bool

	// WhichSuccessor is the config index being explored right now.
	WhichSuccessor int

	InheritedCond Expr // conjunct inherited from ancestors
	TDCCond       Expr // thread/block-id-only part of the condition

	parent *DivergenceNode

	Configs    []BranchConfig
	Children   []*DivergenceNode
	RepThreads []ThreadSet
	DivThreads []ThreadSet
}

// NewDivergenceNode returns a node for the given branch site.
// Successor lists start empty.
func NewDivergenceNode(site, postDom SiteID, kind BranchKind, isCondBr, allSync bool, inheritedCond, tdcCond Expr) *DivergenceNode {
	return &DivergenceNode{
		Site:          site,
		PostDom:       postDom,
		Kind:          kind,
		IsCondBr:      isCondBr,
		AllSync:       allSync,
		InheritedCond: inheritedCond,
		TDCCond:       tdcCond,
	}
}

// Parent returns the node's parent, or nil at the root.
// The parent link never participates in ownership.
func (n *DivergenceNode) Parent() *DivergenceNode {
	return n.parent
}

// ExploredChildren returns the number of successors that have been expanded.
func (n *DivergenceNode) ExploredChildren() int {
	var c int
	for _, child := range n.Children {
		if child != nil {
			c++
		}
	}
	return c
}

// rangeFrontier returns the next unassigned node-local thread index.
func (n *DivergenceNode) rangeFrontier() uint {
	var end uint
	for i := range n.Configs {
		if n.Configs[i].End > end {
			end = n.Configs[i].End
		}
	}
	return end
}

// configThreads returns the ids of every thread recorded under config i.
func (n *DivergenceNode) configThreads(i int) []uint {
	tids := make([]uint, 0, len(n.RepThreads[i])+len(n.DivThreads[i]))
	for tid := range n.RepThreads[i] {
		tids = append(tids, tid)
	}
	for tid := range n.DivThreads[i] {
		if !n.RepThreads[i].Has(tid) {
			tids = append(tids, tid)
		}
	}
	return tids
}

// mergeKind reconciles the node's classification with that of a new config.
// A node never silently changes between thread-dependent and data-dependent
// classification; that indicates a caller mixing distinct branches.
func (n *DivergenceNode) mergeKind(kind BranchKind) {
	switch {
	case n.Kind == kind:
	case kind == OtherBranch:
		// unconditional successor, keep the node's classification
	case kind == ACCUM:
		n.Kind = ACCUM
	case n.Kind == OtherBranch:
		n.Kind = kind
	default:
		assert(false, "branch kind mismatch: node=%s config=%s", n.Kind, kind)
	}
}

// cloneSubtree deep-copies the node and everything it owns. Configs and
// thread sets are freshly allocated; condition values are shared since
// expressions are immutable and hash-consed. If cursor is found within the
// subtree, *cursorOut is set to its counterpart in the copy.
func (n *DivergenceNode) cloneSubtree(parent *DivergenceNode, cursor *DivergenceNode, cursorOut **DivergenceNode) *DivergenceNode {
	other := &DivergenceNode{
		Site:           n.Site,
		PostDom:        n.PostDom,
		Kind:           n.Kind,
		IsCondBr:       n.IsCondBr,
		AllSync:        n.AllSync,
		WhichSuccessor: n.WhichSuccessor,
		InheritedCond:  n.InheritedCond,
		TDCCond:        n.TDCCond,
		parent:         parent,
	}

	other.Configs = append([]BranchConfig(nil), n.Configs...)

	other.RepThreads = make([]ThreadSet, len(n.RepThreads))
	for i := range n.RepThreads {
		other.RepThreads[i] = n.RepThreads[i].clone()
	}
	other.DivThreads = make([]ThreadSet, len(n.DivThreads))
	for i := range n.DivThreads {
		other.DivThreads[i] = n.DivThreads[i].clone()
	}

	other.Children = make([]*DivergenceNode, len(n.Children))
	for i, child := range n.Children {
		if child != nil {
			other.Children[i] = child.cloneSubtree(other, cursor, cursorOut)
		}
	}

	if n == cursor {
		*cursorOut = other
	}
	return other
}

// Dump returns the contents of the node as a string.
func (n *DivergenceNode) Dump() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "node site=%s postdom=%s kind=%s condbr=%v allsync=%v succ=%d\n",
		n.Site, n.PostDom, n.Kind, n.IsCondBr, n.AllSync, n.WhichSuccessor)
	if n.InheritedCond != nil {
		fmt.Fprintf(&buf, "inherited=%s\n", n.InheritedCond)
	}
	if n.TDCCond != nil {
		fmt.Fprintf(&buf, "tdc=%s\n", n.TDCCond)
	}
	for i := range n.Configs {
		explored := " "
		if i < len(n.Children) && n.Children[i] != nil {
			explored = "*"
		}
		fmt.Fprintf(&buf, "%d.%s %s\n", i, explored, n.Configs[i].String())
	}
	if len(n.RepThreads) > 0 {
		fmt.Fprintf(&buf, "rep=%s", dumpConfig.Sdump(n.RepThreads))
		fmt.Fprintf(&buf, "div=%s", dumpConfig.Sdump(n.DivThreads))
	}
	return buf.String()
}
