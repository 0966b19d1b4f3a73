package simt

import (
	"fmt"
)

// BranchConfig describes one candidate successor of a branch: the
// contiguous range of node-local thread indices that committed to it, the
// condition under which they took it, and whether the range has reached a
// barrier or the branch's merge point.
//
// The [Start,End) ranges of one node's configs partition the node's live
// thread range exactly: no gaps, no overlaps.
type BranchConfig struct {
	BlockID  uint
	ThreadID uint // representative thread
	Cond     Expr

	Start uint // inclusive
	End   uint // exclusive

	SyncEncounter    bool
	PostDomEncounter bool
}

// NewBranchConfig returns a config for the half-open range [start,end).
func NewBranchConfig(blockID, threadID uint, cond Expr, start, end uint) BranchConfig {
	assert(start <= end, "branch config: invalid range [%d,%d)", start, end)
	return BranchConfig{
		BlockID:  blockID,
		ThreadID: threadID,
		Cond:     cond,
		Start:    start,
		End:      end,
	}
}

// Len returns the number of thread indices in the range.
func (c *BranchConfig) Len() uint {
	return c.End - c.Start
}

// Contains returns true if the node-local index i falls inside the range.
func (c *BranchConfig) Contains(i uint) bool {
	return i >= c.Start && i < c.End
}

// Synced returns true once the range has reached a barrier or the merge point.
func (c *BranchConfig) Synced() bool {
	return c.SyncEncounter || c.PostDomEncounter
}

// String returns the string representation of the config.
func (c *BranchConfig) String() string {
	cond := "<nil>"
	if c.Cond != nil {
		cond = c.Cond.String()
	}
	return fmt.Sprintf("(config b%d t%d [%d,%d) sync=%v postdom=%v cond=%s)",
		c.BlockID, c.ThreadID, c.Start, c.End, c.SyncEncounter, c.PostDomEncounter, cond)
}
