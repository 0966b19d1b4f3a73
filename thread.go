package simt

import (
	"bytes"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// ThreadSlot is the runtime record for one simulated GPU thread: its
// identity, warp membership, synchronization flags, and the path condition
// it inherited from enclosing branches.
type ThreadSlot struct {
	BlockID  uint
	ThreadID uint
	WarpNum  uint

	// SyncEncounter is set on any synchronization point, explicit barrier
	// or reconvergence at a postdominator. BarrierEncounter is set only on
	// an explicit barrier call.
	SyncEncounter    bool
	BarrierEncounter bool

	InBranch      bool
	InheritedCond Expr

	// SlotUsed marks the slot as allocated; Keep marks it as part of the
	// live thread set. A pruned slot keeps its history but is never reused.
	SlotUsed bool
	Keep     bool
}

// NewThreadSlot returns a live slot for the given thread.
func NewThreadSlot(blockID, threadID, warpNum uint, inheritedCond Expr) ThreadSlot {
	return ThreadSlot{
		BlockID:       blockID,
		ThreadID:      threadID,
		WarpNum:       warpNum,
		InheritedCond: inheritedCond,
		SlotUsed:      true,
		Keep:          true,
	}
}

// Live returns true if the slot is part of the currently tracked thread set.
func (s *ThreadSlot) Live() bool {
	return s.SlotUsed && s.Keep
}

// Retire removes the slot from the live thread set without reusing it.
// Used when a branch outcome containing the thread is proven infeasible.
func (s *ThreadSlot) Retire() {
	s.Keep = false
}

// String returns a short representation of the slot.
func (s *ThreadSlot) String() string {
	return fmt.Sprintf("(slot b%d t%d w%d sync=%v barrier=%v branch=%v live=%v)",
		s.BlockID, s.ThreadID, s.WarpNum, s.SyncEncounter, s.BarrierEncounter, s.InBranch, s.Live())
}

// BarrierStatus reports how far the live threads of one block have advanced
// toward an explicit barrier. An unsatisfied status is an analysis finding,
// not an error: a status that never satisfies is a divergence/deadlock
// candidate for the caller to report.
type BarrierStatus struct {
	BlockID uint
	Arrived int
	Total   int
	Pending []uint // thread ids that have not signaled arrival
}

// Satisfied returns true once every live thread of the block has arrived.
func (st BarrierStatus) Satisfied() bool {
	return st.Total > 0 && st.Arrived == st.Total
}

// String returns the string representation of the status.
func (st BarrierStatus) String() string {
	if st.Satisfied() {
		return fmt.Sprintf("block %d barrier: satisfied (%d threads)", st.BlockID, st.Total)
	}
	return fmt.Sprintf("block %d barrier: pending, %d/%d arrived, waiting=%v", st.BlockID, st.Arrived, st.Total, st.Pending)
}

// BlockBarrierStatus computes the barrier progress of all live slots
// sharing the given block.
func BlockBarrierStatus(slots []ThreadSlot, blockID uint) BarrierStatus {
	st := BarrierStatus{BlockID: blockID}
	for i := range slots {
		s := &slots[i]
		if s.BlockID != blockID || !s.Live() {
			continue
		}
		st.Total++
		if s.BarrierEncounter {
			st.Arrived++
		} else {
			st.Pending = append(st.Pending, s.ThreadID)
		}
	}
	return st
}

// dumpConfig renders debug dumps deterministically.
var dumpConfig = spew.ConfigState{Indent: "  ", SortKeys: true}

// DumpThreadSlots returns the contents of the slot table as a string.
func DumpThreadSlots(slots []ThreadSlot) string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "THREAD SLOTS")
	for i := range slots {
		fmt.Fprintf(&buf, "%d. %s\n", i, slots[i].String())
		if slots[i].InheritedCond != nil {
			fmt.Fprintf(&buf, "   cond=%s\n", slots[i].InheritedCond)
		}
	}
	return buf.String()
}
