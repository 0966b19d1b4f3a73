// Package simt implements the parametric divergence tree used to track
// branch divergence, reconvergence, and barrier synchronization across the
// threads of a symbolically executed SIMT (GPU) kernel.
//
// A single symbolic state covers an entire hierarchy of threads. The
// divergence tree records, per branch site, which contiguous thread ranges
// committed to which branch outcome, whether each range has reached a
// barrier or the branch's postdominator, and how the accumulated path
// condition decomposes into thread-id-dependent and data-dependent parts.
package simt

import "fmt"

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// SiteID is an opaque identifier for a branch instruction or a basic block
// (such as a branch's postdominator). It is only ever used as a key.
type SiteID uint64

// String returns the string representation of the site.
func (id SiteID) String() string {
	return fmt.Sprintf("site<%d>", uint64(id))
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
