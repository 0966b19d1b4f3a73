package simt

import (
	"fmt"
)

// ArraySpace describes what a symbolic array stands for. Conditions that
// only read thread-id or block-id arrays can be decided per thread without
// a solver; conditions reading data arrays cannot.
type ArraySpace int

const (
	DataSpace ArraySpace = iota
	ThreadIDSpace
	BlockIDSpace
)

var arraySpaces = [...]string{
	DataSpace:     "data",
	ThreadIDSpace: "tid",
	BlockIDSpace:  "bid",
}

// String returns the string representation of the space.
func (s ArraySpace) String() string {
	if s >= 0 && int(s) < len(arraySpaces) {
		return arraySpaces[s]
	}
	return fmt.Sprintf("ArraySpace<%d>", int(s))
}

// Array represents a symbolic variable as an array of fixed-width cells.
// Arrays are immutable; the tree never writes to them.
type Array struct {
	ID    uint64     // unique id
	Space ArraySpace // what the cells stand for
	Size  uint       // number of cells
	Width uint       // bits per cell
}

// NewArray returns a new Array.
func NewArray(id uint64, space ArraySpace, size, width uint) *Array {
	assert(size > 0, "array size cannot be zero")
	assert(width > 0, "array width cannot be zero")
	return &Array{ID: id, Space: space, Size: size, Width: width}
}

// NewThreadIDArray returns a single-cell array holding a thread id.
func NewThreadIDArray(id uint64) *Array {
	return NewArray(id, ThreadIDSpace, 1, Width32)
}

// NewBlockIDArray returns a single-cell array holding a block id.
func NewBlockIDArray(id uint64) *Array {
	return NewArray(id, BlockIDSpace, 1, Width32)
}

// NewDataArray returns an array backed by kernel data.
func NewDataArray(id uint64, size, width uint) *Array {
	return NewArray(id, DataSpace, size, width)
}

// String returns a string representation of the array.
func (a *Array) String() string {
	return fmt.Sprintf("(array %s#%d %dx%d)", a.Space, a.ID, a.Size, a.Width)
}

// IsIdentity returns true if the array holds thread or block identity.
func (a *Array) IsIdentity() bool {
	return a.Space == ThreadIDSpace || a.Space == BlockIDSpace
}

// CompareArray returns an integer comparing two arrays structurally.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArray(a, b *Array) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if a.Space < b.Space {
		return -1
	} else if a.Space > b.Space {
		return 1
	}

	if a.ID < b.ID {
		return -1
	} else if a.ID > b.ID {
		return 1
	}

	if a.Size < b.Size {
		return -1
	} else if a.Size > b.Size {
		return 1
	}

	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return 0
}
