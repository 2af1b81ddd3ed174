// Package pmm implements the physical frame allocator: per-frame ownership
// and reference counting over a simulated physical address space.
package pmm

import (
	"math"
	"pagelab/kernel/mem"
)

// Frame describes a physical memory page index.
type Frame uintptr

// InvalidFrame marks the absence of a frame; vmm.Lookup reports an unmapped
// address with it. Palloc reports failure with address 0 and an error
// instead.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of this frame.
func (f Frame) Address() uintptr {
	return uintptr(f << mem.PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical
// address.
func FrameFromAddress(addr uintptr) Frame {
	return Frame(addr >> mem.PageShift)
}
