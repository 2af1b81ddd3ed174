package pmm

import (
	"pagelab/kernel"
	"pagelab/kernel/kfmt"
	"pagelab/kernel/mem"
)

// Owner identifies who a frame belongs to. Values >= 1 are process IDs.
type Owner int32

const (
	// Free marks a frame with no owner; refcount is always 0 for such a
	// frame.
	Free Owner = 0

	// Reserved marks a frame the allocator must never hand out: the low
	// memory/BIOS range, the I/O hole, and the console framebuffer.
	Reserved Owner = -1

	// Kernel marks a frame that backs the kernel image, the kernel stack,
	// or a page-table node belonging to the shared kernel page table.
	Kernel Owner = -2
)

var (
	// ErrMisaligned is returned by AssignPhysicalPage when addr is not
	// page-aligned.
	ErrMisaligned = &kernel.Error{Module: "pmm", Message: "address is not page-aligned"}

	// ErrOutOfRange is returned when a frame index falls outside the
	// managed physical address space.
	ErrOutOfRange = &kernel.Error{Module: "pmm", Message: "frame out of range"}

	// ErrFrameInUse is returned by AssignPhysicalPage when the requested
	// frame already has a non-zero refcount.
	ErrFrameInUse = &kernel.Error{Module: "pmm", Message: "frame already in use"}

	// ErrOutOfMemory is returned by Palloc when no FREE frame remains.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of physical memory"}
)

// Region describes a classification to apply to a contiguous physical
// address range during FrameTable.Init. It plays the same role multiboot's
// MemoryMapEntry/MemRegionVisitor pair plays for a real bootloader-supplied
// memory map, simplified to the handful of fixed regions spec.md section 6
// defines for this kernel.
type Region struct {
	Start, End uintptr // [Start, End)
	Owner      Owner
}

type frameInfo struct {
	owner    Owner
	refcount uint16
}

// FrameTable tracks ownership and reference counts for every physical frame
// in a Memory arena. The invariant enforced throughout is refcount == 0 iff
// owner == Free.
type FrameTable struct {
	mem    *Memory
	frames []frameInfo
	scan   Frame
}

// NewFrameTable creates a FrameTable covering every frame in m.
func NewFrameTable(m *Memory) *FrameTable {
	frameCount := uintptr(m.Size()) >> mem.PageShift
	return &FrameTable{
		mem:    m,
		frames: make([]frameInfo, frameCount),
	}
}

// Mem returns the physical memory arena backing this table, so callers can
// read or write a frame's contents once they have its address.
func (t *FrameTable) Mem() *Memory {
	return t.mem
}

// FrameCount returns the number of frames managed by this table.
func (t *FrameTable) FrameCount() Frame {
	return Frame(len(t.frames))
}

// Init classifies every frame according to the supplied regions. Any frame
// not covered by a region is classified FREE. Regions are applied in order,
// so later regions (e.g. a narrow console carve-out) can override an earlier,
// wider one (e.g. the I/O hole it sits inside). Classified frames that are
// not FREE get refcount 1, matching "refcount == 0 iff owner == FREE".
func (t *FrameTable) Init(regions []Region) {
	for i := range t.frames {
		t.frames[i] = frameInfo{owner: Free, refcount: 0}
	}

	for _, r := range regions {
		start := FrameFromAddress(r.Start)
		end := FrameFromAddress(r.End - 1)
		for f := start; f <= end && int(f) < len(t.frames); f++ {
			refcount := uint16(0)
			if r.Owner != Free {
				refcount = 1
			}
			t.frames[f] = frameInfo{owner: r.Owner, refcount: refcount}
		}
	}
}

// Owner returns the current owner of frame f.
func (t *FrameTable) Owner(f Frame) Owner {
	if int(f) < 0 || int(f) >= len(t.frames) {
		return Reserved
	}
	return t.frames[f].owner
}

// RefCount returns the current reference count of frame f.
func (t *FrameTable) RefCount(f Frame) uint16 {
	if int(f) < 0 || int(f) >= len(t.frames) {
		return 0
	}
	return t.frames[f].refcount
}

// AssignPhysicalPage claims the specific page-aligned frame at addr for
// owner. It fails if addr is misaligned, out of range, or the frame's
// refcount is non-zero. On success the frame's refcount becomes 1.
func (t *FrameTable) AssignPhysicalPage(addr uintptr, owner Owner) *kernel.Error {
	if addr&(uintptr(mem.PageSize)-1) != 0 {
		return ErrMisaligned
	}

	f := FrameFromAddress(addr)
	if int(f) >= len(t.frames) {
		return ErrOutOfRange
	}

	if t.frames[f].refcount != 0 {
		return ErrFrameInUse
	}

	t.frames[f] = frameInfo{owner: owner, refcount: 1}
	return nil
}

// Palloc scans for a FREE frame, claims it for owner and returns its
// physical address, or address 0 and ErrOutOfMemory if none
// is available. The scan order is a simple forward sweep from the last
// successful allocation, which keeps allocation O(1) amortized in the
// common case of a mostly-free table while still eventually covering every
// frame.
func (t *FrameTable) Palloc(owner Owner) (uintptr, *kernel.Error) {
	n := Frame(len(t.frames))
	for i := Frame(0); i < n; i++ {
		f := (t.scan + i) % n
		if t.frames[f].owner == Free {
			t.frames[f] = frameInfo{owner: owner, refcount: 1}
			t.scan = f + 1
			return f.Address(), nil
		}
	}
	return 0, ErrOutOfMemory
}

// AddRef increments the reference count of the frame containing
// physicalAddr without changing its owner. It is used when an already
// assigned frame gains another mapping, e.g. the kernel identity map or the
// console frame being mapped into a newly configured process page table.
func (t *FrameTable) AddRef(physicalAddr uintptr) {
	f := FrameFromAddress(physicalAddr)
	if int(f) >= len(t.frames) {
		kfmt.Printf("[pmm] addref: address %x out of range\n", physicalAddr)
		return
	}
	t.frames[f].refcount++
}

// Freepage decrements the reference count of the frame containing
// physicalAddr (aligned down to its page boundary). If the refcount reaches
// zero the frame reverts to FREE. Freeing an already-free frame is logged as
// an error but is not fatal, matching the kernel-side convention that a
// syscall-reachable invariant violation never panics the whole VM. Freeing
// address 0 is likewise logged and ignored; physical frame 0 is always
// RESERVED so this path should never be reachable in practice, but the guard
// is retained as documentation of that invariant.
func (t *FrameTable) Freepage(physicalAddr uintptr) {
	if physicalAddr == 0 {
		kfmt.Printf("[pmm] freepage: refusing to free physical address 0\n")
		return
	}

	f := FrameFromAddress(physicalAddr)
	if int(f) >= len(t.frames) {
		kfmt.Printf("[pmm] freepage: address %x out of range\n", physicalAddr)
		return
	}

	if t.frames[f].refcount == 0 {
		kfmt.Printf("[pmm] freepage: double free of frame %d\n", f)
		return
	}

	t.frames[f].refcount--
	if t.frames[f].refcount == 0 {
		t.frames[f].owner = Free
	}
}
