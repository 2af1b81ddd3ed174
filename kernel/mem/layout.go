package mem

// PointerShift is equal to log2(unsafe.Sizeof(uintptr)) for the simulated
// amd64 target. The pointer size is defined as (1 << PointerShift).
const PointerShift = 3

// PageShift is equal to log2(PageSize). It is used to convert a physical or
// virtual address to a page/frame number (shift right by PageShift) and vice
// versa.
const PageShift = 12

// PageSize defines the system's page size in bytes.
const PageSize = Size(1 << PageShift)

// Physical memory map (see spec.md section 6). Addresses below 0x100000
// belong to the BIOS, the kernel image and the console/IO hole; they are
// never handed out by the frame allocator. Addresses at or above
// ProcPhysStart are available for process images and demand-paged heaps.
const (
	// LowMemoryEnd marks the end of the low-memory/BIOS region.
	LowMemoryEnd = 0x40000

	// KernelPhysStart and KernelPhysEnd bound the kernel image and kernel
	// stack; the stack's top sits at KernelPhysEnd.
	KernelPhysStart = 0x40000
	KernelPhysEnd   = 0x80000

	// ReservedPhysStart and ReservedPhysEnd bound a reserved gap between the
	// kernel stack and the I/O hole.
	ReservedPhysStart = 0x80000
	ReservedPhysEnd   = 0xA0000

	// IOHolePhysStart and IOHolePhysEnd bound the BIOS/console/IO region.
	// ConsolePhysAddr, the well-known console framebuffer address, lies
	// inside this range.
	IOHolePhysStart = 0xA0000
	IOHolePhysEnd   = 0x100000
	ConsolePhysAddr = 0xB8000

	// ProcPhysStart marks the start of the physical range available to the
	// frame allocator for process images and heaps.
	ProcPhysStart = 0x100000

	// ProcSize is the per-process physical budget of this memory map.
	// proc.LoadImage does not place images at a fixed per-pid offset; it
	// takes each image frame from Palloc.
	ProcSize = 0x40000
)

// Per-process virtual memory layout. The kernel identity-maps its own image
// at the same addresses as the physical layout above; the user region starts
// at ProcStartAddr and grows upward, with the stack pinned to the top of the
// virtual address space.
const (
	// ProcStartAddr is the virtual address where the loader places a
	// process's code and data.
	ProcStartAddr = 0x400000

	// VirtualMax is one past the highest virtual address a user process may
	// reference; the user stack occupies the page immediately below it.
	VirtualMax = 0x40000000
)
