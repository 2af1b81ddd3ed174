package pmm

import "pagelab/kernel/mem"

// DefaultRegions returns the fixed physical memory classification described
// by spec.md section 6: the kernel image is KERNEL, the low-memory/BIOS
// range, the post-kernel gap and the I/O hole (which contains the console
// framebuffer) are RESERVED, and everything from ProcPhysStart onward is
// left FREE for process images and demand-paged heaps.
func DefaultRegions() []Region {
	return []Region{
		{Start: 0, End: mem.LowMemoryEnd, Owner: Reserved},
		{Start: mem.KernelPhysStart, End: mem.KernelPhysEnd, Owner: Kernel},
		{Start: mem.ReservedPhysStart, End: mem.ReservedPhysEnd, Owner: Reserved},
		{Start: mem.IOHolePhysStart, End: mem.IOHolePhysEnd, Owner: Reserved},
	}
}
