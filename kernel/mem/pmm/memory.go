package pmm

import "pagelab/kernel/mem"

// Memory models the data-bearing portion of the physical address space as a
// flat byte arena. Real hardware accesses physical memory through unsafe
// pointer casts over addresses handed out by the bootloader; since this
// kernel is a hosted simulation with no bootloader-provided RAM, Memory
// plays that role instead so the rest of the kernel can stay unsafe-free.
//
// Page-table nodes are not stored here: nothing in a hosted simulation walks
// page-table bytes directly, so the vmm package keeps them as typed Go
// structs indexed by Frame instead of raw bytes. Memory backs everything a
// real program could read or write: process code/data/heap pages and the
// console framebuffer.
type Memory struct {
	buf []byte
}

// NewMemory allocates a Memory arena big enough to back size bytes of
// simulated physical address space.
func NewMemory(size mem.Size) *Memory {
	return &Memory{buf: make([]byte, size)}
}

// Size returns the total size of the simulated physical address space.
func (m *Memory) Size() mem.Size {
	return mem.Size(len(m.buf))
}

// Page returns a PageSize-length slice aliasing the contents of the frame at
// physical address addr (rounded down to the start of its page). Writes to
// the returned slice are visible to subsequent callers.
func (m *Memory) Page(addr uintptr) []byte {
	start := addr &^ (uintptr(mem.PageSize) - 1)
	return m.buf[start : start+uintptr(mem.PageSize)]
}

// Bytes returns a slice aliasing size bytes of physical memory starting at
// addr.
func (m *Memory) Bytes(addr uintptr, size mem.Size) []byte {
	return m.buf[addr : addr+uintptr(size)]
}

// Zero clears size bytes of physical memory starting at addr.
func (m *Memory) Zero(addr uintptr, size mem.Size) {
	Memset(m, addr, 0, size)
}

// Memset sets size bytes of physical memory at addr to value. The
// implementation mirrors the teacher kernel's unsafe-pointer Memset (itself
// based on bytes.Repeat): it seeds the first byte and then doubles the
// written region on each pass instead of looping byte-by-byte.
func Memset(m *Memory, addr uintptr, value byte, size mem.Size) {
	if size == 0 {
		return
	}

	target := m.Bytes(addr, size)
	target[0] = value
	for index := mem.Size(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes of physical memory from src to dst.
func Memcopy(m *Memory, src, dst uintptr, size mem.Size) {
	if size == 0 {
		return
	}

	copy(m.Bytes(dst, size), m.Bytes(src, size))
}
