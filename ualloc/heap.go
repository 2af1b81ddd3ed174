// Package ualloc implements the companion user-space heap allocator: a
// single doubly-linked free list in address order, best-fit selection with
// splitting and coalescing, backed by a growable address space whose only
// growth primitive is an sbrk-shaped call. It has no dependency on the
// kernel packages so the same allocator can run either inside the
// simulated kernel's test processes or as a plain Go library.
package ualloc

import "errors"

// headerSize is the fixed bookkeeping overhead charged against every block;
// per the design notes, the header itself is tracked as an out-of-band Go
// value (see header below) rather than packed into the address space's
// bytes, the same choice kernel/mem/vmm makes for page-table nodes in this
// hosted simulation.
const headerSize = 16

// minSplitRemainder is the smallest remainder a split is willing to leave
// behind as its own free block (the "+8" in "total + header_size + 8").
const minSplitRemainder = headerSize + 8

// AddressSpace is the minimal view of a process's heap ualloc needs: a way
// to grow it (the sbrk syscall) and a way to read/write the bytes it
// already owns.
type AddressSpace interface {
	// Sbrk adjusts the break by delta, returning the pre-call break and
	// whether the adjustment succeeded.
	Sbrk(delta int64) (old uintptr, ok bool)
	// Bytes returns a slice aliasing size bytes of the address space
	// starting at addr.
	Bytes(addr uintptr, size uintptr) []byte
}

// header is a free-list block's metadata. Every block, allocated or free,
// is always linked into the address-ordered list; freed distinguishes its
// state instead of unlinking it, per the design notes' fix for the source
// allocator's "block already linked" bug.
type header struct {
	addr       uintptr
	size       uintptr // total size, including headerSize
	next, prev *header
	freed      bool
}

func (h *header) payload() uintptr {
	return h.addr + headerSize
}

// ErrOverflow describes a calloc num*sz overflow. Calloc does not return
// it; Calloc reports that case by returning 0.
var ErrOverflow = errors.New("ualloc: calloc size overflow")

// Heap is a single process's user-space allocator state.
type Heap struct {
	as    AddressSpace
	base  uintptr
	brk   uintptr
	head  *header
	tail  *header
	total int // total_allocations
}

// NewHeap creates a heap starting at base, the current break of as.
func NewHeap(as AddressSpace, base uintptr) *Heap {
	return &Heap{as: as, base: base, brk: base}
}

// TotalAllocations returns the number of currently live allocations.
func (h *Heap) TotalAllocations() int {
	return h.total
}

// alignUp8 rounds n up to the next multiple of 8.
func alignUp8(n uintptr) uintptr {
	return (n + 7) &^ 7
}

// insertOrdered links b into the address-ordered list starting at head.
func (hp *Heap) insertOrdered(b *header) {
	if hp.head == nil {
		hp.head, hp.tail = b, b
		b.next, b.prev = nil, nil
		return
	}

	if b.addr < hp.head.addr {
		b.next = hp.head
		b.prev = nil
		hp.head.prev = b
		hp.head = b
		return
	}

	cur := hp.head
	for cur.next != nil && cur.next.addr < b.addr {
		cur = cur.next
	}

	b.next = cur.next
	b.prev = cur
	if cur.next != nil {
		cur.next.prev = b
	} else {
		hp.tail = b
	}
	cur.next = b
}

func (hp *Heap) appendTail(b *header) {
	b.prev = hp.tail
	b.next = nil
	if hp.tail != nil {
		hp.tail.next = b
	} else {
		hp.head = b
	}
	hp.tail = b
}

// linked reports whether b is already part of the list.
func (hp *Heap) linked(b *header) bool {
	return b == hp.head || b.next != nil || b.prev != nil
}
