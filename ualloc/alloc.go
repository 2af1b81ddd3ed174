package ualloc

// Malloc implements malloc(n): returns 0 for n == 0. Best-fit-selects a free
// block, splitting off any sufficiently large remainder; on a miss it grows
// the heap via Sbrk and appends a fresh allocated block.
func (hp *Heap) Malloc(n uintptr) uintptr {
	if n == 0 {
		return 0
	}

	total := alignUp8(n) + headerSize

	if b := hp.bestFit(total); b != nil {
		hp.maybeSplit(b, total)
		b.freed = false
		hp.total++
		return b.payload()
	}

	old, ok := hp.as.Sbrk(int64(total))
	if !ok {
		return 0
	}

	b := &header{addr: old, size: total, freed: false}
	hp.appendTail(b)
	hp.total++
	return b.payload()
}

// bestFit returns the free block whose size minimizes size-total among
// every free block with size >= total, or nil if none fits. Ties keep the
// first-encountered block.
func (hp *Heap) bestFit(total uintptr) *header {
	var best *header
	var bestRemainder uintptr

	for b := hp.head; b != nil; b = b.next {
		if !b.freed || b.size < total {
			continue
		}
		remainder := b.size - total
		if best == nil || remainder < bestRemainder {
			best, bestRemainder = b, remainder
		}
	}

	return best
}

// maybeSplit splits b if its remainder past total is large enough to form
// its own free block.
func (hp *Heap) maybeSplit(b *header, total uintptr) {
	if b.size < total+minSplitRemainder {
		return
	}

	remainder := &header{
		addr:  b.addr + total,
		size:  b.size - total,
		freed: true,
	}
	b.size = total

	remainder.next = b.next
	remainder.prev = b
	if b.next != nil {
		b.next.prev = remainder
	} else {
		hp.tail = remainder
	}
	b.next = remainder
}

// Free implements free(ptr): a null pointer is a no-op. The block is marked
// freed, linked into the list if it somehow was not already (every block
// from Malloc always is, but the invariant is checked defensively), and
// coalesced with its physical successor then predecessor.
func (hp *Heap) Free(ptr uintptr) {
	if ptr == 0 {
		return
	}

	b := hp.headerAt(ptr)
	if b == nil {
		return
	}

	hp.total--
	b.freed = true

	if !hp.linked(b) {
		hp.insertOrdered(b)
	}

	hp.coalesceNext(b)
	if b.prev != nil {
		hp.coalesceNext(b.prev)
	}
}

// headerAt finds the block whose payload address is ptr.
func (hp *Heap) headerAt(ptr uintptr) *header {
	for b := hp.head; b != nil; b = b.next {
		if b.payload() == ptr {
			return b
		}
	}
	return nil
}

// coalesceNext merges b with b.next if both are free and address-contiguous.
func (hp *Heap) coalesceNext(b *header) {
	n := b.next
	if n == nil || !b.freed || !n.freed {
		return
	}
	if b.addr+b.size != n.addr {
		return
	}

	b.size += n.size
	b.next = n.next
	if n.next != nil {
		n.next.prev = b
	} else {
		hp.tail = b
	}
}

// Calloc implements calloc(num, sz): rejects zero or an overflowing
// num*sz, then zeroes the allocated payload.
func (hp *Heap) Calloc(num, sz uintptr) uintptr {
	if num == 0 || sz == 0 {
		return 0
	}
	if num > ^uintptr(0)/sz {
		return 0
	}

	total := num * sz
	ptr := hp.Malloc(total)
	if ptr == 0 {
		return 0
	}

	zero := hp.as.Bytes(ptr, total)
	for i := range zero {
		zero[i] = 0
	}
	return ptr
}

// Realloc implements realloc(ptr, n): a null ptr behaves as Malloc; n == 0
// frees ptr and returns 0; if the current block already has room, ptr is
// returned unchanged; otherwise a fresh block is allocated, the old payload
// bytes are copied, and the old block is freed.
func (hp *Heap) Realloc(ptr uintptr, n uintptr) uintptr {
	if ptr == 0 {
		return hp.Malloc(n)
	}
	if n == 0 {
		hp.Free(ptr)
		return 0
	}

	b := hp.headerAt(ptr)
	if b == nil {
		return 0
	}

	total := alignUp8(n) + headerSize
	if b.size >= total {
		return ptr
	}

	newPtr := hp.Malloc(n)
	if newPtr == 0 {
		return 0
	}

	oldPayloadSize := b.size - headerSize
	copySize := oldPayloadSize
	if n < copySize {
		copySize = n
	}
	copy(hp.as.Bytes(newPtr, copySize), hp.as.Bytes(ptr, copySize))

	hp.Free(ptr)
	return newPtr
}

// Defrag repeatedly scans the list merging adjacent free, address-contiguous
// blocks until a full pass makes no merge.
func (hp *Heap) Defrag() {
	for {
		merged := false
		for b := hp.head; b != nil; b = b.next {
			if b.freed && b.next != nil && b.next.freed && b.addr+b.size == b.next.addr {
				hp.coalesceNext(b)
				merged = true
			}
		}
		if !merged {
			return
		}
	}
}
