package trap

import (
	"pagelab/kernel/mem"
	"pagelab/kernel/proc"
)

// SbrkInternal implements sbrk_internal: advances or shrinks p.ProgramBreak
// by delta. Growth never allocates a frame — pages are faulted in lazily by
// the page-fault handler. Shrinking unmaps and frees every page boundary
// crossed. It returns the pre-call break and true on success, or false if
// the requested break would fall outside [OriginalBreak, VIRTUAL_MAX -
// PAGESIZE).
func SbrkInternal(pt *proc.Table, p *proc.Process, delta int64) (uintptr, bool) {
	old := p.ProgramBreak
	newBreak := uintptr(int64(old) + delta)

	limit := uintptr(mem.VirtualMax) - uintptr(mem.PageSize)
	if newBreak < p.OriginalBreak || newBreak >= limit {
		return old, false
	}

	if delta < 0 {
		pageUp := func(addr uintptr) uintptr {
			return (addr + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
		}

		for va := pageUp(newBreak); va < pageUp(old); va += uintptr(mem.PageSize) {
			pt.Engine.Unmap(p.Table(), va)
		}
	}

	p.ProgramBreak = newBreak
	return old, true
}

// doBrk implements the BRK syscall: sets ProgramBreak to the absolute
// address in RDI, returning 0 or -1 in RAX.
func doBrk(pt *proc.Table, p *proc.Process) {
	target := uintptr(p.Regs.RDI)
	delta := int64(target) - int64(p.ProgramBreak)

	if _, ok := SbrkInternal(pt, p, delta); !ok {
		p.Regs.RAX = negOne
		return
	}
	p.Regs.RAX = 0
}

// doSbrk implements the SBRK syscall: adjusts ProgramBreak by the signed
// increment in RDI, returning the pre-call break on success or -1 on
// failure.
func doSbrk(pt *proc.Table, p *proc.Process) {
	delta := int64(p.Regs.RDI)

	old, ok := SbrkInternal(pt, p, delta)
	if !ok {
		p.Regs.RAX = negOne
		return
	}
	p.Regs.RAX = uint64(old)
}
