package proc

import (
	"fmt"

	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"pagelab/kernel/mem/vmm"
)

// CheckInvariants sweeps the frame table and every process page table,
// checking the properties section 7 and section 8 of the design call
// assertions: frame refcount/owner consistency, and that every present user
// mapping's target frame is owned by the mapping process. It is a debugging
// aid: the trap dispatcher does not call it, and tests invoke it directly.
func (t *Table) CheckInvariants() []error {
	var errs []error

	for f := pmm.Frame(0); f < t.Frames.FrameCount(); f++ {
		owner := t.Frames.Owner(f)
		refcount := t.Frames.RefCount(f)

		if (refcount == 0) != (owner == pmm.Free) {
			errs = append(errs, fmt.Errorf("frame %d: refcount %d but owner %v", f, refcount, owner))
		}

		if refcount > 0 && owner >= 1 {
			p := t.Get(int(owner))
			if p == nil || p.State == Free {
				errs = append(errs, fmt.Errorf("frame %d: owned by pid %d which is FREE", f, owner))
			}
		}
	}

	consoleOwner := t.Frames.Owner(pmm.FrameFromAddress(uintptr(mem.ConsolePhysAddr)))
	if consoleOwner != pmm.Reserved {
		errs = append(errs, fmt.Errorf("console frame classification drifted to %v", consoleOwner))
	}

	for i := 1; i < NPROC; i++ {
		p := &t.procs[i]
		if p.State == Free || p.table == nil || p.sharesKern {
			continue
		}

		for va := uintptr(mem.ProcStartAddr); va < uintptr(mem.VirtualMax); va += uintptr(mem.PageSize) {
			m := t.Engine.Lookup(p.table, va)
			if !m.Present() || !m.Perm.HasFlags(vmm.FlagUser) {
				continue
			}
			if owner := t.Frames.Owner(m.Frame); owner != pmm.Owner(i) {
				errs = append(errs, fmt.Errorf("pid %d: user mapping at %x targets frame owned by %v", i, va, owner))
			}
		}
	}

	return errs
}
