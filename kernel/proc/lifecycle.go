package proc

import (
	"pagelab/kernel"
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"pagelab/kernel/mem/vmm"
)

var (
	// ErrOutOfMemory mirrors an allocation failure while building or
	// growing a process's address space.
	ErrOutOfMemory = &kernel.Error{Module: "proc", Message: "out of physical memory"}
)

// ConfigTables implements process_config_tables: allocates and installs a
// private page table for pid, installs the kernel identity map into it
// (charged to pid's new table but referencing the kernel's own frames), and
// releases the slot's hold on the previously shared kernel table.
func (t *Table) ConfigTables(pid int) *kernel.Error {
	p := t.Get(pid)

	own, err := t.Engine.NewTable(pmm.Owner(pid))
	if err != nil {
		return err
	}
	if err := t.installKernelIdentityMap(own); err != nil {
		return err
	}

	if p.sharesKern {
		t.Frames.Freepage(t.kernelRoot.Root.Address())
		p.sharesKern = false
	}

	p.table = own
	return nil
}

// SetupStack implements process_setup_stack: picks the top-of-user-region
// stack page, allocates and maps it USER|WRITABLE, and sets RSP.
func (t *Table) SetupStack(pid int) *kernel.Error {
	p := t.Get(pid)

	stackVA := uintptr(mem.VirtualMax) - uintptr(mem.PageSize)

	pa, err := t.Frames.Palloc(pmm.Owner(pid))
	if err != nil {
		return err
	}

	if err := t.Engine.MapFrame(p.table, stackVA, pmm.FrameFromAddress(pa), vmm.FlagPresent|vmm.FlagWritable|vmm.FlagUser); err != nil {
		t.Frames.Freepage(pa)
		return err
	}

	p.Regs.RSP = uint64(stackVA) + uint64(mem.PageSize)
	return nil
}

// LoadImage implements the loader-facing half of process_load: copies img
// into freshly palloc'd frames starting at PROC_START_ADDR, maps them
// USER|WRITABLE, sets RIP to the entry point and OriginalBreak/ProgramBreak
// to the page-rounded end of the image. The actual program image bytes are
// supplied by the caller (the boot-time loader), matching the spec's
// "external loader responsibility" framing.
func (t *Table) LoadImage(pid int, img []byte, entry uintptr) *kernel.Error {
	p := t.Get(pid)

	base := uintptr(mem.ProcStartAddr)
	pageCount := (mem.Size(len(img)) + mem.PageSize - 1) / mem.PageSize
	if pageCount == 0 {
		pageCount = 1
	}

	for i := mem.Size(0); i < pageCount; i++ {
		pa, err := t.Frames.Palloc(pmm.Owner(pid))
		if err != nil {
			return ErrOutOfMemory
		}

		page := t.Frames.Mem().Page(pa)
		start := int(i) * int(mem.PageSize)
		end := start + int(mem.PageSize)
		if end > len(img) {
			end = len(img)
		}
		if start < len(img) {
			copy(page, img[start:end])
		}

		va := base + uintptr(i)*uintptr(mem.PageSize)
		if err := t.Engine.MapFrame(p.table, va, pmm.FrameFromAddress(pa), vmm.FlagPresent|vmm.FlagWritable|vmm.FlagUser); err != nil {
			t.Frames.Freepage(pa)
			return err
		}
	}

	p.Regs.RIP = uint64(entry)
	imageEnd := base + uintptr(pageCount)*uintptr(mem.PageSize)
	p.OriginalBreak = imageEnd
	p.ProgramBreak = imageEnd
	return nil
}

// Fork implements process_fork: finds a FREE slot, duplicates every present
// user mapping of parent into a fresh frame in the child, shares the kernel
// identity map, inherits registers (with the fork return-value split), and
// rolls the child back to FREE on any allocation failure along the way.
func (t *Table) Fork(parentPID int) (int, *kernel.Error) {
	parent := t.Get(parentPID)

	childPID, ok := t.AllocSlot()
	if !ok {
		return -1, ErrNoFreeSlot
	}
	child := t.Get(childPID)

	childTable, err := t.Engine.NewTable(pmm.Owner(childPID))
	if err != nil {
		return -1, err
	}
	if err := t.installKernelIdentityMap(childTable); err != nil {
		t.Engine.FreeTable(childTable)
		return -1, err
	}

	copiedFrames, err := t.copyUserMappings(parent.table, childTable, childPID)
	if err != nil {
		for _, pa := range copiedFrames {
			t.Frames.Freepage(pa)
		}
		t.Engine.FreeTable(childTable)
		return -1, err
	}

	child.Regs = parent.Regs
	child.Regs.RAX = 0
	child.table = childTable
	child.sharesKern = false
	child.OriginalBreak = parent.OriginalBreak
	child.ProgramBreak = parent.ProgramBreak
	child.DisplayStatus = false
	child.State = Runnable

	parent.Regs.RAX = uint64(childPID)
	return childPID, nil
}

// copyUserMappings walks every page of the user virtual range present in
// src, copies its contents into a fresh frame, and installs the same
// permissions in dst. It returns the physical addresses of every frame it
// allocated so the caller can roll them back on a later failure.
func (t *Table) copyUserMappings(src, dst *vmm.Table, childOwner int) ([]uintptr, *kernel.Error) {
	var allocated []uintptr

	for va := uintptr(mem.ProcStartAddr); va < uintptr(mem.VirtualMax); va += uintptr(mem.PageSize) {
		m := t.Engine.Lookup(src, va)
		if !m.Present() {
			continue
		}
		if !m.Perm.HasFlags(vmm.FlagUser) {
			continue
		}

		pa, err := t.Frames.Palloc(pmm.Owner(childOwner))
		if err != nil {
			return allocated, ErrOutOfMemory
		}
		allocated = append(allocated, pa)

		srcPage := t.Frames.Mem().Page(m.PhysAddr &^ (uintptr(mem.PageSize) - 1))
		dstPage := t.Frames.Mem().Page(pa)
		copy(dstPage, srcPage)

		if err := t.Engine.MapFrame(dst, va, pmm.FrameFromAddress(pa), m.Perm); err != nil {
			return allocated, err
		}
	}

	return allocated, nil
}

// Free implements process_free: decrements the refcount of every user
// mapping, tears down the process's own page-table nodes (or releases its
// hold on the shared kernel table if it never got its own), and returns the
// slot to FREE.
func (t *Table) Free(pid int) {
	p := t.Get(pid)

	if p.sharesKern {
		t.Frames.Freepage(t.kernelRoot.Root.Address())
	} else if p.table != nil {
		t.Engine.FreeTable(p.table)
	}

	*p = Process{PID: pid, State: Free}
}
