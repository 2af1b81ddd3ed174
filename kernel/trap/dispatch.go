package trap

import (
	"pagelab/kernel/console"
	"pagelab/kernel/cpu"
	"pagelab/kernel/kfmt"
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"pagelab/kernel/mem/vmm"
	"pagelab/kernel/proc"
	"pagelab/kernel/sched"
)

const panicMsgMaxLen = 160

// Dispatch demultiplexes on num for the process currently selected by
// s.CurrentPID, mutating its register frame and process state as the
// syscall ABI table in the spec requires, and returns the Action the
// caller's run loop must perform next.
func Dispatch(pt *proc.Table, s *sched.Scheduler, num Number) Action {
	pid := s.CurrentPID
	p := pt.Get(pid)

	switch num {
	case Panic:
		msg := readUserString(pt, p, uintptr(p.Regs.RDI))
		kfmt.Printf("[trap] PANIC from pid %d: %s\n", pid, msg)
		return ActionTerminate

	case Getpid:
		p.Regs.RAX = uint64(pid)
		return ActionContinue

	case Fork:
		child, err := pt.Fork(pid)
		if err != nil {
			p.Regs.RAX = negOne
			return ActionContinue
		}
		_ = child
		return ActionContinue

	case Exit:
		pt.Free(pid)
		return ActionSchedule

	case Yield:
		return ActionSchedule

	case PageAlloc:
		doPageAlloc(pt, p, pid)
		return ActionContinue

	case Brk:
		doBrk(pt, p)
		return ActionContinue

	case Sbrk:
		doSbrk(pt, p)
		return ActionContinue

	case Mapping:
		doMapping(pt, p)
		return ActionContinue

	case MemTog:
		doMemTog(p, pid)
		return ActionContinue

	case Timer:
		s.Tick()
		return ActionSchedule

	case PageFault:
		return dispatchPageFault(pt, p, pid)

	case GPF:
		kfmt.Printf("[trap] GPF in pid %d: unrecoverable\n", pid)
		p.State = proc.Broken
		return ActionSchedule

	default:
		kfmt.Printf("[trap] unrecognised trap number %d in pid %d\n", num, pid)
		p.State = proc.Broken
		return ActionSchedule
	}
}

const negOne = ^uint64(0)

// readUserString copies up to panicMsgMaxLen bytes from the user page
// containing va, stopping at a NUL byte or the page end. It returns "<null>"
// if va is 0 and "<unmapped>" if va is not mapped.
func readUserString(pt *proc.Table, p *proc.Process, va uintptr) string {
	if va == 0 {
		return "<null>"
	}

	m := pt.Engine.Lookup(p.Table(), va)
	if !m.Present() {
		return "<unmapped>"
	}

	page := pt.Frames.Mem().Page(m.PhysAddr)
	offset := int(m.PhysAddr & (uintptr(mem.PageSize) - 1))
	end := offset + panicMsgMaxLen
	if end > len(page) {
		end = len(page)
	}

	for i := offset; i < end; i++ {
		if page[i] == 0 {
			return string(page[offset:i])
		}
	}
	return string(page[offset:end])
}

// doPageAlloc implements the PAGE_ALLOC syscall: allocates a frame and maps
// it USER|WRITABLE at the page containing rdi.
func doPageAlloc(pt *proc.Table, p *proc.Process, pid int) {
	va := uintptr(p.Regs.RDI) &^ (uintptr(mem.PageSize) - 1)

	pa, err := pt.Frames.Palloc(pmm.Owner(pid))
	if err != nil {
		p.Regs.RAX = negOne
		return
	}

	if err := pt.Engine.MapFrame(p.Table(), va, pmm.FrameFromAddress(pa), vmm.FlagPresent|vmm.FlagWritable|vmm.FlagUser); err != nil {
		pt.Frames.Freepage(pa)
		p.Regs.RAX = negOne
		return
	}

	p.Regs.RAX = 0
}

// doMapping implements the MAPPING syscall: writes virtual_memory_lookup(va)
// into user memory at the destination pointer, after verifying the
// destination itself is USER|WRITABLE. A destination that fails that check
// is a silent no-op per the spec's error handling design.
func doMapping(pt *proc.Table, p *proc.Process) {
	destVA := uintptr(p.Regs.RDI)
	queryVA := uintptr(p.Regs.RSI)

	destMapping := pt.Engine.Lookup(p.Table(), destVA)
	if !destMapping.Present() || !destMapping.Perm.HasFlags(vmm.FlagUser|vmm.FlagWritable) {
		return
	}

	result := pt.Engine.Lookup(p.Table(), queryVA)

	dest := pt.Frames.Mem().Bytes(destMapping.PhysAddr, mem.Size(24))
	putUint64(dest[0:8], uint64(result.Frame))
	putUint64(dest[8:16], uint64(result.PhysAddr))
	putUint64(dest[16:24], uint64(result.Perm))
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// doMemTog implements MEM_TOG: rdi == 0 flips the global viewer flag;
// otherwise it flips the caller's own DisplayStatus if rdi matches pid.
func doMemTog(p *proc.Process, pid int) {
	target := int(p.Regs.RDI)
	if target == 0 {
		console.ToggleGlobal()
		return
	}
	if target == pid {
		p.DisplayStatus = !p.DisplayStatus
	}
}

// dispatchPageFault implements the page-fault handler of spec section 4.4.
func dispatchPageFault(pt *proc.Table, p *proc.Process, pid int) Action {
	addr := cpu.ReadCR2()
	userFault := p.Regs.ErrCode&errCodeUser != 0

	if !userFault {
		kfmt.Printf("[trap] page fault in kernel mode at %x: fatal\n", addr)
		return ActionTerminate
	}

	page := addr &^ (uintptr(mem.PageSize) - 1)

	if p.OriginalBreak <= addr && addr < p.ProgramBreak {
		existing := pt.Engine.Lookup(p.Table(), page)
		if existing.Present() {
			return ActionContinue
		}

		pa, err := pt.Frames.Palloc(pmm.Owner(pid))
		if err != nil {
			p.State = proc.Broken
			kfmt.Printf("[trap] pid %d broken: out of physical memory on heap fault\n", pid)
			return ActionSchedule
		}
		pt.Frames.Mem().Zero(pa, mem.PageSize)

		if err := pt.Engine.MapFrame(p.Table(), page, pmm.FrameFromAddress(pa), vmm.FlagPresent|vmm.FlagWritable|vmm.FlagUser); err != nil {
			pt.Frames.Freepage(pa)
			p.State = proc.Broken
			return ActionSchedule
		}

		return ActionContinue
	}

	existing := pt.Engine.Lookup(p.Table(), page)
	if existing.Present() {
		return ActionContinue
	}

	kfmt.Printf("[trap] pid %d broken: page fault at %x outside the heap\n", pid, addr)
	p.State = proc.Broken
	return ActionSchedule
}

// errCodeUser is the error-code bit the CPU sets when a page fault occurs
// while running in user mode.
const errCodeUser = 1 << 2
