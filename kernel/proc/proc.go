// Package proc implements the process descriptor table and lifecycle:
// process_init, process_config_tables, process_setup_stack, process_fork
// and process_free, plus the demand-paged heap break fields that sbrk
// advances and the page-fault handler consults.
package proc

import (
	"pagelab/kernel"
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"pagelab/kernel/mem/vmm"
)

// State is a process's lifecycle state.
type State uint8

const (
	// Free marks an unused process table slot.
	Free State = iota
	// Runnable marks a process eligible for scheduling.
	Runnable
	// Broken marks a process that suffered an unrecoverable fault; it is
	// never scheduled again.
	Broken
)

func (s State) String() string {
	switch s {
	case Free:
		return "FREE"
	case Runnable:
		return "RUNNABLE"
	case Broken:
		return "BROKEN"
	default:
		return "UNKNOWN"
	}
}

// NPROC bounds the process table; pid 0 is permanently FREE and never
// scheduled.
const NPROC = 8

var (
	// ErrNoFreeSlot is returned by Fork when no FREE process slot remains.
	ErrNoFreeSlot = &kernel.Error{Module: "proc", Message: "no free process slot"}
)

// Process is a single process table slot.
type Process struct {
	PID   int
	State State
	Regs  Regs

	table      *vmm.Table
	sharesKern bool

	// OriginalBreak is the end of the loaded image, page-aligned up.
	// ProgramBreak is the current heap top; pages in
	// [OriginalBreak, ProgramBreak) are reserved but faulted in lazily.
	OriginalBreak uintptr
	ProgramBreak  uintptr

	// DisplayStatus controls whether kernel/console includes this process
	// in its per-process page-table visualisation rotation.
	DisplayStatus bool
}

// Table owns the fixed process array, the frame table and page-table engine
// backing every process, and the page table shared by processes that have
// not yet called ConfigTables.
type Table struct {
	Frames *pmm.FrameTable
	Engine *vmm.Engine

	procs      [NPROC]Process
	kernelRoot *vmm.Table
}

// NewTable builds a process table backed by frames/engine and installs the
// kernel identity map described by kernel/mem's memory layout constants into
// a fresh, kernel-owned shared page table.
func NewTable(frames *pmm.FrameTable, engine *vmm.Engine) (*Table, *kernel.Error) {
	kernelRoot, err := engine.NewTable(pmm.Kernel)
	if err != nil {
		return nil, err
	}

	t := &Table{Frames: frames, Engine: engine, kernelRoot: kernelRoot}
	if err := t.installKernelIdentityMap(kernelRoot); err != nil {
		return nil, err
	}

	for i := range t.procs {
		t.procs[i].PID = i
		t.procs[i].State = Free
	}

	return t, nil
}

// installKernelIdentityMap maps the kernel image and the console frame
// identically into root. The final page of the kernel image is treated as
// the kernel stack and is writable; everything else in the image is
// read-only, matching the spec's text/data split. The console frame and the
// kernel image frames are shared across every page table they appear in:
// the very first installation (into the kernel's own table, during
// NewTable) consumes the refcount=1 the frame table's Init classification
// already assigned; every later installation into a process's own table
// bumps the refcount via AddRef instead of claiming fresh ownership.
func (t *Table) installKernelIdentityMap(root *vmm.Table) *kernel.Error {
	firstInstall := t.kernelRoot == nil || root == t.kernelRoot
	stackPage := uintptr(mem.KernelPhysEnd) - uintptr(mem.PageSize)

	for addr := uintptr(mem.KernelPhysStart); addr < uintptr(mem.KernelPhysEnd); addr += uintptr(mem.PageSize) {
		perm := vmm.FlagPresent
		if addr == stackPage {
			perm |= vmm.FlagWritable
		}
		if err := t.Engine.MapFrame(root, addr, pmm.FrameFromAddress(addr), perm); err != nil {
			return err
		}
		if !firstInstall {
			t.Frames.AddRef(addr)
		}
	}

	consoleAddr := uintptr(mem.ConsolePhysAddr)
	if err := t.Engine.MapFrame(root, consoleAddr, pmm.FrameFromAddress(consoleAddr), vmm.FlagPresent|vmm.FlagWritable); err != nil {
		return err
	}
	if !firstInstall {
		t.Frames.AddRef(consoleAddr)
	}

	return nil
}

// Get returns the process slot for pid, or nil if pid is out of range.
func (t *Table) Get(pid int) *Process {
	if pid < 0 || pid >= NPROC {
		return nil
	}
	return &t.procs[pid]
}

// KernelTable returns the shared kernel page table every process initially
// points at.
func (t *Table) KernelTable() *vmm.Table {
	return t.kernelRoot
}

// Init implements process_init: zeroes the register frame and points the
// page table at the shared kernel table.
func (t *Table) Init(pid int) {
	p := t.Get(pid)
	p.Regs = Regs{}
	p.table = t.kernelRoot
	p.sharesKern = true
	t.Frames.AddRef(t.kernelRoot.Root.Address())
	p.OriginalBreak = 0
	p.ProgramBreak = 0
	p.DisplayStatus = false
}

// AllocSlot finds a FREE slot, returning its pid, or false if none remain.
func (t *Table) AllocSlot() (int, bool) {
	for i := 1; i < NPROC; i++ {
		if t.procs[i].State == Free {
			return i, true
		}
	}
	return 0, false
}

// Table returns the page table currently installed for pid (its own table,
// or the shared kernel table before ConfigTables runs).
func (p *Process) Table() *vmm.Table {
	return p.table
}
