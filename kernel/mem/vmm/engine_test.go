package vmm

import (
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"testing"
)

func newTestEngine(t *testing.T) (*Engine, *pmm.FrameTable) {
	t.Helper()
	m := pmm.NewMemory(256 * mem.PageSize)
	frames := pmm.NewFrameTable(m)
	frames.Init(nil)
	return NewEngine(frames), frames
}

func TestMapLookupRoundtrip(t *testing.T) {
	e, frames := newTestEngine(t)

	tbl, err := e.NewTable(pmm.Owner(1))
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	pa, err := frames.Palloc(pmm.Owner(1))
	if err != nil {
		t.Fatalf("Palloc: %v", err)
	}

	const va = uintptr(0x400000)
	if err := e.MapFrame(tbl, va, pmm.FrameFromAddress(pa), FlagPresent|FlagWritable|FlagUser); err != nil {
		t.Fatalf("MapFrame: %v", err)
	}

	got := e.Lookup(tbl, va)
	if !got.Present() {
		t.Fatal("expected mapping to be present")
	}
	if got.PhysAddr != pa {
		t.Errorf("expected phys addr %x; got %x", pa, got.PhysAddr)
	}
	if got.Perm&(FlagWritable|FlagUser) != FlagWritable|FlagUser {
		t.Errorf("expected writable+user perm; got %x", got.Perm)
	}
}

func TestLookupMiss(t *testing.T) {
	e, _ := newTestEngine(t)
	tbl, err := e.NewTable(pmm.Owner(1))
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	m := e.Lookup(tbl, 0x800000)
	if m.Present() {
		t.Fatal("expected unmapped address to report not-present")
	}
	if m.Frame != pmm.InvalidFrame {
		t.Errorf("expected InvalidFrame sentinel; got %v", m.Frame)
	}
}

func TestUnmapDecrementsRefcount(t *testing.T) {
	e, frames := newTestEngine(t)
	tbl, _ := e.NewTable(pmm.Owner(1))

	pa, _ := frames.Palloc(pmm.Owner(1))
	f := pmm.FrameFromAddress(pa)
	const va = uintptr(0x400000)

	if err := e.MapFrame(tbl, va, f, FlagPresent|FlagWritable); err != nil {
		t.Fatalf("MapFrame: %v", err)
	}
	if frames.RefCount(f) != 1 {
		t.Fatalf("expected refcount 1 after map; got %d", frames.RefCount(f))
	}

	if err := e.Unmap(tbl, va); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if frames.RefCount(f) != 0 || frames.Owner(f) != pmm.Free {
		t.Fatalf("expected frame freed after unmap; refcount=%d owner=%v", frames.RefCount(f), frames.Owner(f))
	}

	m := e.Lookup(tbl, va)
	if m.Present() {
		t.Fatal("expected lookup miss after unmap")
	}

	// unmapping an already-unmapped address is a no-op, not an error.
	if err := e.Unmap(tbl, va); err != nil {
		t.Fatalf("expected second Unmap to be a no-op; got %v", err)
	}
}

func TestClearLeavesRefcountUntouched(t *testing.T) {
	e, frames := newTestEngine(t)
	tbl, _ := e.NewTable(pmm.Owner(1))

	pa, _ := frames.Palloc(pmm.Owner(1))
	f := pmm.FrameFromAddress(pa)
	const va = uintptr(0x400000)

	e.MapFrame(tbl, va, f, FlagPresent|FlagWritable)
	if err := e.Clear(tbl, va); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if m := e.Lookup(tbl, va); m.Present() {
		t.Fatal("expected lookup miss after Clear")
	}
	if frames.RefCount(f) != 1 {
		t.Fatalf("Clear must not touch the target frame's refcount; got %d", frames.RefCount(f))
	}
}

func TestPermissionIsAndedAcrossLevels(t *testing.T) {
	e, frames := newTestEngine(t)

	pa, _ := frames.Palloc(pmm.Owner(1))
	f := pmm.FrameFromAddress(pa)
	const va = uintptr(0x400000)

	// leaf requests Writable|User, but intermediate nodes created along the
	// way only ever set Writable and propagate User for user-owned tables
	// (see boolUserFlag); a kernel-owned table's intermediate nodes must
	// mask User out of the effective permission even if the leaf sets it.
	kernelTbl, _ := e.NewTable(pmm.Kernel)
	if err := e.MapFrame(kernelTbl, va, f, FlagPresent|FlagWritable|FlagUser); err != nil {
		t.Fatalf("MapFrame: %v", err)
	}

	got := e.Lookup(kernelTbl, va)
	if got.Perm&FlagUser != 0 {
		t.Error("expected effective permission to drop FlagUser for a kernel-owned table's intermediate nodes")
	}
}

func TestMapSpanningMultiplePages(t *testing.T) {
	e, frames := newTestEngine(t)
	tbl, _ := e.NewTable(pmm.Owner(1))

	const va = uintptr(0x400000)
	pa, _ := frames.Palloc(pmm.Owner(1))
	frames.Palloc(pmm.Owner(1)) // keep the allocator's scan pointer moving

	if err := e.Map(tbl, va, pa, 2*mem.PageSize, FlagPresent|FlagWritable); err != nil {
		t.Fatalf("Map: %v", err)
	}

	first := e.Lookup(tbl, va)
	second := e.Lookup(tbl, va+uintptr(mem.PageSize))
	if !first.Present() || !second.Present() {
		t.Fatal("expected both pages of a multi-page mapping to be present")
	}
	if second.PhysAddr != first.PhysAddr+uintptr(mem.PageSize) {
		t.Errorf("expected contiguous physical mapping; got %x and %x", first.PhysAddr, second.PhysAddr)
	}
}

func TestFreeTableReleasesLeavesAndNodes(t *testing.T) {
	e, frames := newTestEngine(t)
	// Freepage refuses physical address 0, so keep frame 0 out of the
	// allocator's hands the way the real memory map does.
	frames.AssignPhysicalPage(0, pmm.Reserved)
	tbl, _ := e.NewTable(pmm.Owner(1))

	pa, _ := frames.Palloc(pmm.Owner(1))
	f := pmm.FrameFromAddress(pa)
	const va = uintptr(0x400000)

	e.MapFrame(tbl, va, f, FlagPresent|FlagWritable)
	e.FreeTable(tbl)

	if frames.Owner(f) != pmm.Free {
		t.Errorf("expected leaf frame freed by FreeTable; owner=%v", frames.Owner(f))
	}
	if frames.Owner(tbl.Root) != pmm.Free {
		t.Errorf("expected root frame freed by FreeTable; owner=%v", frames.Owner(tbl.Root))
	}
}
