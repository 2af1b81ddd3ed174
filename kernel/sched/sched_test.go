package sched

import (
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"pagelab/kernel/mem/vmm"
	"pagelab/kernel/proc"
	"testing"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	m := pmm.NewMemory(4096 * mem.PageSize)
	frames := pmm.NewFrameTable(m)
	frames.Init(pmm.DefaultRegions())
	engine := vmm.NewEngine(frames)

	pt, err := proc.NewTable(frames, engine)
	if err != nil {
		t.Fatalf("proc.NewTable: %v", err)
	}
	return New(pt)
}

func TestScheduleSkipsPidZero(t *testing.T) {
	s := newTestScheduler(t)
	s.Table.Get(1).State = proc.Runnable

	pid, ok := s.Schedule()
	if !ok || pid != 1 {
		t.Fatalf("expected to schedule pid 1; got pid=%d ok=%v", pid, ok)
	}
}

func TestScheduleRoundRobin(t *testing.T) {
	s := newTestScheduler(t)
	s.Table.Get(1).State = proc.Runnable
	s.Table.Get(2).State = proc.Runnable

	first, _ := s.Schedule()
	second, _ := s.Schedule()

	if first == second {
		t.Fatalf("expected round robin to alternate; got %d then %d", first, second)
	}
}

func TestScheduleSkipsBrokenAndFree(t *testing.T) {
	s := newTestScheduler(t)
	s.Table.Get(1).State = proc.Broken
	s.Table.Get(2).State = proc.Free
	s.Table.Get(3).State = proc.Runnable

	pid, ok := s.Schedule()
	if !ok || pid != 3 {
		t.Fatalf("expected to schedule pid 3; got pid=%d ok=%v", pid, ok)
	}
}

func TestScheduleNoneRunnable(t *testing.T) {
	s := newTestScheduler(t)

	if _, ok := s.Schedule(); ok {
		t.Fatal("expected Schedule to report no runnable process")
	}
}

func TestScheduleLoneProcessKeepsRunning(t *testing.T) {
	s := newTestScheduler(t)
	s.Table.Get(1).State = proc.Runnable
	s.CurrentPID = 1

	pid, ok := s.Schedule()
	if !ok || pid != 1 {
		t.Fatalf("expected Schedule to land back on the lone runnable pid 1; got pid=%d ok=%v", pid, ok)
	}

	pid, ok = s.Schedule()
	if !ok || pid != 1 {
		t.Fatalf("expected a second Schedule to still return pid 1; got pid=%d ok=%v", pid, ok)
	}
}
