// Package sched implements the round-robin scheduler: only current_pid plus
// the shared process table, as the design notes call for.
package sched

import "pagelab/kernel/proc"

// Scheduler selects the next RUNNABLE process in round-robin order.
type Scheduler struct {
	Table      *proc.Table
	CurrentPID int
	Ticks      uint64
}

// New creates a scheduler over pt, with no process yet selected.
func New(pt *proc.Table) *Scheduler {
	return &Scheduler{Table: pt}
}

// Tick increments the tick counter; called once per timer interrupt.
func (s *Scheduler) Tick() {
	s.Ticks++
}

// Schedule picks the first RUNNABLE slot starting at (CurrentPID+1) mod
// NPROC, wrapping around the whole table. pid 0 is never selected. It
// returns false if no process is RUNNABLE, in which case the caller should
// spin, polling the keyboard so the VM can be exited.
func (s *Scheduler) Schedule() (int, bool) {
	for i := 1; i <= proc.NPROC; i++ {
		pid := (s.CurrentPID + i) % proc.NPROC
		if pid == 0 {
			continue
		}
		if s.Table.Get(pid).State == proc.Runnable {
			s.CurrentPID = pid
			return pid, true
		}
	}
	return 0, false
}
