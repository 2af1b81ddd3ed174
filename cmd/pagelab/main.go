// Command pagelab boots the simulated kernel: it parses a boot command
// string, loads the selected canned program(s) into a fresh process table,
// and drives the round-robin scheduler until no process remains runnable,
// printing one line that says why and at which tick the run stopped.
package main

import (
	"flag"
	"os"

	"pagelab/boot"
	"pagelab/kernel/kfmt"
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"pagelab/kernel/mem/vmm"
	"pagelab/kernel/proc"
	"pagelab/kernel/sched"
	"pagelab/kernel/trap"
)

func main() {
	cmd := flag.String("boot", "", "boot command string: malloc, alloctests, test, test2, or empty for the default program")
	physSize := flag.Uint64("memsize", uint64(16*mem.Mb), "simulated physical address space size in bytes")
	maxTicks := flag.Uint64("max-ticks", 10000, "safety bound on scheduler ticks before pagelab gives up and exits")
	flag.Parse()

	kfmt.SetOutputSink(os.Stdout)

	opts := boot.ParseCommand(*cmd)

	m := pmm.NewMemory(mem.Size(*physSize))
	frames := pmm.NewFrameTable(m)
	frames.Init(pmm.DefaultRegions())
	engine := vmm.NewEngine(frames)

	pt, err := proc.NewTable(frames, engine)
	if err != nil {
		kfmt.Printf("pagelab: building process table: %s\n", err.Error())
		os.Exit(1)
	}

	for _, pid := range opts.PIDs {
		if err := bootProcess(pt, pid, opts.Program); err != nil {
			kfmt.Printf("pagelab: loading pid %d: %s\n", pid, err.Error())
			os.Exit(1)
		}
	}

	s := sched.New(pt)
	if pid, ok := s.Schedule(); ok {
		s.CurrentPID = pid
	} else {
		kfmt.Printf("pagelab: no runnable process after boot\n")
		os.Exit(1)
	}

	run(pt, s, *maxTicks)
}

// bootProcess implements the loader side of process_load for one pid: it
// initializes the slot, gives it its own page table, copies in the canned
// image for prog, and sets up its stack.
func bootProcess(pt *proc.Table, pid int, prog boot.Program) error {
	pt.Init(pid)
	if err := pt.ConfigTables(pid); err != nil {
		return err
	}
	if err := pt.LoadImage(pid, boot.Image(prog), uintptr(mem.ProcStartAddr)); err != nil {
		return err
	}
	if err := pt.SetupStack(pid); err != nil {
		return err
	}
	pt.Get(pid).State = proc.Runnable
	return nil
}

// run drives the scheduler: every tick fires a TIMER trap for the current
// process, then asks the scheduler for the next runnable one. It stops when
// no process remains runnable, a PANIC trap asks the VM to halt, or
// maxTicks is exceeded (a safety bound; the scheduler itself has no upper
// bound on how long a RUNNABLE process set can stay non-empty).
func run(pt *proc.Table, s *sched.Scheduler, maxTicks uint64) {
	for tick := uint64(0); tick < maxTicks; tick++ {
		act := trap.Dispatch(pt, s, trap.Timer)
		if act == trap.ActionTerminate {
			kfmt.Printf("pagelab: halted at tick %d\n", tick)
			return
		}

		pid, ok := s.Schedule()
		if !ok {
			kfmt.Printf("pagelab: no runnable process remains at tick %d\n", tick)
			return
		}
		s.CurrentPID = pid
	}

	kfmt.Printf("pagelab: reached the %d tick safety bound\n", maxTicks)
}
