// Command pagelab-view renders the kernel/console memory visualisations to
// a terminal. It boots its own process table the same way cmd/pagelab does,
// setting the display flag of every booted process, then repeatedly redraws
// a cycling per-process address-space view while any live process has that
// flag set, and the frame-table view otherwise,
// using raw ANSI cursor and SGR escapes the same way the teacher's own text
// console writes framebuffer cells — no terminal UI library is introduced.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pagelab/boot"
	"pagelab/kernel/console"
	"pagelab/kernel/kfmt"
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"pagelab/kernel/mem/vmm"
	"pagelab/kernel/proc"
	"pagelab/kernel/sched"
	"pagelab/kernel/trap"
)

// ansiFg maps a console.Attribute's foreground nibble to a standard 16-color
// ANSI SGR parameter.
var ansiFg = [16]int{30, 34, 32, 36, 31, 35, 33, 37, 90, 94, 92, 96, 91, 95, 93, 97}

func main() {
	cmd := flag.String("boot", "", "boot command string: malloc, alloctests, test, test2, or empty for the default program")
	interval := flag.Duration("interval", 200*time.Millisecond, "redraw interval")
	frames := flag.Int("frames", 50, "number of redraws before exiting")
	flag.Parse()

	kfmt.SetOutputSink(os.Stdout)
	console.ToggleGlobal()

	pt, engine, frameTable, s := boot1(*cmd)
	displayPID := 0

	for i := 0; i < *frames; i++ {
		trap.Dispatch(pt, s, trap.Timer)
		if pid, ok := s.Schedule(); ok {
			s.CurrentPID = pid
		}

		var grid console.Grid
		if next, ok := console.NextDisplayPID(pt, displayPID); ok {
			displayPID = next
			grid = console.RenderProcessSpace(engine, pt.Get(displayPID).Table())
		} else {
			grid = console.RenderFrameTable(frameTable, pmm.FrameFromAddress(uintptr(mem.ConsolePhysAddr)), pt.KernelTable().Root)
		}

		draw(grid)
		time.Sleep(*interval)
	}
}

// boot1 sets up a process table booted per the given command string (one
// process per pid the boot token selects), mirroring cmd/pagelab's loader
// sequence.
func boot1(cmd string) (*proc.Table, *vmm.Engine, *pmm.FrameTable, *sched.Scheduler) {
	opts := boot.ParseCommand(cmd)

	m := pmm.NewMemory(16 * mem.Mb)
	frames := pmm.NewFrameTable(m)
	frames.Init(pmm.DefaultRegions())
	engine := vmm.NewEngine(frames)

	pt, err := proc.NewTable(frames, engine)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pagelab-view:", err)
		os.Exit(1)
	}

	for _, pid := range opts.PIDs {
		pt.Init(pid)
		if err := pt.ConfigTables(pid); err != nil {
			fmt.Fprintln(os.Stderr, "pagelab-view:", err)
			os.Exit(1)
		}
		if err := pt.LoadImage(pid, boot.Image(opts.Program), uintptr(mem.ProcStartAddr)); err != nil {
			fmt.Fprintln(os.Stderr, "pagelab-view:", err)
			os.Exit(1)
		}
		if err := pt.SetupStack(pid); err != nil {
			fmt.Fprintln(os.Stderr, "pagelab-view:", err)
			os.Exit(1)
		}
		pt.Get(pid).State = proc.Runnable
		pt.Get(pid).DisplayStatus = true
	}

	s := sched.New(pt)
	if pid, ok := s.Schedule(); ok {
		s.CurrentPID = pid
	}

	return pt, engine, frames, s
}

// draw clears the screen and paints grid using ANSI cursor-home and SGR
// color escapes, one line per row.
func draw(grid console.Grid) {
	var b strings.Builder
	b.WriteString("\x1b[H\x1b[2J")

	for row := range grid {
		for col := range grid[row] {
			cell := grid[row][col]
			ch := cell.Char
			if ch == 0 {
				ch = ' '
			}
			fg := ansiFg[uint8(cell.Attr)&0x0f]
			bg := ansiFg[uint8(cell.Attr)>>4] + 10
			fmt.Fprintf(&b, "\x1b[%d;%dm%c", fg, bg, ch)
		}
		b.WriteString("\x1b[0m\n")
	}

	os.Stdout.WriteString(b.String())
}
