// Package console renders the memory visualisations described by spec
// section 4.8: the frame table, one cell per frame, and the virtual address
// space of a cycling process. It targets an in-memory 80x25 cell grid with
// the same two-byte-per-cell (ASCII, color attribute) layout a real EGA text
// console uses; cmd/pagelab-view renders that grid to a terminal.
package console

import (
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
	"pagelab/kernel/mem/vmm"
	"pagelab/kernel/proc"
)

const (
	// Width and Height match the 80x25 text mode the spec's console
	// framebuffer describes.
	Width  = 80
	Height = 25
)

// Attribute packs foreground (low nibble) and background (high nibble)
// colors the same way VgaTextConsole's framebuffer cells do.
type Attribute uint8

// Cell is one character cell of the console framebuffer.
type Cell struct {
	Char byte
	Attr Attribute
}

// EGA 16-color palette indices, named the way the teacher's VgaTextConsole
// comments them.
const (
	ColorBlack = iota
	ColorBlue
	ColorGreen
	ColorCyan
	ColorRed
	ColorMagenta
	ColorBrown
	ColorLightGray
	ColorDarkGray
	ColorLightBlue
	ColorLightGreen
	ColorLightCyan
	ColorLightRed
	ColorLightMagenta
	ColorYellow
	ColorWhite
)

func attr(fg, bg uint8) Attribute {
	return Attribute((bg << 4) | fg)
}

// reverse swaps the foreground and background nibbles, used to render
// user-accessible pages with reversed colors per the spec.
func (a Attribute) reverse() Attribute {
	fg := uint8(a) & 0x0f
	bg := uint8(a) >> 4
	return attr(bg, fg)
}

// Grid is a Width x Height array of cells addressed [row][col], row-major
// like the real framebuffer.
type Grid [Height][Width]Cell

// globalEnabled is the global viewer flag; MEM_TOG with rdi == 0 flips it.
// The render functions in this package do not consult it.
var globalEnabled bool

// ToggleGlobal flips the global viewer flag. A pid-specific toggle is
// proc.Process.DisplayStatus, flipped directly by the MEM_TOG syscall
// handler in kernel/trap.
func ToggleGlobal() {
	globalEnabled = !globalEnabled
}

// GlobalEnabled reports the current state of the global viewer flag.
func GlobalEnabled() bool {
	return globalEnabled
}

// ownerColor maps a frame owner to a foreground color; frames the caller
// marks as shared get a distinct color from a plain single-owner frame.
// refcount is not consulted.
func ownerColor(owner pmm.Owner, refcount uint16, shared bool) uint8 {
	switch {
	case shared:
		return ColorYellow
	case owner == pmm.Free:
		return ColorDarkGray
	case owner == pmm.Reserved:
		return ColorRed
	case owner == pmm.Kernel:
		return ColorBlue
	default:
		return ColorLightGreen
	}
}

// RenderFrameTable paints one cell per frame (clipped to Width*Height
// cells), colored by owner, with shared frames rendered in a distinct color.
// consoleFrame and kernelRootFrame identify the frames whose mapping count
// naturally exceeds one so they are recognised as "shared" rather than
// misclassified as single-owner.
func RenderFrameTable(frames *pmm.FrameTable, consoleFrame, kernelRootFrame pmm.Frame) Grid {
	var g Grid

	count := int(frames.FrameCount())
	if count > Width*Height {
		count = Width * Height
	}

	for i := 0; i < count; i++ {
		f := pmm.Frame(i)
		row, col := i/Width, i%Width
		owner := frames.Owner(f)
		refcount := frames.RefCount(f)
		shared := f == consoleFrame || f == kernelRootFrame
		g[row][col] = Cell{Char: '#', Attr: attr(ownerColor(owner, refcount, shared), ColorBlack)}
	}

	return g
}

// RenderProcessSpace paints the USER portion of a process's virtual address
// space, one cell per page starting at PROC_START_ADDR, clipped to
// Width*Height cells. Present pages are drawn as '.', with reversed
// fore/back colors when their effective permission includes USER; absent
// pages are left blank.
func RenderProcessSpace(engine *vmm.Engine, table *vmm.Table) Grid {
	var g Grid

	base := uintptr(mem.ProcStartAddr)
	for i := 0; i < Width*Height; i++ {
		va := base + uintptr(i)*uintptr(mem.PageSize)
		if va >= uintptr(mem.VirtualMax) {
			break
		}

		row, col := i/Width, i%Width
		m := engine.Lookup(table, va)
		if !m.Present() {
			g[row][col] = Cell{Char: ' ', Attr: attr(ColorLightGray, ColorBlack)}
			continue
		}

		base := attr(ColorLightGray, ColorBlack)
		if m.Perm.HasFlags(vmm.FlagUser) {
			base = base.reverse()
		}
		g[row][col] = Cell{Char: '.', Attr: base}
	}

	return g
}

// NextDisplayPID cycles through processes with DisplayStatus set, skipping
// FREE ones, starting the search just after afterPID. It returns false if no
// process currently wants to be displayed.
func NextDisplayPID(pt *proc.Table, afterPID int) (int, bool) {
	for i := 1; i <= proc.NPROC; i++ {
		pid := (afterPID + i) % proc.NPROC
		if pid == 0 {
			continue
		}
		p := pt.Get(pid)
		if p.State != proc.Free && p.DisplayStatus {
			return pid, true
		}
	}
	return 0, false
}
