// Package boot parses the kernel's boot command string and supplies the
// canned program images the loader hands to process_load. A real bootloader
// would read an ELF image off disk; this hosted simulation ships a handful
// of fixed byte images instead, sized to exercise the allocator and the
// demand-paged heap in different ways.
package boot

import "pagelab/kernel/mem"

// Program identifies one of the canned images the boot string can select.
type Program int

const (
	// ProgramDefault is a minimal single-page image with no exercised heap
	// growth; it is the fallback when the boot string matches nothing else.
	ProgramDefault Program = iota
	// ProgramMalloc drives the ualloc allocator against a small heap.
	ProgramMalloc
	// ProgramAllocTests runs a wider spread of allocator edge cases.
	ProgramAllocTests
	// ProgramFork exercises fork and the copy-on-process-table-duplication
	// path; booted once under "test" and twice under "test2".
	ProgramFork
)

// Options is the result of parsing a boot command string: which program to
// load, and the pids it should be loaded into.
type Options struct {
	Program Program
	PIDs    []int
}

// ParseCommand matches cmd against the five boot tokens the spec defines,
// first match wins, same shape as the teacher's hardware-probe matchers:
// an ordered list of matchers tried in turn, falling through to a default
// when nothing claims the input.
func ParseCommand(cmd string) Options {
	for _, m := range matchers {
		if m.token == cmd {
			return m.options
		}
	}
	return Options{Program: ProgramDefault, PIDs: []int{1}}
}

var matchers = []struct {
	token   string
	options Options
}{
	{"malloc", Options{Program: ProgramMalloc, PIDs: []int{1}}},
	{"alloctests", Options{Program: ProgramAllocTests, PIDs: []int{1}}},
	{"test", Options{Program: ProgramFork, PIDs: []int{1}}},
	{"test2", Options{Program: ProgramFork, PIDs: []int{1, 2}}},
}

// imageSizes gives the canned programs different page counts so the loader
// and the console frame-table view have something visibly different to
// show; ProgramDefault and ProgramFork are both one page.
var imageSizes = map[Program]int{
	ProgramDefault:    1,
	ProgramMalloc:     2,
	ProgramAllocTests: 3,
	ProgramFork:       1,
}

// Image returns the canned byte image for prog. Every byte is zeroed; the
// image's only meaningful property in this simulation is its length, which
// drives how many frames process_load assigns.
func Image(prog Program) []byte {
	pages := imageSizes[prog]
	if pages == 0 {
		pages = 1
	}
	return make([]byte, pages*int(mem.PageSize))
}
