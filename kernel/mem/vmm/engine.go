package vmm

import (
	"pagelab/kernel"
	"pagelab/kernel/mem"
	"pagelab/kernel/mem/pmm"
)

var (
	// ErrOutOfMemory is returned when an intermediate page-table node
	// cannot be allocated.
	ErrOutOfMemory = &kernel.Error{Module: "vmm", Message: "out of physical memory for page table node"}
)

// Mapping is the result of a virtual-to-physical lookup. Frame ==
// pmm.InvalidFrame means the address is unmapped, mirroring
// pmm.InvalidFrame's sentinel convention.
type Mapping struct {
	Frame    pmm.Frame
	PhysAddr uintptr
	Perm     Perm
}

// Present reports whether this mapping refers to an actually-mapped page.
func (m Mapping) Present() bool {
	return m.Frame.Valid() && (m.Perm&FlagPresent) != 0
}

// Table is a 4-level hierarchical page table rooted at a single frame. A
// Table value exclusively owns its intermediate nodes: Engine.FreeTable
// recursively tears them down and decrements every leaf-frame refcount.
// Sharing (the kernel table, before a process gets its own) is an explicit
// exception handled by refcounting the root frame instead of copying nodes.
type Table struct {
	Root  pmm.Frame
	Owner pmm.Owner
}

// Engine performs page-table walks, charging any intermediate node it has
// to allocate to the Owner of the Table being modified.
type Engine struct {
	Frames *pmm.FrameTable
	nodes  *nodeStore
}

// NewEngine creates a page-table engine backed by the given frame table.
func NewEngine(frames *pmm.FrameTable) *Engine {
	return &Engine{Frames: frames, nodes: newNodeStore()}
}

// NewTable allocates a fresh, empty page table owned by owner.
func (e *Engine) NewTable(owner pmm.Owner) (*Table, *kernel.Error) {
	addr, err := e.Frames.Palloc(owner)
	if err != nil {
		return nil, ErrOutOfMemory
	}
	root := pmm.FrameFromAddress(addr)
	e.nodes.alloc(root)
	return &Table{Root: root, Owner: owner}, nil
}

// walkFn is invoked for the page-table entry at each level of a walk.
// Returning false aborts the walk.
type walkFn func(level uint8, entry *pageTableEntry) bool

// walk descends the 4 levels of t starting at its root, invoking fn with the
// entry at each level. If create is true, missing intermediate nodes are
// allocated (charged to t.Owner) and zero-initialized; otherwise a missing
// node aborts the walk before fn is called for levels beneath it.
func (e *Engine) walk(t *Table, virtAddr uintptr, create bool, fn walkFn) *kernel.Error {
	nodeFrame := t.Root
	for level := uint8(0); level < pageLevels; level++ {
		node := e.nodes.get(nodeFrame)
		if node == nil {
			return ErrOutOfMemory
		}

		idx := levelIndex(virtAddr, level)
		entry := &node.entries[idx]

		if !fn(level, entry) {
			return nil
		}

		if level == pageLevels-1 {
			break
		}

		if !entry.HasFlags(FlagPresent) {
			if !create {
				return nil
			}

			childAddr, err := e.Frames.Palloc(t.Owner)
			if err != nil {
				return ErrOutOfMemory
			}
			child := pmm.FrameFromAddress(childAddr)
			e.nodes.alloc(child)

			*entry = 0
			entry.SetFrame(child)
			entry.SetFlags(FlagPresent | FlagWritable | boolUserFlag(t))
		}

		nodeFrame = entry.Frame()
	}

	return nil
}

// boolUserFlag propagates FlagUser into intermediate nodes for user-owned
// tables so a user leaf mapping further down the walk is actually
// reachable; kernel tables never set it on intermediate nodes they own
// exclusively (it is harmless either way since the leaf's own flags gate
// access, but matching the teacher's minimal-privilege style keeps kernel
// tables free of it).
func boolUserFlag(t *Table) Perm {
	if t.Owner >= 1 {
		return FlagUser
	}
	return 0
}

// Map installs a (va -> pa) mapping covering size bytes in t, allocating and
// zero-initializing any missing intermediate nodes. A perm of zero clears
// the leaf entries instead (see Clear). Size is rounded up to a page
// boundary. If an intermediate allocation fails partway through, the
// mappings already installed remain in place; the caller is responsible for
// tearing the table down if it cannot proceed.
func (e *Engine) Map(t *Table, va, pa uintptr, size mem.Size, perm Perm) *kernel.Error {
	pages := (uintptr(size) + uintptr(mem.PageSize) - 1) / uintptr(mem.PageSize)
	if pages == 0 {
		pages = 1
	}

	for i := uintptr(0); i < pages; i++ {
		pageVA := va + i*uintptr(mem.PageSize)
		pagePA := pa + i*uintptr(mem.PageSize)
		frame := pmm.FrameFromAddress(pagePA)

		if perm == 0 {
			if err := e.clearOne(t, pageVA); err != nil {
				return err
			}
			continue
		}

		if err := e.mapOne(t, pageVA, frame, perm); err != nil {
			return err
		}
	}

	return nil
}

// MapFrame is a convenience wrapper around Map for a single page.
func (e *Engine) MapFrame(t *Table, va uintptr, frame pmm.Frame, perm Perm) *kernel.Error {
	return e.mapOne(t, va, frame, perm)
}

func (e *Engine) mapOne(t *Table, va uintptr, frame pmm.Frame, perm Perm) *kernel.Error {
	return e.walk(t, va, true, func(level uint8, entry *pageTableEntry) bool {
		if level != pageLevels-1 {
			return true
		}
		*entry = 0
		entry.SetFrame(frame)
		entry.SetFlags(perm | FlagPresent)
		return true
	})
}

// Clear removes the leaf mapping at va without touching the target frame's
// refcount, exposing the primitive the spec's design notes ask for instead
// of overloading Map with perm == 0. Unmap builds on top of it.
func (e *Engine) Clear(t *Table, va uintptr) *kernel.Error {
	return e.clearOne(t, va)
}

func (e *Engine) clearOne(t *Table, va uintptr) *kernel.Error {
	return e.walk(t, va, false, func(level uint8, entry *pageTableEntry) bool {
		if level != pageLevels-1 {
			return entry.HasFlags(FlagPresent)
		}
		entry.ClearFlags(FlagPresent)
		return true
	})
}

// Lookup walks the four levels of t for va. At any missing entry it returns
// the unmapped sentinel (Frame: pmm.InvalidFrame). Perm is the bitwise AND
// across levels of {Present, User, Writable} composed with the leaf's own
// bits, matching how a real MMU enforces permissions at every level of the
// walk.
func (e *Engine) Lookup(t *Table, va uintptr) Mapping {
	var (
		found     bool
		leafEntry pageTableEntry
		accPerm   = FlagPresent | FlagUser | FlagWritable
	)

	e.walk(t, va, false, func(level uint8, entry *pageTableEntry) bool {
		if !entry.HasFlags(FlagPresent) {
			return false
		}

		accPerm &= Perm(*entry) & (FlagPresent | FlagUser | FlagWritable)

		if level == pageLevels-1 {
			found = true
			leafEntry = *entry
		}
		return true
	})

	if !found {
		return Mapping{Frame: pmm.InvalidFrame}
	}

	frame := leafEntry.Frame()
	return Mapping{
		Frame:    frame,
		PhysAddr: frame.Address() + PageOffset(va),
		Perm:     accPerm,
	}
}

// Unmap looks up va, clears the leaf entry and decrements the mapped
// frame's refcount via Freepage. A lookup miss is a no-op success.
func (e *Engine) Unmap(t *Table, va uintptr) *kernel.Error {
	m := e.Lookup(t, va)
	if !m.Present() {
		return nil
	}

	if err := e.clearOne(t, va); err != nil {
		return err
	}

	e.Frames.Freepage(m.Frame.Address())
	return nil
}

// FreeTable walks every node of t, freeing each intermediate node's backing
// frame and decrementing any leaf frame it finds mapped. The root frame
// itself is freed last via Freepage, which correctly no-ops until every
// sharer (see the kernel table) has released it.
func (e *Engine) FreeTable(t *Table) {
	e.freeNode(t.Root, 0)
	e.Frames.Freepage(t.Root.Address())
}

func (e *Engine) freeNode(f pmm.Frame, level uint8) {
	node := e.nodes.get(f)
	if node == nil {
		return
	}

	if level < pageLevels-1 {
		for i := range node.entries {
			entry := node.entries[i]
			if entry.HasFlags(FlagPresent) {
				e.freeNode(entry.Frame(), level+1)
				e.Frames.Freepage(entry.Frame().Address())
			}
		}
	} else {
		for i := range node.entries {
			entry := node.entries[i]
			if entry.HasFlags(FlagPresent) {
				e.Frames.Freepage(entry.Frame().Address())
			}
		}
	}

	e.nodes.free(f)
}
