package vmm

import "pagelab/kernel/mem/pmm"

// nodeStore maps the Frame a page-table node was allocated at to its typed
// contents. Frame numbers are unique system-wide, so a single store is
// shared by every Table an Engine hands out, including the one kernel Table
// shared across processes.
type nodeStore struct {
	nodes map[pmm.Frame]*pageTableNode
}

func newNodeStore() *nodeStore {
	return &nodeStore{nodes: make(map[pmm.Frame]*pageTableNode)}
}

func (s *nodeStore) alloc(f pmm.Frame) *pageTableNode {
	n := &pageTableNode{}
	s.nodes[f] = n
	return n
}

func (s *nodeStore) get(f pmm.Frame) *pageTableNode {
	return s.nodes[f]
}

func (s *nodeStore) free(f pmm.Frame) {
	delete(s.nodes, f)
}
