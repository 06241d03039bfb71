package metering

import "sort"

// Hierarchy is the main/sub meter tree stored as an id-indexed node set.
// Construction rejects unknown parents and cycles.
type Hierarchy struct {
	nodes    map[MeterID]Meter
	children map[MeterID][]MeterID
}

// NewHierarchy indexes the given meters and validates the parent links.
func NewHierarchy(meters []Meter) (*Hierarchy, error) {
	h := &Hierarchy{
		nodes:    make(map[MeterID]Meter, len(meters)),
		children: make(map[MeterID][]MeterID),
	}
	for _, m := range meters {
		if m.ID == "" {
			return nil, ErrEmptyMeterID
		}
		h.nodes[m.ID] = m
	}
	for _, m := range meters {
		if m.ParentID == "" {
			continue
		}
		if _, ok := h.nodes[m.ParentID]; !ok {
			return nil, ErrUnknownParent
		}
		h.children[m.ParentID] = append(h.children[m.ParentID], m.ID)
	}
	for id := range h.children {
		ids := h.children[id]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	// Walk ancestors of every node with a visited set; revisiting a node on
	// one walk means the parent links loop.
	for _, m := range meters {
		visited := map[MeterID]bool{m.ID: true}
		current := m.ParentID
		for current != "" {
			if visited[current] {
				return nil, ErrCyclicHierarchy
			}
			visited[current] = true
			current = h.nodes[current].ParentID
		}
	}
	return h, nil
}

// Meter returns a node by id.
func (h *Hierarchy) Meter(id MeterID) (Meter, bool) {
	m, ok := h.nodes[id]
	return m, ok
}

// Children returns the sorted direct sub-meters of a meter.
func (h *Hierarchy) Children(id MeterID) []MeterID {
	return h.children[id]
}

// Leaves returns the sorted ids of all meters without sub-meters in the
// subtree rooted at id (id itself when it has no children).
func (h *Hierarchy) Leaves(id MeterID) []MeterID {
	var leaves []MeterID
	var walk func(MeterID)
	walk = func(current MeterID) {
		kids := h.children[current]
		if len(kids) == 0 {
			leaves = append(leaves, current)
			return
		}
		for _, kid := range kids {
			walk(kid)
		}
	}
	walk(id)
	sort.Slice(leaves, func(i, j int) bool { return leaves[i] < leaves[j] })
	return leaves
}
