package psml

import (
	"errors"
	"fmt"
	"slices"
)

// ErrCorruptSnapshot reports a snapshot that does not describe a valid document tree.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Snapshot is the whole-document save/restore unit: every node in pre-order plus the
// id counter, so ids stay unique across a save/restore cycle.
type Snapshot struct {
	SchemaVersion string `json:"schemaVersion"`
	NextID        int    `json:"nextId"`
	Nodes         []Node `json:"nodes"`
}

// Snapshot captures the complete document state.
func (d *Document) Snapshot() Snapshot {
	s := Snapshot{SchemaVersion: SchemaVersion, NextID: d.nextID}
	d.Walk(func(n Node, _ int) bool {
		s.Nodes = append(s.Nodes, n)
		return true
	})
	return s
}

// Restore rebuilds a document from s after re-checking every tree invariant.
func Restore(s Snapshot) (*Document, error) {
	if s.SchemaVersion != "" && s.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %q, want %q", ErrCorruptSnapshot, s.SchemaVersion, SchemaVersion)
	}
	if len(s.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrCorruptSnapshot)
	}
	d := &Document{nodes: make(map[NodeID]*Node, len(s.Nodes)), nextID: max(s.NextID, 1)}
	for i := range s.Nodes {
		n := s.Nodes[i]
		if _, dup := d.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %q", ErrCorruptSnapshot, n.ID)
		}
		if _, ok := registry[n.Kind]; !ok {
			return nil, fmt.Errorf("%w: node %q: %w %q", ErrCorruptSnapshot, n.ID, ErrUnknownKind, string(n.Kind))
		}
		cp := n.clone()
		d.nodes[n.ID] = &cp
	}

	root, ok := d.nodes[RootID]
	if !ok || root.Kind != RootKind || root.Parent != "" {
		return nil, fmt.Errorf("%w: missing %s root %q", ErrCorruptSnapshot, RootKind, RootID)
	}

	reached := map[NodeID]struct{}{RootID: {}}
	stack := []NodeID{RootID}
	for len(stack) > 0 {
		cur := d.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		for _, cid := range cur.Children {
			child, ok := d.nodes[cid]
			if !ok {
				return nil, fmt.Errorf("%w: %q lists unknown child %q", ErrCorruptSnapshot, cur.ID, cid)
			}
			if _, seen := reached[cid]; seen {
				return nil, fmt.Errorf("%w: node %q reached twice", ErrCorruptSnapshot, cid)
			}
			if child.Parent != cur.ID {
				return nil, fmt.Errorf("%w: %q names parent %q but is listed under %q", ErrCorruptSnapshot, cid, child.Parent, cur.ID)
			}
			if !IsLegalChild(cur.Kind, child.Kind) {
				return nil, fmt.Errorf("%w: %w: <%s> cannot be a child of <%s>", ErrCorruptSnapshot, ErrInvalidParent, child.Kind, cur.Kind)
			}
			reached[cid] = struct{}{}
			stack = append(stack, cid)
		}
	}
	if len(reached) != len(d.nodes) {
		var orphans []string
		for id := range d.nodes {
			if _, ok := reached[id]; !ok {
				orphans = append(orphans, string(id))
			}
		}
		slices.Sort(orphans)
		return nil, fmt.Errorf("%w: unreachable nodes %v", ErrCorruptSnapshot, orphans)
	}
	// Attributes are checked once every node is indexed so identifier clashes are seen.
	for _, n := range s.Nodes {
		names := make(map[string]struct{}, len(n.Attrs))
		for _, a := range n.Attrs {
			if _, dup := names[a.Name]; dup {
				return nil, fmt.Errorf("%w: node %q: %w: attribute %q repeated", ErrCorruptSnapshot, n.ID, ErrInvalidAttribute, a.Name)
			}
			names[a.Name] = struct{}{}
		}
		if err := d.checkAttrs(registry[n.Kind], n.ID, n.Attrs, true); err != nil {
			return nil, fmt.Errorf("%w: node %q: %w: %w", ErrCorruptSnapshot, n.ID, ErrInvalidAttribute, err)
		}
	}
	return d, nil
}
