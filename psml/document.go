package psml

import (
	"fmt"
	"slices"
	"strings"
)

// NodeID identifies a node within one Document. IDs are never reused.
type NodeID string

// RootID is the id of every document root.
const RootID NodeID = "root"

// Position places a moved node relative to its target sibling.
type Position string

const (
	Before Position = "before"
	After  Position = "after"
)

// Node is a single element of a Document. Nodes refer to each other by id only.
type Node struct {
	ID       NodeID      `json:"id"`
	Kind     ElementKind `json:"kind"`
	Attrs    []Attr      `json:"attrs,omitempty"`
	Children []NodeID    `json:"children,omitempty"`
	Parent   NodeID      `json:"parent,omitempty"`
}

// Attr returns the value of the named attribute.
func (n Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *Node) clone() Node {
	return Node{
		ID:       n.ID,
		Kind:     n.Kind,
		Attrs:    slices.Clone(n.Attrs),
		Children: slices.Clone(n.Children),
		Parent:   n.Parent,
	}
}

// Document is a mutable, schema-consistent tree rooted at a <prompt> node.
// It is not safe for concurrent mutation; callers serialize access per document.
type Document struct {
	nodes  map[NodeID]*Node
	nextID int
}

// NewDocument returns a document holding only the root prompt with its default attributes.
func NewDocument() *Document {
	d := &Document{nodes: make(map[NodeID]*Node), nextID: 1}
	def := registry[RootKind]
	d.nodes[RootID] = &Node{ID: RootID, Kind: RootKind, Attrs: defaultAttrs(def)}
	return d
}

func defaultAttrs(def *ElementDefinition) []Attr {
	var attrs []Attr
	for _, a := range def.Attributes {
		if a.Default != "" {
			attrs = append(attrs, Attr{Name: a.Name, Value: a.Default})
		}
	}
	return attrs
}

// Root returns a copy of the root node.
func (d *Document) Root() Node {
	return d.nodes[RootID].clone()
}

// Node returns a copy of the node with the given id.
func (d *Document) Node(id NodeID) (Node, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Len returns the number of nodes in the document, root included.
func (d *Document) Len() int {
	return len(d.nodes)
}

// Content returns the node's text content (the reserved content attribute).
func (d *Document) Content(id NodeID) string {
	n, ok := d.nodes[id]
	if !ok {
		return ""
	}
	v, _ := n.Attr(ContentAttr)
	return v
}

// Walk visits every node in pre-order with its depth (root = 0). Returning false from fn
// skips that node's subtree.
func (d *Document) Walk(fn func(n Node, depth int) bool) {
	type frame struct {
		id    NodeID
		depth int
	}
	stack := []frame{{RootID, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := d.nodes[f.id]
		if !fn(n.clone(), f.depth) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{n.Children[i], f.depth + 1})
		}
	}
}

// Ancestors returns the ids from id's parent up to the root.
func (d *Document) Ancestors(id NodeID) ([]NodeID, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, treeErr("ancestors", id, "", ErrUnknownNode, "")
	}
	var out []NodeID
	seen := map[NodeID]struct{}{id: {}}
	for p := n.Parent; p != ""; {
		if _, loop := seen[p]; loop {
			break
		}
		seen[p] = struct{}{}
		out = append(out, p)
		pn, ok := d.nodes[p]
		if !ok {
			break
		}
		p = pn.Parent
	}
	return out, nil
}

// AddNode creates a node of kind under parent and appends it to the parent's children.
func (d *Document) AddNode(kind ElementKind, parent NodeID, attrs ...Attr) (NodeID, error) {
	def, ok := registry[kind]
	if !ok {
		return "", treeErr("add", "", kind, ErrUnknownKind, "")
	}
	p, ok := d.nodes[parent]
	if !ok {
		return "", treeErr("add", parent, kind, ErrUnknownNode, "parent does not exist")
	}
	if !IsLegalChild(p.Kind, kind) {
		return "", treeErr("add", parent, kind, ErrInvalidParent, fmt.Sprintf("<%s> cannot be a child of <%s>", kind, p.Kind))
	}
	merged := mergeAttrs(defaultAttrs(def), attrs)
	if err := d.checkAttrs(def, "", merged, true); err != nil {
		return "", treeErr("add", "", kind, ErrInvalidAttribute, err.Error())
	}

	id := d.freshID(kind)
	d.nodes[id] = &Node{ID: id, Kind: kind, Attrs: merged, Parent: parent}
	p.Children = append(p.Children, id)
	return id, nil
}

// UpdateAttributes merges patch into the node's attributes. Existing keys are overwritten
// in place; new keys are appended in patch order.
func (d *Document) UpdateAttributes(id NodeID, patch ...Attr) error {
	n, ok := d.nodes[id]
	if !ok {
		return treeErr("update", id, "", ErrUnknownNode, "")
	}
	def := registry[n.Kind]
	if err := d.checkAttrs(def, id, patch, false); err != nil {
		return treeErr("update", id, n.Kind, ErrInvalidAttribute, err.Error())
	}
	n.Attrs = mergeAttrs(n.Attrs, patch)
	return nil
}

// SetContent sets the node's text content.
func (d *Document) SetContent(id NodeID, text string) error {
	return d.UpdateAttributes(id, Attr{Name: ContentAttr, Value: text})
}

// RemoveNode detaches id from its parent and purges its whole subtree.
func (d *Document) RemoveNode(id NodeID) error {
	if id == RootID {
		return treeErr("remove", id, RootKind, ErrProtectedNode, "the root cannot be removed")
	}
	n, ok := d.nodes[id]
	if !ok {
		return treeErr("remove", id, "", ErrUnknownNode, "")
	}
	if p, ok := d.nodes[n.Parent]; ok {
		p.Children = slices.DeleteFunc(p.Children, func(c NodeID) bool { return c == id })
	}
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cn, ok := d.nodes[cur]; ok {
			stack = append(stack, cn.Children...)
			delete(d.nodes, cur)
		}
	}
	return nil
}

// MoveNode reorders dragged among its siblings so that it sits immediately before or
// after target. Reparenting is not supported.
func (d *Document) MoveNode(dragged, target NodeID, pos Position) error {
	if pos != Before && pos != After {
		return fmt.Errorf("move %s: invalid position %q", dragged, pos)
	}
	dn, ok := d.nodes[dragged]
	if !ok {
		return treeErr("move", dragged, "", ErrUnknownNode, "")
	}
	tn, ok := d.nodes[target]
	if !ok {
		return treeErr("move", target, "", ErrUnknownNode, "target does not exist")
	}
	if dragged == target {
		return treeErr("move", dragged, dn.Kind, ErrSameNode, "")
	}
	if d.isAncestor(dragged, target) {
		return treeErr("move", dragged, dn.Kind, ErrCyclicMove, fmt.Sprintf("%s is a descendant of %s", target, dragged))
	}
	if dn.Parent == "" || dn.Parent != tn.Parent {
		return treeErr("move", dragged, dn.Kind, ErrCrossParentMove, fmt.Sprintf("%s and %s do not share a parent", dragged, target))
	}

	p := d.nodes[dn.Parent]
	children := slices.DeleteFunc(slices.Clone(p.Children), func(c NodeID) bool { return c == dragged })
	idx := slices.Index(children, target)
	if pos == After {
		idx++
	}
	p.Children = slices.Insert(children, idx, dragged)
	return nil
}

// isAncestor walks up from node and reports whether it passes through candidate.
func (d *Document) isAncestor(candidate, node NodeID) bool {
	seen := make(map[NodeID]struct{})
	for cur := node; cur != ""; {
		if cur == candidate {
			return true
		}
		if _, loop := seen[cur]; loop {
			return false
		}
		seen[cur] = struct{}{}
		n, ok := d.nodes[cur]
		if !ok {
			return false
		}
		cur = n.Parent
	}
	return false
}

func (d *Document) freshID(kind ElementKind) NodeID {
	for {
		id := NodeID(fmt.Sprintf("%s-%d", kind, d.nextID))
		d.nextID++
		if _, taken := d.nodes[id]; !taken {
			return id
		}
	}
}

// checkAttrs interprets attrs against def. When full is true, attrs is the complete
// attribute set of a new node and required attributes must be present.
func (d *Document) checkAttrs(def *ElementDefinition, self NodeID, attrs []Attr, full bool) error {
	var issues []string
	present := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		present[a.Name] = struct{}{}
		if a.Name == ContentAttr {
			if def.Content != ContentText && def.Content != ContentMixed {
				issues = append(issues, fmt.Sprintf("<%s> cannot contain text content", def.Kind))
			}
			continue
		}
		ad, ok := def.Attribute(a.Name)
		if !ok {
			issues = append(issues, fmt.Sprintf("unknown attribute %q on <%s>", a.Name, def.Kind))
			continue
		}
		if msg := checkValue(ad, a.Value); msg != "" {
			issues = append(issues, msg)
			continue
		}
		if ad.Type == ValueIdentifier && d.identifierTaken(a.Name, a.Value, self) {
			issues = append(issues, fmt.Sprintf("duplicate ID %q", a.Value))
		}
	}
	if full {
		for _, ad := range def.Attributes {
			if _, ok := present[ad.Name]; ad.Required && !ok {
				issues = append(issues, fmt.Sprintf("required attribute %q missing on <%s>", ad.Name, def.Kind))
			}
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(issues, "; "))
}

// identifierTaken reports whether another node already carries value in an
// identifier-typed attribute.
func (d *Document) identifierTaken(name, value string, self NodeID) bool {
	for id, n := range d.nodes {
		if id == self {
			continue
		}
		def := registry[n.Kind]
		for _, a := range n.Attrs {
			if a.Value != value {
				continue
			}
			if ad, ok := def.Attribute(a.Name); ok && ad.Type == ValueIdentifier {
				return true
			}
		}
	}
	return false
}

// mergeAttrs returns base with patch applied: existing names are overwritten in place,
// new names appended in patch order.
func mergeAttrs(base, patch []Attr) []Attr {
	out := slices.Clone(base)
	for _, a := range patch {
		if i := slices.IndexFunc(out, func(x Attr) bool { return x.Name == a.Name }); i >= 0 {
			out[i].Value = a.Value
			continue
		}
		out = append(out, a)
	}
	return out
}
