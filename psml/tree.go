package psml

import (
	"fmt"
	"strings"
)

// Tree converts the document into the generic element tree the validator consumes.
// The content pseudo-attribute becomes element text.
func (d *Document) Tree() *Element {
	build := func(n *Node) *Element {
		el := &Element{Name: string(n.Kind)}
		for _, a := range n.Attrs {
			if a.Name == ContentAttr {
				el.Text = a.Value
				continue
			}
			el.Attrs = append(el.Attrs, a)
		}
		return el
	}
	root := build(d.nodes[RootID])
	type frame struct {
		node *Node
		el   *Element
	}
	stack := []frame{{d.nodes[RootID], root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, cid := range f.node.Children {
			cn := d.nodes[cid]
			cel := build(cn)
			f.el.Children = append(f.el.Children, cel)
			stack = append(stack, frame{cn, cel})
		}
	}
	return root
}

// FromTree builds a Document from a parsed element tree through the regular mutation API,
// so every node passes the same checks as interactive edits. It stops at the first
// element the tree model rejects.
func FromTree(root *Element) (*Document, error) {
	if root == nil {
		return nil, fmt.Errorf("from tree: %w: nil root", ErrUnknownNode)
	}
	if root.Name != string(RootKind) {
		return nil, treeErr("from tree", "", ElementKind(root.Name), ErrInvalidParent, fmt.Sprintf("root must be <%s>", RootKind))
	}
	d := NewDocument()
	if len(root.Attrs) > 0 {
		if err := d.UpdateAttributes(RootID, root.Attrs...); err != nil {
			return nil, err
		}
	}
	type frame struct {
		el *Element
		id NodeID
	}
	stack := []frame{{root, RootID}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids := make([]NodeID, len(f.el.Children))
		for i, child := range f.el.Children {
			attrs := child.Attrs
			if text := strings.TrimSpace(child.Text); text != "" {
				attrs = append(attrs[:len(attrs):len(attrs)], Attr{Name: ContentAttr, Value: text})
			}
			id, err := d.AddNode(ElementKind(child.Name), f.id, attrs...)
			if err != nil {
				if child.Line > 0 {
					return nil, fmt.Errorf("line %d: %w", child.Line, err)
				}
				return nil, err
			}
			ids[i] = id
		}
		for i := len(f.el.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.el.Children[i], ids[i]})
		}
	}
	return d, nil
}

// ParseDocument parses markup and loads it into a Document.
func ParseDocument(text string) (*Document, error) {
	root, err := ParseString(text)
	if err != nil {
		return nil, err
	}
	return FromTree(root)
}
