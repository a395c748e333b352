package psml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Attr is a single name/value pair. Order is significant wherever Attrs appear.
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Element is the generic markup tree the validator works on. It is produced either by
// Parse (free-text authoring) or by Document.Tree (tree-backed authoring).
type Element struct {
	Name     string
	Attrs    []Attr
	Children []*Element
	// Text is the concatenated character data directly inside the element.
	Text string
	// Line is the 1-based source line of the start tag; zero when unknown.
	Line int
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasText reports whether the element carries non-whitespace text.
func (e *Element) HasText() bool {
	return strings.TrimSpace(e.Text) != ""
}

// Walk visits e and its descendants in pre-order with their depth (root = 0).
// Returning false from fn skips the element's children.
func (e *Element) Walk(fn func(el *Element, depth int) bool) {
	type frame struct {
		el    *Element
		depth int
	}
	stack := []frame{{e, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.el, f.depth) {
			continue
		}
		for i := len(f.el.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.el.Children[i], f.depth + 1})
		}
	}
}

// ParseString parses PSML markup into a generic element tree.
func ParseString(text string) (*Element, error) {
	return ParseReader(strings.NewReader(text))
}

// ParseReader parses PSML markup from r.
func ParseReader(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var (
		root  *Element
		stack []*Element
	)
	for {
		line, _ := dec.InputPos()
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if root == nil {
					return nil, &ParseError{Line: line, Message: "no root element found"}
				}
				return root, nil
			}
			return nil, wrapXMLError(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, &ParseError{Line: line, Message: fmt.Sprintf("unexpected second root element <%s>", t.Name.Local)}
			}
			if t.Name.Space != "" {
				return nil, &ParseError{Line: line, Message: fmt.Sprintf("XML namespaces are not supported: element <%s> is in namespace %q", t.Name.Local, t.Name.Space)}
			}
			el := &Element{Name: t.Name.Local, Line: line}
			seen := make(map[string]struct{}, len(t.Attr))
			for _, a := range t.Attr {
				name, err := attrName(a.Name)
				if err != nil {
					return nil, &ParseError{Line: line, Message: err.Error()}
				}
				if _, dup := seen[name]; dup {
					return nil, &ParseError{Line: line, Message: fmt.Sprintf("attribute %q redefined on <%s>", name, el.Name)}
				}
				seen[name] = struct{}{}
				el.Attrs = append(el.Attrs, Attr{Name: name, Value: a.Value})
			}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, &ParseError{Line: line, Message: "text content outside the root element"}
				}
				continue
			}
			stack[len(stack)-1].Text += string(t)
		}
	}
}

// attrName keeps xmlns:prefix declarations by name, so the validator reports them as
// unknown attributes, and rejects attributes bound to a namespace.
func attrName(n xml.Name) (string, error) {
	switch n.Space {
	case "":
		return n.Local, nil
	case "xmlns":
		return "xmlns:" + n.Local, nil
	}
	return "", fmt.Errorf("XML namespaces are not supported: attribute %q is in namespace %q", n.Local, n.Space)
}

func wrapXMLError(err error) error {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return &ParseError{Line: se.Line, Message: "XML parsing error: " + se.Msg}
	}
	return &ParseError{Message: "XML parsing error", Err: err}
}
