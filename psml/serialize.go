package psml

import (
	"encoding/xml"
	"io"
	"os"
	"strings"
)

const indentUnit = "  "

// Serialize renders the document in canonical form.
func Serialize(d *Document) string {
	var b strings.Builder
	_, _ = d.WriteTo(&b)
	return b.String()
}

// WriteTo writes the canonical form of the document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString(DocumentHeader)
	b.WriteByte('\n')

	type frame struct {
		id    NodeID
		depth int
		close bool
	}
	stack := []frame{{id: RootID}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := d.nodes[f.id]
		indent := strings.Repeat(indentUnit, f.depth)
		if f.close {
			b.WriteString(indent)
			b.WriteString("</" + string(n.Kind) + ">\n")
			continue
		}
		b.WriteString(indent)
		writeStartTag(&b, n)
		if len(n.Children) == 0 {
			if v, _ := n.Attr(ContentAttr); v != "" {
				escapeText(&b, v)
			}
			b.WriteString("</" + string(n.Kind) + ">\n")
			continue
		}
		b.WriteByte('\n')
		stack = append(stack, frame{id: f.id, depth: f.depth, close: true})
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: n.Children[i], depth: f.depth + 1})
		}
	}
	out := strings.TrimSuffix(b.String(), "\n")
	written, err := io.WriteString(w, out)
	return int64(written), err
}

// DumpFile writes the canonical form to path atomically.
func (d *Document) DumpFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := d.WriteTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func writeStartTag(b *strings.Builder, n *Node) {
	b.WriteByte('<')
	b.WriteString(string(n.Kind))
	for _, a := range n.Attrs {
		if a.Name == ContentAttr {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		escapeText(b, a.Value)
		b.WriteByte('"')
	}
	b.WriteByte('>')
}

func escapeText(b *strings.Builder, s string) {
	_ = xml.EscapeText(b, []byte(s))
}
