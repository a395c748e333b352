package psml

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Renderer renders a Document to a target representation.
type Renderer interface {
	Render(*Document) ([]byte, error)
}

// SnapshotRenderer emits the document snapshot as indented JSON.
type SnapshotRenderer struct{}

// Render marshals the document snapshot.
func (r SnapshotRenderer) Render(d *Document) ([]byte, error) {
	return json.MarshalIndent(d.Snapshot(), "", "  ")
}

// GraphvizRenderer emits Graphviz DOT text for the node tree.
type GraphvizRenderer struct {
	// RankDir sets the graph direction; empty keeps the Graphviz default (top to bottom).
	RankDir string
	// MaxLabel truncates node content in labels; zero uses 40 runes, negative hides content.
	MaxLabel int
}

// Render converts the document into DOT. Nodes appear in document order.
func (r GraphvizRenderer) Render(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("digraph psml {\n")
	if r.RankDir != "" {
		fmt.Fprintf(&buf, "  rankdir=%q;\n", r.RankDir)
	}
	var edges []string
	d.Walk(func(n Node, _ int) bool {
		fmt.Fprintf(&buf, "  %q%s;\n", string(n.ID), r.nodeAttrs(n))
		for i, c := range n.Children {
			edges = append(edges, fmt.Sprintf("  %q -> %q%s;\n", string(n.ID), string(c), buildDOTAttrs(map[string]string{
				"taillabel": fmt.Sprint(i + 1),
			})))
		}
		return true
	})
	for _, e := range edges {
		buf.WriteString(e)
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func (r GraphvizRenderer) nodeAttrs(n Node) string {
	attrs := map[string]string{}
	lines := []string{"<" + string(n.Kind) + ">"}
	for _, a := range n.Attrs {
		if a.Name == ContentAttr {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s=%s", a.Name, a.Value))
	}
	if text, ok := n.Attr(ContentAttr); ok {
		if s := truncateLabel(text, r.MaxLabel); s != "" {
			lines = append(lines, s)
		}
	}
	attrs["label"] = strings.Join(lines, "\n")
	def := registry[n.Kind]
	switch {
	case n.ID == RootID:
		attrs["shape"] = "doubleoctagon"
	case def.Content == ContentText:
		attrs["shape"] = "note"
	case def.Content == ContentMixed:
		attrs["shape"] = "component"
	default:
		attrs["shape"] = "box"
	}
	return buildDOTAttrs(attrs)
}

func truncateLabel(s string, max int) string {
	if max < 0 {
		return ""
	}
	if max == 0 {
		max = 40
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimRight(string(runes[:max]), " ") + "…"
}

func buildDOTAttrs(m map[string]string) string {
	var parts []string
	for k, v := range m {
		if strings.TrimSpace(v) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, v))
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return " [" + strings.Join(parts, ",") + "]"
}
