package psml

import "strings"

// promptTextKinds are the elements whose text makes up the plain prompt.
var promptTextKinds = map[string]struct{}{
	string(KindRole):        {},
	string(KindDescription): {},
	string(KindObjective):   {},
	string(KindStep):        {},
	string(KindConstraint):  {},
	string(KindRule):        {},
	string(KindBackground):  {},
	string(KindDomain):      {},
}

// CountElements counts elements per tag name, root included.
func CountElements(root *Element) map[string]int {
	counts := make(map[string]int)
	if root == nil {
		return counts
	}
	root.Walk(func(el *Element, _ int) bool {
		counts[el.Name]++
		return true
	})
	return counts
}

// ExtractPromptText joins the trimmed text of the prose-bearing elements in document order.
func ExtractPromptText(root *Element) string {
	if root == nil {
		return ""
	}
	var parts []string
	root.Walk(func(el *Element, _ int) bool {
		if _, ok := promptTextKinds[el.Name]; ok {
			if text := strings.TrimSpace(el.Text); text != "" {
				parts = append(parts, text)
			}
		}
		return true
	})
	return strings.Join(parts, "\n")
}
