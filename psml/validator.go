package psml

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxDepth is the nesting depth above which a best-practice warning is raised.
const DefaultMaxDepth = 10

// Validator checks PSML against the schema registry. A Validator holds only
// configuration, so one value may be used from many goroutines.
type Validator struct {
	MaxDepth int
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMaxDepth overrides the nesting depth threshold.
func WithMaxDepth(n int) ValidatorOption {
	return func(v *Validator) {
		if n > 0 {
			v.MaxDepth = n
		}
	}
}

// NewValidator returns a validator with default settings adjusted by opts.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{MaxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultValidator = NewValidator()

// Validate parses and validates PSML text with the default settings.
func Validate(text string) Report { return defaultValidator.Validate(text) }

// ValidateTree validates an already parsed element tree with the default settings.
func ValidateTree(root *Element) Report { return defaultValidator.ValidateTree(root) }

// ValidateDocument validates a tree-model document with the default settings.
func ValidateDocument(d *Document) Report { return defaultValidator.ValidateDocument(d) }

// validation is the per-call context; nothing in it outlives the call.
type validation struct {
	maxDepth int
	ids      map[string]struct{}
	errors   []Diagnostic
	warnings []Diagnostic
}

func (v *Validator) newValidation() *validation {
	depth := v.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	return &validation{maxDepth: depth, ids: make(map[string]struct{})}
}

// Validate runs all phases over text. A parse failure skips the remaining phases.
func (v *Validator) Validate(text string) Report {
	c := v.newValidation()
	c.guard(func() {
		if !strings.HasPrefix(strings.TrimSpace(text), headerToken) {
			c.errorf(CategorySyntax, nil, "", "Document must start with XML declaration: %s", DocumentHeader)
			c.errors[len(c.errors)-1].Line = 1
		}
		root, err := ParseString(text)
		if err != nil {
			c.parseFailure(err)
			return
		}
		c.run(root)
	})
	return c.report()
}

// ValidateTree runs the structure, semantic and best-practice phases over root.
func (v *Validator) ValidateTree(root *Element) Report {
	c := v.newValidation()
	c.guard(func() {
		if root == nil {
			c.errorf(CategorySyntax, nil, "", "no root element found")
			return
		}
		c.run(root)
	})
	return c.report()
}

// ValidateDocument validates the tree a Document describes.
func (v *Validator) ValidateDocument(d *Document) Report {
	if d == nil {
		return v.ValidateTree(nil)
	}
	return v.ValidateTree(d.Tree())
}

func (c *validation) run(root *Element) {
	c.checkStructure(root)
	c.checkSemantics(root)
	c.checkBestPractices(root)
}

// guard turns a panic in any phase into a syntax diagnostic.
func (c *validation) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.errorf(CategorySyntax, nil, "", "Unexpected error during validation: %v", r)
		}
	}()
	fn()
}

func (c *validation) parseFailure(err error) {
	var pe *ParseError
	if errors.As(err, &pe) {
		msg := pe.Message
		if pe.Err != nil {
			msg = fmt.Sprintf("%s: %v", pe.Message, pe.Err)
		}
		c.errors = append(c.errors, Diagnostic{Severity: SeverityError, Category: CategorySyntax, Message: msg, Line: pe.Line})
		return
	}
	c.errorf(CategorySyntax, nil, "", "XML parsing error: %v", err)
}

func (c *validation) checkStructure(root *Element) {
	if root.Name != string(RootKind) {
		c.errorf(CategoryStructure, root, "", "Root element must be <%s>", RootKind)
		return
	}
	root.Walk(func(el *Element, _ int) bool {
		def, ok := registry[ElementKind(el.Name)]
		if !ok {
			c.errorf(CategoryStructure, el, "", "Unknown element <%s>", el.Name)
			return false
		}
		c.checkAttributes(el, def)
		if el.HasText() && !AcceptsText(def.Kind) {
			c.errorf(CategoryStructure, el, "", "Element <%s> cannot contain text content", el.Name)
		}
		for _, child := range el.Children {
			if IsKnownKind(child.Name) && !IsLegalChild(def.Kind, ElementKind(child.Name)) {
				c.errorf(CategoryStructure, child, "", "Element <%s> is not allowed as child of <%s>", child.Name, el.Name)
			}
		}
		return true
	})
}

func (c *validation) checkAttributes(el *Element, def *ElementDefinition) {
	for _, ad := range def.Attributes {
		if _, ok := el.Attr(ad.Name); ad.Required && !ok {
			c.errorf(CategoryAttribute, el, ad.Name, "Required attribute %q missing on <%s>", ad.Name, el.Name)
		}
	}
	for _, a := range el.Attrs {
		ad, ok := def.Attribute(a.Name)
		if !ok {
			c.errorf(CategoryAttribute, el, a.Name, "Unknown attribute %q on <%s>", a.Name, el.Name)
			continue
		}
		if ad.Type == ValueIdentifier {
			if _, dup := c.ids[a.Value]; dup {
				c.errorf(CategorySemantic, el, a.Name, "Duplicate ID %q found", a.Value)
			} else {
				c.ids[a.Value] = struct{}{}
			}
			continue
		}
		if msg := checkValue(ad, a.Value); msg != "" {
			c.errorf(CategoryValue, el, a.Name, "%s", capitalize(msg))
		}
	}
}

func (c *validation) checkSemantics(root *Element) {
	root.Walk(func(el *Element, _ int) bool {
		switch ElementKind(el.Name) {
		case KindCondition:
			_, eq := el.Attr("equals")
			_, neq := el.Attr("not-equals")
			switch {
			case !eq && !neq:
				c.errorf(CategorySemantic, el, "", `Condition must have either "equals" or "not-equals" attribute`)
			case eq && neq:
				c.errorf(CategorySemantic, el, "", `Condition cannot have both "equals" and "not-equals" attributes`)
			}
		case KindSteps:
			if ordered, _ := el.Attr("ordered"); ordered == "true" {
				c.checkStepNumbers(el)
			}
		}
		return true
	})
}

// checkStepNumbers requires unique numbers among the direct step children of an ordered
// steps element. Numbers that are not integers were already reported as value errors.
func (c *validation) checkStepNumbers(steps *Element) {
	seen := make(map[string]struct{})
	for _, step := range steps.Children {
		if step.Name != string(KindStep) {
			continue
		}
		raw, ok := step.Attr("number")
		if !ok {
			continue
		}
		n, ok := canonicalInteger(raw)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			c.errorf(CategorySemantic, step, "number", "Duplicate step number %s in ordered steps", n)
			continue
		}
		seen[n] = struct{}{}
	}
}

// canonicalInteger normalises an integer literal of any length so equal values compare
// equal: leading zeros are dropped and "-0" becomes "0".
func canonicalInteger(raw string) (string, bool) {
	if !isIntegerLiteral(raw) {
		return "", false
	}
	digits, neg := strings.CutPrefix(raw, "-")
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0", true
	}
	if neg {
		return "-" + digits, true
	}
	return digits, true
}

func (c *validation) checkBestPractices(root *Element) {
	var hasRole, hasOutput, hasExample bool
	root.Walk(func(el *Element, _ int) bool {
		switch ElementKind(el.Name) {
		case KindRole:
			hasRole = true
		case KindOutput:
			hasOutput = true
		case KindExample:
			hasExample = true
		}
		return true
	})
	if !hasRole {
		c.warnf(nil, "Document should include a <role> element for context")
	}
	if !hasOutput {
		c.warnf(nil, "Document should specify expected <output> format")
	}
	if !hasExample {
		c.warnf(nil, "Consider adding <examples> to provide clarity")
	}
	root.Walk(func(el *Element, depth int) bool {
		if el.Name == string(KindTask) && !hasChild(el, KindDescription) {
			c.warnf(el, "Task should include a <description> element")
		}
		if depth > c.maxDepth {
			c.warnf(el, "Excessive nesting depth (%d) at element <%s>. Recommended maximum is %d.", depth, el.Name, c.maxDepth)
		}
		return true
	})
}

func hasChild(el *Element, kind ElementKind) bool {
	for _, child := range el.Children {
		if child.Name == string(kind) {
			return true
		}
	}
	return false
}

func (c *validation) errorf(cat Category, el *Element, attr, format string, args ...any) {
	d := Diagnostic{Severity: SeverityError, Category: cat, Message: fmt.Sprintf(format, args...), Attribute: attr}
	if el != nil {
		d.Element = el.Name
		d.Line = el.Line
	}
	c.errors = append(c.errors, d)
}

func (c *validation) warnf(el *Element, format string, args ...any) {
	d := Diagnostic{Severity: SeverityWarning, Category: CategoryBestPractice, Message: fmt.Sprintf(format, args...)}
	if el != nil {
		d.Element = el.Name
		d.Line = el.Line
	}
	c.warnings = append(c.warnings, d)
}

func (c *validation) report() Report {
	return Report{
		Valid:    len(c.errors) == 0,
		Errors:   c.errors,
		Warnings: c.warnings,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
