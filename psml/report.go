package psml

import (
	"fmt"
	"strings"
)

// Severity separates blocking errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category classifies a diagnostic.
type Category string

const (
	CategorySyntax       Category = "syntax"
	CategoryStructure    Category = "structure"
	CategoryAttribute    Category = "attribute"
	CategoryValue        Category = "value"
	CategorySemantic     Category = "semantic"
	CategoryBestPractice Category = "best-practice"
)

// Diagnostic is a single finding of the validator.
type Diagnostic struct {
	Severity  Severity `json:"severity"`
	Category  Category `json:"category"`
	Message   string   `json:"message"`
	Element   string   `json:"element,omitempty"`
	Attribute string   `json:"attribute,omitempty"`
	Line      int      `json:"line,omitempty"`
}

// String renders the diagnostic the way the report formatters do.
func (d Diagnostic) String() string {
	if d.Severity == SeverityWarning {
		return formatWarning(d)
	}
	return formatError(d)
}

// Report is the outcome of one validation call. Valid is true iff Errors is empty.
type Report struct {
	Valid    bool         `json:"valid"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
}

// FormatErrors renders one line per error.
func (r Report) FormatErrors() []string {
	out := make([]string, len(r.Errors))
	for i, d := range r.Errors {
		out[i] = formatError(d)
	}
	return out
}

// FormatWarnings renders one line per warning.
func (r Report) FormatWarnings() []string {
	out := make([]string, len(r.Warnings))
	for i, d := range r.Warnings {
		out[i] = formatWarning(d)
	}
	return out
}

// Summary is a one-line pass/fail verdict.
func (r Report) Summary() string {
	if r.Valid {
		if n := len(r.Warnings); n > 0 {
			return fmt.Sprintf("✓ Valid PSML document with %d warning(s)", n)
		}
		return "✓ Valid PSML document"
	}
	return fmt.Sprintf("✗ Invalid PSML document: %d error(s), %d warning(s)", len(r.Errors), len(r.Warnings))
}

// Err returns nil for a valid report and a *ValidationError otherwise.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Issues: r.FormatErrors(), Details: append([]Diagnostic(nil), r.Errors...)}
}

// Count returns how many diagnostics of either severity fall into category.
func (r Report) Count(category Category) int {
	n := 0
	for _, d := range r.Errors {
		if d.Category == category {
			n++
		}
	}
	for _, d := range r.Warnings {
		if d.Category == category {
			n++
		}
	}
	return n
}

func formatError(d Diagnostic) string {
	var b strings.Builder
	if d.Line > 0 {
		fmt.Fprintf(&b, "Line %d: ", d.Line)
	}
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(string(d.Category)), d.Message)
	writeLocation(&b, d)
	return b.String()
}

func formatWarning(d Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", d.Category, d.Message)
	if d.Element != "" {
		fmt.Fprintf(&b, " (%s)", d.Element)
	}
	return b.String()
}

func writeLocation(b *strings.Builder, d Diagnostic) {
	switch {
	case d.Element != "" && d.Attribute != "":
		fmt.Fprintf(b, " (%s@%s)", d.Element, d.Attribute)
	case d.Element != "":
		fmt.Fprintf(b, " (%s)", d.Element)
	}
}
