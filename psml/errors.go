package psml

import (
	"errors"
	"fmt"
	"strings"
)

// Tree-model failures. All of them leave the document unmodified.
var (
	ErrUnknownKind      = errors.New("unknown element kind")
	ErrInvalidParent    = errors.New("invalid parent")
	ErrUnknownNode      = errors.New("unknown node")
	ErrProtectedNode    = errors.New("protected node")
	ErrSameNode         = errors.New("cannot move a node relative to itself")
	ErrCyclicMove       = errors.New("cyclic move")
	ErrCrossParentMove  = errors.New("cross-parent move")
	ErrInvalidAttribute = errors.New("invalid attribute")
)

// ErrNotImplemented signals that a conversion target is not supported.
var ErrNotImplemented = errors.New("conversion not implemented")

// TreeError wraps a tree-model sentinel with the operation and node involved.
type TreeError struct {
	Op     string
	Node   NodeID
	Kind   ElementKind
	Detail string
	Err    error
}

func (e *TreeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Node != "" {
		fmt.Fprintf(&b, " %s", e.Node)
	}
	if e.Kind != "" {
		fmt.Fprintf(&b, " <%s>", e.Kind)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *TreeError) Unwrap() error { return e.Err }

// ParseError reports markup that could not be parsed. It is fatal for a single validation call.
type ParseError struct {
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError groups the error diagnostics of an invalid report.
type ValidationError struct {
	Issues  []string
	Details []Diagnostic
}

func (v *ValidationError) Error() string {
	return "psml validation failed: " + strings.Join(v.Issues, "; ")
}

func treeErr(op string, id NodeID, kind ElementKind, err error, detail string) error {
	return &TreeError{Op: op, Node: id, Kind: kind, Err: err, Detail: detail}
}
