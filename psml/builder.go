package psml

// Builder provides a fluent API for constructing a Document in code. Container methods
// move the cursor into the new node; Leave moves it back to the parent. The first
// failing call sticks and is returned by Build.
type Builder struct {
	doc    *Document
	cursor NodeID
	last   NodeID
	err    error
}

// NewBuilder starts from an empty document positioned at the root.
func NewBuilder() *Builder {
	return &Builder{doc: NewDocument(), cursor: RootID}
}

// Build returns the assembled Document or the first error encountered.
func (b *Builder) Build() (*Document, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.doc, nil
}

// Err returns the first error encountered so far.
func (b *Builder) Err() error { return b.err }

// Last returns the id of the most recently added node.
func (b *Builder) Last() NodeID { return b.last }

// Root sets attributes on the prompt root.
func (b *Builder) Root(attrs ...Attr) *Builder {
	if b.err == nil {
		b.err = b.doc.UpdateAttributes(RootID, attrs...)
	}
	return b
}

// Add appends a leaf of kind under the cursor. A non-empty text becomes its content.
func (b *Builder) Add(kind ElementKind, text string, attrs ...Attr) *Builder {
	b.add(kind, text, attrs)
	return b
}

// Enter appends a node of kind under the cursor and moves the cursor into it.
func (b *Builder) Enter(kind ElementKind, attrs ...Attr) *Builder {
	if id, ok := b.add(kind, "", attrs); ok {
		b.cursor = id
	}
	return b
}

// Leave moves the cursor to its parent. Leaving the root is a no-op.
func (b *Builder) Leave() *Builder {
	if b.err != nil || b.cursor == RootID {
		return b
	}
	n := b.doc.nodes[b.cursor]
	b.cursor = n.Parent
	return b
}

func (b *Builder) add(kind ElementKind, text string, attrs []Attr) (NodeID, bool) {
	if b.err != nil {
		return "", false
	}
	if text != "" {
		attrs = append(attrs[:len(attrs):len(attrs)], Attr{Name: ContentAttr, Value: text})
	}
	id, err := b.doc.AddNode(kind, b.cursor, attrs...)
	if err != nil {
		b.err = err
		return "", false
	}
	b.last = id
	return id, true
}

// Role adds the role element.
func (b *Builder) Role(text string, attrs ...Attr) *Builder {
	return b.Add(KindRole, text, attrs...)
}

// Task opens a task.
func (b *Builder) Task(attrs ...Attr) *Builder {
	return b.Enter(KindTask, attrs...)
}

// Description adds a description to the current task.
func (b *Builder) Description(text string) *Builder {
	return b.Add(KindDescription, text)
}

// Objective adds an objective to the current objectives container.
func (b *Builder) Objective(text string) *Builder {
	return b.Add(KindObjective, text)
}

// Steps opens a steps container.
func (b *Builder) Steps(ordered bool) *Builder {
	if ordered {
		return b.Enter(KindSteps, Attr{Name: "ordered", Value: "true"})
	}
	return b.Enter(KindSteps)
}

// Step adds a step; number is omitted when empty.
func (b *Builder) Step(number, text string) *Builder {
	if number == "" {
		return b.Add(KindStep, text)
	}
	return b.Add(KindStep, text, Attr{Name: "number", Value: number})
}

// Rule adds a rule with the given priority to the current rules container.
func (b *Builder) Rule(priority, text string) *Builder {
	return b.Add(KindRule, text, Attr{Name: "priority", Value: priority})
}

// Constraint adds a constraint to the current constraints container.
func (b *Builder) Constraint(text string, attrs ...Attr) *Builder {
	return b.Add(KindConstraint, text, attrs...)
}

// Example opens an example and fills its input and output.
func (b *Builder) Example(input, output string, attrs ...Attr) *Builder {
	b.Enter(KindExample, attrs...)
	if input != "" {
		b.Add(KindInput, input)
	}
	if output != "" {
		b.Add(KindOutput, output)
	}
	return b.Leave()
}

// Output adds an output specification with the given format.
func (b *Builder) Output(format, text string) *Builder {
	if format == "" {
		return b.Add(KindOutput, text)
	}
	return b.Add(KindOutput, text, Attr{Name: "format", Value: format})
}

// Criterion adds a criterion to the current evaluation.
func (b *Builder) Criterion(text string, attrs ...Attr) *Builder {
	return b.Add(KindCriterion, text, attrs...)
}
