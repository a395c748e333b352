package psml

import (
	"bytes"
	"fmt"
	"strings"

	goorg "github.com/niklasfasching/go-org/org"
	"github.com/yuin/goldmark"
	mdast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	mdtext "github.com/yuin/goldmark/text"
)

// TextFormat enumerates text-based converter targets.
type TextFormat string

const (
	FormatMarkdown TextFormat = "markdown"
	FormatOrg      TextFormat = "org"
)

// ConvertTextToPSML parses a markdown or org outline into a Document. Section headings
// select the element kind (Role, Context, Task, Rules, ...); any other heading opens a task.
func ConvertTextToPSML(body string, format TextFormat) (*Document, error) {
	var (
		blocks []textBlock
		err    error
	)
	switch format {
	case FormatMarkdown:
		blocks = markdownBlocks(body)
	case FormatOrg:
		blocks, err = orgBlocks(body)
	default:
		return nil, ErrNotImplemented
	}
	if err != nil {
		return nil, err
	}
	return assembleBlocks(blocks)
}

// ConvertPSMLToText renders a Document as a markdown or org outline.
func ConvertPSMLToText(d *Document, format TextFormat) (string, error) {
	root := d.Tree()
	switch format {
	case FormatMarkdown:
		return renderMarkdown(collectSections(root, true)), nil
	case FormatOrg:
		return renderOrg(collectSections(root, true)), nil
	default:
		return "", ErrNotImplemented
	}
}

type blockType int

const (
	blockHeading blockType = iota
	blockParagraph
	blockItem
	blockCode
)

// textBlock is the flat outline both text importers reduce their AST to.
type textBlock struct {
	typ     blockType
	level   int
	ordered bool
	text    string
}

func markdownBlocks(body string) []textBlock {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	src := []byte(body)
	root := md.Parser().Parse(mdtext.NewReader(src))

	var blocks []textBlock
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *mdast.Heading:
			blocks = append(blocks, textBlock{typ: blockHeading, level: node.Level, text: extractText(node, src)})
		case *mdast.Paragraph:
			if text := extractText(node, src); text != "" {
				blocks = append(blocks, textBlock{typ: blockParagraph, text: text})
			}
		case *mdast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if text := extractText(item, src); text != "" {
					blocks = append(blocks, textBlock{typ: blockItem, ordered: node.IsOrdered(), text: text})
				}
			}
		case *mdast.FencedCodeBlock, *mdast.CodeBlock:
			var b strings.Builder
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
			if text := strings.TrimRight(b.String(), "\n"); text != "" {
				blocks = append(blocks, textBlock{typ: blockCode, text: text})
			}
		}
	}
	return blocks
}

func extractText(n mdast.Node, src []byte) string {
	var b bytes.Buffer
	_ = mdast.Walk(n, func(nn mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		if tn, ok := nn.(*mdast.Text); ok {
			b.Write(tn.Segment.Value(src))
			if tn.SoftLineBreak() || tn.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return mdast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func orgBlocks(body string) ([]textBlock, error) {
	doc := goorg.New().Parse(strings.NewReader(body), "")
	if doc.Error != nil {
		return nil, fmt.Errorf("parse org: %w", doc.Error)
	}
	var blocks []textBlock
	var visit func(nodes []goorg.Node)
	visit = func(nodes []goorg.Node) {
		for _, n := range nodes {
			switch node := n.(type) {
			case goorg.Headline:
				blocks = append(blocks, textBlock{typ: blockHeading, level: node.Lvl, text: orgText(node.Title)})
				visit(node.Children)
			case goorg.Paragraph:
				if text := orgText(node.Children); text != "" {
					blocks = append(blocks, textBlock{typ: blockParagraph, text: text})
				}
			case goorg.List:
				for _, it := range node.Items {
					item, ok := it.(goorg.ListItem)
					if !ok {
						continue
					}
					if text := orgText(item.Children); text != "" {
						blocks = append(blocks, textBlock{typ: blockItem, ordered: node.Kind == "ordered", text: text})
					}
				}
			case goorg.Block:
				if text := strings.TrimRight(orgText(node.Children), "\n"); text != "" {
					blocks = append(blocks, textBlock{typ: blockCode, text: text})
				}
			}
		}
	}
	visit(doc.Nodes)
	return blocks, nil
}

func orgText(nodes []goorg.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch node := n.(type) {
		case goorg.Text:
			b.WriteString(node.Content)
		case goorg.LineBreak:
			b.WriteByte(' ')
		case goorg.Emphasis:
			b.WriteString(orgText(node.Content))
		case goorg.Paragraph:
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(orgText(node.Children))
		case goorg.RegularLink:
			if len(node.Description) > 0 {
				b.WriteString(orgText(node.Description))
			} else {
				b.WriteString(node.URL)
			}
		default:
			b.WriteString(goorg.String(n))
		}
	}
	return strings.TrimSpace(b.String())
}

// sectionKind is what a heading title selects.
type sectionKind int

const (
	sectionTask sectionKind = iota
	sectionRole
	sectionContext
	sectionDomain
	sectionObjectives
	sectionSteps
	sectionConstraints
	sectionRules
	sectionExamples
	sectionOutput
	sectionEvaluation
)

var sectionTitles = map[string]sectionKind{
	"task":             sectionTask,
	"role":             sectionRole,
	"context":          sectionContext,
	"background":       sectionContext,
	"domain":           sectionDomain,
	"objectives":       sectionObjectives,
	"steps":            sectionSteps,
	"constraints":      sectionConstraints,
	"rules":            sectionRules,
	"examples":         sectionExamples,
	"output":           sectionOutput,
	"output format":    sectionOutput,
	"evaluation":       sectionEvaluation,
	"success criteria": sectionEvaluation,
}

// assembler turns a flat outline into a Document through the mutation API.
type assembler struct {
	doc     *Document
	section sectionKind

	task, context, leaf, example NodeID
	// containers are created lazily and reset at every heading
	containers map[ElementKind]NodeID
	taskText   []string
	stepNo     int
}

func assembleBlocks(blocks []textBlock) (*Document, error) {
	a := &assembler{doc: NewDocument(), section: sectionTask}
	for i, blk := range blocks {
		var err error
		if blk.typ == blockHeading {
			err = a.heading(blk, i == 0)
		} else {
			err = a.body(blk)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := a.flushTask(); err != nil {
		return nil, err
	}
	return a.doc, nil
}

func (a *assembler) heading(blk textBlock, first bool) error {
	title := strings.TrimSpace(blk.text)
	kind, known := sectionTitles[strings.ToLower(title)]
	if !known && first && blk.level == 1 {
		return a.doc.UpdateAttributes(RootID, Attr{Name: "purpose", Value: title})
	}
	if kind != sectionObjectives && kind != sectionSteps {
		if err := a.flushTask(); err != nil {
			return err
		}
		a.task = ""
	}
	a.section = kind
	a.containers = nil
	a.leaf, a.example = "", ""
	a.stepNo = 0
	if kind == sectionTask && !known {
		a.taskText = append(a.taskText, title)
		_, err := a.ensureTask()
		return err
	}
	return nil
}

func (a *assembler) body(blk textBlock) error {
	switch a.section {
	case sectionTask:
		if blk.typ == blockItem {
			if blk.ordered {
				return a.taskStep(blk.text)
			}
			return a.taskObjective(blk.text)
		}
		if _, err := a.ensureTask(); err != nil {
			return err
		}
		a.taskText = append(a.taskText, blk.text)
		return nil
	case sectionRole:
		return a.appendLeaf(KindRole, RootID, blk.text)
	case sectionContext:
		ctx, err := a.ensureContext()
		if err != nil {
			return err
		}
		_, err = a.doc.AddNode(KindBackground, ctx, content(blk.text))
		return err
	case sectionDomain:
		ctx, err := a.ensureContext()
		if err != nil {
			return err
		}
		_, err = a.doc.AddNode(KindDomain, ctx, content(blk.text))
		return err
	case sectionObjectives:
		return a.taskObjective(blk.text)
	case sectionSteps:
		return a.taskStep(blk.text)
	case sectionConstraints:
		parent, err := a.ensureContainer(KindConstraints, RootID)
		if err != nil {
			return err
		}
		_, err = a.doc.AddNode(KindConstraint, parent, content(blk.text))
		return err
	case sectionRules:
		parent, err := a.ensureContainer(KindRules, RootID)
		if err != nil {
			return err
		}
		priority, text := splitRulePriority(blk.text)
		_, err = a.doc.AddNode(KindRule, parent, Attr{Name: "priority", Value: priority}, content(text))
		return err
	case sectionExamples:
		return a.exampleLine(blk.text)
	case sectionOutput:
		return a.appendLeaf(KindOutput, RootID, blk.text)
	case sectionEvaluation:
		parent, err := a.ensureContainer(KindEvaluation, RootID)
		if err != nil {
			return err
		}
		_, err = a.doc.AddNode(KindCriterion, parent, content(blk.text))
		return err
	}
	return nil
}

func (a *assembler) ensureTask() (NodeID, error) {
	if a.task != "" {
		return a.task, nil
	}
	id, err := a.doc.AddNode(KindTask, RootID)
	if err != nil {
		return "", err
	}
	a.task = id
	return id, nil
}

// flushTask writes the collected prose of the current task as its description.
func (a *assembler) flushTask() error {
	if a.task == "" || len(a.taskText) == 0 {
		a.taskText = nil
		return nil
	}
	text := strings.Join(a.taskText, "\n\n")
	a.taskText = nil
	desc, err := a.doc.AddNode(KindDescription, a.task, content(text))
	if err != nil {
		return err
	}
	// description reads first
	n := a.doc.nodes[a.task]
	if len(n.Children) > 1 {
		return a.doc.MoveNode(desc, n.Children[0], Before)
	}
	return nil
}

func (a *assembler) ensureContext() (NodeID, error) {
	if a.context != "" {
		return a.context, nil
	}
	id, err := a.doc.AddNode(KindContext, RootID)
	if err != nil {
		return "", err
	}
	a.context = id
	return id, nil
}

func (a *assembler) ensureContainer(kind ElementKind, parent NodeID) (NodeID, error) {
	if id, ok := a.containers[kind]; ok {
		return id, nil
	}
	id, err := a.doc.AddNode(kind, parent)
	if err != nil {
		return "", err
	}
	if a.containers == nil {
		a.containers = make(map[ElementKind]NodeID)
	}
	a.containers[kind] = id
	return id, nil
}

func (a *assembler) taskObjective(text string) error {
	task, err := a.ensureTask()
	if err != nil {
		return err
	}
	parent, err := a.ensureContainer(KindObjectives, task)
	if err != nil {
		return err
	}
	_, err = a.doc.AddNode(KindObjective, parent, content(text))
	return err
}

func (a *assembler) taskStep(text string) error {
	task, err := a.ensureTask()
	if err != nil {
		return err
	}
	parent, err := a.ensureContainer(KindSteps, task)
	if err != nil {
		return err
	}
	if a.stepNo == 0 {
		if err := a.doc.UpdateAttributes(parent, Attr{Name: "ordered", Value: "true"}); err != nil {
			return err
		}
	}
	a.stepNo++
	_, err = a.doc.AddNode(KindStep, parent, Attr{Name: "number", Value: fmt.Sprint(a.stepNo)}, content(text))
	return err
}

// appendLeaf adds a leaf of kind under parent, or extends the text of the last one.
func (a *assembler) appendLeaf(kind ElementKind, parent NodeID, text string) error {
	if a.leaf != "" {
		prev := a.doc.Content(a.leaf)
		return a.doc.SetContent(a.leaf, strings.TrimSpace(prev+"\n\n"+text))
	}
	id, err := a.doc.AddNode(kind, parent, content(text))
	if err != nil {
		return err
	}
	a.leaf = id
	return nil
}

func (a *assembler) exampleLine(text string) error {
	label, rest, ok := strings.Cut(text, ":")
	if !ok {
		return a.exampleAdd(KindInput, text)
	}
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "input":
		a.example = ""
		return a.exampleAdd(KindInput, strings.TrimSpace(rest))
	case "output":
		return a.exampleAdd(KindOutput, strings.TrimSpace(rest))
	}
	return a.exampleAdd(KindInput, text)
}

func (a *assembler) exampleAdd(kind ElementKind, text string) error {
	parent, err := a.ensureContainer(KindExamples, RootID)
	if err != nil {
		return err
	}
	if a.example == "" {
		if a.example, err = a.doc.AddNode(KindExample, parent); err != nil {
			return err
		}
	}
	_, err = a.doc.AddNode(kind, a.example, content(text))
	if kind == KindOutput {
		a.example = ""
	}
	return err
}

// splitRulePriority reads a "MUST:"/"SHOULD:"/"MAY:" prefix; rules without one are "should".
func splitRulePriority(text string) (string, string) {
	head, rest, ok := strings.Cut(text, ":")
	if ok {
		switch p := strings.ToLower(strings.TrimSpace(head)); p {
		case "must", "should", "may":
			return p, strings.TrimSpace(rest)
		}
	}
	return "should", text
}

// textSection is one titled section of the rendered outline.
type textSection struct {
	Title   string
	Level   int
	Prose   []string
	Items   []string
	Ordered bool
	Code    string
}

// collectSections flattens the prompt into titled sections in document order.
// Examples are included only when withExamples is set.
func collectSections(root *Element, withExamples bool) []textSection {
	var out []textSection
	if purpose, ok := root.Attr("purpose"); ok && purpose != "" {
		out = append(out, textSection{Title: purpose, Level: 1})
	}
	var visitTask func(task *Element)
	visitTask = func(task *Element) {
		sec := textSection{Title: "Task", Level: 2}
		for _, c := range task.Children {
			if c.Name == string(KindDescription) && c.HasText() {
				sec.Prose = append(sec.Prose, strings.TrimSpace(c.Text))
			}
		}
		out = append(out, sec)
		for _, c := range task.Children {
			switch ElementKind(c.Name) {
			case KindObjectives:
				out = append(out, textSection{Title: "Objectives", Level: 3, Items: childTexts(c)})
			case KindSteps:
				ordered, _ := c.Attr("ordered")
				out = append(out, textSection{Title: "Steps", Level: 3, Items: childTexts(c), Ordered: ordered == "true"})
			case KindSubtasks:
				for _, sub := range c.Children {
					visitTask(sub)
				}
			default:
				out = append(out, leafSections(c, 3, withExamples)...)
			}
		}
	}
	for _, c := range root.Children {
		switch ElementKind(c.Name) {
		case KindTask:
			visitTask(c)
		case KindTaskGroup:
			for _, t := range c.Children {
				visitTask(t)
			}
		default:
			out = append(out, leafSections(c, 2, withExamples)...)
		}
	}
	return out
}

func leafSections(el *Element, level int, withExamples bool) []textSection {
	switch ElementKind(el.Name) {
	case KindRole:
		return []textSection{{Title: "Role", Level: level, Prose: textOf(el)}}
	case KindContext:
		sec := textSection{Title: "Context", Level: level, Prose: textOf(el)}
		var out []textSection
		for _, c := range el.Children {
			switch ElementKind(c.Name) {
			case KindBackground:
				sec.Prose = append(sec.Prose, textOf(c)...)
			case KindDomain:
				out = append(out, textSection{Title: "Domain", Level: level, Prose: textOf(c)})
			case KindConstraints:
				out = append(out, textSection{Title: "Constraints", Level: level, Items: childTexts(c)})
			}
		}
		return append([]textSection{sec}, out...)
	case KindConstraints:
		return []textSection{{Title: "Constraints", Level: level, Items: childTexts(el)}}
	case KindRules:
		sec := textSection{Title: "Rules", Level: level}
		for _, r := range el.Children {
			p, _ := r.Attr("priority")
			text := strings.TrimSpace(r.Text)
			if p != "" {
				text = strings.ToUpper(p) + ": " + text
			}
			sec.Items = append(sec.Items, text)
		}
		return []textSection{sec}
	case KindExamples:
		if !withExamples {
			return nil
		}
		sec := textSection{Title: "Examples", Level: level}
		for _, ex := range el.Children {
			for _, io := range ex.Children {
				if io.HasText() {
					label := "Input"
					if io.Name == string(KindOutput) {
						label = "Output"
					}
					sec.Items = append(sec.Items, label+": "+strings.TrimSpace(io.Text))
				}
			}
		}
		return []textSection{sec}
	case KindOutput:
		sec := textSection{Title: "Output", Level: level, Prose: textOf(el)}
		if format, ok := el.Attr("format"); ok {
			sec.Prose = append([]string{"Format: " + format}, sec.Prose...)
		}
		for _, c := range el.Children {
			switch ElementKind(c.Name) {
			case KindTemplate:
				sec.Code = strings.TrimRight(strings.TrimLeft(c.Text, "\n"), " \t\n")
			case KindField:
				sec.Items = append(sec.Items, describeField(c))
			}
		}
		return []textSection{sec}
	case KindEvaluation:
		return []textSection{{Title: "Evaluation", Level: level, Prose: textOf(el), Items: childTexts(el)}}
	case KindCondition:
		cond, _ := el.Attr("if")
		sec := textSection{Title: "Condition", Level: level}
		if v, ok := el.Attr("equals"); ok {
			sec.Prose = []string{fmt.Sprintf("When %s equals %q", cond, v)}
		} else if v, ok := el.Attr("not-equals"); ok {
			sec.Prose = []string{fmt.Sprintf("When %s does not equal %q", cond, v)}
		}
		for _, c := range el.Children {
			if c.HasText() {
				sec.Items = append(sec.Items, c.Name+": "+strings.TrimSpace(c.Text))
			}
		}
		return []textSection{sec}
	}
	return nil
}

func describeField(f *Element) string {
	name, _ := f.Attr("name")
	typ, _ := f.Attr("type")
	s := fmt.Sprintf("%s (%s", name, typ)
	if req, _ := f.Attr("required"); req == "true" {
		s += ", required"
	}
	s += ")"
	if desc, ok := f.Attr("description"); ok && desc != "" {
		s += ": " + desc
	}
	return s
}

func textOf(el *Element) []string {
	if !el.HasText() {
		return nil
	}
	return []string{strings.TrimSpace(el.Text)}
}

func childTexts(el *Element) []string {
	var out []string
	for _, c := range el.Children {
		if c.HasText() {
			out = append(out, strings.TrimSpace(c.Text))
		}
	}
	return out
}

func renderMarkdown(sections []textSection) string {
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(strings.Repeat("#", s.Level))
		b.WriteString(" ")
		b.WriteString(s.Title)
		b.WriteString("\n\n")
		for _, p := range s.Prose {
			b.WriteString(p)
			b.WriteString("\n\n")
		}
		for i, it := range s.Items {
			if s.Ordered {
				fmt.Fprintf(&b, "%d. %s\n", i+1, it)
			} else {
				b.WriteString("- " + it + "\n")
			}
		}
		if len(s.Items) > 0 {
			b.WriteString("\n")
		}
		if s.Code != "" {
			b.WriteString("```\n" + s.Code + "\n```\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func renderOrg(sections []textSection) string {
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(strings.Repeat("*", s.Level))
		b.WriteString(" ")
		b.WriteString(s.Title)
		b.WriteString("\n\n")
		for _, p := range s.Prose {
			b.WriteString(p)
			b.WriteString("\n\n")
		}
		for i, it := range s.Items {
			if s.Ordered {
				fmt.Fprintf(&b, "%d. %s\n", i+1, it)
			} else {
				b.WriteString("- " + it + "\n")
			}
		}
		if len(s.Items) > 0 {
			b.WriteString("\n")
		}
		if s.Code != "" {
			b.WriteString("#+BEGIN_SRC\n" + s.Code + "\n#+END_SRC\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}
