package psml

import (
	"fmt"
	"slices"
	"strings"
)

// SchemaVersion is the only accepted value of the root version attribute.
const SchemaVersion = "1.0"

// DocumentHeader is the header line every PSML document starts with.
const DocumentHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// headerToken is what the parse phase looks for at the start of the text.
const headerToken = "<?xml"

// ContentAttr is the reserved pseudo-attribute holding a node's text content.
const ContentAttr = "content"

// ElementKind identifies an element of the closed PSML vocabulary.
type ElementKind string

const (
	KindPrompt      ElementKind = "prompt"
	KindRole        ElementKind = "role"
	KindContext     ElementKind = "context"
	KindBackground  ElementKind = "background"
	KindDomain      ElementKind = "domain"
	KindTask        ElementKind = "task"
	KindDescription ElementKind = "description"
	KindObjectives  ElementKind = "objectives"
	KindObjective   ElementKind = "objective"
	KindSteps       ElementKind = "steps"
	KindStep        ElementKind = "step"
	KindSubtasks    ElementKind = "subtasks"
	KindTaskGroup   ElementKind = "task-group"
	KindConstraints ElementKind = "constraints"
	KindConstraint  ElementKind = "constraint"
	KindRules       ElementKind = "rules"
	KindRule        ElementKind = "rule"
	KindExamples    ElementKind = "examples"
	KindExample     ElementKind = "example"
	KindInput       ElementKind = "input"
	KindOutput      ElementKind = "output"
	KindField       ElementKind = "field"
	KindItem        ElementKind = "item"
	KindTemplate    ElementKind = "template"
	KindEvaluation  ElementKind = "evaluation"
	KindCriterion   ElementKind = "criterion"
	KindCondition   ElementKind = "condition"
	KindInclude     ElementKind = "include"
	KindExclude     ElementKind = "exclude"
)

// RootKind is the kind of every document root.
const RootKind = KindPrompt

// ContentModel says whether an element may carry text, child elements, both, or neither.
type ContentModel string

const (
	ContentNone     ContentModel = "none"
	ContentText     ContentModel = "text-only"
	ContentChildren ContentModel = "children-only"
	ContentMixed    ContentModel = "mixed"
)

// ValueType is the declared type of an attribute value.
type ValueType string

const (
	ValueString     ValueType = "string"
	ValueEnum       ValueType = "enum"
	ValueBoolean    ValueType = "boolean"
	ValueInteger    ValueType = "integer"
	ValueIdentifier ValueType = "identifier"
)

// AttributeDefinition declares one attribute of an element.
type AttributeDefinition struct {
	Name          string    `yaml:"name"`
	Type          ValueType `yaml:"type"`
	Required      bool      `yaml:"required,omitempty"`
	AllowedValues []string  `yaml:"allowed_values,omitempty"`
	Default       string    `yaml:"default,omitempty"`
}

// ElementDefinition is the immutable schema entry for one ElementKind.
type ElementDefinition struct {
	Kind            ElementKind           `yaml:"kind"`
	Label           string                `yaml:"label"`
	Description     string                `yaml:"description"`
	AllowedParents  []ElementKind         `yaml:"allowed_parents,omitempty"`
	AllowedChildren []ElementKind         `yaml:"allowed_children,omitempty"`
	Content         ContentModel          `yaml:"content"`
	Attributes      []AttributeDefinition `yaml:"attributes,omitempty"`
}

// Attribute looks up an attribute definition by name.
func (d ElementDefinition) Attribute(name string) (AttributeDefinition, bool) {
	for _, a := range d.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeDefinition{}, false
}

func (d ElementDefinition) clone() ElementDefinition {
	out := d
	out.AllowedParents = slices.Clone(d.AllowedParents)
	out.AllowedChildren = slices.Clone(d.AllowedChildren)
	out.Attributes = make([]AttributeDefinition, len(d.Attributes))
	for i, a := range d.Attributes {
		a.AllowedValues = slices.Clone(a.AllowedValues)
		out.Attributes[i] = a
	}
	return out
}

var priorityAttr = AttributeDefinition{Name: "priority", Type: ValueEnum, AllowedValues: []string{"low", "medium", "high"}}

func textAttr(name string) AttributeDefinition {
	return AttributeDefinition{Name: name, Type: ValueString}
}

// schemaTable lists every definition in registry order. AllowedParents is derived from
// AllowedChildren in init, so parent/child legality is declared once.
var schemaTable = []ElementDefinition{
	{
		Kind: KindPrompt, Label: "Prompt", Description: "Root prompt element",
		AllowedChildren: []ElementKind{KindRole, KindContext, KindTask, KindTaskGroup, KindConstraints, KindRules, KindExamples, KindOutput, KindEvaluation, KindCondition},
		Content:         ContentChildren,
		Attributes: []AttributeDefinition{
			{Name: "version", Type: ValueEnum, Required: true, AllowedValues: []string{SchemaVersion}, Default: SchemaVersion},
			textAttr("model"),
			textAttr("purpose"),
		},
	},
	{
		Kind: KindRole, Label: "Role", Description: "Define the AI assistant role",
		Content: ContentText,
		Attributes: []AttributeDefinition{
			{Name: "expertise", Type: ValueEnum, AllowedValues: []string{"novice", "intermediate", "expert"}},
			textAttr("tone"),
			textAttr("specialization"),
		},
	},
	{
		Kind: KindContext, Label: "Context", Description: "Provide background context",
		AllowedChildren: []ElementKind{KindBackground, KindDomain, KindConstraints},
		Content:         ContentMixed,
		Attributes:      []AttributeDefinition{priorityAttr},
	},
	{Kind: KindBackground, Label: "Background", Description: "Background information", Content: ContentText},
	{Kind: KindDomain, Label: "Domain", Description: "Domain or field of expertise", Content: ContentText},
	{
		Kind: KindTask, Label: "Task", Description: "Define a task",
		AllowedChildren: []ElementKind{KindDescription, KindObjectives, KindSteps, KindSubtasks, KindConstraints, KindRules, KindExamples, KindOutput, KindEvaluation},
		Content:         ContentChildren,
		Attributes: []AttributeDefinition{
			{Name: "id", Type: ValueIdentifier},
			priorityAttr,
			textAttr("type"),
			{Name: "complexity", Type: ValueEnum, AllowedValues: []string{"simple", "medium", "complex"}},
		},
	},
	{Kind: KindDescription, Label: "Description", Description: "Task description", Content: ContentText},
	{Kind: KindObjectives, Label: "Objectives", Description: "Task objectives container", AllowedChildren: []ElementKind{KindObjective}, Content: ContentChildren},
	{Kind: KindObjective, Label: "Objective", Description: "Single objective", Content: ContentText},
	{
		Kind: KindSteps, Label: "Steps", Description: "Steps container",
		AllowedChildren: []ElementKind{KindStep},
		Content:         ContentChildren,
		Attributes:      []AttributeDefinition{{Name: "ordered", Type: ValueBoolean}},
	},
	{
		Kind: KindStep, Label: "Step", Description: "Single step",
		Content:    ContentText,
		Attributes: []AttributeDefinition{{Name: "number", Type: ValueInteger}},
	},
	{Kind: KindSubtasks, Label: "Subtasks", Description: "Nested tasks", AllowedChildren: []ElementKind{KindTask}, Content: ContentChildren},
	{
		Kind: KindTaskGroup, Label: "Task group", Description: "Group of related tasks",
		AllowedChildren: []ElementKind{KindTask},
		Content:         ContentChildren,
		Attributes:      []AttributeDefinition{textAttr("name")},
	},
	{Kind: KindConstraints, Label: "Constraints", Description: "Constraints container", AllowedChildren: []ElementKind{KindConstraint}, Content: ContentChildren},
	{Kind: KindConstraint, Label: "Constraint", Description: "Single constraint", Content: ContentText, Attributes: []AttributeDefinition{textAttr("type")}},
	{Kind: KindRules, Label: "Rules", Description: "Rules container", AllowedChildren: []ElementKind{KindRule}, Content: ContentChildren},
	{
		Kind: KindRule, Label: "Rule", Description: "Single rule",
		Content:    ContentText,
		Attributes: []AttributeDefinition{{Name: "priority", Type: ValueEnum, Required: true, AllowedValues: []string{"must", "should", "may"}}},
	},
	{Kind: KindExamples, Label: "Examples", Description: "Examples container", AllowedChildren: []ElementKind{KindExample}, Content: ContentChildren},
	{
		Kind: KindExample, Label: "Example", Description: "Single example",
		AllowedChildren: []ElementKind{KindInput, KindOutput},
		Content:         ContentMixed,
		Attributes:      []AttributeDefinition{{Name: "type", Type: ValueEnum, AllowedValues: []string{"positive", "negative", "neutral"}}},
	},
	{Kind: KindInput, Label: "Input", Description: "Example input", Content: ContentText},
	{
		Kind: KindOutput, Label: "Output", Description: "Output specification",
		AllowedChildren: []ElementKind{KindField, KindTemplate},
		Content:         ContentMixed,
		Attributes: []AttributeDefinition{
			{Name: "format", Type: ValueEnum, AllowedValues: []string{"text", "json", "xml", "markdown", "structured"}},
			{Name: "schema", Type: ValueEnum, AllowedValues: []string{"strict", "flexible"}},
		},
	},
	{
		Kind: KindField, Label: "Field", Description: "Structured output field",
		AllowedChildren: []ElementKind{KindItem},
		Content:         ContentChildren,
		Attributes: []AttributeDefinition{
			{Name: "name", Type: ValueString, Required: true},
			{Name: "type", Type: ValueString, Required: true},
			{Name: "required", Type: ValueBoolean},
			{Name: "minLength", Type: ValueInteger},
			{Name: "maxLength", Type: ValueInteger},
			textAttr("description"),
		},
	},
	{
		Kind: KindItem, Label: "Item", Description: "Array item shape",
		AllowedChildren: []ElementKind{KindField},
		Content:         ContentChildren,
		Attributes:      []AttributeDefinition{textAttr("type")},
	},
	{Kind: KindTemplate, Label: "Template", Description: "Output template", Content: ContentText},
	{Kind: KindEvaluation, Label: "Evaluation", Description: "Success criteria", AllowedChildren: []ElementKind{KindCriterion}, Content: ContentMixed},
	{Kind: KindCriterion, Label: "Criterion", Description: "Single criterion", Content: ContentText, Attributes: []AttributeDefinition{textAttr("type")}},
	{
		Kind: KindCondition, Label: "Condition", Description: "Conditional inclusion",
		AllowedChildren: []ElementKind{KindInclude, KindExclude},
		Content:         ContentChildren,
		Attributes: []AttributeDefinition{
			{Name: "if", Type: ValueString, Required: true},
			textAttr("equals"),
			textAttr("not-equals"),
		},
	},
	{Kind: KindInclude, Label: "Include", Description: "Included when the condition holds", Content: ContentText},
	{Kind: KindExclude, Label: "Exclude", Description: "Excluded when the condition holds", Content: ContentText},
}

var registry map[ElementKind]*ElementDefinition

func init() {
	registry = make(map[ElementKind]*ElementDefinition, len(schemaTable))
	for i := range schemaTable {
		registry[schemaTable[i].Kind] = &schemaTable[i]
	}
	for i := range schemaTable {
		parent := schemaTable[i].Kind
		for _, child := range schemaTable[i].AllowedChildren {
			if def, ok := registry[child]; ok && !slices.Contains(def.AllowedParents, parent) {
				def.AllowedParents = append(def.AllowedParents, parent)
			}
		}
	}
}

// DefinitionOf returns the schema entry for kind.
func DefinitionOf(kind ElementKind) (ElementDefinition, error) {
	def, ok := registry[kind]
	if !ok {
		return ElementDefinition{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
	return def.clone(), nil
}

// IsKnownKind reports whether name is part of the closed vocabulary.
func IsKnownKind(name string) bool {
	_, ok := registry[ElementKind(name)]
	return ok
}

// IsLegalChild reports whether child may appear directly under parent.
func IsLegalChild(parent, child ElementKind) bool {
	def, ok := registry[parent]
	if !ok {
		return false
	}
	return slices.Contains(def.AllowedChildren, child)
}

// AcceptsText reports whether kind may carry free text.
func AcceptsText(kind ElementKind) bool {
	def, ok := registry[kind]
	if !ok {
		return false
	}
	return def.Content == ContentText || def.Content == ContentMixed
}

// AcceptsChildren reports whether kind may carry child elements.
func AcceptsChildren(kind ElementKind) bool {
	def, ok := registry[kind]
	if !ok {
		return false
	}
	return def.Content == ContentChildren || def.Content == ContentMixed
}

// Kinds returns the closed vocabulary in registry order.
func Kinds() []ElementKind {
	out := make([]ElementKind, len(schemaTable))
	for i, def := range schemaTable {
		out[i] = def.Kind
	}
	return out
}

// Definitions returns copies of every definition in registry order.
func Definitions() []ElementDefinition {
	out := make([]ElementDefinition, len(schemaTable))
	for i, def := range schemaTable {
		out[i] = def.clone()
	}
	return out
}

// CheckRegistry verifies the registry is closed and consistent.
func CheckRegistry() error {
	var issues []string
	for _, def := range schemaTable {
		for _, child := range def.AllowedChildren {
			if _, ok := registry[child]; !ok {
				issues = append(issues, fmt.Sprintf("<%s> allows undefined child <%s>", def.Kind, child))
			}
		}
		switch {
		case def.Kind == RootKind && len(def.AllowedParents) > 0:
			issues = append(issues, "root kind must not have parents")
		case def.Kind != RootKind && len(def.AllowedParents) == 0:
			issues = append(issues, fmt.Sprintf("<%s> is unreachable from the root", def.Kind))
		}
		hasChildren := len(def.AllowedChildren) > 0
		switch def.Content {
		case ContentChildren, ContentMixed:
			if !hasChildren {
				issues = append(issues, fmt.Sprintf("<%s> content model %s declares no children", def.Kind, def.Content))
			}
		case ContentText, ContentNone:
			if hasChildren {
				issues = append(issues, fmt.Sprintf("<%s> content model %s declares children", def.Kind, def.Content))
			}
		default:
			issues = append(issues, fmt.Sprintf("<%s> has unknown content model %q", def.Kind, def.Content))
		}
		seen := map[string]struct{}{}
		for _, a := range def.Attributes {
			if a.Name == ContentAttr {
				issues = append(issues, fmt.Sprintf("<%s> declares reserved attribute %q", def.Kind, ContentAttr))
			}
			if _, dup := seen[a.Name]; dup {
				issues = append(issues, fmt.Sprintf("<%s> declares attribute %q twice", def.Kind, a.Name))
			}
			seen[a.Name] = struct{}{}
			if a.Type == ValueEnum && len(a.AllowedValues) == 0 {
				issues = append(issues, fmt.Sprintf("<%s>@%s is an enum without values", def.Kind, a.Name))
			}
			if a.Default != "" {
				if msg := checkValue(a, a.Default); msg != "" {
					issues = append(issues, fmt.Sprintf("<%s>@%s default: %s", def.Kind, a.Name, msg))
				}
			}
		}
	}
	if len(issues) == 0 {
		return nil
	}
	return fmt.Errorf("psml schema: %s", strings.Join(issues, "; "))
}

// checkValue returns a message describing why value does not fit def, or "" when it does.
// Identifier uniqueness is document-scoped and checked by callers.
func checkValue(def AttributeDefinition, value string) string {
	switch def.Type {
	case ValueEnum:
		if !slices.Contains(def.AllowedValues, value) {
			return fmt.Sprintf("invalid value %q for attribute %q. Must be one of: %s", value, def.Name, strings.Join(def.AllowedValues, ", "))
		}
	case ValueBoolean:
		if value != "true" && value != "false" {
			return fmt.Sprintf("invalid boolean value %q for attribute %q. Must be \"true\" or \"false\"", value, def.Name)
		}
	case ValueInteger:
		if !isIntegerLiteral(value) {
			return fmt.Sprintf("invalid integer value %q for attribute %q", value, def.Name)
		}
	}
	return ""
}

// isIntegerLiteral matches ^-?\d+$.
func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
