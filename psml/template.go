package psml

import "fmt"

// MinimalTemplate is the smallest document that validates without errors.
const MinimalTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<prompt version="1.0">
  <task>
    <description>Your task description here</description>
  </task>
</prompt>`

// StandardTemplate exercises most of the vocabulary.
const StandardTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<prompt version="1.0">
  <role expertise="expert" tone="helpful">
    Define the AI's role and expertise here
  </role>

  <context priority="high">
    <background>Provide background information</background>
    <domain>Specify the domain</domain>
  </context>

  <task id="main-task" priority="high">
    <description>Describe the main task</description>
    <objectives>
      <objective>First objective</objective>
      <objective>Second objective</objective>
    </objectives>
    <steps ordered="true">
      <step number="1">First step</step>
      <step number="2">Second step</step>
    </steps>
  </task>

  <constraints>
    <constraint type="scope">Define constraints</constraint>
  </constraints>

  <rules>
    <rule priority="must">Mandatory rule</rule>
    <rule priority="should">Recommended rule</rule>
  </rules>

  <examples>
    <example type="positive">
      <input>Example input</input>
      <output>Expected output</output>
    </example>
  </examples>

  <output format="structured">
    <template>
## Output Template
{content}
    </template>
  </output>

  <evaluation>
    <criterion type="completeness">All requirements addressed</criterion>
    <criterion type="quality">High-quality output</criterion>
  </evaluation>
</prompt>`

// TemplateText returns the named text template ("minimal" or "standard").
func TemplateText(name string) (string, error) {
	switch name {
	case "", "minimal":
		return MinimalTemplate, nil
	case "standard":
		return StandardTemplate, nil
	}
	return "", fmt.Errorf("unknown template %q", name)
}

// FixtureNode is one literal node of a Fixture.
type FixtureNode struct {
	Kind     ElementKind   `yaml:"kind" json:"kind"`
	Attrs    []Attr        `yaml:"attrs,omitempty" json:"attrs,omitempty"`
	Children []FixtureNode `yaml:"children,omitempty" json:"children,omitempty"`
}

// Fixture is a catalog entry: a literal tree fed into the tree-construction API.
type Fixture struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	RootAttrs   []Attr        `yaml:"root_attrs,omitempty" json:"rootAttrs,omitempty"`
	Nodes       []FixtureNode `yaml:"nodes" json:"nodes"`
}

// LoadFixture builds a new Document from f. Nodes are added depth-first, so ids follow
// document order.
func LoadFixture(f Fixture) (*Document, error) {
	d := NewDocument()
	if len(f.RootAttrs) > 0 {
		if err := d.UpdateAttributes(RootID, f.RootAttrs...); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", f.ID, err)
		}
	}
	type frame struct {
		node   FixtureNode
		parent NodeID
	}
	stack := make([]frame, 0, len(f.Nodes))
	for i := len(f.Nodes) - 1; i >= 0; i-- {
		stack = append(stack, frame{f.Nodes[i], RootID})
	}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id, err := d.AddNode(fr.node.Kind, fr.parent, fr.node.Attrs...)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", f.ID, err)
		}
		for i := len(fr.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{fr.node.Children[i], id})
		}
	}
	return d, nil
}

func content(text string) Attr { return Attr{Name: ContentAttr, Value: text} }

var catalog = []Fixture{
	{
		ID: "simple-task", Name: "Simple Task", Description: "A basic prompt for simple tasks",
		Nodes: []FixtureNode{
			{Kind: KindRole, Attrs: []Attr{content("You are a helpful AI assistant.")}},
			{Kind: KindTask, Children: []FixtureNode{
				{Kind: KindDescription, Attrs: []Attr{content("Help the user with their request")}},
			}},
		},
	},
	{
		ID: "code-review", Name: "Code Review", Description: "Template for reviewing code",
		Nodes: []FixtureNode{
			{Kind: KindRole, Attrs: []Attr{
				{Name: "expertise", Value: "expert"},
				{Name: "tone", Value: "professional"},
				content("You are a senior software engineer specializing in code review."),
			}},
			{Kind: KindContext, Attrs: []Attr{{Name: "priority", Value: "high"}}, Children: []FixtureNode{
				{Kind: KindBackground, Attrs: []Attr{content("User needs help reviewing code for best practices")}},
				{Kind: KindDomain, Attrs: []Attr{content("Software Development")}},
			}},
			{Kind: KindTask, Attrs: []Attr{{Name: "id", Value: "code-review"}, {Name: "priority", Value: "high"}}, Children: []FixtureNode{
				{Kind: KindDescription, Attrs: []Attr{content("Review the provided code for best practices and potential issues")}},
				{Kind: KindObjectives},
			}},
			{Kind: KindConstraints, Children: []FixtureNode{
				{Kind: KindConstraint, Attrs: []Attr{{Name: "type", Value: "focus"}, content("Focus on maintainability and performance")}},
			}},
		},
	},
	{
		ID: "creative-writing", Name: "Creative Writing", Description: "Template for creative writing tasks",
		Nodes: []FixtureNode{
			{Kind: KindRole, Attrs: []Attr{
				{Name: "expertise", Value: "expert"},
				{Name: "tone", Value: "creative"},
				content("You are a creative writing assistant with expertise in storytelling."),
			}},
			{Kind: KindTask, Attrs: []Attr{{Name: "id", Value: "creative-writing"}}, Children: []FixtureNode{
				{Kind: KindDescription, Attrs: []Attr{content("Help create engaging and creative written content")}},
				{Kind: KindObjectives},
			}},
			{Kind: KindRules, Children: []FixtureNode{
				{Kind: KindRule, Attrs: []Attr{{Name: "priority", Value: "must"}, content("Be creative and engaging")}},
				{Kind: KindRule, Attrs: []Attr{{Name: "priority", Value: "should"}, content("Use vivid descriptions and compelling narratives")}},
			}},
		},
	},
}

// Catalog returns the built-in fixtures.
func Catalog() []Fixture {
	return append([]Fixture(nil), catalog...)
}

// FixtureByID looks up a built-in fixture.
func FixtureByID(id string) (Fixture, bool) {
	for _, f := range catalog {
		if f.ID == id {
			return f, true
		}
	}
	return Fixture{}, false
}
