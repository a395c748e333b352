package psml

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func chatDocument(t *testing.T) *Document {
	t.Helper()
	doc, err := NewBuilder().
		Root(Attr{Name: "model", Value: "gpt-4o-mini"}).
		Role("You are a calculator.").
		Task().Description("Answer arithmetic questions.").Leave().
		Enter(KindExamples).Example("What is 2+2?", "4").Leave().
		Enter(KindOutput, Attr{Name: "format", Value: "json"}).
		Enter(KindField, Attr{Name: "name", Value: "answer"}, Attr{Name: "type", Value: "string"}, Attr{Name: "required", Value: "true"}, Attr{Name: "maxLength", Value: "8"}).Leave().
		Leave().
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return doc
}

func TestConvertMessageDict(t *testing.T) {
	out, err := Convert(chatDocument(t), FormatMessageDict, ConvertOptions{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	msgs, ok := out.([]messageDict)
	if !ok {
		t.Fatalf("unexpected type %T", out)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	speakers := []string{msgs[0].Speaker, msgs[1].Speaker, msgs[2].Speaker}
	if diff := cmp.Diff([]string{"system", "human", "ai"}, speakers); diff != "" {
		t.Fatalf("speakers (-want +got):\n%s", diff)
	}
	system := msgs[0].Content
	for _, want := range []string{"## Role\n\nYou are a calculator.", "## Task\n\nAnswer arithmetic questions.", "Format: json", "- answer (string, required)"} {
		if !strings.Contains(system, want) {
			t.Fatalf("system message missing %q:\n%s", want, system)
		}
	}
	if strings.Contains(system, "Examples") {
		t.Fatalf("examples leaked into the system message:\n%s", system)
	}
	if msgs[1].Content != "What is 2+2?" || msgs[2].Content != "4" {
		t.Fatalf("example turns = %+v", msgs[1:])
	}

	out, _ = Convert(chatDocument(t), FormatMessageDict, ConvertOptions{SkipExamples: true})
	if msgs := out.([]messageDict); len(msgs) != 1 {
		t.Fatalf("SkipExamples kept %d messages", len(msgs))
	}
}

func TestConvertOpenAIChat(t *testing.T) {
	out, err := Convert(chatDocument(t), FormatOpenAIChat, ConvertOptions{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	result := out.(map[string]any)
	if result["model"] != "gpt-4o" {
		t.Fatalf("model = %v", result["model"])
	}
	msgs := result["messages"].([]map[string]any)
	var roles []string
	for _, m := range msgs {
		roles = append(roles, m["role"].(string))
	}
	if diff := cmp.Diff([]string{"system", "user", "assistant"}, roles); diff != "" {
		t.Fatalf("roles (-want +got):\n%s", diff)
	}
	rf := result["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Fatalf("response_format = %v", rf)
	}
	js := rf["json_schema"].(map[string]any)
	if js["strict"] != true {
		t.Fatalf("strict = %v", js["strict"])
	}
	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{"type": "string", "maxLength": 8},
		},
		"required": []string{"answer"},
	}
	if diff := cmp.Diff(want, js["schema"]); diff != "" {
		t.Fatalf("schema (-want +got):\n%s", diff)
	}
}

func TestConvertOpenAIChatJSONObjectWithoutFields(t *testing.T) {
	doc, err := NewBuilder().Role("r").Output("json", "Return JSON").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, _ := Convert(doc, FormatOpenAIChat, ConvertOptions{})
	result := out.(map[string]any)
	if diff := cmp.Diff(map[string]any{"type": "json_object"}, result["response_format"]); diff != "" {
		t.Fatalf("response_format (-want +got):\n%s", diff)
	}
	if _, ok := result["model"]; ok {
		t.Fatalf("model set without runtime")
	}
}

func TestConvertDict(t *testing.T) {
	out, err := Convert(chatDocument(t), FormatDict, ConvertOptions{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	d := out.(dictOutput)
	if len(d.Messages) != 3 || d.Schema == nil {
		t.Fatalf("unexpected dict output %+v", d)
	}
	if diff := cmp.Diff(map[string]any{"model": "gpt-4o-mini"}, d.Runtime); diff != "" {
		t.Fatalf("runtime (-want +got):\n%s", diff)
	}
}

func TestConvertUnknownFormat(t *testing.T) {
	if _, err := Convert(NewDocument(), Format("yaml"), ConvertOptions{}); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestConvertStringToleratesUnknownMarkup(t *testing.T) {
	src := wrap(`<role>r</role><note>kept out</note><examples><example><input>q</input><output>a</output></example></examples>`)
	out, err := ConvertString(src, FormatMessageDict, ConvertOptions{})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if msgs := out.([]messageDict); len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %+v", msgs)
	}
	if _, err := ConvertString("<prompt>", FormatMessageDict, ConvertOptions{}); err == nil {
		t.Fatalf("expected parse error")
	}
}

const markdownOutline = `# Code helper

## Role

You are a reviewer.

## Task

Review code.

1. Read
2. Comment

- Be thorough

## Rules

- MUST: be kind
- cite lines

## Examples

- Input: fn main() {}
- Output: looks fine

## Output Format

A bullet list.
`

func TestConvertMarkdownToPSML(t *testing.T) {
	doc, err := ConvertTextToPSML(markdownOutline, FormatMarkdown)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if r := ValidateDocument(doc); !r.Valid {
		t.Fatalf("converted document invalid: %v\n%s", r.FormatErrors(), Serialize(doc))
	}
	if purpose, _ := doc.Root().Attr("purpose"); purpose != "Code helper" {
		t.Fatalf("purpose = %q", purpose)
	}
	out := Serialize(doc)
	for _, want := range []string{
		"<role>You are a reviewer.</role>",
		"<description>Review code.</description>",
		`<steps ordered="true">`,
		`<step number="2">Comment</step>`,
		"<objective>Be thorough</objective>",
		`<rule priority="must">be kind</rule>`,
		`<rule priority="should">cite lines</rule>`,
		"<input>fn main() {}</input>",
		"<output>looks fine</output>",
		"<output>A bullet list.</output>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	task := doc.Root().Children[1]
	tn, _ := doc.Node(task)
	if first, _ := doc.Node(tn.Children[0]); first.Kind != KindDescription {
		t.Fatalf("description is not the first task child: %v", tn.Children)
	}
}

func TestConvertMarkdownUnknownHeadingOpensTask(t *testing.T) {
	doc, err := ConvertTextToPSML("## Summarize the report\n\nKeep it short.\n\n## Fix the build\n", FormatMarkdown)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	var descs []string
	doc.Walk(func(n Node, _ int) bool {
		if n.Kind == KindDescription {
			descs = append(descs, doc.Content(n.ID))
		}
		return true
	})
	want := []string{"Summarize the report\n\nKeep it short.", "Fix the build"}
	if diff := cmp.Diff(want, descs); diff != "" {
		t.Fatalf("descriptions (-want +got):\n%s", diff)
	}
}

func TestConvertOrgToPSML(t *testing.T) {
	body := "* Role\nYou are a reviewer.\n* Task\nReview code.\n- first objective\n* Constraints\n- stay on topic\n"
	doc, err := ConvertTextToPSML(body, FormatOrg)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if r := ValidateDocument(doc); !r.Valid {
		t.Fatalf("converted document invalid: %v", r.FormatErrors())
	}
	out := Serialize(doc)
	for _, want := range []string{
		"<role>You are a reviewer.</role>",
		"<description>Review code.</description>",
		"<objective>first objective</objective>",
		"<constraint>stay on topic</constraint>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestConvertPSMLToText(t *testing.T) {
	d, err := ParseDocument(StandardTemplate)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	md, err := ConvertPSMLToText(d, FormatMarkdown)
	if err != nil {
		t.Fatalf("markdown: %v", err)
	}
	for _, want := range []string{
		"## Role\n\nDefine the AI's role and expertise here",
		"### Steps\n\n1. First step\n2. Second step",
		"- MUST: Mandatory rule",
		"- Input: Example input\n- Output: Expected output",
		"Format: structured",
		"```\n## Output Template\n{content}\n```",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	org, err := ConvertPSMLToText(d, FormatOrg)
	if err != nil {
		t.Fatalf("org: %v", err)
	}
	if !strings.Contains(org, "** Role") || !strings.Contains(org, "#+BEGIN_SRC\n## Output Template") {
		t.Fatalf("org output unexpected:\n%s", org)
	}
	if _, err := ConvertPSMLToText(d, TextFormat("rst")); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestMarkdownRoundTripKeepsSections(t *testing.T) {
	f, _ := FixtureByID("creative-writing")
	d, err := LoadFixture(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	md, err := ConvertPSMLToText(d, FormatMarkdown)
	if err != nil {
		t.Fatalf("to markdown: %v", err)
	}
	back, err := ConvertTextToPSML(md, FormatMarkdown)
	if err != nil {
		t.Fatalf("from markdown: %v", err)
	}
	counts := map[ElementKind]int{}
	back.Walk(func(n Node, _ int) bool {
		counts[n.Kind]++
		return true
	})
	if counts[KindRole] != 1 || counts[KindTask] != 1 || counts[KindRule] != 2 {
		t.Fatalf("round trip lost sections: %v\n%s", counts, md)
	}
}

func TestSplitRulePriority(t *testing.T) {
	cases := map[string][2]string{
		"MUST: be kind":     {"must", "be kind"},
		"may: skip":         {"may", "skip"},
		"note: not a level": {"should", "note: not a level"},
		"plain":             {"should", "plain"},
	}
	for in, want := range cases {
		p, text := splitRulePriority(in)
		if p != want[0] || text != want[1] {
			t.Fatalf("splitRulePriority(%q) = %q, %q", in, p, text)
		}
	}
}
