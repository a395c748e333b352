package psml

import (
	"strconv"
	"strings"
)

// Format enumerates chat-message conversion targets.
type Format string

const (
	FormatMessageDict Format = "message_dict"
	FormatDict        Format = "dict"
	FormatOpenAIChat  Format = "openai_chat"
)

// ConvertOptions holds knobs for conversion.
type ConvertOptions struct {
	// SkipExamples drops the few-shot turns built from <example> elements.
	SkipExamples bool
	// Model overrides the model recorded on the prompt root.
	Model string
}

// Convert turns a Document into chat messages: one system message rendered from the
// prompt, then a human/assistant pair per example.
func Convert(d *Document, format Format, opts ConvertOptions) (any, error) {
	return convertTree(d.Tree(), format, opts)
}

// ConvertString parses PSML text and converts it in one step.
func ConvertString(body string, format Format, opts ConvertOptions) (any, error) {
	root, err := ParseString(body)
	if err != nil {
		return nil, err
	}
	return convertTree(root, format, opts)
}

func convertTree(root *Element, format Format, opts ConvertOptions) (any, error) {
	switch format {
	case FormatMessageDict:
		return convertMessageDict(root, opts), nil
	case FormatDict:
		return convertDict(root, opts), nil
	case FormatOpenAIChat:
		return convertOpenAIChat(root, opts), nil
	default:
		return nil, ErrNotImplemented
	}
}

type messageDict struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

type turn struct {
	role, content string
}

// turns builds the neutral message sequence all formats share.
func turns(root *Element, opts ConvertOptions) []turn {
	var out []turn
	if system := renderMarkdown(collectSections(root, false)); system != "" {
		out = append(out, turn{"system", system})
	}
	if opts.SkipExamples {
		return out
	}
	root.Walk(func(el *Element, _ int) bool {
		if el.Name != string(KindExample) {
			return true
		}
		for _, c := range el.Children {
			if !c.HasText() {
				continue
			}
			switch ElementKind(c.Name) {
			case KindInput:
				out = append(out, turn{"human", strings.TrimSpace(c.Text)})
			case KindOutput:
				out = append(out, turn{"assistant", strings.TrimSpace(c.Text)})
			}
		}
		return false
	})
	return out
}

func convertMessageDict(root *Element, opts ConvertOptions) []messageDict {
	var msgs []messageDict
	for _, t := range turns(root, opts) {
		msgs = append(msgs, messageDict{Speaker: roleToSpeaker(t.role), Content: t.content})
	}
	return msgs
}

type dictOutput struct {
	Messages []messageDict  `json:"messages"`
	Schema   any            `json:"schema,omitempty"`
	Runtime  map[string]any `json:"runtime,omitempty"`
}

func convertDict(root *Element, opts ConvertOptions) dictOutput {
	out := dictOutput{Messages: convertMessageDict(root, opts)}
	if schema := outputSchema(root); schema != nil {
		out.Schema = schema
	}
	out.Runtime = collectRuntime(root, opts)
	return out
}

func convertOpenAIChat(root *Element, opts ConvertOptions) map[string]any {
	result := map[string]any{}
	var messages []map[string]any
	for _, t := range turns(root, opts) {
		messages = append(messages, map[string]any{
			"role":    roleToOpenAI(t.role),
			"content": t.content,
		})
	}
	result["messages"] = messages
	if out := findChild(root, KindOutput); out != nil {
		if format, _ := out.Attr("format"); format == "json" {
			if schema := outputSchema(root); schema != nil {
				mode, _ := out.Attr("schema")
				result["response_format"] = map[string]any{
					"type": "json_schema",
					"json_schema": map[string]any{
						"name":   "output",
						"schema": schema,
						"strict": mode != "flexible",
					},
				}
			} else {
				result["response_format"] = map[string]any{"type": "json_object"}
			}
		}
	}
	if model, ok := collectRuntime(root, opts)["model"]; ok {
		result["model"] = model
	}
	return result
}

func collectRuntime(root *Element, opts ConvertOptions) map[string]any {
	rt := make(map[string]any)
	for _, a := range root.Attrs {
		if a.Name == "version" || a.Value == "" {
			continue
		}
		rt[a.Name] = a.Value
	}
	if opts.Model != "" {
		rt["model"] = opts.Model
	}
	if len(rt) == 0 {
		return nil
	}
	return rt
}

// outputSchema derives a JSON schema from the <field> elements of the top-level output.
func outputSchema(root *Element) map[string]any {
	out := findChild(root, KindOutput)
	if out == nil {
		return nil
	}
	props, required := fieldProperties(out)
	if len(props) == 0 {
		return nil
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func fieldProperties(parent *Element) (map[string]any, []string) {
	props := map[string]any{}
	var required []string
	for _, f := range parent.Children {
		if f.Name != string(KindField) {
			continue
		}
		name, _ := f.Attr("name")
		if name == "" {
			continue
		}
		typ, _ := f.Attr("type")
		prop := map[string]any{"type": typ}
		if desc, ok := f.Attr("description"); ok && desc != "" {
			prop["description"] = desc
		}
		for _, key := range []string{"minLength", "maxLength"} {
			if v, ok := f.Attr(key); ok {
				if n, err := strconv.Atoi(v); err == nil {
					prop[key] = n
				}
			}
		}
		if item := findChild(f, KindItem); item != nil {
			items := map[string]any{}
			if it, ok := item.Attr("type"); ok {
				items["type"] = it
			}
			if nested, req := fieldProperties(item); len(nested) > 0 {
				items["properties"] = nested
				if len(req) > 0 {
					items["required"] = req
				}
			}
			prop["items"] = items
		}
		if req, _ := f.Attr("required"); req == "true" {
			required = append(required, name)
		}
		props[name] = prop
	}
	return props, required
}

func findChild(el *Element, kind ElementKind) *Element {
	for _, c := range el.Children {
		if c.Name == string(kind) {
			return c
		}
	}
	return nil
}

func roleToSpeaker(role string) string {
	switch role {
	case "assistant":
		return "ai"
	case "system":
		return "system"
	default:
		return "human"
	}
}

func roleToOpenAI(role string) string {
	switch role {
	case "assistant":
		return "assistant"
	case "system":
		return "system"
	default:
		return "user"
	}
}
