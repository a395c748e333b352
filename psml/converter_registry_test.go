package psml

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDefaultConverterRegistryList(t *testing.T) {
	got := map[string]bool{}
	for _, d := range DefaultConverterRegistry.List() {
		got[d.From+"->"+d.To] = true
	}
	for _, key := range []string{
		"psml->markdown", "psml->org", "markdown->psml", "org->psml",
		"psml->message_dict", "psml->dict", "psml->openai_chat",
		"psml->dot", "psml->snapshot", "snapshot->psml",
	} {
		if !got[key] {
			t.Fatalf("converter %s not registered; have %v", key, got)
		}
	}
}

func TestConverterRegistryRegister(t *testing.T) {
	reg := NewConverterRegistry()
	conv := basicConverter{from: "a", to: "b", fn: func(_ context.Context, input any, _ map[string]any) (any, error) {
		return strings.ToUpper(input.(string)), nil
	}}
	if err := reg.Register(conv); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(conv); !errors.Is(err, ErrConverterExists) {
		t.Fatalf("expected ErrConverterExists, got %v", err)
	}
	if err := reg.Register(nil); err == nil {
		t.Fatalf("nil converter accepted")
	}
	out, err := reg.Convert(context.Background(), "A", "B", "x", nil)
	if err != nil || out != "X" {
		t.Fatalf("convert = %v, %v", out, err)
	}
	if _, err := reg.Convert(context.Background(), "b", "a", "x", nil); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := reg.Convert(ctx, "a", "b", "x", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRegistryMarkdownToPSML(t *testing.T) {
	out, err := DefaultConverterRegistry.Convert(context.Background(), "markdown", "psml", "## Role\n\nHelper\n\n## Task\n\nDo it\n", nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	text := out.(string)
	if r := Validate(text); !r.Valid {
		t.Fatalf("converted text invalid: %v\n%s", r.FormatErrors(), text)
	}
	back, err := DefaultConverterRegistry.Convert(context.Background(), "psml", "markdown", text, nil)
	if err != nil {
		t.Fatalf("convert back: %v", err)
	}
	if !strings.Contains(back.(string), "## Role\n\nHelper") {
		t.Fatalf("unexpected markdown:\n%s", back)
	}
}

func TestRegistryChatFormats(t *testing.T) {
	out, err := DefaultConverterRegistry.Convert(context.Background(), "psml", "openai_chat", StandardTemplate, map[string]any{"model": "gpt-4o", "skip_examples": true})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	result := out.(map[string]any)
	if result["model"] != "gpt-4o" {
		t.Fatalf("model = %v", result["model"])
	}
	if msgs := result["messages"].([]map[string]any); len(msgs) != 1 {
		t.Fatalf("skip_examples ignored: %d messages", len(msgs))
	}
	if _, err := DefaultConverterRegistry.Convert(context.Background(), "psml", "message_dict", 42, nil); err == nil {
		t.Fatalf("expected input type error")
	}
}

func TestRegistrySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	snap, err := DefaultConverterRegistry.Convert(ctx, "psml", "snapshot", StandardTemplate, nil)
	if err != nil {
		t.Fatalf("to snapshot: %v", err)
	}
	data := snap.([]byte)
	text, err := DefaultConverterRegistry.Convert(ctx, "snapshot", "psml", data, nil)
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	d, _ := ParseDocument(StandardTemplate)
	if text.(string) != Serialize(d) {
		t.Fatalf("snapshot round trip changed the document:\n%s", text)
	}
	if _, err := DefaultConverterRegistry.Convert(ctx, "snapshot", "psml", `{"nodes":[]}`, nil); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
	}
}

func TestRegistryDot(t *testing.T) {
	d := NewDocument()
	mustAdd(t, d, KindRole, RootID)
	out, err := DefaultConverterRegistry.Convert(context.Background(), "psml", "dot", d, map[string]any{"rankdir": "LR"})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out.(string), `rankdir="LR";`) {
		t.Fatalf("rankdir missing:\n%s", out)
	}
}
