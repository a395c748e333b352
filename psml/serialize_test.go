package psml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSerializeCanonicalForm(t *testing.T) {
	d := NewDocument()
	mustAdd(t, d, KindRole, RootID, Attr{Name: "tone", Value: "warm"}, Attr{Name: ContentAttr, Value: "Be helpful"})
	task := mustAdd(t, d, KindTask, RootID)
	mustAdd(t, d, KindDescription, task, Attr{Name: ContentAttr, Value: "x"})
	mustAdd(t, d, KindObjectives, task)

	want := `<?xml version="1.0" encoding="UTF-8"?>
<prompt version="1.0">
  <role tone="warm">Be helpful</role>
  <task>
    <description>x</description>
    <objectives></objectives>
  </task>
</prompt>`
	if got := Serialize(d); got != want {
		t.Fatalf("unexpected serialization:\n%s\nwant:\n%s", got, want)
	}
}

func TestSerializeEmptyDocument(t *testing.T) {
	want := DocumentHeader + "\n" + `<prompt version="1.0"></prompt>`
	if got := Serialize(NewDocument()); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSerializeEscapes(t *testing.T) {
	d := NewDocument()
	mustAdd(t, d, KindRole, RootID, Attr{Name: "tone", Value: `a "b" & c`}, Attr{Name: ContentAttr, Value: "x < y && AI's"})
	out := Serialize(d)
	if strings.Contains(out, "x < y") || strings.Contains(out, `"b"`) {
		t.Fatalf("markup not escaped:\n%s", out)
	}
	root, err := ParseString(out)
	if err != nil {
		t.Fatalf("escaped output does not parse: %v", err)
	}
	role := root.Children[0]
	if role.Text != "x < y && AI's" {
		t.Fatalf("text did not survive: %q", role.Text)
	}
	if v, _ := role.Attr("tone"); v != `a "b" & c` {
		t.Fatalf("attribute did not survive: %q", v)
	}
}

func TestSerializeRoundTripHasNoStructuralErrors(t *testing.T) {
	docs := map[string]*Document{}
	for _, f := range Catalog() {
		d, err := LoadFixture(f)
		if err != nil {
			t.Fatalf("load %s: %v", f.ID, err)
		}
		docs[f.ID] = d
	}
	built, err := NewBuilder().
		Root(Attr{Name: "model", Value: "gpt-4o"}).
		Role("Reviewer", Attr{Name: "expertise", Value: "expert"}).
		Task(Attr{Name: "id", Value: "t1"}, Attr{Name: "priority", Value: "high"}).
		Description("Review").
		Steps(true).Step("1", "Read").Step("2", "Comment").Leave().
		Enter(KindSubtasks).Task().Description("Nested").Leave().Leave().
		Leave().
		Enter(KindRules).Rule("must", "Be kind").Leave().
		Enter(KindExamples).Example("in", "out", Attr{Name: "type", Value: "positive"}).Leave().
		Enter(KindOutput, Attr{Name: "format", Value: "json"}).
		Enter(KindField, Attr{Name: "name", Value: "summary"}, Attr{Name: "type", Value: "string"}).Leave().
		Leave().
		Enter(KindCondition, Attr{Name: "if", Value: "mode"}, Attr{Name: "equals", Value: "fast"}).
		Add(KindInclude, "short answers").
		Leave().
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	docs["built"] = built

	for name, d := range docs {
		report := Validate(Serialize(d))
		for _, cat := range []Category{CategorySyntax, CategoryStructure, CategoryAttribute, CategoryValue} {
			if n := report.Count(cat); n != 0 {
				t.Fatalf("%s: %d %s errors after round trip: %v", name, n, cat, report.FormatErrors())
			}
		}
		reparsed, err := ParseDocument(Serialize(d))
		if err != nil {
			t.Fatalf("%s: reload: %v", name, err)
		}
		if Serialize(reparsed) != Serialize(d) {
			t.Fatalf("%s: canonical form not stable:\n%s\nvs\n%s", name, Serialize(reparsed), Serialize(d))
		}
	}
}

func TestDumpFile(t *testing.T) {
	d := NewDocument()
	mustAdd(t, d, KindRole, RootID, Attr{Name: ContentAttr, Value: "r"})
	path := filepath.Join(t.TempDir(), "prompt.psml")
	if err := d.DumpFile(path); err != nil {
		t.Fatalf("dump: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != Serialize(d) {
		t.Fatalf("file content mismatch:\n%s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}

func TestDumpFileRemovesTempOnFailure(t *testing.T) {
	d := NewDocument()
	path := filepath.Join(t.TempDir(), "prompt.psml")
	// A non-empty directory at the target makes the final rename fail.
	if err := os.MkdirAll(filepath.Join(path, "keep"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := d.DumpFile(path); err == nil {
		t.Fatalf("expected rename over a directory to fail")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
}
