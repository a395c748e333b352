package psml

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTemplateText(t *testing.T) {
	for _, name := range []string{"", "minimal", "standard"} {
		text, err := TemplateText(name)
		if err != nil {
			t.Fatalf("TemplateText(%q): %v", name, err)
		}
		if !strings.HasPrefix(text, DocumentHeader) {
			t.Fatalf("%q template lacks header", name)
		}
		if r := Validate(text); !r.Valid {
			t.Fatalf("%q template invalid: %v", name, r.FormatErrors())
		}
	}
	if _, err := TemplateText("fancy"); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestCatalogFixturesLoadAndValidate(t *testing.T) {
	fixtures := Catalog()
	var ids []string
	for _, f := range fixtures {
		ids = append(ids, f.ID)
		d, err := LoadFixture(f)
		if err != nil {
			t.Fatalf("load %s: %v", f.ID, err)
		}
		if r := ValidateDocument(d); !r.Valid {
			t.Fatalf("%s invalid: %v", f.ID, r.FormatErrors())
		}
	}
	if diff := cmp.Diff([]string{"simple-task", "code-review", "creative-writing"}, ids); diff != "" {
		t.Fatalf("catalog ids (-want +got):\n%s", diff)
	}
}

func TestLoadFixtureAssignsIDsInDocumentOrder(t *testing.T) {
	f, ok := FixtureByID("simple-task")
	if !ok {
		t.Fatalf("simple-task missing")
	}
	d, err := LoadFixture(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var got []NodeID
	d.Walk(func(n Node, _ int) bool {
		got = append(got, n.ID)
		return true
	})
	want := []NodeID{RootID, "role-1", "task-2", "description-3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	if d.Content("description-3") != "Help the user with their request" {
		t.Fatalf("content = %q", d.Content("description-3"))
	}
}

func TestLoadFixtureReportsBadNodes(t *testing.T) {
	f := Fixture{ID: "broken", Nodes: []FixtureNode{{Kind: KindDescription}}}
	_, err := LoadFixture(f)
	if err == nil || !strings.Contains(err.Error(), "fixture broken") {
		t.Fatalf("expected wrapped fixture error, got %v", err)
	}
	if _, ok := FixtureByID("nope"); ok {
		t.Fatalf("unknown fixture found")
	}
}

func TestCatalogReturnsCopy(t *testing.T) {
	c := Catalog()
	c[0].ID = "mutated"
	if f, _ := FixtureByID("simple-task"); f.ID != "simple-task" {
		t.Fatalf("catalog mutated")
	}
}

func TestInspectHelpers(t *testing.T) {
	root, err := ParseString(StandardTemplate)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	counts := CountElements(root)
	for kind, want := range map[string]int{"prompt": 1, "objective": 2, "step": 2, "rule": 2, "criterion": 2, "example": 1} {
		if counts[kind] != want {
			t.Fatalf("count[%s] = %d, want %d", kind, counts[kind], want)
		}
	}
	text := ExtractPromptText(root)
	want := strings.Join([]string{
		"Define the AI's role and expertise here",
		"Provide background information",
		"Specify the domain",
		"Describe the main task",
		"First objective",
		"Second objective",
		"First step",
		"Second step",
		"Define constraints",
		"Mandatory rule",
		"Recommended rule",
	}, "\n")
	if text != want {
		t.Fatalf("prompt text:\n%s\nwant:\n%s", text, want)
	}
	if len(CountElements(nil)) != 0 || ExtractPromptText(nil) != "" {
		t.Fatalf("nil root not handled")
	}
}
