package psml

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	f, _ := FixtureByID("code-review")
	d, err := LoadFixture(f)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	data, err := json.Marshal(d.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if Serialize(restored) != Serialize(d) {
		t.Fatalf("restored document differs:\n%s\nvs\n%s", Serialize(restored), Serialize(d))
	}
	if diff := cmp.Diff(d.Snapshot(), restored.Snapshot()); diff != "" {
		t.Fatalf("snapshot changed across restore (-want +got):\n%s", diff)
	}

	a, _ := d.AddNode(KindRole, RootID)
	b, _ := restored.AddNode(KindRole, RootID)
	if a != b {
		t.Fatalf("id counter not preserved: %s vs %s", a, b)
	}
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	base := func() Snapshot {
		d := NewDocument()
		task := mustAdd(t, d, KindTask, RootID)
		mustAdd(t, d, KindDescription, task, Attr{Name: ContentAttr, Value: "x"})
		return d.Snapshot()
	}

	cases := map[string]func(s *Snapshot){
		"empty":         func(s *Snapshot) { s.Nodes = nil },
		"wrong version": func(s *Snapshot) { s.SchemaVersion = "2.0" },
		"unknown kind":  func(s *Snapshot) { s.Nodes[2].Kind = "paragraph" },
		"duplicate id":  func(s *Snapshot) { s.Nodes[2].ID = s.Nodes[1].ID },
		"no root":       func(s *Snapshot) { s.Nodes[0].ID = "top" },
		"wrong parent":  func(s *Snapshot) { s.Nodes[2].Parent = RootID },
		"illegal child": func(s *Snapshot) { s.Nodes[1].Kind = KindRole },
		"dangling child": func(s *Snapshot) {
			s.Nodes[1].Children = append(s.Nodes[1].Children, "ghost-9")
		},
		"orphan": func(s *Snapshot) {
			s.Nodes = append(s.Nodes, Node{ID: "role-9", Kind: KindRole, Parent: RootID})
		},
	}
	attrCases := map[string]func(s *Snapshot){
		"enum value":         func(s *Snapshot) { s.Nodes[0].Attrs = []Attr{{Name: "version", Value: "9.9"}} },
		"missing required":   func(s *Snapshot) { s.Nodes[0].Attrs = nil },
		"unknown attribute":  func(s *Snapshot) { s.Nodes[1].Attrs = []Attr{{Name: "bogus", Value: "1"}} },
		"content on task":    func(s *Snapshot) { s.Nodes[1].Attrs = []Attr{{Name: ContentAttr, Value: "x"}} },
		"repeated attribute": func(s *Snapshot) { s.Nodes[1].Attrs = []Attr{{Name: "id", Value: "a"}, {Name: "id", Value: "b"}} },
		"duplicate identifier": func(s *Snapshot) {
			s.Nodes[1].Attrs = []Attr{{Name: "id", Value: "d"}}
			s.Nodes[0].Children = append(s.Nodes[0].Children, "task-9")
			s.Nodes = append(s.Nodes, Node{ID: "task-9", Kind: KindTask, Parent: RootID, Attrs: []Attr{{Name: "id", Value: "d"}}})
		},
	}
	for name, mutate := range attrCases {
		s := base()
		mutate(&s)
		_, err := Restore(s)
		if !errors.Is(err, ErrCorruptSnapshot) || !errors.Is(err, ErrInvalidAttribute) {
			t.Fatalf("%s: expected ErrCorruptSnapshot and ErrInvalidAttribute, got %v", name, err)
		}
	}
	for name, mutate := range cases {
		s := base()
		mutate(&s)
		if _, err := Restore(s); !errors.Is(err, ErrCorruptSnapshot) {
			t.Fatalf("%s: expected ErrCorruptSnapshot, got %v", name, err)
		}
	}

	s := base()
	s.Nodes[2].Kind = "paragraph"
	if _, err := Restore(s); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind in chain, got %v", err)
	}
}
