package classdb

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	db := Default()
	if db != Default() {
		t.Error("expected Default to return the same database")
	}

	tests := []struct {
		id        int32
		name      string
		firstName string
	}{
		{GameObject, "GameObject", "m_Component"},
		{MonoBehaviour, "MonoBehaviour", "m_GameObject"},
		{MonoScript, "MonoScript", "m_Name"},
		{TextAsset, "TextAsset", "m_Name"},
		{AudioClip, "AudioClip", "m_Name"},
		{Texture2D, "Texture2D", "m_Name"},
		{Transform, "Transform", "m_GameObject"},
	}
	for _, tt := range tests {
		c, ok := db.Lookup(tt.id)
		if !ok {
			t.Errorf("class %d missing", tt.id)
			continue
		}
		if c.Name != tt.name || c.Tree.TypeName() != tt.name {
			t.Errorf("class %d: unexpected name %q (root %q)", tt.id, c.Name, c.Tree.TypeName())
		}
		if got := c.Tree.Nodes[1].Name; got != tt.firstName {
			t.Errorf("class %d: expected first field %s, got %s", tt.id, tt.firstName, got)
		}
	}

	if name := db.Name(999999); name != "" {
		t.Errorf("expected empty name for unknown class, got %q", name)
	}
	var nilDB *Database
	if _, ok := nilDB.Lookup(GameObject); ok {
		t.Error("expected lookup on nil database to fail")
	}
}

func TestSaveLoad(t *testing.T) {
	var buf bytes.Buffer
	if err := Default().Save(&buf); err != nil {
		t.Fatal(err)
	}
	db, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := Default().Classes()
	got := db.Classes()
	if len(got) != len(want) {
		t.Fatalf("expected %d classes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Name != want[i].Name {
			t.Errorf("class %d: got %d %s, want %d %s", i, got[i].ID, got[i].Name, want[i].ID, want[i].Name)
			continue
		}
		if len(got[i].Tree.Nodes) != len(want[i].Tree.Nodes) {
			t.Errorf("%s: node count mismatch", want[i].Name)
			continue
		}
		for j, n := range got[i].Tree.Nodes {
			if n != want[i].Tree.Nodes[j] {
				t.Errorf("%s: node %d mismatch: got %+v, want %+v", want[i].Name, j, n, want[i].Tree.Nodes[j])
			}
		}
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":      `{"classes": [`,
		"second root": `{"classes":[{"id":1,"fields":[{"level":0,"type":"A","name":"Base","size":-1},{"level":0,"type":"B","name":"Base","size":-1}]}]}`,
		"level jump":  `{"classes":[{"id":1,"fields":[{"level":0,"type":"A","name":"Base","size":-1},{"level":2,"type":"int","name":"x","size":4}]}]}`,
	}
	for name, doc := range tests {
		if _, err := Load(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestMerge(t *testing.T) {
	doc := `{"classes":[{"id":49,"fields":[{"level":0,"type":"CustomText","name":"Base","size":-1}]},{"id":7000,"name":"Extra","fields":[{"level":0,"type":"Extra","name":"Base","size":-1}]}]}`
	extra, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	merged := Default().Merge(extra)
	if name := merged.Name(TextAsset); name != "CustomText" {
		t.Errorf("expected replaced class name CustomText, got %q", name)
	}
	if name := merged.Name(7000); name != "Extra" {
		t.Errorf("expected added class Extra, got %q", name)
	}
	if name := Default().Name(TextAsset); name != "TextAsset" {
		t.Errorf("merge modified the default database")
	}
}

func TestSaveLoadYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Default().SaveYAML(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "classes:") {
		t.Fatalf("unexpected YAML document: %.40q", buf.String())
	}
	db, err := LoadYAML(&buf)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range Default().Classes() {
		got, ok := db.Lookup(want.ID)
		if !ok || got.Name != want.Name || len(got.Tree.Nodes) != len(want.Tree.Nodes) {
			t.Errorf("class %d (%s) not preserved", want.ID, want.Name)
			continue
		}
		for j, n := range got.Tree.Nodes {
			if n != want.Tree.Nodes[j] {
				t.Errorf("%s: node %d mismatch: got %+v, want %+v", want.Name, j, n, want.Tree.Nodes[j])
			}
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"classes.json": `{"classes":[{"id":7000,"fields":[{"level":0,"type":"Extra","name":"Base","size":-1}]}]}`,
		"classes.yml":  "classes:\n- id: 7000\n  fields:\n  - {level: 0, type: Extra, name: Base, size: -1}\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		db, err := LoadFile(path)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if got := db.Name(7000); got != "Extra" {
			t.Errorf("%s: got name %q", name, got)
		}
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
