package names

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/assetfile/assetfile/classdb"
	"github.com/assetfile/assetfile/internal/binio"
	"github.com/assetfile/assetfile/serialized"
)

type object struct {
	pathID  int64
	classID int32
	data    []byte
}

func record(t *testing.T, fn func(w *binio.Writer)) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := binio.NewWriter(&buf, binary.LittleEndian)
	fn(w)
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func named(t *testing.T, name string) []byte {
	return record(t, func(w *binio.Writer) {
		w.String(name)
		w.Align(4)
		w.String("body")
		w.Align(4)
	})
}

func gameObject(t *testing.T, components int, width int64, name string) []byte {
	return record(t, func(w *binio.Writer) {
		w.I32(int32(components))
		for i := 0; i < components; i++ {
			if width == 16 {
				w.I32(4)
			}
			w.I32(0)
			w.I64(int64(100 + i))
		}
		w.U32(5) // m_Layer
		w.String(name)
		w.Align(4)
		w.U16(0)
		w.U8(1)
		w.Align(4)
	})
}

func monoBehaviour(t *testing.T, scriptFile int32, scriptPath int64, name string) []byte {
	return record(t, func(w *binio.Writer) {
		w.I32(0)
		w.I64(1)
		w.U8(1)
		w.Align(4)
		w.I32(scriptFile)
		w.I64(scriptPath)
		w.String(name)
		w.Align(4)
	})
}

func monoScript(t *testing.T, class string) []byte {
	return record(t, func(w *binio.Writer) {
		w.String(class + ".cs")
		w.Align(4)
		w.I32(0)
		w.Zero(16)
		w.String(class)
		w.Align(4)
		w.String("")
		w.Align(4)
		w.String("Assembly-CSharp.dll")
		w.Align(4)
	})
}

// buildFile encodes and decodes a file holding objs, with type trees taken
// from the default class database.
func buildFile(t *testing.T, version uint32, path string, objs []object, externals ...serialized.External) *serialized.File {
	t.Helper()
	src := &serialized.File{
		Header:          serialized.Header{Version: version},
		UnityVersion:    "2020.3.48f1",
		TypeTreeEnabled: true,
		Externals:       externals,
	}
	types := map[int32]int{}
	var data [][]byte
	for _, o := range objs {
		ti, ok := types[o.classID]
		if !ok {
			ti = len(src.Types)
			types[o.classID] = ti
			typ := &serialized.Type{ClassID: o.classID, ScriptTypeIndex: -1}
			if c, ok := classdb.Default().Lookup(o.classID); ok {
				typ.Tree = c.Tree
			}
			src.Types = append(src.Types, typ)
		}
		obj := &serialized.Object{PathID: o.pathID, ClassID: o.classID, TypeID: int32(ti), ScriptTypeIndex: -1}
		if version < 16 {
			obj.TypeID = o.classID
		}
		src.Objects = append(src.Objects, obj)
		data = append(data, o.data)
	}
	var buf bytes.Buffer
	if err := (serialized.Encoder{}).Encode(&buf, src, data); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, _, err := serialized.Decoder{}.Decode(bytes.NewReader(buf.Bytes()), int64(buf.Len()), path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

func lookup(t *testing.T, f *serialized.File, pathID int64) *serialized.Object {
	t.Helper()
	obj, ok := f.Object(pathID)
	if !ok {
		t.Fatalf("object %d missing", pathID)
	}
	return obj
}

type fileSet map[string]*serialized.File

func (s fileSet) Lookup(from *serialized.File, fileID int32) (*serialized.File, bool) {
	if fileID == 0 {
		return from, true
	}
	if int(fileID) > len(from.Externals) {
		return nil, false
	}
	f, ok := s[from.Externals[fileID-1].PathName]
	return f, ok
}

func TestResolve(t *testing.T) {
	scripts := buildFile(t, 0x12, "scripts", []object{
		{1, classdb.MonoScript, monoScript(t, "EnemyAI")},
	})
	f := buildFile(t, 0x12, "level0", []object{
		{1, classdb.TextAsset, named(t, "readme")},
		{2, classdb.TextAsset, named(t, "")},
		{3, classdb.GameObject, gameObject(t, 3, 12, "Player")},
		{4, classdb.MonoBehaviour, monoBehaviour(t, 0, 6, "Spawner")},
		{5, classdb.MonoBehaviour, monoBehaviour(t, 0, 6, "")},
		{6, classdb.MonoScript, monoScript(t, "PlayerController")},
		{7, classdb.MonoBehaviour, monoBehaviour(t, 1, 1, "")},
		{8, classdb.MonoBehaviour, monoBehaviour(t, 0, 0, "")},
		{9, classdb.Transform, record(t, func(w *binio.Writer) { w.Zero(72) })},
		{10, 9999, []byte{1, 2, 3, 4}},
		{11, classdb.TextAsset, record(t, func(w *binio.Writer) { w.I32(100); w.I32(0) })},
		{12, classdb.GameObject, gameObject(t, 2, 12, "")},
	}, serialized.External{PathName: "scripts"})
	r := NewResolver(fileSet{"scripts": scripts}, 0)

	tests := []struct {
		pathID    int64
		prefix    bool
		name, typ string
		degraded  bool
	}{
		{1, false, "readme", "TextAsset", false},
		{2, false, "TextAsset #2", "TextAsset", false},
		{3, false, "Player", "GameObject", false},
		{3, true, "GameObject Player", "GameObject", false},
		{4, false, "Spawner", "MonoBehaviour", false},
		{5, false, "PlayerController", "MonoBehaviour", false},
		{6, false, "PlayerController.cs", "MonoScript", false},
		{7, false, "EnemyAI", "MonoBehaviour", false},
		{8, false, "MonoBehaviour #8", "MonoBehaviour", true},
		{9, false, "Transform #9", "Transform", false},
		{10, false, "Unnamed asset #10", "0x0000270F", true},
		{11, false, "Unnamed asset #11", "TextAsset", true},
		{12, true, "GameObject #12", "GameObject", false},
	}
	for _, tt := range tests {
		res := r.Resolve(lookup(t, f, tt.pathID), tt.prefix)
		if res.Name != tt.name || res.Type != tt.typ {
			t.Errorf("object %d: got (%q, %q), want (%q, %q)", tt.pathID, res.Name, res.Type, tt.name, tt.typ)
		}
		if res.Degraded() != tt.degraded {
			t.Errorf("object %d: degraded %t, fault %v", tt.pathID, res.Degraded(), res.Fault)
		}
	}

	if res := r.Resolve(lookup(t, f, 11), false); !errors.Is(res.Fault, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", res.Fault)
	}
	if res := r.Resolve(lookup(t, f, 10), false); !errors.Is(res.Fault, serialized.ErrNoDescriptor) {
		t.Errorf("expected ErrNoDescriptor, got %v", res.Fault)
	}
	if res := r.Resolve(nil, false); res.Name != "Unnamed asset" || res.Type != "Unknown type" {
		t.Errorf("unexpected result for nil object %+v", res)
	}
}

func TestScriptFallbackWithoutFileSet(t *testing.T) {
	f := buildFile(t, 0x12, "level0", []object{
		{1, classdb.MonoBehaviour, monoBehaviour(t, 1, 1, "")},
		{2, classdb.MonoBehaviour, monoBehaviour(t, 0, 3, "")},
		{3, classdb.MonoScript, monoScript(t, "Door")},
	}, serialized.External{PathName: "scripts"})
	r := NewResolver(nil, 0)

	res := r.Resolve(lookup(t, f, 1), false)
	if res.Name != "MonoBehaviour #1" || !errors.Is(res.Fault, ErrNoFileSet) {
		t.Errorf("unexpected result %+v", res)
	}
	if res := r.Resolve(lookup(t, f, 2), false); res.Name != "Door" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestGameObjectComponentWidth(t *testing.T) {
	for _, tt := range []struct {
		version uint32
		width   int64
	}{
		{0x10, 16},
		{0x11, 12},
		{0x12, 12},
	} {
		data := gameObject(t, 3, tt.width, "Camera")
		if tt.version == 0x12 {
			// 4 + 3*12 + 4 bytes precede the name.
			if n := binary.LittleEndian.Uint32(data[44:]); n != uint32(len("Camera")) {
				t.Fatalf("fixture has name length %d at offset 44", n)
			}
		}
		f := buildFile(t, tt.version, "level0", []object{{1, classdb.GameObject, data}})
		r := NewResolver(nil, 16)
		if res := r.Resolve(lookup(t, f, 1), false); res.Name != "Camera" || res.Degraded() {
			t.Errorf("version %#x: unexpected result %+v", tt.version, res)
		}
	}

	// Component count past the end of the record.
	data := record(t, func(w *binio.Writer) { w.I32(1000); w.Zero(12) })
	f := buildFile(t, 0x12, "level0", []object{{1, classdb.GameObject, data}})
	res := NewResolver(nil, 0).Resolve(lookup(t, f, 1), false)
	if res.Name != "Unnamed asset #1" || !errors.Is(res.Fault, ErrTruncated) {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestPlan(t *testing.T) {
	f := buildFile(t, 0x12, "level0", []object{
		{1, classdb.TextAsset, named(t, "a")},
		{2, classdb.TextAsset, named(t, "b")},
		{3, classdb.GameObject, gameObject(t, 0, 12, "c")},
		{4, classdb.MonoBehaviour, monoBehaviour(t, 0, 0, "d")},
		{5, classdb.Transform, record(t, func(w *binio.Writer) { w.Zero(72) })},
	})
	r := NewResolver(nil, 2)
	want := map[int64]Kind{1: NamedField, 2: NamedField, 3: GameObject, 4: ScriptInstance, 5: Generic}
	for round := 0; round < 2; round++ {
		for id, kind := range want {
			got, _, err := r.Plan(lookup(t, f, id))
			if err != nil {
				t.Fatal(err)
			}
			if got != kind {
				t.Errorf("object %d: kind %s, want %s", id, got, kind)
			}
		}
	}
	if r.plans.Len() > 2 {
		t.Errorf("cache holds %d plans", r.plans.Len())
	}
}

func TestResolveConcurrent(t *testing.T) {
	var objs []object
	for i := int64(1); i <= 64; i++ {
		objs = append(objs, object{i, classdb.TextAsset, named(t, "asset")})
	}
	f := buildFile(t, 0x15, "level0", objs)
	r := NewResolver(nil, 0)

	var wg sync.WaitGroup
	errs := make(chan string, len(objs))
	for _, obj := range f.Objects {
		wg.Add(1)
		go func(obj *serialized.Object) {
			defer wg.Done()
			if res := r.Resolve(obj, true); res.Name != "asset" {
				errs <- res.Name
			}
		}(obj)
	}
	wg.Wait()
	close(errs)
	for name := range errs {
		t.Errorf("unexpected name %q", name)
	}
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		name, archive string
		pathID        int64
		ext, want     string
	}{
		{"Player", "level0", 12, "json", "Player-level0-12.json"},
		{"a/b:c", "CAB-1", -3, ".wav", "a_b_c-CAB-1--3.wav"},
		{"Door?", "shared*", 7, "", "Door_-shared_-7"},
	}
	for _, tt := range tests {
		if got := ExportFileName(tt.name, tt.archive, tt.pathID, tt.ext); got != tt.want {
			t.Errorf("ExportFileName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
