package serialized

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/assetfile/assetfile/bundle"
	"github.com/assetfile/assetfile/classdb"
	"github.com/assetfile/assetfile/internal/binio"
	"github.com/assetfile/assetfile/typetree"
)

func record(t *testing.T, order binary.ByteOrder, fn func(w *binio.Writer)) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := binio.NewWriter(&buf, order)
	fn(w)
	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// sampleFile returns a file with a TextAsset, a MonoBehaviour and a
// MonoScript, along with their records.
func sampleFile(t *testing.T, version uint32, typeTrees, bigEndian bool) (*File, [][]byte) {
	t.Helper()
	db := classdb.Default()
	classes := []int32{classdb.TextAsset, classdb.MonoBehaviour, classdb.MonoScript}
	f := &File{
		Header:          Header{Version: version, BigEndian: bigEndian},
		UnityVersion:    "2019.4.31f1",
		Platform:        19,
		TypeTreeEnabled: typeTrees,
		ScriptTypes:     []ScriptType{{FileIndex: 0, PathID: 3}},
		Externals: []External{
			{GUID: [16]byte{1, 2, 3}, Type: 0, PathName: "archive:/CAB-1234/CAB-1234"},
			{PathName: "Library/unity default resources"},
		},
		UserInformation: "",
	}
	for i, id := range classes {
		c, _ := db.Lookup(id)
		typ := &Type{ClassID: id, ScriptTypeIndex: -1, Tree: c.Tree, Dependencies: []int32{}}
		if id == classdb.MonoBehaviour {
			typ.ScriptTypeIndex = 0
			typ.ScriptID = [16]byte{0xaa, 0xbb}
		}
		typ.OldTypeHash[0] = byte(i + 1)
		f.Types = append(f.Types, typ)
	}
	if version >= versionRefTypes {
		f.RefTypes = []*Type{{ClassID: classdb.MonoBehaviour, ScriptTypeIndex: -1, ClassName: "Ref", Namespace: "Game", AssemblyName: "Assembly-CSharp.dll"}}
	}
	for i, id := range classes {
		obj := &Object{PathID: int64(i + 1), ClassID: id, ScriptTypeIndex: f.Types[i].ScriptTypeIndex}
		obj.TypeID = int32(i)
		if version < versionTypeIndex {
			obj.TypeID = id
		}
		f.Objects = append(f.Objects, obj)
	}

	order := f.Order()
	data := [][]byte{
		record(t, order, func(w *binio.Writer) {
			w.String("readme")
			w.Align(4)
			w.String("hello")
			w.Align(4)
		}),
		record(t, order, func(w *binio.Writer) {
			w.I32(0)
			w.I64(0)
			w.U8(1)
			w.Align(4)
			w.I32(0)
			w.I64(3)
			w.String("")
			w.Align(4)
		}),
		record(t, order, func(w *binio.Writer) {
			w.String("PlayerController")
			w.Align(4)
			w.I32(0)
			w.Zero(16)
			w.String("PlayerController")
			w.Align(4)
			w.String("Game")
			w.Align(4)
			w.String("Assembly-CSharp.dll")
			w.Align(4)
		}),
	}
	return f, data
}

func encodeFile(t *testing.T, f *File, data [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := (Encoder{}).Encode(&buf, f, data); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func decodeFile(t *testing.T, b []byte, path string) *File {
	t.Helper()
	f, warn, err := Decoder{}.Decode(bytes.NewReader(b), int64(len(b)), path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if warn != nil {
		t.Errorf("unexpected warnings: %v", warn)
	}
	return f
}

func TestRoundTrip(t *testing.T) {
	for _, version := range []uint32{12, 14, 15, 16, 17, 19, 20, 21, 22} {
		for _, bigEndian := range []bool{false, true} {
			t.Run(fmt.Sprintf("v%d-be%t", version, bigEndian), func(t *testing.T) {
				src, data := sampleFile(t, version, true, bigEndian)
				b := encodeFile(t, src, data)
				f := decodeFile(t, b, "level0")

				if f.Header.Version != version || f.Header.BigEndian != bigEndian {
					t.Errorf("unexpected header %+v", f.Header)
				}
				if f.Header.FileSize != int64(len(b)) {
					t.Errorf("file size %d, data has %d bytes", f.Header.FileSize, len(b))
				}
				if f.Header.DataOffset%16 != 0 {
					t.Errorf("data offset %d not aligned", f.Header.DataOffset)
				}
				if f.UnityVersion != src.UnityVersion || f.Platform != src.Platform {
					t.Errorf("unexpected metadata %q %d", f.UnityVersion, f.Platform)
				}
				if len(f.Types) != 3 {
					t.Fatalf("expected 3 types, got %d", len(f.Types))
				}
				for i, typ := range f.Types {
					if typ.Tree.TypeName() != src.Types[i].Tree.TypeName() || len(typ.Tree.Nodes) != len(src.Types[i].Tree.Nodes) {
						t.Errorf("type %d: tree mismatch", i)
					}
				}
				if version >= versionTypeIndex && f.Types[1].ScriptID != src.Types[1].ScriptID {
					t.Errorf("script ID not preserved")
				}
				if version >= versionRefTypes && len(f.RefTypes) != 1 {
					t.Errorf("expected 1 ref type, got %d", len(f.RefTypes))
				}
				if version >= versionDependencies && f.RefTypes[0].AssemblyName != "Assembly-CSharp.dll" {
					t.Errorf("unexpected ref type %+v", f.RefTypes[0])
				}
				if len(f.Externals) != 2 || f.Externals[0].PathName != src.Externals[0].PathName || f.Externals[0].GUID != src.Externals[0].GUID {
					t.Errorf("unexpected externals %+v", f.Externals)
				}
				if len(f.ScriptTypes) != 1 || f.ScriptTypes[0].PathID != 3 {
					t.Errorf("unexpected script types %+v", f.ScriptTypes)
				}

				if len(f.Objects) != 3 {
					t.Fatalf("expected 3 objects, got %d", len(f.Objects))
				}
				for i, obj := range f.Objects {
					want := src.Objects[i]
					if obj.PathID != want.PathID || obj.ClassID != want.ClassID {
						t.Errorf("object %d: got %d/%d, want %d/%d", i, obj.PathID, obj.ClassID, want.PathID, want.ClassID)
					}
					if obj.ByteStart%objectAlignment != 0 {
						t.Errorf("object %d: start %d not aligned", i, obj.ByteStart)
					}
					if f.TypeIndex(obj) != i {
						t.Errorf("object %d: type index %d", i, f.TypeIndex(obj))
					}
					got := make([]byte, obj.ByteSize)
					if _, err := f.Reader(obj).ReadAt(got, 0); err != nil {
						t.Fatalf("object %d: %v", i, err)
					}
					if !bytes.Equal(got, data[i]) {
						t.Errorf("object %d: record mismatch", i)
					}
				}
				if obj, ok := f.Object(2); !ok || obj.ClassID != classdb.MonoBehaviour {
					t.Error("lookup by path ID failed")
				}
				if _, ok := f.Object(99); ok {
					t.Error("unexpected object 99")
				}
			})
		}
	}
}

func TestLargePathIDs(t *testing.T) {
	f, data := sampleFile(t, 19, true, false)
	f.Objects[0].PathID = -8152813957322151492
	f.Objects[1].PathID = 1 << 40
	g := decodeFile(t, encodeFile(t, f, data), "CAB-1")
	if _, ok := g.Object(-8152813957322151492); !ok {
		t.Error("negative path ID lost")
	}
	if _, ok := g.Object(1 << 40); !ok {
		t.Error("large path ID lost")
	}
}

func TestObjectConcurrent(t *testing.T) {
	f := &File{Header: Header{Version: 21}}
	for i := int64(1); i <= 64; i++ {
		f.Objects = append(f.Objects, &Object{File: f, PathID: i})
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := int64(1); i <= 64; i++ {
				if obj, ok := f.Object(i); !ok || obj.PathID != i {
					t.Errorf("object %d not found", i)
					return
				}
			}
		}()
	}
	wg.Wait()
	if _, ok := f.Object(65); ok {
		t.Error("unexpected object 65")
	}
}

func TestDescriptor(t *testing.T) {
	t.Run("TypeTree", func(t *testing.T) {
		src, data := sampleFile(t, 19, true, false)
		custom := typetree.NewBuilder("TextAsset").String("m_Name").String("m_Script").String("m_PathName").Tree()
		src.Types[0].Tree = custom
		f := decodeFile(t, encodeFile(t, src, data), "level0")
		d, err := f.Descriptor(f.Objects[0])
		if err != nil {
			t.Fatal(err)
		}
		if d.Source != SourceTypeTree || d.Name != "TextAsset" || len(d.Tree.Nodes) != len(custom.Nodes) {
			t.Errorf("unexpected descriptor %s %q (%d nodes)", d.Source, d.Name, len(d.Tree.Nodes))
		}
		if d.TypeIndex != 0 {
			t.Errorf("unexpected type index %d", d.TypeIndex)
		}
	})
	t.Run("ClassDB", func(t *testing.T) {
		src, data := sampleFile(t, 17, false, false)
		f := decodeFile(t, encodeFile(t, src, data), "level0")
		if f.TypeTreeEnabled {
			t.Fatal("expected type trees to be disabled")
		}
		for i, obj := range f.Objects {
			d, err := f.Descriptor(obj)
			if err != nil {
				t.Fatalf("object %d: %v", i, err)
			}
			if d.Source != SourceClassDB {
				t.Errorf("object %d: unexpected source %s", i, d.Source)
			}
			want, _ := classdb.Default().Lookup(obj.ClassID)
			if d.Name != want.Name {
				t.Errorf("object %d: unexpected name %q", i, d.Name)
			}
		}
	})
	t.Run("EmptyTree", func(t *testing.T) {
		src, data := sampleFile(t, 19, true, false)
		src.Types[0].Tree = typetree.Tree{}
		f := decodeFile(t, encodeFile(t, src, data), "level0")
		d, err := f.Descriptor(f.Objects[0])
		if err != nil {
			t.Fatal(err)
		}
		if d.Source != SourceClassDB {
			t.Errorf("unexpected source %s", d.Source)
		}
	})
	t.Run("Unknown", func(t *testing.T) {
		src, data := sampleFile(t, 19, false, false)
		src.Types[0].ClassID = 9999
		f := decodeFile(t, encodeFile(t, src, data), "level0")
		if _, err := f.Descriptor(f.Objects[0]); !errors.Is(err, ErrNoDescriptor) {
			t.Errorf("expected ErrNoDescriptor, got %v", err)
		}
	})
}

func TestDecodeInvalid(t *testing.T) {
	src, data := sampleFile(t, 19, true, false)
	b := encodeFile(t, src, data)

	bad := append([]byte(nil), b...)
	binary.BigEndian.PutUint32(bad[8:], 99)
	var verr ErrUnrecognizedVersion
	if _, _, err := (Decoder{}).Decode(bytes.NewReader(bad), int64(len(bad)), ""); !errors.As(err, &verr) {
		t.Errorf("expected ErrUnrecognizedVersion, got %v", err)
	}

	bad = append([]byte(nil), b...)
	binary.BigEndian.PutUint32(bad[12:], uint32(len(b)+100))
	if _, _, err := (Decoder{}).Decode(bytes.NewReader(bad), int64(len(bad)), ""); err == nil {
		t.Error("expected error for data offset past the end")
	}

	n := src.Header.Size() + int64(src.Header.MetadataSize) - 1
	if _, _, err := (Decoder{}).Decode(bytes.NewReader(b[:n]), n, ""); err == nil {
		t.Error("expected error for truncated metadata")
	}

	if _, _, err := (Decoder{}).Decode(nil, 0, ""); err == nil {
		t.Error("expected error for nil reader")
	}

	cut := int64(len(b)) - 4
	_, warn, err := Decoder{}.Decode(bytes.NewReader(b[:cut]), cut, "")
	if err != nil {
		t.Fatalf("truncated data region: %v", err)
	}
	if warn == nil {
		t.Error("expected warnings for truncated data region")
	}
}

func TestUnknownTypeIndex(t *testing.T) {
	src, data := sampleFile(t, 19, true, false)
	src.Objects[2].TypeID = 7
	b := encodeFile(t, src, data)
	if _, _, err := (Decoder{}).Decode(bytes.NewReader(b), int64(len(b)), ""); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeEntry(t *testing.T) {
	src, data := sampleFile(t, 21, true, false)
	b := encodeFile(t, src, data)
	var buf bytes.Buffer
	err := bundle.Writer{Version: 7, Compression: bundle.LZ4}.Encode(&buf, []bundle.File{
		{Name: "CAB-1234", Data: b, Flags: bundle.EntrySerialized},
		{Name: "CAB-1234.resS", Data: []byte("stream")},
	})
	if err != nil {
		t.Fatal(err)
	}
	bnd, err := bundle.Decode(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	bnd.Path = filepath.Join("data", "level.bundle")

	f, warn, err := Decoder{}.DecodeEntry(bnd, "CAB-1234")
	if err != nil || warn != nil {
		t.Fatalf("decode entry: %v %v", err, warn)
	}
	if f.Bundle != bnd || f.Name() != "CAB-1234" {
		t.Errorf("unexpected file %q", f.Path)
	}
	if want := filepath.Join("data", "level.bundle", "CAB-1234"); f.FullPath() != want {
		t.Errorf("full path %q, want %q", f.FullPath(), want)
	}
	got := make([]byte, f.Objects[0].ByteSize)
	if _, err := f.Reader(f.Objects[0]).ReadAt(got, 0); err != nil || !bytes.Equal(got, data[0]) {
		t.Errorf("unexpected record %q (%v)", got, err)
	}
	if _, _, err := (Decoder{}).DecodeEntry(bnd, "CAB-9999"); err == nil {
		t.Error("expected error for missing entry")
	}
}

func TestEncodeMismatch(t *testing.T) {
	src, data := sampleFile(t, 19, true, false)
	if err := (Encoder{}).Encode(&bytes.Buffer{}, src, data[:2]); err == nil {
		t.Error("expected error for missing record")
	}
	src.Header.Version = 9
	if err := (Encoder{}).Encode(&bytes.Buffer{}, src, data); err == nil {
		t.Error("expected error for unsupported version")
	}
}

func TestDump(t *testing.T) {
	src, data := sampleFile(t, 19, true, false)
	src.UserInformation = "built\tby ci"
	b := encodeFile(t, src, data)
	var out strings.Builder
	warn, err := Decoder{}.Dump(&out, bytes.NewReader(b), int64(len(b)))
	if err != nil || warn != nil {
		t.Fatalf("dump: %v %v", err, warn)
	}
	for _, want := range []string{
		"Version: 19\n",
		"Objects: (count:3) {",
		"2: type:1 class:114 (MonoBehaviour)",
		`PathName: (len:26) "archive:/CAB-1234/CAB-1234"`,
		"string m_ClassName",
		"ScriptID: aabb",
		"UserInformation: (len:11)\n\t| 62 75 69 6c 74 09 62 79  20 63 69",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dump lacks %q", want)
		}
	}
}
