package serialized

import (
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/assetfile/assetfile/bundle"
	"github.com/assetfile/assetfile/classdb"
	"github.com/assetfile/assetfile/typetree"
)

// File is a decoded serialized file.
type File struct {
	// Path is the location of the file on disk, or the name of its entry
	// when it was loaded from a bundle.
	Path string
	// Bundle is the container the file was loaded from, or nil.
	Bundle *bundle.Bundle

	Header          Header
	UnityVersion    string
	Platform        int32
	TypeTreeEnabled bool
	Types           []*Type
	Objects         []*Object
	ScriptTypes     []ScriptType
	Externals       []External
	RefTypes        []*Type
	UserInformation string

	// ClassDB supplies layouts for types without a type tree.
	ClassDB *classdb.Database
	// Data holds the file's bytes, from the start of the header.
	Data io.ReaderAt

	indexMu sync.Mutex
	index   map[int64]*Object
}

// Type is an entry of the file's type list.
type Type struct {
	ClassID         int32
	IsStripped      bool
	ScriptTypeIndex int16
	ScriptID        [16]byte
	OldTypeHash     [16]byte
	Tree            typetree.Tree
	Dependencies    []int32

	// Set on ref types only.
	ClassName    string
	Namespace    string
	AssemblyName string
}

// Object locates one object record. Objects are created by the decoder and
// are not modified afterward.
type Object struct {
	File   *File
	PathID int64
	// ByteStart is the position of the record relative to the data region.
	ByteStart int64
	ByteSize  uint32
	// TypeID is the index of the object's entry in File.Types from version
	// 16, and the class ID before that. A negative class ID denotes a script
	// type.
	TypeID int32
	// ClassID is the built-in class of the object.
	ClassID int32
	// ScriptTypeIndex distinguishes script types sharing a class ID.
	ScriptTypeIndex int16
	Stripped        bool
}

// Offset returns the absolute position of the object's record in the file.
func (obj *Object) Offset() int64 {
	return obj.File.Header.DataOffset + obj.ByteStart
}

// ScriptType refers to a script object that defines a script type.
type ScriptType struct {
	FileIndex int32
	PathID    int64
}

// External refers to another serialized file by path.
type External struct {
	TempEmpty string
	GUID      [16]byte
	Type      int32
	PathName  string
}

// Order returns the byte order of the metadata and objects.
func (f *File) Order() binary.ByteOrder {
	if f.Header.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Name returns the file name of the file.
func (f *File) Name() string {
	return filepath.Base(filepath.FromSlash(f.Path))
}

// FullPath returns the path of the file on disk. Files loaded from a bundle
// are placed inside the bundle's path.
func (f *File) FullPath() string {
	if f.Bundle != nil {
		return filepath.Join(f.Bundle.Path, f.Name())
	}
	return f.Path
}

// Object returns the object with the given path ID. It is safe to call
// concurrently, including on a File that was built by hand.
func (f *File) Object(pathID int64) (*Object, bool) {
	f.indexMu.Lock()
	defer f.indexMu.Unlock()
	if f.index == nil {
		f.buildIndex()
	}
	obj, ok := f.index[pathID]
	return obj, ok
}

func (f *File) reindex() {
	f.indexMu.Lock()
	defer f.indexMu.Unlock()
	f.buildIndex()
}

func (f *File) buildIndex() {
	f.index = make(map[int64]*Object, len(f.Objects))
	for _, obj := range f.Objects {
		f.index[obj.PathID] = obj
	}
}

// Reader returns a reader over the object's record only.
func (f *File) Reader(obj *Object) *io.SectionReader {
	return io.NewSectionReader(f.Data, obj.Offset(), int64(obj.ByteSize))
}

// TypeIndex returns the index of the object's entry in Types, or -1 if the
// type is not listed.
func (f *File) TypeIndex(obj *Object) int {
	if f.Header.Version >= versionTypeIndex {
		if obj.TypeID < 0 || int(obj.TypeID) >= len(f.Types) {
			return -1
		}
		return int(obj.TypeID)
	}
	found := -1
	for i, t := range f.Types {
		if t.ClassID != obj.TypeID {
			continue
		}
		if obj.TypeID >= 0 || t.ScriptTypeIndex == obj.ScriptTypeIndex {
			return i
		}
		if found < 0 {
			found = i
		}
	}
	return found
}

// Descriptor is the authoritative layout of an object.
type Descriptor struct {
	Name   string
	Tree   typetree.Tree
	Source Source
	// TypeIndex is the index of the object's entry in File.Types, or -1.
	TypeIndex int
	ClassID   int32
}

// Descriptor returns the layout of obj. A non-empty type tree listed in the
// file is authoritative; the class database is consulted when the file has
// no type trees or does not list the type.
func (f *File) Descriptor(obj *Object) (Descriptor, error) {
	d := Descriptor{TypeIndex: f.TypeIndex(obj), ClassID: obj.ClassID}
	if d.TypeIndex >= 0 {
		if t := f.Types[d.TypeIndex]; f.TypeTreeEnabled && !t.Tree.Empty() {
			d.Tree = t.Tree
			d.Name = t.Tree.TypeName()
			d.Source = SourceTypeTree
			if d.Name == "" {
				d.Name = f.ClassDB.Name(obj.ClassID)
			}
			return d, nil
		}
	}
	id := obj.ClassID
	if id < 0 {
		id = monoBehaviourClassID
	}
	if c, ok := f.ClassDB.Lookup(id); ok {
		d.Tree = c.Tree
		d.Name = c.Name
		d.Source = SourceClassDB
		return d, nil
	}
	return d, fmt.Errorf("%w for class %d", ErrNoDescriptor, obj.ClassID)
}
