package serialized

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/assetfile/assetfile/bundle"
	"github.com/assetfile/assetfile/classdb"
	"github.com/assetfile/assetfile/errors"
	"github.com/assetfile/assetfile/internal/binio"
	"github.com/assetfile/assetfile/typetree"
)

// Decoder decodes serialized files.
type Decoder struct {
	// ClassDB is assigned to decoded files. If nil, classdb.Default is used.
	ClassDB *classdb.Database
}

func decodeError(r *binio.Reader, section string, err error) error {
	if err == nil {
		err = r.Err()
	}
	if err != nil {
		return errors.DataError{Section: section, Offset: r.N(), Cause: err}
	}
	return nil
}

// FileSizeMismatch is a warning produced when the size recorded in the header
// differs from the size of the data.
type FileSizeMismatch struct {
	Header int64
	Actual int64
}

func (w FileSizeMismatch) Error() string {
	return fmt.Sprintf("header records file size %d, data has %d bytes", w.Header, w.Actual)
}

// Decode decodes the serialized file held in the first size bytes of r. The
// returned File keeps reading object records from r. Recoverable problems
// are returned in warn.
func (d Decoder) Decode(r io.ReaderAt, size int64, path string) (f *File, warn, err error) {
	if r == nil {
		return nil, nil, errors.New("nil reader")
	}
	f = &File{Path: path, Data: r, ClassDB: d.ClassDB}
	if f.ClassDB == nil {
		f.ClassDB = classdb.Default()
	}
	var warns errors.Errors

	fr := binio.NewSectionReader(r, 0, size, binary.BigEndian)
	h := &f.Header
	var metadataSize, fileSize, dataOffset uint32
	fr.U32(&metadataSize)
	fr.U32(&fileSize)
	fr.U32(&h.Version)
	fr.U32(&dataOffset)
	if err := decodeError(fr, "header", nil); err != nil {
		return nil, nil, err
	}
	if h.Version < MinVersion || h.Version > MaxVersion {
		return nil, nil, ErrUnrecognizedVersion(h.Version)
	}
	var endian uint8
	var reserved [3]byte
	fr.U8(&endian)
	fr.Bytes(reserved[:])
	h.MetadataSize, h.FileSize, h.DataOffset = metadataSize, int64(fileSize), int64(dataOffset)
	if h.Version >= versionLargeFiles {
		var unknown int64
		fr.U32(&h.MetadataSize)
		fr.I64(&h.FileSize)
		fr.I64(&h.DataOffset)
		fr.I64(&unknown)
	}
	if err := decodeError(fr, "header", nil); err != nil {
		return nil, nil, err
	}
	h.BigEndian = endian != 0
	if h.DataOffset < h.Size() || h.DataOffset > size {
		return nil, nil, errors.DataError{Section: "header", Offset: -1, Cause: fmt.Errorf("data offset %d out of range", h.DataOffset)}
	}
	if h.FileSize != size {
		warns = append(warns, FileSizeMismatch{Header: h.FileSize, Actual: size})
	}

	fr.Order = f.Order()
	if err := d.decodeMetadata(fr, f); err != nil {
		return nil, warns.Return(), err
	}

	for _, obj := range f.Objects {
		end := obj.Offset() + int64(obj.ByteSize)
		if obj.ByteStart < 0 || end > size {
			warns = append(warns, errors.DataError{
				Section: "objects",
				Offset:  -1,
				Cause:   fmt.Errorf("object %d extends past the end of the data", obj.PathID),
			})
		}
	}
	f.reindex()
	return f, warns.Return(), nil
}

// DecodeEntry decodes the serialized file stored in entry name of b.
func (d Decoder) DecodeEntry(b *bundle.Bundle, name string) (f *File, warn, err error) {
	e, ok := b.Entry(name)
	if !ok {
		return nil, nil, fmt.Errorf("bundle has no entry %q", name)
	}
	f, warn, err = d.Decode(b.Section(e), e.Size, e.Name)
	if err != nil {
		return nil, warn, err
	}
	f.Bundle = b
	return f, warn, nil
}

// count reads an element count and checks that at least min bytes per
// element remain.
func count(fr *binio.Reader, min int64) (int, bool) {
	var n int32
	if fr.I32(&n) {
		return 0, true
	}
	if n < 0 || fr.Max > 0 && int64(n)*min > fr.Max-fr.N() {
		return 0, fr.Fail(fmt.Errorf("element count %d out of range", n))
	}
	return int(n), false
}

func (d Decoder) decodeMetadata(fr *binio.Reader, f *File) error {
	v := f.Header.Version

	fr.CString(&f.UnityVersion)
	fr.I32(&f.Platform)
	f.TypeTreeEnabled = true
	if v >= versionTypeTreeFlag {
		fr.Bool(&f.TypeTreeEnabled)
	}
	if err := decodeError(fr, "metadata", nil); err != nil {
		return err
	}

	n, failed := count(fr, 4)
	if failed {
		return decodeError(fr, "types", nil)
	}
	f.Types = make([]*Type, n)
	for i := range f.Types {
		t, err := readType(fr, v, f.TypeTreeEnabled, false)
		if err != nil {
			return decodeError(fr, fmt.Sprintf("type %d", i), err)
		}
		f.Types[i] = t
	}

	var bigIDs int32
	if v < versionLongPathID {
		fr.I32(&bigIDs)
	}
	n, failed = count(fr, 16)
	if failed {
		return decodeError(fr, "objects", nil)
	}
	f.Objects = make([]*Object, n)
	for i := range f.Objects {
		obj := &Object{File: f, ScriptTypeIndex: -1}
		switch {
		case bigIDs != 0:
			fr.I64(&obj.PathID)
		case v < versionLongPathID:
			var id int32
			fr.I32(&id)
			obj.PathID = int64(id)
		default:
			fr.Align(4)
			fr.I64(&obj.PathID)
		}
		if v >= versionLargeFiles {
			fr.I64(&obj.ByteStart)
		} else {
			var start uint32
			fr.U32(&start)
			obj.ByteStart = int64(start)
		}
		fr.U32(&obj.ByteSize)
		fr.I32(&obj.TypeID)
		if v < versionTypeIndex {
			var classID uint16
			fr.U16(&classID)
			obj.ClassID = int32(classID)
			if obj.TypeID >= 0 && obj.TypeID <= math.MaxUint16 {
				obj.ClassID = obj.TypeID
			}
		} else if t := int(obj.TypeID); t >= 0 && t < len(f.Types) {
			obj.ClassID = f.Types[t].ClassID
			obj.ScriptTypeIndex = f.Types[t].ScriptTypeIndex
		} else if fr.Err() == nil {
			return decodeError(fr, "objects", fmt.Errorf("%w: object %d has type %d", ErrUnknownType, obj.PathID, obj.TypeID))
		}
		if v < versionScriptIndex {
			fr.I16(&obj.ScriptTypeIndex)
		}
		if v == 15 || v == 16 {
			fr.Bool(&obj.Stripped)
		}
		if err := decodeError(fr, "objects", nil); err != nil {
			return err
		}
		f.Objects[i] = obj
	}

	n, failed = count(fr, 8)
	if failed {
		return decodeError(fr, "script types", nil)
	}
	f.ScriptTypes = make([]ScriptType, n)
	for i := range f.ScriptTypes {
		st := &f.ScriptTypes[i]
		fr.I32(&st.FileIndex)
		if v < versionLongPathID {
			var id int32
			fr.I32(&id)
			st.PathID = int64(id)
		} else {
			fr.Align(4)
			fr.I64(&st.PathID)
		}
	}
	if err := decodeError(fr, "script types", nil); err != nil {
		return err
	}

	n, failed = count(fr, 22)
	if failed {
		return decodeError(fr, "externals", nil)
	}
	f.Externals = make([]External, n)
	for i := range f.Externals {
		ext := &f.Externals[i]
		fr.CString(&ext.TempEmpty)
		fr.Bytes(ext.GUID[:])
		fr.I32(&ext.Type)
		fr.CString(&ext.PathName)
	}
	if err := decodeError(fr, "externals", nil); err != nil {
		return err
	}

	if v >= versionRefTypes {
		n, failed = count(fr, 4)
		if failed {
			return decodeError(fr, "ref types", nil)
		}
		f.RefTypes = make([]*Type, n)
		for i := range f.RefTypes {
			t, err := readType(fr, v, f.TypeTreeEnabled, true)
			if err != nil {
				return decodeError(fr, fmt.Sprintf("ref type %d", i), err)
			}
			f.RefTypes[i] = t
		}
	}

	fr.CString(&f.UserInformation)
	return decodeError(fr, "metadata", nil)
}

func readType(fr *binio.Reader, v uint32, typeTree, ref bool) (*Type, error) {
	t := &Type{ScriptTypeIndex: -1}
	fr.I32(&t.ClassID)
	if v >= versionTypeIndex {
		fr.Bool(&t.IsStripped)
	}
	if v >= versionScriptIndex {
		fr.I16(&t.ScriptTypeIndex)
	}
	if v >= versionTypeTreeFlag {
		if hasScriptID(t, v, ref) {
			fr.Bytes(t.ScriptID[:])
		}
		fr.Bytes(t.OldTypeHash[:])
	}
	if fr.Err() != nil {
		return nil, fr.Err()
	}
	if !typeTree {
		return t, nil
	}

	tree, err := typetree.ReadBlob(fr, v)
	if err != nil {
		return nil, err
	}
	t.Tree = tree
	if v >= versionDependencies {
		if ref {
			fr.CString(&t.ClassName)
			fr.CString(&t.Namespace)
			fr.CString(&t.AssemblyName)
		} else {
			n, failed := count(fr, 4)
			if failed {
				return nil, fr.Err()
			}
			t.Dependencies = make([]int32, n)
			for i := range t.Dependencies {
				fr.I32(&t.Dependencies[i])
			}
		}
	}
	return t, fr.Err()
}

func hasScriptID(t *Type, v uint32, ref bool) bool {
	switch {
	case ref:
		return t.ScriptTypeIndex >= 0
	case v < versionTypeIndex:
		return t.ClassID < 0
	default:
		return t.ClassID == monoBehaviourClassID
	}
}
