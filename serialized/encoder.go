package serialized

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/assetfile/assetfile/errors"
	"github.com/assetfile/assetfile/internal/binio"
	"github.com/assetfile/assetfile/typetree"
)

// Encoder encodes serialized files.
type Encoder struct {
	// DataAlignment is the alignment of the data region. Zero means 16.
	DataAlignment int64
}

const objectAlignment = 8

// Encode writes f to w, with data[i] as the record of f.Objects[i]. The
// layout fields of f.Header and of each object are recomputed and updated in
// place.
func (e Encoder) Encode(w io.Writer, f *File, data [][]byte) error {
	if w == nil {
		return errors.New("nil writer")
	}
	if len(data) != len(f.Objects) {
		return fmt.Errorf("%d records for %d objects", len(data), len(f.Objects))
	}
	v := f.Header.Version
	if v < MinVersion || v > MaxVersion {
		return ErrUnrecognizedVersion(v)
	}
	align := e.DataAlignment
	if align <= 0 {
		align = 16
	}

	var size int64
	for i, obj := range f.Objects {
		size = (size + objectAlignment - 1) &^ (objectAlignment - 1)
		obj.File = f
		obj.ByteStart = size
		obj.ByteSize = uint32(len(data[i]))
		size += int64(len(data[i]))
		if v < versionLargeFiles && size > 1<<32-1 {
			return fmt.Errorf("object %d: data region too large for version %d", obj.PathID, v)
		}
	}

	var meta bytes.Buffer
	if err := encodeMetadata(binio.NewWriter(&meta, f.Order()), f); err != nil {
		return err
	}

	h := &f.Header
	h.MetadataSize = uint32(meta.Len())
	h.DataOffset = (h.Size() + int64(meta.Len()) + align - 1) &^ (align - 1)
	h.FileSize = h.DataOffset + size

	fw := binio.NewWriter(w, binary.BigEndian)
	if v >= versionLargeFiles {
		fw.Zero(8)
		fw.U32(v)
		fw.Zero(4)
	} else {
		fw.U32(h.MetadataSize)
		fw.U32(uint32(h.FileSize))
		fw.U32(v)
		fw.U32(uint32(h.DataOffset))
	}
	fw.Bool(h.BigEndian)
	fw.Zero(3)
	if v >= versionLargeFiles {
		fw.U32(h.MetadataSize)
		fw.I64(h.FileSize)
		fw.I64(h.DataOffset)
		fw.I64(0)
	}
	fw.Raw(meta.Bytes())
	fw.Zero(h.DataOffset - fw.N())
	for i, obj := range f.Objects {
		fw.Zero(h.DataOffset + obj.ByteStart - fw.N())
		fw.Raw(data[i])
	}
	if err := fw.Err(); err != nil {
		return errors.DataError{Section: "data", Offset: fw.N(), Cause: err}
	}
	f.reindex()
	return nil
}

func encodeMetadata(mw *binio.Writer, f *File) error {
	v := f.Header.Version
	mw.CString(f.UnityVersion)
	mw.I32(f.Platform)
	if v >= versionTypeTreeFlag {
		mw.Bool(f.TypeTreeEnabled)
	}

	mw.I32(int32(len(f.Types)))
	for _, t := range f.Types {
		if err := writeType(mw, t, v, f.TypeTreeEnabled, false); err != nil {
			return err
		}
	}

	if v < versionLongPathID {
		mw.I32(0)
	}
	mw.I32(int32(len(f.Objects)))
	for _, obj := range f.Objects {
		if v >= versionLongPathID {
			mw.Align(4)
			mw.I64(obj.PathID)
		} else {
			mw.I32(int32(obj.PathID))
		}
		if v >= versionLargeFiles {
			mw.I64(obj.ByteStart)
		} else {
			mw.U32(uint32(obj.ByteStart))
		}
		mw.U32(obj.ByteSize)
		mw.I32(obj.TypeID)
		if v < versionTypeIndex {
			mw.U16(uint16(obj.ClassID))
		}
		if v < versionScriptIndex {
			mw.I16(obj.ScriptTypeIndex)
		}
		if v == 15 || v == 16 {
			mw.Bool(obj.Stripped)
		}
	}

	mw.I32(int32(len(f.ScriptTypes)))
	for _, st := range f.ScriptTypes {
		mw.I32(st.FileIndex)
		if v >= versionLongPathID {
			mw.Align(4)
			mw.I64(st.PathID)
		} else {
			mw.I32(int32(st.PathID))
		}
	}

	mw.I32(int32(len(f.Externals)))
	for _, ext := range f.Externals {
		mw.CString(ext.TempEmpty)
		mw.Raw(ext.GUID[:])
		mw.I32(ext.Type)
		mw.CString(ext.PathName)
	}

	if v >= versionRefTypes {
		mw.I32(int32(len(f.RefTypes)))
		for _, t := range f.RefTypes {
			if err := writeType(mw, t, v, f.TypeTreeEnabled, true); err != nil {
				return err
			}
		}
	}
	mw.CString(f.UserInformation)
	if err := mw.Err(); err != nil {
		return errors.DataError{Section: "metadata", Offset: mw.N(), Cause: err}
	}
	return nil
}

func writeType(mw *binio.Writer, t *Type, v uint32, typeTree, ref bool) error {
	mw.I32(t.ClassID)
	if v >= versionTypeIndex {
		mw.Bool(t.IsStripped)
	}
	if v >= versionScriptIndex {
		mw.I16(t.ScriptTypeIndex)
	}
	if v >= versionTypeTreeFlag {
		if hasScriptID(t, v, ref) {
			mw.Raw(t.ScriptID[:])
		}
		mw.Raw(t.OldTypeHash[:])
	}
	if !typeTree {
		return mw.Err()
	}
	if err := typetree.WriteBlob(mw, t.Tree, v); err != nil {
		return err
	}
	if v >= versionDependencies {
		if ref {
			mw.CString(t.ClassName)
			mw.CString(t.Namespace)
			mw.CString(t.AssemblyName)
		} else {
			mw.I32(int32(len(t.Dependencies)))
			for _, d := range t.Dependencies {
				mw.I32(d)
			}
		}
	}
	return mw.Err()
}
