package resource

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/assetfile/assetfile/internal/binio"
	"github.com/assetfile/assetfile/serialized"
	"github.com/assetfile/assetfile/typetree"
)

// ErrNoLocator indicates an object whose layout has no locator field.
var ErrNoLocator = errors.New("object has no external resource")

// locatorField describes a struct field holding a Locator.
type locatorField struct {
	name                 string
	source, offset, size string
}

// locatorFields lists the locator fields of the known classes, by name.
var locatorFields = []locatorField{
	// AudioClip
	{"m_Resource", "m_Source", "m_Offset", "m_Size"},
	// Texture2D and others
	{"m_StreamData", "path", "offset", "size"},
	// VideoClip
	{"m_ExternalResources", "m_Source", "m_Offset", "m_Size"},
}

// LocatorOf reads the locator stored in obj. The object's fields are walked
// up to the locator field, which is the only one decoded.
func LocatorOf(obj *serialized.Object) (Locator, error) {
	f := obj.File
	d, err := f.Descriptor(obj)
	if err != nil {
		return Locator{}, err
	}
	for _, lf := range locatorFields {
		if d.Tree.Field(lf.name) < 0 {
			continue
		}
		br := binio.NewSectionReader(f.Data, obj.Offset(), int64(obj.ByteSize), f.Order())
		w := typetree.NewWalker(br, d.Tree)
		i, err := w.Seek(lf.name)
		if err != nil {
			return Locator{}, err
		}
		v, err := w.Read(i)
		if err != nil {
			return Locator{}, err
		}
		fields, ok := v.(typetree.Fields)
		if !ok {
			return Locator{}, fmt.Errorf("field %s is not a struct", lf.name)
		}
		var loc Locator
		loc.Source, _ = fields[lf.source].(string)
		if loc.Offset, ok = typetree.Uint(fields[lf.offset]); !ok {
			return Locator{}, fmt.Errorf("field %s.%s is not an offset", lf.name, lf.offset)
		}
		if loc.Size, ok = typetree.Uint(fields[lf.size]); !ok {
			return Locator{}, fmt.Errorf("field %s.%s is not a size", lf.name, lf.size)
		}
		return loc, nil
	}
	return Locator{}, fmt.Errorf("%w: %s", ErrNoLocator, d.Name)
}

// ErrNotWAV indicates data that does not start with a RIFF WAVE header.
var ErrNotWAV = errors.New("not a RIFF WAVE stream")

// PatchWAVHeader rewrites the RIFF size and the size of the data chunk of a
// WAV stream to agree with len(data).
func PatchWAVHeader(data []byte) error {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return ErrNotWAV
	}
	binary.LittleEndian.PutUint32(data[4:8], uint32(len(data)-8))
	for pos := 12; pos+8 <= len(data); {
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		if string(data[pos:pos+4]) == "data" {
			binary.LittleEndian.PutUint32(data[pos+4:pos+8], uint32(len(data)-pos-8))
			return nil
		}
		if size < 0 || pos+8+size < pos {
			break
		}
		pos += 8 + size + size&1
	}
	return fmt.Errorf("%w: no data chunk", ErrNotWAV)
}
