package typetree

import (
	"fmt"
	"strings"

	"github.com/assetfile/assetfile/internal/binio"
)

// RefTypeHashVersion is the first serialized file format version whose blob
// nodes carry a RefTypeHash.
const RefTypeHashVersion = 19

// maxNodes bounds the node count of a blob.
const maxNodes = 1 << 16

func nodeSize(format uint32) int64 {
	if format >= RefTypeHashVersion {
		return 32
	}
	return 24
}

// ReadBlob decodes a type tree stored in blob form: a node count, the size
// of the string buffer, the fixed-size nodes, then the string buffer.
func ReadBlob(r *binio.Reader, format uint32) (Tree, error) {
	var count, bufSize int32
	if r.I32(&count) || r.I32(&bufSize) {
		return Tree{}, r.Err()
	}
	if count < 0 || count > maxNodes || r.Max > 0 && int64(count)*nodeSize(format) > r.Max {
		return Tree{}, fmt.Errorf("type tree node count %d out of range", count)
	}
	if bufSize < 0 || r.Max > 0 && int64(bufSize) > r.Max {
		return Tree{}, fmt.Errorf("type tree string buffer size %d out of range", bufSize)
	}

	type rawNode struct {
		typeOff, nameOff uint32
	}
	raw := make([]rawNode, count)
	nodes := make([]Node, count)
	for i := range nodes {
		n := &nodes[i]
		r.U16(&n.Version)
		r.U8(&n.Level)
		r.U8(&n.TypeFlags)
		r.U32(&raw[i].typeOff)
		r.U32(&raw[i].nameOff)
		r.I32(&n.ByteSize)
		r.I32(&n.Index)
		r.U32(&n.MetaFlag)
		if format >= RefTypeHashVersion {
			r.U64(&n.RefTypeHash)
		}
		if r.Err() != nil {
			return Tree{}, r.Err()
		}
	}

	buf := make([]byte, bufSize)
	if r.Bytes(buf) {
		return Tree{}, r.Err()
	}
	local := string(buf)
	lookup := func(off uint32) (string, error) {
		var s string
		var ok bool
		if off&commonFlag != 0 {
			s, ok = CommonString(off)
		} else {
			s, ok = cString(local, off)
		}
		if !ok {
			return "", fmt.Errorf("type tree string offset 0x%X out of range", off)
		}
		return s, nil
	}
	var err error
	for i := range nodes {
		if nodes[i].Type, err = lookup(raw[i].typeOff); err != nil {
			return Tree{}, err
		}
		if nodes[i].Name, err = lookup(raw[i].nameOff); err != nil {
			return Tree{}, err
		}
	}
	return Tree{Nodes: nodes}, nil
}

// WriteBlob encodes t in blob form. Strings present in the common table are
// referred to by their common offset.
func WriteBlob(w *binio.Writer, t Tree, format uint32) error {
	var local strings.Builder
	offsets := map[string]uint32{}
	offset := func(s string) uint32 {
		if off, ok := CommonOffset(s); ok {
			return off
		}
		if off, ok := offsets[s]; ok {
			return off
		}
		off := uint32(local.Len())
		local.WriteString(s)
		local.WriteByte(0)
		offsets[s] = off
		return off
	}
	typeOffs := make([]uint32, len(t.Nodes))
	nameOffs := make([]uint32, len(t.Nodes))
	for i, n := range t.Nodes {
		typeOffs[i] = offset(n.Type)
		nameOffs[i] = offset(n.Name)
	}

	w.I32(int32(len(t.Nodes)))
	w.I32(int32(local.Len()))
	for i, n := range t.Nodes {
		w.U16(n.Version)
		w.U8(n.Level)
		w.U8(n.TypeFlags)
		w.U32(typeOffs[i])
		w.U32(nameOffs[i])
		w.I32(n.ByteSize)
		w.I32(n.Index)
		w.U32(n.MetaFlag)
		if format >= RefTypeHashVersion {
			w.U64(n.RefTypeHash)
		}
	}
	w.Raw([]byte(local.String()))
	return w.Err()
}
