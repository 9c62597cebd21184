package typetree

import (
	"errors"
	"fmt"

	"github.com/assetfile/assetfile/internal/binio"
)

// maxElements bounds the element count of arrays whose elements are not of
// fixed size.
const maxElements = 1 << 24

var (
	// ErrVariableLeaf indicates a leaf node without a fixed size.
	ErrVariableLeaf = errors.New("leaf field has no fixed size")
	// ErrArrayLayout indicates an array node without size and data children.
	ErrArrayLayout = errors.New("array field lacks size and data children")
	// ErrArrayLength indicates a negative or excessive element count.
	ErrArrayLength = errors.New("array length out of range")
)

// FieldError indicates that a named field is not part of a layout.
type FieldError struct {
	Type  string
	Field string
}

func (err FieldError) Error() string {
	return fmt.Sprintf("%s has no field %s", err.Type, err.Field)
}

// PPtr is a reference to an object, either in the same file (FileID 0) or in
// the external at index FileID-1.
type PPtr struct {
	FileID int32
	PathID int64
}

// IsNull returns whether the reference points to nothing.
func (p PPtr) IsNull() bool {
	return p.PathID == 0
}

// Fields holds the decoded children of a struct node by name.
type Fields map[string]interface{}

// Walker reads the fields of one object stream in order. It only moves
// forward: a field that has been passed cannot be read again.
type Walker struct {
	r    *binio.Reader
	tree Tree
	next int
}

// NewWalker returns a Walker that reads fields laid out by tree from r, which
// must be positioned at the start of the object.
func NewWalker(r *binio.Reader, tree Tree) *Walker {
	return &Walker{r: r, tree: tree, next: 1}
}

// Seek passes over top-level fields until the field with the given name is
// next, and returns its node index.
func (w *Walker) Seek(name string) (int, error) {
	for _, i := range w.tree.Fields() {
		if i < w.next {
			continue
		}
		if w.tree.Nodes[i].Name == name {
			w.next = i
			return i, nil
		}
		if err := w.skip(i); err != nil {
			return -1, err
		}
		w.next = w.tree.End(i)
	}
	return -1, FieldError{Type: w.tree.TypeName(), Field: name}
}

// Read decodes the field at node i, which must be the next field, and
// returns its value. Numbers decode to int64, uint64, float32 or float64;
// strings to string; byte arrays to []byte; other arrays, including those
// wrapped in a vector, to []interface{}; structs to Fields.
func (w *Walker) Read(i int) (interface{}, error) {
	v, err := w.read(i)
	if err != nil {
		return nil, err
	}
	w.next = w.tree.End(i)
	return v, nil
}

// String reads the string field at node i.
func (w *Walker) String(i int) (string, error) {
	v, err := w.Read(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s is %s, not string", w.tree.Nodes[i].Name, w.tree.Nodes[i].Type)
	}
	return s, nil
}

// PPtr reads the reference field at node i.
func (w *Walker) PPtr(i int) (PPtr, error) {
	v, err := w.Read(i)
	if err != nil {
		return PPtr{}, err
	}
	f, ok := v.(Fields)
	if !ok {
		return PPtr{}, fmt.Errorf("field %s is %s, not a reference", w.tree.Nodes[i].Name, w.tree.Nodes[i].Type)
	}
	var p PPtr
	fileID, _ := Int(f["m_FileID"])
	pathID, _ := Int(f["m_PathID"])
	p.FileID, p.PathID = int32(fileID), pathID
	return p, nil
}

func (w *Walker) align(i int) error {
	if w.tree.Nodes[i].Aligned() {
		w.r.Align(4)
	}
	return w.r.Err()
}

func (w *Walker) skip(i int) error {
	n := w.tree.Nodes[i]
	children := w.tree.Children(i)
	switch {
	case n.IsArray():
		if len(children) < 2 {
			return ErrArrayLayout
		}
		count, err := w.count()
		if err != nil {
			return err
		}
		elem := children[1]
		if w.tree.Fixed(elem) && !w.tree.Nodes[elem].Aligned() {
			w.r.Skip(count * int64(w.tree.Nodes[elem].ByteSize))
		} else {
			for k := int64(0); k < count; k++ {
				if err := w.skip(elem); err != nil {
					return err
				}
			}
		}
	case len(children) == 0:
		if n.ByteSize < 0 {
			return ErrVariableLeaf
		}
		w.r.Skip(int64(n.ByteSize))
	default:
		for _, c := range children {
			if err := w.skip(c); err != nil {
				return err
			}
		}
	}
	return w.align(i)
}

func (w *Walker) count() (int64, error) {
	var count int32
	if w.r.I32(&count) {
		return 0, w.r.Err()
	}
	if count < 0 || count > maxElements {
		return 0, fmt.Errorf("%w: %d", ErrArrayLength, count)
	}
	return int64(count), nil
}

func (w *Walker) read(i int) (interface{}, error) {
	n := w.tree.Nodes[i]
	children := w.tree.Children(i)
	var v interface{}
	switch {
	case n.IsArray():
		if len(children) < 2 {
			return nil, ErrArrayLayout
		}
		count, err := w.count()
		if err != nil {
			return nil, err
		}
		elem := children[1]
		if e := w.tree.Nodes[elem]; e.ByteSize == 1 && len(w.tree.Children(elem)) == 0 && !e.Aligned() {
			if w.r.Max > 0 && count > w.r.Max-w.r.N() {
				return nil, fmt.Errorf("%w: %d", ErrArrayLength, count)
			}
			b := make([]byte, count)
			if w.r.Bytes(b) {
				return nil, w.r.Err()
			}
			v = b
		} else {
			list := make([]interface{}, 0, count)
			for k := int64(0); k < count; k++ {
				e, err := w.read(elem)
				if err != nil {
					return nil, err
				}
				list = append(list, e)
			}
			v = list
		}
	case len(children) == 0:
		var err error
		if v, err = w.leaf(n); err != nil {
			return nil, err
		}
	case n.Type == "string":
		data, err := w.read(children[0])
		if err != nil {
			return nil, err
		}
		b, ok := data.([]byte)
		if !ok {
			return nil, fmt.Errorf("string field %s has unexpected layout", n.Name)
		}
		v = string(b)
	case len(children) == 1 && w.tree.Nodes[children[0]].IsArray():
		// vector and similar wrappers hold only their Array.
		var err error
		if v, err = w.read(children[0]); err != nil {
			return nil, err
		}
	default:
		f := make(Fields, len(children))
		for _, c := range children {
			cv, err := w.read(c)
			if err != nil {
				return nil, err
			}
			f[w.tree.Nodes[c].Name] = cv
		}
		v = f
	}
	if err := w.align(i); err != nil {
		return nil, err
	}
	return v, nil
}

func (w *Walker) leaf(n Node) (interface{}, error) {
	r := w.r
	switch n.Type {
	case "bool":
		var b bool
		r.Bool(&b)
		return b, r.Err()
	case "SInt8":
		var b uint8
		r.U8(&b)
		return int64(int8(b)), r.Err()
	case "UInt8", "char":
		var b uint8
		r.U8(&b)
		return uint64(b), r.Err()
	case "SInt16", "short":
		var x int16
		r.I16(&x)
		return int64(x), r.Err()
	case "UInt16", "unsigned short":
		var x uint16
		r.U16(&x)
		return uint64(x), r.Err()
	case "int", "SInt32":
		var x int32
		r.I32(&x)
		return int64(x), r.Err()
	case "UInt32", "unsigned int", "Type*":
		var x uint32
		r.U32(&x)
		return uint64(x), r.Err()
	case "SInt64", "long long":
		var x int64
		r.I64(&x)
		return x, r.Err()
	case "UInt64", "unsigned long long", "FileSize":
		var x uint64
		r.U64(&x)
		return x, r.Err()
	case "float":
		var x float32
		r.F32(&x)
		return x, r.Err()
	case "double":
		var x float64
		r.F64(&x)
		return x, r.Err()
	}
	if n.ByteSize < 0 {
		return nil, ErrVariableLeaf
	}
	b := make([]byte, n.ByteSize)
	r.Bytes(b)
	return b, r.Err()
}

// Int converts a decoded integer value to int64.
func Int(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

// Uint converts a decoded non-negative integer value to uint64.
func Uint(v interface{}) (uint64, bool) {
	switch v := v.(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}
