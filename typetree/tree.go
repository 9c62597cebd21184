// Package typetree describes the field layout of serialized objects.
//
// A Tree is a flattened, pre-order list of Nodes. The first node is the root,
// which names the object's type; every following node is a field whose Level
// is one more than its parent's. Trees are embedded in serialized files, or
// supplied by a class database when a file omits them.
package typetree

// Node is one field of a Tree.
type Node struct {
	Version   uint16
	Level     uint8
	TypeFlags uint8
	Type      string
	Name      string
	// ByteSize is the encoded size of the field, or -1 when the size depends
	// on the content.
	ByteSize    int32
	Index       int32
	MetaFlag    uint32
	RefTypeHash uint64
}

const (
	// FlagArray is set in TypeFlags for array nodes.
	FlagArray uint8 = 0x01

	// AlignBytes is set in MetaFlag when the stream is padded to a multiple
	// of four bytes after the field.
	AlignBytes uint32 = 0x4000
)

// Aligned returns whether the stream is aligned after the node.
func (n Node) Aligned() bool {
	return n.MetaFlag&AlignBytes != 0
}

// IsArray returns whether the node is an array, whose first child holds the
// element count and second child the element layout.
func (n Node) IsArray() bool {
	return n.TypeFlags&FlagArray != 0 || n.Type == "Array"
}

// Tree is a flattened field layout.
type Tree struct {
	Nodes []Node
}

// Empty returns whether the tree has no nodes.
func (t Tree) Empty() bool {
	return len(t.Nodes) == 0
}

// Root returns the root node, which carries the type name.
func (t Tree) Root() (Node, bool) {
	if len(t.Nodes) == 0 {
		return Node{}, false
	}
	return t.Nodes[0], true
}

// TypeName returns the type name of the root node, or an empty string.
func (t Tree) TypeName() string {
	root, _ := t.Root()
	return root.Type
}

// End returns the index following the subtree rooted at i.
func (t Tree) End(i int) int {
	if i < 0 || i >= len(t.Nodes) {
		return len(t.Nodes)
	}
	level := t.Nodes[i].Level
	j := i + 1
	for j < len(t.Nodes) && t.Nodes[j].Level > level {
		j++
	}
	return j
}

// Children returns the indices of the direct children of node i.
func (t Tree) Children(i int) []int {
	if i < 0 || i >= len(t.Nodes) {
		return nil
	}
	var children []int
	for j, end := i+1, t.End(i); j < end; j = t.End(j) {
		children = append(children, j)
	}
	return children
}

// Fields returns the indices of the root's direct children, in stream order.
func (t Tree) Fields() []int {
	return t.Children(0)
}

// Field returns the index of the root's direct child with the given name, or
// -1.
func (t Tree) Field(name string) int {
	return t.Child(0, name)
}

// Child returns the index of the direct child of node i with the given name,
// or -1.
func (t Tree) Child(i int, name string) int {
	for _, j := range t.Children(i) {
		if t.Nodes[j].Name == name {
			return j
		}
	}
	return -1
}

// Fixed returns whether the subtree at i has a size independent of content.
func (t Tree) Fixed(i int) bool {
	if t.Nodes[i].ByteSize < 0 {
		return false
	}
	for j, end := i+1, t.End(i); j < end; j++ {
		if t.Nodes[j].ByteSize < 0 || t.Nodes[j].IsArray() {
			return false
		}
	}
	return true
}
