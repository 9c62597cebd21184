package typetree

// Builder assembles a Tree field by field.
//
//	tree := typetree.NewBuilder("TextAsset").
//		String("m_Name").
//		String("m_Script").
//		Tree()
type Builder struct {
	nodes []Node
	level uint8
	// depth records how many levels each open Begin or Vector added.
	depth []uint8
}

// NewBuilder starts a tree whose root names the given type.
func NewBuilder(typ string) *Builder {
	return &Builder{
		nodes: []Node{{Type: typ, Name: "Base", ByteSize: -1}},
		level: 1,
	}
}

func (b *Builder) add(n Node) *Builder {
	n.Level = b.level
	b.nodes = append(b.nodes, n)
	return b
}

// Field appends a leaf field of a fixed size.
func (b *Builder) Field(typ, name string, size int32) *Builder {
	return b.add(Node{Type: typ, Name: name, ByteSize: size})
}

// Aligned marks the most recently appended node as aligned.
func (b *Builder) Aligned() *Builder {
	b.nodes[len(b.nodes)-1].MetaFlag |= AlignBytes
	return b
}

// Begin opens a struct field. Fields appended until the matching End are its
// children. Size is the struct's fixed size, or -1.
func (b *Builder) Begin(typ, name string, size int32) *Builder {
	b.add(Node{Type: typ, Name: name, ByteSize: size})
	b.level++
	b.depth = append(b.depth, 1)
	return b
}

// Vector opens an array field. The next field appended is the element
// layout, and End closes the array.
func (b *Builder) Vector(typ, name string) *Builder {
	b.add(Node{Type: typ, Name: name, ByteSize: -1})
	b.level++
	b.add(Node{Type: "Array", Name: "Array", ByteSize: -1, TypeFlags: FlagArray, MetaFlag: AlignBytes})
	b.level++
	b.add(Node{Type: "int", Name: "size", ByteSize: 4})
	b.depth = append(b.depth, 2)
	return b
}

// End closes the innermost open struct or array.
func (b *Builder) End() *Builder {
	if n := len(b.depth); n > 0 {
		b.level -= b.depth[n-1]
		b.depth = b.depth[:n-1]
	}
	return b
}

// String appends a length-prefixed string field, aligned after its content.
func (b *Builder) String(name string) *Builder {
	return b.Vector("string", name).Field("char", "data", 1).End()
}

// PPtr appends an object reference field of the given type, such as
// "PPtr<GameObject>".
func (b *Builder) PPtr(typ, name string) *Builder {
	return b.Begin(typ, name, 12).
		Field("int", "m_FileID", 4).
		Field("SInt64", "m_PathID", 8).
		End()
}

// Tree returns the assembled tree. The Builder must not be used afterward.
func (b *Builder) Tree() Tree {
	for i := range b.nodes {
		b.nodes[i].Index = int32(i)
	}
	return Tree{Nodes: b.nodes}
}
