package serialized

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"unicode"

	"github.com/assetfile/assetfile/errors"
	"github.com/assetfile/assetfile/typetree"
)

// Dump writes to w a readable representation of the serialized file decoded
// from the first size bytes of r.
func (d Decoder) Dump(w io.Writer, r io.ReaderAt, size int64) (warn, err error) {
	if w == nil {
		return nil, errors.New("nil writer")
	}
	f, warn, err := d.Decode(r, size, "")
	if err != nil {
		return warn, err
	}
	return warn, f.Dump(w)
}

// Dump writes to w a readable representation of the metadata of f.
func (f *File) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	h := f.Header
	fmt.Fprintf(bw, "Version: %d", h.Version)
	fmt.Fprintf(bw, "\nMetadataSize: %d", h.MetadataSize)
	fmt.Fprintf(bw, "\nFileSize: %d", h.FileSize)
	fmt.Fprintf(bw, "\nDataOffset: %d", h.DataOffset)
	fmt.Fprintf(bw, "\nBigEndian: %t", h.BigEndian)
	bw.WriteString("\nUnityVersion: ")
	dumpString(bw, 0, f.UnityVersion)
	fmt.Fprintf(bw, "\nPlatform: %d", f.Platform)
	fmt.Fprintf(bw, "\nTypeTreeEnabled: %t", f.TypeTreeEnabled)

	fmt.Fprintf(bw, "\nTypes: (count:%d) {", len(f.Types))
	for i, t := range f.Types {
		dumpType(bw, 1, i, t)
	}
	bw.WriteString("\n}")

	fmt.Fprintf(bw, "\nObjects: (count:%d) {", len(f.Objects))
	for _, obj := range f.Objects {
		dumpNewline(bw, 1)
		fmt.Fprintf(bw, "%d: type:%d class:%d", obj.PathID, obj.TypeID, obj.ClassID)
		if name := f.ClassDB.Name(obj.ClassID); name != "" {
			fmt.Fprintf(bw, " (%s)", name)
		}
		fmt.Fprintf(bw, " offset:%d size:%d", obj.Offset(), obj.ByteSize)
		if obj.ScriptTypeIndex >= 0 {
			fmt.Fprintf(bw, " script:%d", obj.ScriptTypeIndex)
		}
		if obj.Stripped {
			bw.WriteString(" (stripped)")
		}
	}
	bw.WriteString("\n}")

	fmt.Fprintf(bw, "\nScriptTypes: (count:%d) {", len(f.ScriptTypes))
	for i, st := range f.ScriptTypes {
		dumpNewline(bw, 1)
		fmt.Fprintf(bw, "%d: file:%d path:%d", i, st.FileIndex, st.PathID)
	}
	bw.WriteString("\n}")

	fmt.Fprintf(bw, "\nExternals: (count:%d) {", len(f.Externals))
	for i, ext := range f.Externals {
		dumpNewline(bw, 1)
		fmt.Fprintf(bw, "#%d: {", i+1)
		dumpNewline(bw, 2)
		bw.WriteString("PathName: ")
		dumpString(bw, 2, ext.PathName)
		dumpNewline(bw, 2)
		fmt.Fprintf(bw, "GUID: %x", ext.GUID)
		dumpNewline(bw, 2)
		fmt.Fprintf(bw, "Type: %d", ext.Type)
		dumpNewline(bw, 1)
		bw.WriteByte('}')
	}
	bw.WriteString("\n}")

	if len(f.RefTypes) > 0 {
		fmt.Fprintf(bw, "\nRefTypes: (count:%d) {", len(f.RefTypes))
		for i, t := range f.RefTypes {
			dumpType(bw, 1, i, t)
		}
		bw.WriteString("\n}")
	}
	if f.UserInformation != "" {
		bw.WriteString("\nUserInformation: ")
		dumpString(bw, 0, f.UserInformation)
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func dumpType(w *bufio.Writer, indent, i int, t *Type) {
	dumpNewline(w, indent)
	fmt.Fprintf(w, "#%d: class:%d", i, t.ClassID)
	if t.IsStripped {
		w.WriteString(" (stripped)")
	}
	if t.ScriptTypeIndex >= 0 {
		fmt.Fprintf(w, " script:%d", t.ScriptTypeIndex)
	}
	w.WriteString(" {")
	if t.ScriptID != ([16]byte{}) {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "ScriptID: %x", t.ScriptID)
	}
	dumpNewline(w, indent+1)
	fmt.Fprintf(w, "OldTypeHash: %x", t.OldTypeHash)
	if t.ClassName != "" || t.Namespace != "" || t.AssemblyName != "" {
		dumpNewline(w, indent+1)
		w.WriteString("Class: ")
		dumpString(w, indent+1, t.Namespace+"."+t.ClassName)
		dumpNewline(w, indent+1)
		w.WriteString("Assembly: ")
		dumpString(w, indent+1, t.AssemblyName)
	}
	if len(t.Dependencies) > 0 {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Dependencies: %v", t.Dependencies)
	}
	if !t.Tree.Empty() {
		dumpNewline(w, indent+1)
		fmt.Fprintf(w, "Tree: (nodes:%d) {", len(t.Tree.Nodes))
		dumpTree(w, indent+2, t.Tree)
		dumpNewline(w, indent+1)
		w.WriteByte('}')
	}
	dumpNewline(w, indent)
	w.WriteByte('}')
}

func dumpTree(w *bufio.Writer, indent int, t typetree.Tree) {
	for _, n := range t.Nodes {
		dumpNewline(w, indent+int(n.Level))
		fmt.Fprintf(w, "%s %s", n.Type, n.Name)
		if n.ByteSize >= 0 {
			fmt.Fprintf(w, " (size:%d)", n.ByteSize)
		}
		if n.IsArray() {
			w.WriteString(" (array)")
		}
		if n.Aligned() {
			w.WriteString(" (aligned)")
		}
	}
}

func dumpNewline(w *bufio.Writer, indent int) {
	w.WriteByte('\n')
	for i := 0; i < indent; i++ {
		w.WriteByte('\t')
	}
}

func dumpString(w *bufio.Writer, indent int, s string) {
	for _, r := range s {
		if !unicode.IsGraphic(r) {
			dumpBytes(w, indent, []byte(s))
			return
		}
	}
	fmt.Fprintf(w, "(len:%d) ", len(s))
	w.WriteString(strconv.Quote(s))
}

func dumpBytes(w *bufio.Writer, indent int, b []byte) {
	fmt.Fprintf(w, "(len:%d)", len(b))
	const width = 16
	for j := 0; j < len(b); j += width {
		dumpNewline(w, indent+1)
		w.WriteString("| ")
		n := len(b)
		if j+width < n {
			n = j + width
		}
		for i := j; i < j+width; i++ {
			if i < n {
				fmt.Fprintf(w, "%02x", b[i])
			} else {
				w.WriteString("  ")
			}
			if (i+1)%8 == 0 && i+1 < j+width {
				w.WriteString("  ")
			} else {
				w.WriteByte(' ')
			}
		}
		w.WriteByte('|')
		for i := j; i < n; i++ {
			if 32 <= b[i] && b[i] <= 126 {
				w.WriteByte(b[i])
			} else {
				w.WriteByte('.')
			}
		}
		w.WriteByte('|')
	}
}
