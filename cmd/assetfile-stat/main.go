// The assetfile-stat command displays stats for a serialized file or bundle.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/assetfile/assetfile/bundle"
	"github.com/assetfile/assetfile/errors"
	"github.com/assetfile/assetfile/serialized"
)

const usage = `usage: assetfile-stat [INPUT] [OUTPUT]

Reads a serialized file or a bundle from INPUT, and writes to OUTPUT statistics
for each serialized file.

INPUT and OUTPUT are paths to files. If INPUT is "-" or unspecified, then stdin
is used. If OUTPUT is "-" or unspecified, then stdout is used. Warnings and
errors are written to stderr.
`

type ObjectSize struct {
	PathID int64
	Class  string
	Size   uint32
}

func (o ObjectSize) String() string {
	return fmt.Sprintf("%d:%s(%d)", o.PathID, o.Class, o.Size)
}

type ObjectSizes []ObjectSize

func (s ObjectSizes) MarshalJSON() ([]byte, error) {
	list := make([]string, 0, len(s))
	for _, o := range s {
		list = append(list, o.String())
	}
	return json.Marshal(list)
}

type Stats struct {
	Name            string
	Version         uint32
	UnityVersion    string
	BigEndian       bool
	TypeTreeEnabled bool

	// Number of objects overall.
	ObjectCount int

	// Number of objects per class.
	ClassCount map[string]int

	// Number of objects per descriptor source.
	SourceCount map[string]int

	// Total record size per class.
	ClassSize map[string]int64

	LargestObjects ObjectSizes `json:",omitempty"`
}

func (s *Stats) Fill(f *serialized.File) {
	s.Name = f.Name()
	s.Version = f.Header.Version
	s.UnityVersion = f.UnityVersion
	s.BigEndian = f.Header.BigEndian
	s.TypeTreeEnabled = f.TypeTreeEnabled

	s.ObjectCount = len(f.Objects)
	s.ClassCount = map[string]int{}
	s.SourceCount = map[string]int{}
	s.ClassSize = map[string]int64{}
	var sizes ObjectSizes
	for _, obj := range f.Objects {
		class := fmt.Sprintf("0x%08X", uint32(obj.ClassID))
		d, err := f.Descriptor(obj)
		if err == nil && d.Name != "" {
			class = d.Name
		}
		s.ClassCount[class]++
		s.SourceCount[d.Source.String()]++
		s.ClassSize[class] += int64(obj.ByteSize)
		sizes = append(sizes, ObjectSize{PathID: obj.PathID, Class: class, Size: obj.ByteSize})
	}
	sort.SliceStable(sizes, func(i, j int) bool {
		return sizes[i].Size > sizes[j].Size
	})
	if len(sizes) > 20 {
		sizes = sizes[:20]
	}
	s.LargestObjects = sizes
}

// decode returns the serialized files in data, which holds either a bundle
// or a single serialized file.
func decode(data []byte) (files []*serialized.File, warn, err error) {
	r := bytes.NewReader(data)
	if !bytes.HasPrefix(data, []byte(bundle.Signature+"\x00")) {
		f, warn, err := serialized.Decoder{}.Decode(r, int64(len(data)), "")
		if err != nil {
			return nil, warn, err
		}
		return []*serialized.File{f}, warn, nil
	}
	b, err := bundle.Decode(r, int64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	var warns errors.Errors
	for _, e := range b.Entries {
		if !e.IsSerialized() {
			continue
		}
		f, w, err := serialized.Decoder{}.DecodeEntry(b, e.Name)
		warns = warns.Append(w)
		if err != nil {
			warns = append(warns, fmt.Errorf("entry %s: %w", e.Name, err))
			continue
		}
		files = append(files, f)
	}
	return files, warns.Return(), nil
}

func main() {
	var input io.Reader = os.Stdin
	var output io.Writer = os.Stdout

	flag.Usage = func() { fmt.Fprintf(flag.CommandLine.Output(), usage) }
	flag.Parse()
	args := flag.Args()
	if len(args) >= 1 && args[0] != "-" {
		in, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("open input: %w", err))
			return
		}
		input = in
		defer in.Close()
	}
	if len(args) >= 2 && args[1] != "-" {
		out, err := os.Create(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("create output: %w", err))
			return
		}
		defer out.Close()
		defer func() {
			err := out.Sync()
			if err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("sync output: %w", err))
				return
			}
		}()
		output = out
	}

	data, err := io.ReadAll(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("read input: %w", err))
		return
	}
	files, warn, err := decode(data)
	if warn != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode warning: %w", warn))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("decode error: %w", err))
		return
	}

	stats := make([]Stats, len(files))
	for i, f := range files {
		stats[i].Fill(f)
	}

	je := json.NewEncoder(output)
	je.SetEscapeHTML(false)
	je.SetIndent("", "\t")
	if err := je.Encode(stats); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("write error: %w", err))
	}
}
