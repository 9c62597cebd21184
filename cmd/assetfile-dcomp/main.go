// The assetfile-dcomp command rewrites a bundle with uncompressed blocks.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/assetfile/assetfile/bundle"
)

const usage = `usage: assetfile-dcomp [INPUT] [OUTPUT]

Reads a bundle from INPUT, and writes to OUTPUT the same bundle, but with
uncompressed blocks and block info.

INPUT and OUTPUT are paths to files. If INPUT is "-" or unspecified, then stdin
is used. If OUTPUT is "-" or unspecified, then stdout is used. Warnings and
errors are written to stderr.
`

// decompress reads the bundle in r and writes it to w uncompressed.
func decompress(w io.Writer, r io.ReaderAt, size int64) error {
	b, err := bundle.Decode(r, size)
	if err != nil {
		return err
	}
	files := make([]bundle.File, 0, len(b.Entries))
	for _, e := range b.Entries {
		data, err := b.ReadRange(e.Offset, e.Size)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Name, err)
		}
		files = append(files, bundle.File{Name: e.Name, Data: data, Flags: e.Flags})
	}
	wr := bundle.Writer{
		Version:      b.Header.Version,
		UnityVersion: b.Header.UnityVersion,
		Revision:     b.Header.Revision,
		Compression:  bundle.None,
	}
	return wr.Encode(w, files)
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
	if err := decompress(output, bytes.NewReader(data), int64(len(data))); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("error: %w", err))
	}
}
