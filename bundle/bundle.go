package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bkaradzic/go-lz4"
	"github.com/ulikunitz/xz/lzma"

	"github.com/assetfile/assetfile/errors"
	"github.com/assetfile/assetfile/internal/binio"
)

// Bundle is a decoded container.
//
// The decompressed data of a bundle is reached through one shared cursor.
// Every access positions the cursor and reads from it while holding the
// bundle's lock, so that concurrent callers never observe each other's
// position.
type Bundle struct {
	// Path is the location of the bundle on disk, if it was opened from a
	// file.
	Path    string
	Header  Header
	Hash    [16]byte
	Blocks  []Block
	Entries []Entry

	mu     sync.Mutex
	data   io.ReadSeeker
	size   int64
	closer io.Closer
}

// Open decodes the bundle file at path. The file remains open until Close is
// called.
func Open(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	b, err := Decode(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	b.Path = path
	b.closer = f
	return b, nil
}

// Close releases the file backing the bundle, if any.
func (b *Bundle) Close() error {
	if b.closer == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.closer.Close()
	b.closer = nil
	return err
}

// DataSize returns the length of the decompressed data.
func (b *Bundle) DataSize() int64 {
	return b.size
}

// Entry returns the directory entry whose name is exactly name.
func (b *Bundle) Entry(name string) (Entry, bool) {
	for _, e := range b.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// ReadRange reads size bytes of decompressed data starting at offset. The
// cursor is positioned and read as one exclusive operation.
func (b *Bundle) ReadRange(offset, size int64) ([]byte, error) {
	if offset < 0 || size < 0 || offset > b.size || size > b.size-offset {
		return nil, fmt.Errorf("%w: %d bytes at %d of %d", ErrRange, size, offset, b.size)
	}
	p := make([]byte, size)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.data.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(b.data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadAt implements io.ReaderAt over the decompressed data through the
// shared cursor.
func (b *Bundle) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, ErrRange
	}
	if off >= b.size {
		return 0, io.EOF
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.data.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err = io.ReadFull(b.data, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// Section returns a reader over the content of e.
func (b *Bundle) Section(e Entry) *io.SectionReader {
	return io.NewSectionReader(b, e.Offset, e.Size)
}

////////////////////////////////////////////////////////////////

func decodeError(r *binio.Reader, section string, err error) error {
	if err != nil {
		r.Add(0, err)
	}
	if err = r.Err(); err != nil {
		return errors.DataError{Section: section, Offset: r.N(), Cause: err}
	}
	return nil
}

// Decode decodes the bundle held in the size bytes of r. The returned Bundle
// reads from r for as long as it is used.
func Decode(r io.ReaderAt, size int64) (*Bundle, error) {
	b := &Bundle{}
	br := binio.NewSectionReader(r, 0, size, binary.BigEndian)

	h := &b.Header
	if br.CString(&h.Signature) {
		return nil, decodeError(br, "header", nil)
	}
	if h.Signature != Signature {
		return nil, ErrInvalidSig
	}
	br.U32(&h.Version)
	if br.Err() == nil && (h.Version < minVersion || h.Version > maxVersion) {
		return nil, ErrUnrecognizedVersion(h.Version)
	}
	br.CString(&h.UnityVersion)
	br.CString(&h.Revision)
	br.I64(&h.Size)
	br.U32(&h.CompressedInfoSize)
	br.U32(&h.InfoSize)
	br.U32(&h.Flags)
	if h.Version >= 7 {
		br.Align(16)
	}
	if err := decodeError(br, "header", nil); err != nil {
		return nil, err
	}

	infoStart := br.N()
	if h.Flags&FlagBlocksInfoAtEnd != 0 {
		infoStart = size - int64(h.CompressedInfoSize)
	}
	if infoStart < br.N() || int64(h.CompressedInfoSize) > size-infoStart {
		return nil, errors.DataError{Section: "block info", Offset: infoStart, Cause: ErrRange}
	}
	stored := make([]byte, h.CompressedInfoSize)
	if _, err := r.ReadAt(stored, infoStart); err != nil {
		return nil, errors.DataError{Section: "block info", Offset: infoStart, Cause: err}
	}
	info, err := decompress(stored, h.InfoSize, h.Compression())
	if err != nil {
		return nil, errors.DataError{Section: "block info", Offset: infoStart, Cause: err}
	}
	if err := b.readInfo(info); err != nil {
		return nil, err
	}

	dataStart := br.N()
	if h.Flags&FlagBlocksInfoAtEnd == 0 {
		dataStart = infoStart + int64(h.CompressedInfoSize)
	}
	if h.Flags&FlagPadBeforeData != 0 {
		dataStart = (dataStart + 15) &^ 15
	}
	if err := b.readData(r, size, dataStart); err != nil {
		return nil, err
	}

	for _, e := range b.Entries {
		if e.Offset < 0 || e.Size < 0 || e.Offset > b.size || e.Size > b.size-e.Offset {
			return nil, fmt.Errorf("entry %q: %w", e.Name, ErrRange)
		}
	}
	return b, nil
}

func (b *Bundle) readInfo(info []byte) error {
	ir := binio.NewSectionReader(bytes.NewReader(info), 0, int64(len(info)), binary.BigEndian)
	ir.Bytes(b.Hash[:])

	var count int32
	ir.I32(&count)
	if ir.Err() == nil && (count < 0 || int64(count)*10 > int64(len(info))) {
		return decodeError(ir, "block info", fmt.Errorf("block count %d out of range", count))
	}
	b.Blocks = make([]Block, 0, count)
	for i := int32(0); i < count; i++ {
		var blk Block
		ir.U32(&blk.Size)
		ir.U32(&blk.CompressedSize)
		ir.U16(&blk.Flags)
		if ir.Err() != nil {
			break
		}
		b.Blocks = append(b.Blocks, blk)
	}

	ir.I32(&count)
	if ir.Err() == nil && (count < 0 || int64(count)*21 > int64(len(info))) {
		return decodeError(ir, "directory", fmt.Errorf("entry count %d out of range", count))
	}
	b.Entries = make([]Entry, 0, count)
	for i := int32(0); i < count; i++ {
		var e Entry
		ir.I64(&e.Offset)
		ir.I64(&e.Size)
		ir.U32(&e.Flags)
		ir.CString(&e.Name)
		if ir.Err() != nil {
			break
		}
		b.Entries = append(b.Entries, e)
	}
	return decodeError(ir, "directory", nil)
}

func (b *Bundle) readData(r io.ReaderAt, size, start int64) error {
	var stored, total int64
	compressed := false
	for _, blk := range b.Blocks {
		stored += int64(blk.CompressedSize)
		total += int64(blk.Size)
		if blk.Compression() != None {
			compressed = true
		}
	}
	if start > size || stored > size-start {
		return errors.DataError{Section: "data", Offset: start, Cause: ErrRange}
	}
	b.size = total
	if !compressed {
		if stored != total {
			return errors.DataError{Section: "data", Offset: start, Cause: fmt.Errorf("stored size %d differs from size %d", stored, total)}
		}
		b.data = io.NewSectionReader(r, start, total)
		return nil
	}

	data := make([]byte, 0, total)
	off := start
	for i, blk := range b.Blocks {
		src := make([]byte, blk.CompressedSize)
		if _, err := r.ReadAt(src, off); err != nil {
			return errors.DataError{Section: fmt.Sprintf("block %d", i), Offset: off, Cause: err}
		}
		out, err := decompress(src, blk.Size, blk.Compression())
		if err != nil {
			return errors.DataError{Section: fmt.Sprintf("block %d", i), Offset: off, Cause: err}
		}
		data = append(data, out...)
		off += int64(blk.CompressedSize)
	}
	b.data = bytes.NewReader(data)
	return nil
}

// decompress decodes src, expected to decode to size bytes.
func decompress(src []byte, size uint32, c Compression) ([]byte, error) {
	switch c {
	case None:
		if uint32(len(src)) != size {
			return nil, fmt.Errorf("stored size %d differs from size %d", len(src), size)
		}
		return src, nil
	case LZ4, LZ4HC:
		// lz4 expects the decompressed length before the compressed data.
		in := make([]byte, len(src)+4)
		binary.LittleEndian.PutUint32(in, size)
		copy(in[4:], src)
		out, err := lz4.Decode(make([]byte, size), in)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if uint32(len(out)) != size {
			return nil, fmt.Errorf("lz4: decoded %d bytes, expected %d", len(out), size)
		}
		return out, nil
	case LZMA:
		// Blocks store the 5 property bytes only; the lzma reader also wants
		// the decompressed length.
		if len(src) < 5 {
			return nil, fmt.Errorf("lzma: %w", io.ErrUnexpectedEOF)
		}
		hdr := make([]byte, 13)
		copy(hdr, src[:5])
		binary.LittleEndian.PutUint64(hdr[5:], uint64(size))
		zr, err := lzma.NewReader(io.MultiReader(bytes.NewReader(hdr), bytes.NewReader(src[5:])))
		if err != nil {
			return nil, fmt.Errorf("lzma: %w", err)
		}
		out := make([]byte, size)
		if _, err := io.ReadFull(zr, out); err != nil {
			return nil, fmt.Errorf("lzma: %w", err)
		}
		return out, nil
	default:
		return nil, ErrUnsupportedCompression(c)
	}
}
