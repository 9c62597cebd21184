package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bkaradzic/go-lz4"
	"golang.org/x/crypto/blake2b"

	"github.com/assetfile/assetfile/internal/binio"
)

// DefaultBlockSize is the decompressed size of the blocks written by Writer.
const DefaultBlockSize = 0x20000

// File is the content of one directory entry to be written.
type File struct {
	Name  string
	Data  []byte
	Flags uint32
}

// Writer encodes bundles. The zero value writes a version 6 bundle with
// uncompressed blocks.
type Writer struct {
	Version      uint32
	UnityVersion string
	Revision     string
	// Compression applies to the data blocks and the block info. LZMA is not
	// supported for writing.
	Compression Compression
	BlockSize   int
}

func compress(src []byte, c Compression) ([]byte, error) {
	switch c {
	case None:
		return src, nil
	case LZ4, LZ4HC:
		out, err := lz4.Encode(nil, src)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		// lz4 prepends the decompressed length, which blocks do not store.
		if binary.LittleEndian.Uint32(out[:4]) != uint32(len(src)) {
			return nil, fmt.Errorf("lz4: encoded length does not match input length")
		}
		return out[4:], nil
	default:
		return nil, ErrUnsupportedCompression(c)
	}
}

// Encode writes a bundle containing files, in order, to w.
func (wr Writer) Encode(w io.Writer, files []File) error {
	version := wr.Version
	if version == 0 {
		version = minVersion
	}
	if version < minVersion || version > maxVersion {
		return ErrUnrecognizedVersion(version)
	}
	blockSize := wr.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	var data []byte
	entries := make([]Entry, len(files))
	for i, f := range files {
		entries[i] = Entry{Offset: int64(len(data)), Size: int64(len(f.Data)), Flags: f.Flags, Name: f.Name}
		data = append(data, f.Data...)
	}

	var blocks []Block
	var stored [][]byte
	for off := 0; off < len(data); off += blockSize {
		end := off + blockSize
		if end > len(data) {
			end = len(data)
		}
		out, err := compress(data[off:end], wr.Compression)
		if err != nil {
			return err
		}
		blocks = append(blocks, Block{Size: uint32(end - off), CompressedSize: uint32(len(out)), Flags: uint16(wr.Compression)})
		stored = append(stored, out)
	}

	hash, err := blake2b.New(16, nil)
	if err != nil {
		return err
	}
	hash.Write(data)

	var info bytes.Buffer
	iw := binio.NewWriter(&info, binary.BigEndian)
	iw.Raw(hash.Sum(nil))
	iw.I32(int32(len(blocks)))
	for _, blk := range blocks {
		iw.U32(blk.Size)
		iw.U32(blk.CompressedSize)
		iw.U16(blk.Flags)
	}
	iw.I32(int32(len(entries)))
	for _, e := range entries {
		iw.I64(e.Offset)
		iw.I64(e.Size)
		iw.U32(e.Flags)
		iw.CString(e.Name)
	}
	if err := iw.Err(); err != nil {
		return err
	}
	storedInfo, err := compress(info.Bytes(), wr.Compression)
	if err != nil {
		return err
	}

	flags := uint32(wr.Compression) | FlagBlocksInfoCombined
	if version >= 7 {
		flags |= FlagPadBeforeData
	}

	headerSize := int64(len(Signature)+1) + 4 + int64(len(wr.UnityVersion)+1) + int64(len(wr.Revision)+1) + 8 + 12
	if version >= 7 {
		headerSize = (headerSize + 15) &^ 15
	}
	dataStart := headerSize + int64(len(storedInfo))
	if flags&FlagPadBeforeData != 0 {
		dataStart = (dataStart + 15) &^ 15
	}
	total := dataStart
	for _, s := range stored {
		total += int64(len(s))
	}

	bw := binio.NewWriter(w, binary.BigEndian)
	bw.CString(Signature)
	bw.U32(version)
	bw.CString(wr.UnityVersion)
	bw.CString(wr.Revision)
	bw.I64(total)
	bw.U32(uint32(len(storedInfo)))
	bw.U32(uint32(info.Len()))
	bw.U32(flags)
	if version >= 7 {
		bw.Align(16)
	}
	bw.Raw(storedInfo)
	if flags&FlagPadBeforeData != 0 {
		bw.Align(16)
	}
	for _, s := range stored {
		bw.Raw(s)
	}
	return bw.Err()
}
