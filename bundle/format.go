// Package bundle implements a decoder and encoder for UnityFS container
// bundles.
//
// A bundle holds a directory of named entries, such as serialized files and
// the resource blobs they refer to, packed into one data stream that may be
// split into compressed blocks. The decoded Bundle exposes that stream
// through a single shared cursor; see Bundle.ReadRange.
package bundle

import (
	"errors"
	"fmt"
)

// Signature begins every UnityFS bundle.
const Signature = "UnityFS"

// Flags of the bundle header.
const (
	// CompressionMask selects the Compression of the block info.
	CompressionMask uint32 = 0x3f
	// FlagBlocksInfoCombined is set when block info and directory are
	// stored together.
	FlagBlocksInfoCombined uint32 = 0x40
	// FlagBlocksInfoAtEnd is set when the block info follows the data
	// instead of preceding it.
	FlagBlocksInfoAtEnd uint32 = 0x80
	// FlagPadBeforeData is set when the data begins on a 16-byte boundary.
	FlagPadBeforeData uint32 = 0x200
)

// Flags of a directory entry.
const (
	// EntrySerialized marks an entry that holds a serialized file.
	EntrySerialized uint32 = 0x04
)

// Compression identifies the codec of a block.
type Compression uint8

const (
	None Compression = iota
	LZMA
	LZ4
	LZ4HC
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZMA:
		return "lzma"
	case LZ4:
		return "lz4"
	case LZ4HC:
		return "lz4hc"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

var (
	// ErrInvalidSig indicates data that does not begin with Signature.
	ErrInvalidSig = errors.New("invalid bundle signature")
	// ErrRange indicates a read outside of the bundle's data.
	ErrRange = errors.New("range outside of bundle data")
)

// ErrUnrecognizedVersion indicates a bundle format version not supported by
// the codec.
type ErrUnrecognizedVersion uint32

func (err ErrUnrecognizedVersion) Error() string {
	return fmt.Sprintf("unrecognized bundle version %d", uint32(err))
}

// ErrUnsupportedCompression indicates a block codec not supported by the
// codec.
type ErrUnsupportedCompression Compression

func (err ErrUnsupportedCompression) Error() string {
	return "unsupported compression " + Compression(err).String()
}

const (
	minVersion = 6
	maxVersion = 8
)

// Header is the fixed header of a bundle.
type Header struct {
	Signature    string
	Version      uint32
	UnityVersion string
	Revision     string
	Size         int64
	// CompressedInfoSize and InfoSize are the stored and decoded sizes of
	// the block info.
	CompressedInfoSize uint32
	InfoSize           uint32
	Flags              uint32
}

// Compression returns the codec of the block info.
func (h Header) Compression() Compression {
	return Compression(h.Flags & CompressionMask)
}

// Block is one stored span of the data stream.
type Block struct {
	Size           uint32
	CompressedSize uint32
	Flags          uint16
}

// Compression returns the codec of the block.
func (b Block) Compression() Compression {
	return Compression(uint32(b.Flags) & CompressionMask)
}

// Entry is one named file in the bundle's directory.
type Entry struct {
	// Offset and Size locate the entry within the decompressed data.
	Offset int64
	Size   int64
	Flags  uint32
	Name   string
}

// IsSerialized returns whether the entry holds a serialized file.
func (e Entry) IsSerialized() bool {
	return e.Flags&EntrySerialized != 0
}
