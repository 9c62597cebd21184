// Package serialized implements a decoder and encoder for serialized files:
// the object archives that hold the objects of one scene or asset group.
//
// A serialized file starts with a header, followed by metadata describing
// the types and objects it contains. The metadata lists each object's path
// ID, type, and the location of its record within the data region. Field
// layouts are either embedded in the metadata as type trees, or left out and
// supplied by a class database.
//
// Format versions 12 through 22 are supported.
package serialized

import (
	"errors"
	"fmt"
)

const (
	MinVersion = 12
	MaxVersion = 22
)

// Format versions at which the layout changes.
const (
	versionTypeTreeFlag  = 13
	versionLongPathID    = 14
	versionTypeIndex     = 16
	versionScriptIndex   = 17
	versionRefTypes      = 20
	versionDependencies  = 21
	versionLargeFiles    = 22
	headerSize           = 20
	largeHeaderSize      = 48
	monoBehaviourClassID = 114
)

var (
	// ErrNoDescriptor indicates an object whose layout is known neither from
	// the file's type trees nor from the class database.
	ErrNoDescriptor = errors.New("no type descriptor")
	// ErrUnknownType indicates an object that refers to a type missing from
	// the file's type list.
	ErrUnknownType = errors.New("object type not listed")
)

// ErrUnrecognizedVersion indicates a format version not supported by the
// codec.
type ErrUnrecognizedVersion uint32

func (err ErrUnrecognizedVersion) Error() string {
	return fmt.Sprintf("unrecognized serialized file version %d", uint32(err))
}

// Header is the fixed header of a serialized file.
type Header struct {
	MetadataSize uint32
	FileSize     int64
	Version      uint32
	// DataOffset is the position of the data region; object records are
	// located relative to it.
	DataOffset int64
	// BigEndian is set when the metadata and objects are big-endian. The
	// header itself is always big-endian.
	BigEndian bool
}

// Size returns the encoded size of the header.
func (h Header) Size() int64 {
	if h.Version >= versionLargeFiles {
		return largeHeaderSize
	}
	return headerSize
}

// Source identifies where a Descriptor came from.
type Source uint8

const (
	SourceNone Source = iota
	SourceTypeTree
	SourceClassDB
)

func (s Source) String() string {
	switch s {
	case SourceTypeTree:
		return "type tree"
	case SourceClassDB:
		return "class database"
	default:
		return "none"
	}
}
