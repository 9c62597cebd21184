// Package resource reads payloads that objects store outside of their
// records, such as audio banks and streamed texture data.
//
// A payload is described by a Locator: a source path, a byte offset and a
// byte count. Depending on how the content was built, the source is either
// an entry of the bundle the owning file was loaded from, or a file on disk
// next to the owning file. Extract tries each location in a fixed order.
package resource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/assetfile/assetfile/serialized"
)

// ArchivePrefix marks source paths that refer to an entry of the containing
// bundle.
const ArchivePrefix = "archive:/"

// ErrNotFound indicates that no location holds the source of a Locator.
var ErrNotFound = errors.New("resource not found")

// Locator describes a byte range of an external source.
type Locator struct {
	Source string
	Offset uint64
	Size   uint64
}

func (loc Locator) String() string {
	return fmt.Sprintf("%s@%d+%d", loc.Source, loc.Offset, loc.Size)
}

// baseName returns the last element of a source path, which may use either
// separator.
func baseName(source string) string {
	return path.Base(strings.ReplaceAll(source, `\`, "/"))
}

// Extract reads the bytes described by loc on behalf of owner. If owner was
// loaded from a bundle, an entry of the bundle named like the source is read
// first. Otherwise, or if there is no such entry, the source is looked for
// on disk in the directory of owner, or in the directory of its bundle:
// first at its full relative path, then by file name only.
//
// Returns ErrNotFound if the source is empty or no location holds it. Other
// errors, such as permission failures or short reads, are returned as is.
func Extract(owner *serialized.File, loc Locator) ([]byte, error) {
	if loc.Source == "" {
		return nil, ErrNotFound
	}
	if loc.Offset > math.MaxInt64 || loc.Size > math.MaxInt64-loc.Offset {
		return nil, fmt.Errorf("resource range %s out of range", loc)
	}
	l := log.WithFields(logrus.Fields{"file": owner.Name(), "source": loc.Source})

	if b := owner.Bundle; b != nil {
		name := baseName(strings.TrimPrefix(loc.Source, ArchivePrefix))
		if e, ok := b.Entry(name); ok {
			l.WithField("entry", e.Name).Debug("reading from bundle")
			return b.ReadRange(e.Offset+int64(loc.Offset), int64(loc.Size))
		}
	}

	dir := filepath.Dir(owner.FullPath())
	if owner.Bundle != nil {
		dir = filepath.Dir(dir)
	}
	candidates := []string{
		filepath.Join(dir, filepath.FromSlash(loc.Source)),
		filepath.Join(dir, baseName(loc.Source)),
	}
	for _, name := range candidates {
		data, err := readFile(name, int64(loc.Offset), int64(loc.Size))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		l.WithField("path", name).Debug("reading from file")
		return data, nil
	}
	l.Debug("not found")
	return nil, ErrNotFound
}

// readFile reads size bytes at offset from the named file. Returns an error
// satisfying fs.ErrNotExist if the file does not exist or is a directory.
func readFile(name string, offset, size int64) ([]byte, error) {
	fh, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if offset+size > info.Size() {
		return nil, fmt.Errorf("read %s: %w", name, io.ErrUnexpectedEOF)
	}
	data := make([]byte, size)
	if _, err := fh.ReadAt(data, offset); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return data, nil
}

// ExtractObject reads the external payload of obj, as described by its
// locator field.
func ExtractObject(obj *serialized.Object) ([]byte, error) {
	loc, err := LocatorOf(obj)
	if err != nil {
		return nil, err
	}
	return Extract(obj.File, loc)
}
