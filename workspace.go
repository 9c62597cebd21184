// The assetfile package loads serialized files and the bundles that contain
// them into a Workspace, where references between files can be followed.
//
// The formats themselves are handled by sub-packages. The "serialized"
// package decodes serialized files, "bundle" decodes the containers that
// pack them, and "typetree" and "classdb" describe the layouts of the objects
// inside. The "names" package derives display names for objects, and the
// "resource" package reads payloads that objects store outside of their
// records.
package assetfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/assetfile/assetfile/bundle"
	"github.com/assetfile/assetfile/classdb"
	"github.com/assetfile/assetfile/errors"
	"github.com/assetfile/assetfile/serialized"
)

// Workspace holds a set of loaded files. It implements names.FileSet. A
// Workspace is safe for concurrent use.
type Workspace struct {
	decoder serialized.Decoder

	mu      sync.RWMutex
	files   []*serialized.File
	byName  map[string]*serialized.File
	closers []io.Closer
}

// NewWorkspace returns an empty Workspace whose files use db for layouts
// missing from their type trees. If db is nil, classdb.Default is used.
func NewWorkspace(db *classdb.Database) *Workspace {
	return &Workspace{
		decoder: serialized.Decoder{ClassDB: db},
		byName:  map[string]*serialized.File{},
	}
}

// fileKey normalizes a file path to the key under which it is looked up.
// External paths such as "archive:/CAB-1234/CAB-1234" and
// "Library/unity default resources" reduce to their last element.
func fileKey(p string) string {
	return strings.ToLower(path.Base(strings.ReplaceAll(p, `\`, "/")))
}

// Open loads the file at name. A bundle contributes each of its serialized
// entries. Returns the files that were added, and non-fatal problems in
// warn.
func (ws *Workspace) Open(name string) (files []*serialized.File, warn, err error) {
	fh, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	sig := make([]byte, len(bundle.Signature)+1)
	n, _ := io.ReadFull(fh, sig)
	if bytes.Equal(sig[:n], []byte(bundle.Signature+"\x00")) {
		fh.Close()
		return ws.openBundle(name)
	}

	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, nil, err
	}
	f, warn, err := ws.decoder.Decode(fh, info.Size(), name)
	if err != nil {
		fh.Close()
		return nil, warn, fmt.Errorf("decode %s: %w", name, err)
	}
	ws.add(fh, f)
	return []*serialized.File{f}, warn, nil
}

func (ws *Workspace) openBundle(name string) (files []*serialized.File, warn, err error) {
	b, err := bundle.Open(name)
	if err != nil {
		return nil, nil, err
	}
	var warns errors.Errors
	for _, e := range b.Entries {
		if !e.IsSerialized() {
			continue
		}
		f, w, err := ws.decoder.DecodeEntry(b, e.Name)
		warns = warns.Append(w)
		if err != nil {
			warns = append(warns, fmt.Errorf("entry %s: %w", e.Name, err))
			log.WithFields(logrus.Fields{"bundle": name, "entry": e.Name}).Warn(err)
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		b.Close()
		return nil, warns.Return(), fmt.Errorf("bundle %s has no serialized entries", name)
	}
	ws.add(b, files...)
	log.WithFields(logrus.Fields{"bundle": name, "files": len(files)}).Debug("opened bundle")
	return files, warns.Return(), nil
}

func (ws *Workspace) add(c io.Closer, files ...*serialized.File) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.closers = append(ws.closers, c)
	for _, f := range files {
		ws.files = append(ws.files, f)
		key := fileKey(f.Path)
		if _, ok := ws.byName[key]; ok {
			log.WithField("file", f.Path).Debug("file name already loaded; keeping first")
			continue
		}
		ws.byName[key] = f
	}
}

// Files returns the loaded files in the order they were loaded.
func (ws *Workspace) Files() []*serialized.File {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return append([]*serialized.File(nil), ws.files...)
}

// Lookup returns the file that fileID refers to from within from. Externals
// are matched to loaded files by name, ignoring case.
func (ws *Workspace) Lookup(from *serialized.File, fileID int32) (*serialized.File, bool) {
	if fileID == 0 {
		return from, from != nil
	}
	if from == nil || fileID < 0 || int(fileID) > len(from.Externals) {
		return nil, false
	}
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	f, ok := ws.byName[fileKey(from.Externals[fileID-1].PathName)]
	return f, ok
}

// Close releases the handles of every loaded file.
func (ws *Workspace) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	var errs errors.Errors
	for _, c := range ws.closers {
		errs = errs.Append(c.Close())
	}
	ws.closers = nil
	ws.files = nil
	ws.byName = map[string]*serialized.File{}
	return errs.Return()
}
