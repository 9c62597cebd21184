// Package names derives display names for objects of serialized files
// without decoding their full field graphs.
//
// Most classes store their name as the first field, which is read directly.
// GameObjects and script instances have fixed leading layouts that are
// skipped by known byte counts. Every other object is labelled by its type
// and path ID.
package names

import (
	"errors"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/assetfile/assetfile/internal/binio"
	"github.com/assetfile/assetfile/serialized"
	"github.com/assetfile/assetfile/typetree"
)

// Kind selects how the name of an object is read.
type Kind uint8

const (
	// Generic objects are labelled by type and path ID.
	Generic Kind = iota
	// NamedField objects begin with an m_Name string.
	NamedField
	// GameObject objects store their name after the component list and
	// layer.
	GameObject
	// ScriptInstance objects store their name after a fixed header, and may
	// be named by their script class instead.
	ScriptInstance
)

func (k Kind) String() string {
	switch k {
	case NamedField:
		return "NamedField"
	case GameObject:
		return "GameObject"
	case ScriptInstance:
		return "ScriptInstance"
	default:
		return "Generic"
	}
}

// Byte counts of fixed layouts.
const (
	// scriptHeaderSize covers m_GameObject, m_Enabled with padding, and
	// m_Script.
	scriptHeaderSize = 0x1c
	// Component records lost their class ID field after this format
	// version.
	compactComponentVersion = 0x10
	componentSize           = 12
	legacyComponentSize     = 16
)

// DefaultCacheSize is the number of type plans retained by a Resolver
// created with a non-positive size.
const DefaultCacheSize = 1024

var (
	// ErrTruncated indicates a name that extends past the object record.
	ErrTruncated = errors.New("object record truncated")
	// ErrNoFileSet indicates a script reference that cannot be followed
	// because the Resolver has no FileSet.
	ErrNoFileSet = errors.New("no file set to follow script reference")
)

// FileSet locates the files referred to by object references.
type FileSet interface {
	// Lookup returns the file that fileID refers to from within from. A
	// fileID of 0 refers to from itself; otherwise it is an index into
	// from.Externals, plus one.
	Lookup(from *serialized.File, fileID int32) (*serialized.File, bool)
}

// Result is a display name and type label. Name and Type are always usable;
// Fault records why a fallback was chosen, if any.
type Result struct {
	Name  string
	Type  string
	Fault error
}

// Degraded returns whether the result is a fallback.
func (r Result) Degraded() bool {
	return r.Fault != nil
}

// ResolveFault wraps the error that caused a fallback.
type ResolveFault struct {
	PathID int64
	Kind   Kind
	Cause  error
}

func (err ResolveFault) Error() string {
	return fmt.Sprintf("resolve name of object %d (%s): %s", err.PathID, err.Kind, err.Cause)
}

func (err ResolveFault) Unwrap() error {
	return err.Cause
}

type planKey struct {
	file      *serialized.File
	typeIndex int
	classID   int32
}

// plan is the outcome of inspecting a type descriptor once.
type plan struct {
	kind     Kind
	typeName string
	err      error
}

// Resolver resolves display names. It is safe for concurrent use.
type Resolver struct {
	// Files is used to follow script references into other files. If nil,
	// only references within the same file are followed.
	Files FileSet

	plans *lru.Cache[planKey, plan]
}

// NewResolver returns a Resolver that retains the plans of up to size types.
func NewResolver(files FileSet, size int) *Resolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	plans, err := lru.New[planKey, plan](size)
	if err != nil {
		// Only returned for non-positive sizes.
		panic(err)
	}
	return &Resolver{Files: files, plans: plans}
}

// typeCode returns the type identifier shown for objects without a known
// type. Before format version 16 it is the object's type ID, which is
// negative for script types.
func typeCode(obj *serialized.Object) int32 {
	if obj.File.Header.Version < 16 {
		return obj.TypeID
	}
	return obj.ClassID
}

func generic(typeName string, pathID int64) string {
	return fmt.Sprintf("%s #%d", typeName, pathID)
}

// Plan returns the kind selected for the type of obj, and its type name.
func (r *Resolver) Plan(obj *serialized.Object) (Kind, string, error) {
	p := r.plan(obj)
	return p.kind, p.typeName, p.err
}

func (r *Resolver) plan(obj *serialized.Object) plan {
	f := obj.File
	key := planKey{file: f, typeIndex: f.TypeIndex(obj), classID: obj.ClassID}
	if key.typeIndex >= 0 && f.Header.Version >= 16 {
		// The type entry determines the class.
		key.classID = 0
	}
	if r.plans != nil {
		if p, ok := r.plans.Get(key); ok {
			return p
		}
	}
	p := selectPlan(f, obj)
	if r.plans != nil {
		r.plans.Add(key, p)
	}
	return p
}

func selectPlan(f *serialized.File, obj *serialized.Object) plan {
	d, err := f.Descriptor(obj)
	if err != nil {
		return plan{err: err}
	}
	p := plan{typeName: d.Name}
	fields := d.Tree.Fields()
	switch {
	case len(fields) == 0:
		p.kind = Generic
	case d.Tree.Nodes[fields[0]].Name == "m_Name":
		p.kind = NamedField
	case d.Name == "GameObject":
		p.kind = GameObject
	case d.Name == "MonoBehaviour":
		p.kind = ScriptInstance
	}
	return p
}

// Resolve returns the display name and type label of obj. If usePrefix is
// set, GameObject names are prefixed with their type name.
func (r *Resolver) Resolve(obj *serialized.Object, usePrefix bool) Result {
	if obj == nil || obj.File == nil {
		return Result{Name: "Unnamed asset", Type: "Unknown type", Fault: errors.New("nil object")}
	}
	p := r.plan(obj)
	if p.err != nil {
		return r.fault(obj, Result{
			Name: fmt.Sprintf("Unnamed asset #%d", obj.PathID),
			Type: fmt.Sprintf("0x%08X", uint32(typeCode(obj))),
		}, p.kind, p.err)
	}

	res := Result{Type: p.typeName}
	f := obj.File
	br := binio.NewSectionReader(f.Data, obj.Offset(), int64(obj.ByteSize), f.Order())
	var name string
	var err error
	switch p.kind {
	case NamedField:
		name, err = readName(br)
	case GameObject:
		width := int64(legacyComponentSize)
		if f.Header.Version > compactComponentVersion {
			width = componentSize
		}
		var count int32
		if br.I32(&count) {
			err = br.Err()
			break
		}
		if count < 0 || int64(count)*width > br.Max-br.N() {
			err = fmt.Errorf("%w: %d components", ErrTruncated, count)
			break
		}
		if br.Skip(int64(count)*width + 4) {
			err = br.Err()
			break
		}
		if name, err = readName(br); err == nil && name != "" && usePrefix {
			name = p.typeName + " " + name
		}
	case ScriptInstance:
		if br.Skip(scriptHeaderSize) {
			err = br.Err()
			break
		}
		if name, err = readName(br); err == nil && name == "" {
			if name, err = r.ScriptClass(obj); err != nil {
				res.Name = generic(p.typeName, obj.PathID)
				return r.fault(obj, res, p.kind, err)
			}
		}
	}
	if err != nil {
		res.Name = fmt.Sprintf("Unnamed asset #%d", obj.PathID)
		return r.fault(obj, res, p.kind, err)
	}
	if name == "" {
		name = generic(p.typeName, obj.PathID)
	}
	res.Name = name
	return res
}

func (r *Resolver) fault(obj *serialized.Object, res Result, kind Kind, err error) Result {
	res.Fault = ResolveFault{PathID: obj.PathID, Kind: kind, Cause: err}
	log.WithFields(logrus.Fields{
		"file":   obj.File.Name(),
		"pathID": obj.PathID,
		"kind":   kind,
	}).Debugf("fallback name %q: %s", res.Name, err)
	return res
}

func readName(br *binio.Reader) (string, error) {
	var s string
	if br.String(&s) {
		err := br.Err()
		if errors.Is(err, binio.ErrStringLength) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("%w: %s", ErrTruncated, err)
		}
		return "", err
	}
	return s, nil
}

// ScriptClass returns the class name of the script that obj is an instance
// of. The object's m_Script reference is read by walking its layout from the
// start, and the referenced script's m_ClassName is read in the same way.
// Type plans are neither consulted nor stored.
func (r *Resolver) ScriptClass(obj *serialized.Object) (string, error) {
	ref, err := readField(obj, "m_Script", func(w *typetree.Walker, i int) (interface{}, error) {
		return w.PPtr(i)
	})
	if err != nil {
		return "", err
	}
	pptr := ref.(typetree.PPtr)
	if pptr.IsNull() {
		return "", errors.New("script reference is null")
	}

	target := obj.File
	if pptr.FileID != 0 {
		if r.Files == nil {
			return "", ErrNoFileSet
		}
		var ok bool
		if target, ok = r.Files.Lookup(obj.File, pptr.FileID); !ok {
			return "", fmt.Errorf("script file %d not loaded", pptr.FileID)
		}
	}
	script, ok := target.Object(pptr.PathID)
	if !ok {
		return "", fmt.Errorf("script object %d not found in %s", pptr.PathID, target.Name())
	}
	v, err := readField(script, "m_ClassName", func(w *typetree.Walker, i int) (interface{}, error) {
		return w.String(i)
	})
	if err != nil {
		return "", err
	}
	name := v.(string)
	if name == "" {
		return "", errors.New("script class name is empty")
	}
	return name, nil
}

// readField decodes one top-level field of obj using its descriptor.
func readField(obj *serialized.Object, name string, read func(*typetree.Walker, int) (interface{}, error)) (interface{}, error) {
	f := obj.File
	d, err := f.Descriptor(obj)
	if err != nil {
		return nil, err
	}
	br := binio.NewSectionReader(f.Data, obj.Offset(), int64(obj.ByteSize), f.Order())
	w := typetree.NewWalker(br, d.Tree)
	i, err := w.Seek(name)
	if err != nil {
		return nil, err
	}
	return read(w, i)
}
