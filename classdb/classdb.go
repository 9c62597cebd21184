// Package classdb provides field layouts keyed by class ID, for serialized
// files that were built without embedded type trees.
package classdb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/assetfile/assetfile/typetree"
)

// Class is the layout of one built-in class.
type Class struct {
	ID   int32
	Name string
	Tree typetree.Tree
}

// Database maps class IDs to layouts. A Database is safe for concurrent
// reads once built.
type Database struct {
	classes map[int32]*Class
}

// New returns a Database containing the given classes. Later classes replace
// earlier ones with the same ID.
func New(classes ...*Class) *Database {
	db := &Database{classes: make(map[int32]*Class, len(classes))}
	for _, c := range classes {
		db.classes[c.ID] = c
	}
	return db
}

// Lookup returns the class with the given ID.
func (db *Database) Lookup(id int32) (*Class, bool) {
	if db == nil {
		return nil, false
	}
	c, ok := db.classes[id]
	return c, ok
}

// Name returns the name of the class with the given ID, or an empty string.
func (db *Database) Name(id int32) string {
	if c, ok := db.Lookup(id); ok {
		return c.Name
	}
	return ""
}

// Classes returns every class ordered by ID.
func (db *Database) Classes() []*Class {
	list := make([]*Class, 0, len(db.classes))
	for _, c := range db.classes {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Merge returns a Database with the classes of db replaced or extended by
// those of other.
func (db *Database) Merge(other *Database) *Database {
	merged := New(db.Classes()...)
	for id, c := range other.classes {
		merged.classes[id] = c
	}
	return merged
}

////////////////////////////////////////////////////////////////

type document struct {
	Classes []docClass `json:"classes" yaml:"classes"`
}

type docClass struct {
	ID     int32      `json:"id" yaml:"id"`
	Name   string     `json:"name" yaml:"name"`
	Fields []docField `json:"fields" yaml:"fields"`
}

type docField struct {
	Level   uint8  `json:"level" yaml:"level"`
	Type    string `json:"type" yaml:"type"`
	Name    string `json:"name" yaml:"name"`
	Size    int32  `json:"size" yaml:"size"`
	Flags   uint32 `json:"flags,omitempty" yaml:"flags,omitempty"`
	Array   bool   `json:"array,omitempty" yaml:"array,omitempty"`
	Version uint16 `json:"version,omitempty" yaml:"version,omitempty"`
}

// Load decodes a JSON class database. The fields of each class are listed
// in pre-order with their depth, the root first at level 0:
//
//	{"classes": [{"id": 49, "name": "TextAsset", "fields": [
//		{"level": 0, "type": "TextAsset", "name": "Base", "size": -1},
//		...]}]}
func Load(r io.Reader) (*Database, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode class database: %w", err)
	}
	return doc.database()
}

// LoadYAML decodes a class database in the YAML form of the document read by
// Load.
func LoadYAML(r io.Reader) (*Database, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode class database: %w", err)
	}
	return doc.database()
}

func (doc document) database() (*Database, error) {
	classes := make([]*Class, 0, len(doc.Classes))
	for _, jc := range doc.Classes {
		c := &Class{ID: jc.ID, Name: jc.Name}
		for i, f := range jc.Fields {
			if i == 0 && f.Level != 0 || i > 0 && f.Level == 0 {
				return nil, fmt.Errorf("class %d (%s): field %d: only the first field may be at level 0", jc.ID, jc.Name, i)
			}
			if i > 0 && f.Level > jc.Fields[i-1].Level+1 {
				return nil, fmt.Errorf("class %d (%s): field %d skips a level", jc.ID, jc.Name, i)
			}
			n := typetree.Node{
				Version:  f.Version,
				Level:    f.Level,
				Type:     f.Type,
				Name:     f.Name,
				ByteSize: f.Size,
				Index:    int32(i),
				MetaFlag: f.Flags,
			}
			if f.Array {
				n.TypeFlags |= typetree.FlagArray
			}
			c.Tree.Nodes = append(c.Tree.Nodes, n)
		}
		if c.Name == "" {
			c.Name = c.Tree.TypeName()
		}
		classes = append(classes, c)
	}
	return New(classes...), nil
}

// LoadFile decodes the class database at path. Files with a .yaml or .yml
// extension are decoded as YAML, and all others as JSON.
func LoadFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	}
	return Load(f)
}

func (db *Database) document() document {
	var doc document
	for _, c := range db.Classes() {
		jc := docClass{ID: c.ID, Name: c.Name, Fields: []docField{}}
		for _, n := range c.Tree.Nodes {
			jc.Fields = append(jc.Fields, docField{
				Level:   n.Level,
				Type:    n.Type,
				Name:    n.Name,
				Size:    n.ByteSize,
				Flags:   n.MetaFlag,
				Array:   n.TypeFlags&typetree.FlagArray != 0,
				Version: n.Version,
			})
		}
		doc.Classes = append(doc.Classes, jc)
	}
	return doc
}

// Save encodes db as a JSON class database readable by Load.
func (db *Database) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(db.document())
}

// SaveYAML encodes db as a YAML class database readable by LoadYAML.
func (db *Database) SaveYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(db.document()); err != nil {
		return err
	}
	return enc.Close()
}
