// Package manifest loads the YAML workspace documents the CLI feeds
// to the resolution engine: typeclass declarations, type shapes,
// instance registrations and queries. The engine itself never reads
// files; it only sees the converted descriptors.
package manifest

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/typesugar/typesugar/internal/config"
	"github.com/typesugar/typesugar/internal/typedesc"
	"github.com/typesugar/typesugar/internal/typekey"
)

// Method is one method signature of a typeclass declaration.
type Method struct {
	Name       string   `yaml:"name"`
	TypeParams []string `yaml:"type_params,omitempty"`
	Params     []string `yaml:"params,omitempty"`
	Return     string   `yaml:"return,omitempty"`
}

// Typeclass is a typeclass declaration.
type Typeclass struct {
	Name    string   `yaml:"name"`
	Methods []Method `yaml:"methods,omitempty"`
}

// FieldDecl is one field of a product type or variant.
type FieldDecl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// VariantDecl is one arm of a sum type. Tag is the discriminant value
// selecting this variant.
type VariantDecl struct {
	Name   string      `yaml:"name"`
	Tag    string      `yaml:"tag"`
	Fields []FieldDecl `yaml:"fields,omitempty"`
}

// TypeDecl is the shape declaration of one named type.
type TypeDecl struct {
	Name         string        `yaml:"name"`
	Kind         string        `yaml:"kind"` // product, sum or opaque
	Params       []string      `yaml:"params,omitempty"`
	Fields       []FieldDecl   `yaml:"fields,omitempty"`
	Discriminant string        `yaml:"discriminant,omitempty"`
	Variants     []VariantDecl `yaml:"variants,omitempty"`
}

// InstanceDecl registers an explicit instance. A non-empty Module
// marks the declaration as imported from that module.
type InstanceDecl struct {
	Typeclass string `yaml:"typeclass"`
	For       string `yaml:"for"`
	Module    string `yaml:"module,omitempty"`
}

// QueryDecl is one resolution request to run after scanning.
type QueryDecl struct {
	Typeclass  string `yaml:"typeclass"`
	Type       string `yaml:"type"`
	ModuleHint string `yaml:"module_hint,omitempty"`
}

// Document is one workspace file. Declaration order within a document
// is registration order; documents themselves register in the
// lexicographic path order LoadAll establishes.
type Document struct {
	Options     *config.Options `yaml:"options,omitempty"`
	Typeclasses []Typeclass     `yaml:"typeclasses,omitempty"`
	Types       []TypeDecl      `yaml:"types,omitempty"`
	Instances   []InstanceDecl  `yaml:"instances,omitempty"`
	Queries     []QueryDecl     `yaml:"queries,omitempty"`

	Path string `yaml:"-"`
}

// Load reads and validates one workspace document.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes document data. The path is recorded for location
// tokens and error messages.
func Parse(data []byte, path string) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadAll loads every path in lexicographic order. Registration
// determinism across runs depends on this ordering.
func LoadAll(paths []string) ([]*Document, error) {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	docs := make([]*Document, 0, len(sorted))
	for _, path := range sorted {
		doc, err := Load(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (d *Document) validate() error {
	for _, t := range d.Types {
		switch t.Kind {
		case "product", "sum", "opaque":
		default:
			return fmt.Errorf("%s: type %s: kind must be product, sum or opaque, got %q", d.Path, t.Name, t.Kind)
		}
	}
	for _, inst := range d.Instances {
		if inst.Typeclass == "" || inst.For == "" {
			return fmt.Errorf("%s: instance needs both typeclass and for", d.Path)
		}
	}
	for _, q := range d.Queries {
		if q.Typeclass == "" || q.Type == "" {
			return fmt.Errorf("%s: query needs both typeclass and type", d.Path)
		}
	}
	return nil
}

// Descriptor converts the declaration to an engine type descriptor.
func (t TypeDecl) Descriptor() (typedesc.TypeDescriptor, error) {
	var desc typedesc.TypeDescriptor
	switch t.Kind {
	case "product":
		fields, err := parseFields(t.Name, t.Fields)
		if err != nil {
			return desc, err
		}
		desc = typedesc.Product(t.Name, fields...)
	case "sum":
		variants := make([]typedesc.Variant, 0, len(t.Variants))
		for _, v := range t.Variants {
			fields, err := parseFields(t.Name+"."+v.Name, v.Fields)
			if err != nil {
				return desc, err
			}
			variants = append(variants, typedesc.Variant{
				Name:         v.Name,
				Discriminant: v.Tag,
				Fields:       fields,
			})
		}
		desc = typedesc.Sum(t.Name, t.Discriminant, variants...)
	default:
		desc = typedesc.Opaque(t.Name)
	}
	if len(t.Params) > 0 {
		desc = desc.WithParams(t.Params...)
	}
	return desc, nil
}

func parseFields(owner string, decls []FieldDecl) ([]typedesc.Field, error) {
	fields := make([]typedesc.Field, 0, len(decls))
	for _, f := range decls {
		key, err := typekey.Parse(f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", owner, f.Name, err)
		}
		fields = append(fields, typedesc.Field{Name: f.Name, Type: key})
	}
	return fields, nil
}

// ForKey parses the instance's type key.
func (i InstanceDecl) ForKey() (typekey.Key, error) {
	key, err := typekey.Parse(i.For)
	if err != nil {
		return nil, fmt.Errorf("instance %s for %q: %w", i.Typeclass, i.For, err)
	}
	return key, nil
}

// TypeKey parses the query's type key.
func (q QueryDecl) TypeKey() (typekey.Key, error) {
	key, err := typekey.Parse(q.Type)
	if err != nil {
		return nil, fmt.Errorf("query %s for %q: %w", q.Typeclass, q.Type, err)
	}
	return key, nil
}
