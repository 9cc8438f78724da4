package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	js "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var builtinCatalog []byte

//go:embed catalog.schema.json
var catalogSchemaJSON string

var catalogSchema = js.MustCompileString("catalog.schema.json", catalogSchemaJSON)

// Registry maps type names to their ConfigSchema. It is populated once at
// startup and read-only afterwards, so it is safe for concurrent readers.
type Registry struct {
	fields   map[string]*ConfigSchema
	elements map[string]*ConfigSchema
}

// ConfigSchema returns the schema for a field or element type.
func (r *Registry) ConfigSchema(kind Kind, typeName string) (*ConfigSchema, error) {
	var set map[string]*ConfigSchema
	switch kind {
	case KindField:
		set = r.fields
	case KindElement:
		set = r.elements
	}
	s, ok := set[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownType, kind, typeName)
	}
	return s, nil
}

// Has reports whether the registry knows typeName for kind.
func (r *Registry) Has(kind Kind, typeName string) bool {
	_, err := r.ConfigSchema(kind, typeName)
	return err == nil
}

// Types lists the registered type names of a kind, sorted.
func (r *Registry) Types(kind Kind) []string {
	set := r.fields
	if kind == KindElement {
		set = r.elements
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadBuiltin parses the catalog compiled into the binary.
func LoadBuiltin() (*Registry, error) {
	return Parse(builtinCatalog)
}

// LoadFile parses a catalog file; an empty path selects the builtin catalog.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return LoadBuiltin()
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	r, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}
	return r, nil
}

// Parse validates a YAML catalog and builds a Registry. Property order inside
// each type follows the document order.
func Parse(content []byte) (*Registry, error) {
	if err := validateCatalog(content); err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(content)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("catalog is empty")
	}
	root := doc.Content[0]

	common := map[Kind][]Descriptor{}
	if n := mappingValue(root, "common"); n != nil {
		for _, kind := range []Kind{KindField, KindElement} {
			props, err := parseProperties(mappingValue(n, sectionName(kind)))
			if err != nil {
				return nil, fmt.Errorf("common.%s: %w", sectionName(kind), err)
			}
			common[kind] = props
		}
	}

	r := &Registry{
		fields:   map[string]*ConfigSchema{},
		elements: map[string]*ConfigSchema{},
	}
	for _, kind := range []Kind{KindField, KindElement} {
		section := mappingValue(root, sectionName(kind))
		if section == nil {
			continue
		}
		set := r.fields
		if kind == KindElement {
			set = r.elements
		}
		for i := 0; i+1 < len(section.Content); i += 2 {
			typeName := section.Content[i].Value
			props, err := parseProperties(section.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", sectionName(kind), typeName, err)
			}
			all := make([]Descriptor, 0, len(common[kind])+len(props))
			all = append(all, common[kind]...)
			all = append(all, props...)
			set[typeName] = NewConfigSchema(kind, typeName, all)
		}
	}
	return r, nil
}

type rawDescriptor struct {
	Type    string      `yaml:"type"`
	Target  string      `yaml:"target"`
	Label   string      `yaml:"label"`
	Default interface{} `yaml:"default"`
}

func parseProperties(n *yaml.Node) ([]Descriptor, error) {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, nil
	}
	out := make([]Descriptor, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		var raw rawDescriptor
		if err := n.Content[i+1].Decode(&raw); err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		out = append(out, Descriptor{
			Key:     key,
			Type:    raw.Type,
			Label:   raw.Label,
			Target:  ParseTarget(raw.Target),
			Default: normalizeDefault(raw.Default),
		})
	}
	return out, nil
}

// normalizeDefault turns YAML-decoded values into the shapes JSON decoding
// produces, so defaults and editor payloads compare equal.
func normalizeDefault(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func validateCatalog(content []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if doc == nil {
		return errors.New("catalog is empty")
	}
	normalized := normalizeDefault(doc)
	if err := catalogSchema.Validate(normalized); err != nil {
		var verr *js.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid catalog: %s", verr.Error())
		}
		return err
	}
	return nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func sectionName(kind Kind) string {
	if kind == KindElement {
		return "elements"
	}
	return "fields"
}
