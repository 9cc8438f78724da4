// Package schema holds the catalog of field and layout-element types and the
// ordered property descriptors that drive the generic property editor.
package schema

import (
	"encoding/json"
	"errors"
)

// ErrUnknownType is returned when the catalog has no schema for a type.
var ErrUnknownType = errors.New("unknown type")

// Kind tells fields and layout elements apart.
type Kind string

const (
	KindField   Kind = "field"
	KindElement Kind = "element"
)

// Namespace returns the extension blob name for the kind.
func (k Kind) Namespace() string {
	if k == KindElement {
		return NamespaceSettings
	}
	return NamespaceOptions
}

// Descriptor types with special handling.
const (
	TypeHTML    = "html"
	TypeDivider = "divider"
	TypeHeading = "heading"
	TypeCustom  = "custom"
	TypeOptions = "options"
)

// Descriptor describes one editable property of a type.
type Descriptor struct {
	Key     string
	Type    string
	Label   string
	Target  Target
	Default interface{}
}

// DisplayOnly reports whether the property is a preview-only entry that is
// never written back.
func (d Descriptor) DisplayOnly() bool {
	switch d.Type {
	case TypeHTML, TypeDivider, TypeHeading:
		return true
	}
	return false
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key     string      `json:"key"`
		Type    string      `json:"type"`
		Label   string      `json:"label,omitempty"`
		Target  string      `json:"target"`
		Default interface{} `json:"default"`
	}{d.Key, d.Type, d.Label, d.Target.Raw, d.Default})
}

// ConfigSchema is the ordered list of descriptors for one type.
type ConfigSchema struct {
	Kind       Kind
	TypeName   string
	Properties []Descriptor
	index      map[string]int
}

// NewConfigSchema builds a schema; a repeated key keeps its first position and
// takes the last descriptor.
func NewConfigSchema(kind Kind, typeName string, props []Descriptor) *ConfigSchema {
	s := &ConfigSchema{Kind: kind, TypeName: typeName, index: make(map[string]int, len(props))}
	for _, p := range props {
		if i, ok := s.index[p.Key]; ok {
			s.Properties[i] = p
			continue
		}
		s.index[p.Key] = len(s.Properties)
		s.Properties = append(s.Properties, p)
	}
	return s
}

// Lookup returns the descriptor for key.
func (s *ConfigSchema) Lookup(key string) (Descriptor, bool) {
	i, ok := s.index[key]
	if !ok {
		return Descriptor{}, false
	}
	return s.Properties[i], true
}

// Keys returns the property keys in schema order.
func (s *ConfigSchema) Keys() []string {
	out := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		out[i] = p.Key
	}
	return out
}

func (s *ConfigSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind       Kind         `json:"kind"`
		Type       string       `json:"type"`
		Properties []Descriptor `json:"properties"`
	}{s.Kind, s.TypeName, s.Properties})
}
