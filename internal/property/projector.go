// Package property maps an entity's stored attributes to the editable working
// set described by its type's ConfigSchema, and writes edited working sets back.
package property

import (
	"fmt"

	"github.com/mx-space/forms/internal/pkg/nestedpath"
	"github.com/mx-space/forms/internal/schema"
)

// WorkingSet is the JSON-serialisable map the editor binds to.
type WorkingSet map[string]interface{}

// binding pairs where a property lives in the working set with where it is
// stored on the entity. For elements KeyPath is the dot-split key; for fields
// it is the key itself.
type binding struct {
	Desc    schema.Descriptor
	KeyPath []string
	Target  schema.Target
}

func bindings(kind schema.Kind, s *schema.ConfigSchema) []binding {
	out := make([]binding, 0, len(s.Properties))
	for _, d := range s.Properties {
		keyPath := []string{d.Key}
		if kind == schema.KindElement {
			if segs := nestedpath.Split(d.Key); len(segs) > 0 {
				keyPath = segs
			}
		}
		out = append(out, binding{Desc: d, KeyPath: keyPath, Target: d.Target})
	}
	return out
}

func checkSchema(e Entity, s *schema.ConfigSchema) error {
	if s == nil {
		return fmt.Errorf("%w: no schema for %s %q", schema.ErrUnknownType, e.Kind(), e.TypeName())
	}
	if s.Kind != e.Kind() || s.TypeName != e.TypeName() {
		return fmt.Errorf("%w: schema %s %q does not describe %s %q",
			schema.ErrUnknownType, s.Kind, s.TypeName, e.Kind(), e.TypeName())
	}
	return nil
}

// Projector reads entities into working sets. The zero value is ready to use.
type Projector struct{}

// Project reads every schema property from e, in schema order. Missing values
// resolve to the descriptor default; only a schema that does not describe e is
// an error.
func (Projector) Project(e Entity, s *schema.ConfigSchema) (WorkingSet, error) {
	if err := checkSchema(e, s); err != nil {
		return nil, err
	}
	blob := e.Blob()
	ws := WorkingSet{}
	for _, b := range bindings(e.Kind(), s) {
		v := readTarget(e, blob, b)
		if len(b.KeyPath) == 1 {
			ws[b.KeyPath[0]] = v
			continue
		}
		nestedpath.Set(ws, b.KeyPath, v)
	}
	return ws, nil
}

func readTarget(e Entity, blob map[string]interface{}, b binding) interface{} {
	d := b.Desc
	switch b.Target.Kind {
	case schema.TargetColumn:
		if v, ok := e.Column(d.Key); ok && v != nil {
			return v
		}
		return nestedpath.CloneValue(d.Default)

	case schema.TargetFlat:
		v, ok := nestedpath.Lookup(blob, []string{d.Key})
		if !ok {
			v = d.Default
		}
		switch d.Type {
		case schema.TypeCustom:
			if v == nil {
				return map[string]interface{}{}
			}
		case schema.TypeOptions:
			if !isSequence(v) {
				if isSequence(d.Default) {
					return nestedpath.CloneValue(d.Default)
				}
				return []interface{}{}
			}
		}
		return nestedpath.CloneValue(v)

	case schema.TargetNested:
		return nestedpath.CloneValue(nestedpath.GetSegments(blob, b.Target.Path, d.Default))

	case schema.TargetValidationRules:
		rules := e.ValidationRules()
		out := make([]string, 0, len(rules))
		return append(out, rules...)

	case schema.TargetConditionalLogic:
		return cloneBlob(e.ConditionalLogic())
	}

	v, ok := nestedpath.Lookup(blob, []string{d.Key})
	if !ok {
		v = d.Default
	}
	return nestedpath.CloneValue(v)
}

func isSequence(v interface{}) bool {
	switch v.(type) {
	case []interface{}, []string:
		return true
	}
	return false
}
