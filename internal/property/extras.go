package property

import (
	"github.com/mx-space/forms/internal/pkg/nestedpath"
	"github.com/mx-space/forms/internal/schema"
)

// Field extras are edited outside the schema loop.
const (
	ExtraIsRequired        = "is_required"
	ExtraValidationOptions = "validation_options"
	ExtraConditionalLogic  = "conditional_logic"
)

// StateShape tells which extras an editor surface carries.
type StateShape interface {
	Supports(key string) bool
}

// KeySet is a StateShape backed by a set of keys.
type KeySet map[string]struct{}

func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s KeySet) Supports(key string) bool {
	_, ok := s[key]
	return ok
}

// FullShape supports every field extra.
var FullShape = NewKeySet(ExtraIsRequired, ExtraValidationOptions, ExtraConditionalLogic)

// ShapeOf supports exactly the keys present in state.
func ShapeOf(state map[string]interface{}) KeySet {
	s := make(KeySet, len(state))
	for k := range state {
		s[k] = struct{}{}
	}
	return s
}

// LoadFieldExtras reads the extras shape supports from a field. Other entity
// kinds have none.
func LoadFieldExtras(e Entity, shape StateShape) map[string]interface{} {
	out := map[string]interface{}{}
	if e.Kind() != schema.KindField || shape == nil {
		return out
	}
	if shape.Supports(ExtraIsRequired) {
		v, _ := e.Column(ExtraIsRequired)
		out[ExtraIsRequired] = toBool(v)
	}
	if shape.Supports(ExtraValidationOptions) {
		out[ExtraValidationOptions] = DecodeRules(e.ValidationRules())
	}
	if shape.Supports(ExtraConditionalLogic) {
		out[ExtraConditionalLogic] = cloneBlob(e.ConditionalLogic())
	}
	return out
}

// applyFieldExtras writes extras back. As in the schema loop, an empty
// validation option map or empty logic leaves the stored value alone.
func applyFieldExtras(e Entity, state map[string]interface{}, shape StateShape) error {
	if e.Kind() != schema.KindField || shape == nil {
		return nil
	}
	if shape.Supports(ExtraIsRequired) {
		if v, ok := state[ExtraIsRequired]; ok {
			if err := e.SetColumn(ExtraIsRequired, toBool(v)); err != nil {
				return err
			}
		}
	}
	if shape.Supports(ExtraValidationOptions) {
		if opts, ok := nestedpath.AsMap(state[ExtraValidationOptions]); ok && len(opts) > 0 {
			e.SetValidationRules(EncodeRules(keepBareRules(opts, e.ValidationRules())))
		}
	}
	if shape.Supports(ExtraConditionalLogic) {
		if logic, ok := nestedpath.AsMap(state[ExtraConditionalLogic]); ok && len(logic) > 0 {
			e.SetConditionalLogic(nestedpath.Clone(logic))
		}
	}
	return nil
}

// keepBareRules maps "" back to true for keys stored as bare rules, which is
// how LoadFieldExtras hands them to the editor.
func keepBareRules(opts map[string]interface{}, current []string) map[string]interface{} {
	stored := DecodeRules(current)
	out := make(map[string]interface{}, len(opts))
	for k, v := range opts {
		if s, isString := v.(string); isString && s == "" {
			if prev, ok := stored[k]; ok && prev == "" {
				v = true
			}
		}
		out[k] = v
	}
	return out
}

// SameRules reports whether an editor option map is exactly what
// LoadFieldExtras produced for rules.
func SameRules(opts map[string]interface{}, rules []string) bool {
	stored := DecodeRules(rules)
	if len(opts) != len(stored) {
		return false
	}
	for k, v := range opts {
		prev, ok := stored[k]
		if !ok {
			return false
		}
		if s, isString := v.(string); !isString || s != prev {
			return false
		}
	}
	return true
}
