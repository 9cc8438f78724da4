package property

import (
	"context"

	"github.com/mx-space/forms/internal/schema"
)

type mapEntity struct {
	kind     schema.Kind
	id       string
	formID   string
	typeName string
	columns  map[string]interface{}
	blob     map[string]interface{}
	rules    []string
	logic    map[string]interface{}
}

func (e *mapEntity) Kind() schema.Kind { return e.kind }
func (e *mapEntity) EntityID() string  { return e.id }
func (e *mapEntity) FormID() string    { return e.formID }
func (e *mapEntity) TypeName() string  { return e.typeName }

func (e *mapEntity) Column(key string) (interface{}, bool) {
	v, ok := e.columns[key]
	if s, isStr := v.(string); isStr && s == "" {
		return nil, ok
	}
	return v, ok
}

func (e *mapEntity) SetColumn(key string, value interface{}) error {
	if _, ok := e.columns[key]; !ok {
		return ErrUnknownColumn
	}
	e.columns[key] = value
	return nil
}

func (e *mapEntity) Blob() map[string]interface{}                     { return e.blob }
func (e *mapEntity) SetBlob(blob map[string]interface{})              { e.blob = blob }
func (e *mapEntity) ValidationRules() []string                        { return e.rules }
func (e *mapEntity) SetValidationRules(rules []string)                { e.rules = rules }
func (e *mapEntity) ConditionalLogic() map[string]interface{}         { return e.logic }
func (e *mapEntity) SetConditionalLogic(logic map[string]interface{}) { e.logic = logic }

type slugEntry struct {
	formID string
	id     string
	slug   string
}

type fakeStore struct {
	slugs   map[schema.Kind][]slugEntry
	saveErr error
	slugErr error
	saved   []Entity
	checked []schema.Kind
}

func (s *fakeStore) Save(_ context.Context, e Entity) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, e)
	return nil
}

func (s *fakeStore) SiblingSlugExists(_ context.Context, kind schema.Kind, formID, slug, excludeID string) (bool, error) {
	s.checked = append(s.checked, kind)
	if s.slugErr != nil {
		return false, s.slugErr
	}
	for _, entry := range s.slugs[kind] {
		if entry.formID == formID && entry.slug == slug && entry.id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func desc(key, typ, target string, def interface{}) schema.Descriptor {
	return schema.Descriptor{Key: key, Type: typ, Target: schema.ParseTarget(target), Default: def}
}
