package property

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/pkg/nestedpath"
	"github.com/mx-space/forms/internal/schema"
)

// Entity is the view of a field or layout element the projector and committer
// work on. Column returns ok=false for names the entity does not have and a nil
// value for columns that hold nothing yet.
type Entity interface {
	Kind() schema.Kind
	EntityID() string
	FormID() string
	TypeName() string

	Column(key string) (interface{}, bool)
	SetColumn(key string, value interface{}) error

	Blob() map[string]interface{}
	SetBlob(blob map[string]interface{})

	ValidationRules() []string
	SetValidationRules(rules []string)
	ConditionalLogic() map[string]interface{}
	SetConditionalLogic(logic map[string]interface{})
}

// SlugColumn is the author-chosen identifier that must be unique per form.
const SlugColumn = "element_id"

type column[M any] struct {
	get func(m *M) interface{}
	set func(m *M, v interface{}) error
}

// stringColumn reports "" as nil. String columns are NOT NULL, so the empty
// string is their unset state and projects to the descriptor default. A
// column descriptor with a non-empty default therefore cannot be cleared
// back to "" by the editor.
func stringColumn[M any](field func(m *M) *string) column[M] {
	return column[M]{
		get: func(m *M) interface{} {
			if s := *field(m); s != "" {
				return s
			}
			return nil
		},
		set: func(m *M, v interface{}) error {
			*field(m) = toString(v)
			return nil
		},
	}
}

func boolColumn[M any](field func(m *M) *bool) column[M] {
	return column[M]{
		get: func(m *M) interface{} { return *field(m) },
		set: func(m *M, v interface{}) error {
			*field(m) = toBool(v)
			return nil
		},
	}
}

func intColumn[M any](field func(m *M) *int) column[M] {
	return column[M]{
		get: func(m *M) interface{} { return *field(m) },
		set: func(m *M, v interface{}) error {
			n, err := toInt(v)
			if err != nil {
				return err
			}
			*field(m) = n
			return nil
		},
	}
}

var fieldColumns = map[string]column[models.FieldModel]{
	"label":       stringColumn(func(m *models.FieldModel) *string { return &m.Label }),
	"name":        stringColumn(func(m *models.FieldModel) *string { return &m.Name }),
	"placeholder": stringColumn(func(m *models.FieldModel) *string { return &m.Placeholder }),
	"help_text":   stringColumn(func(m *models.FieldModel) *string { return &m.HelpText }),
	SlugColumn:    stringColumn(func(m *models.FieldModel) *string { return &m.ElementID }),
	"class":       stringColumn(func(m *models.FieldModel) *string { return &m.Class }),
	"style":       stringColumn(func(m *models.FieldModel) *string { return &m.Style }),
	"is_required": boolColumn(func(m *models.FieldModel) *bool { return &m.IsRequired }),
	"order":       intColumn(func(m *models.FieldModel) *int { return &m.Order }),
}

var elementColumns = map[string]column[models.LayoutElementModel]{
	SlugColumn: stringColumn(func(m *models.LayoutElementModel) *string { return &m.ElementID }),
	"class":    stringColumn(func(m *models.LayoutElementModel) *string { return &m.Class }),
	"style":    stringColumn(func(m *models.LayoutElementModel) *string { return &m.Style }),
	"order":    intColumn(func(m *models.LayoutElementModel) *int { return &m.Order }),
}

// FieldEntity adapts a FieldModel.
type FieldEntity struct {
	Model *models.FieldModel
}

func NewFieldEntity(m *models.FieldModel) *FieldEntity { return &FieldEntity{Model: m} }

func (e *FieldEntity) Kind() schema.Kind { return schema.KindField }
func (e *FieldEntity) EntityID() string  { return e.Model.ID }
func (e *FieldEntity) FormID() string    { return e.Model.FormID }
func (e *FieldEntity) TypeName() string  { return e.Model.FieldType }

func (e *FieldEntity) Column(key string) (interface{}, bool) {
	c, ok := fieldColumns[key]
	if !ok {
		return nil, false
	}
	return c.get(e.Model), true
}

func (e *FieldEntity) SetColumn(key string, value interface{}) error {
	c, ok := fieldColumns[key]
	if !ok {
		return fmt.Errorf("%w: field has no column %q", ErrUnknownColumn, key)
	}
	if err := c.set(e.Model, value); err != nil {
		return fmt.Errorf("column %q: %w", key, err)
	}
	return nil
}

func (e *FieldEntity) Blob() map[string]interface{}        { return e.Model.Options }
func (e *FieldEntity) SetBlob(blob map[string]interface{}) { e.Model.Options = blob }

func (e *FieldEntity) ValidationRules() []string { return e.Model.ValidationRules }
func (e *FieldEntity) SetValidationRules(rules []string) {
	e.Model.ValidationRules = models.StringArray(rules)
}

func (e *FieldEntity) ConditionalLogic() map[string]interface{} { return e.Model.ConditionalLogic }
func (e *FieldEntity) SetConditionalLogic(logic map[string]interface{}) {
	e.Model.ConditionalLogic = logic
}

// ElementEntity adapts a LayoutElementModel. Elements carry no validation
// rules or conditional logic.
type ElementEntity struct {
	Model *models.LayoutElementModel
}

func NewElementEntity(m *models.LayoutElementModel) *ElementEntity {
	return &ElementEntity{Model: m}
}

func (e *ElementEntity) Kind() schema.Kind { return schema.KindElement }
func (e *ElementEntity) EntityID() string  { return e.Model.ID }
func (e *ElementEntity) FormID() string    { return e.Model.FormID }
func (e *ElementEntity) TypeName() string  { return e.Model.ElementType }

func (e *ElementEntity) Column(key string) (interface{}, bool) {
	c, ok := elementColumns[key]
	if !ok {
		return nil, false
	}
	return c.get(e.Model), true
}

func (e *ElementEntity) SetColumn(key string, value interface{}) error {
	c, ok := elementColumns[key]
	if !ok {
		return fmt.Errorf("%w: element has no column %q", ErrUnknownColumn, key)
	}
	if err := c.set(e.Model, value); err != nil {
		return fmt.Errorf("column %q: %w", key, err)
	}
	return nil
}

func (e *ElementEntity) Blob() map[string]interface{}        { return e.Model.Settings }
func (e *ElementEntity) SetBlob(blob map[string]interface{}) { e.Model.Settings = blob }

func (e *ElementEntity) ValidationRules() []string                 { return nil }
func (e *ElementEntity) SetValidationRules([]string)               {}
func (e *ElementEntity) ConditionalLogic() map[string]interface{}  { return nil }
func (e *ElementEntity) SetConditionalLogic(map[string]interface{}) {}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]interface{}, []interface{}:
		return ""
	}
	return fmt.Sprint(v)
}

func toBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}

func toInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

// cloneBlob copies an entity blob so working sets never alias stored maps.
func cloneBlob(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return nestedpath.Clone(m)
}
