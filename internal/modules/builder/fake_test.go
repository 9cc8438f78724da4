package builder

import (
	"context"
	"fmt"
	"sort"

	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/property"
	"github.com/mx-space/forms/internal/schema"
	"github.com/mx-space/forms/internal/store"
)

// memRepo keeps rows by value so edits only land through Save.
type memRepo struct {
	forms    map[string]bool
	fields   []models.FieldModel
	elements []models.LayoutElementModel
	seq      int
	saveErr  error
}

func newMemRepo(formIDs ...string) *memRepo {
	r := &memRepo{forms: map[string]bool{}}
	for _, id := range formIDs {
		r.forms[id] = true
	}
	return r
}

func (r *memRepo) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s%d", prefix, r.seq)
}

func (r *memRepo) addField(f models.FieldModel) *models.FieldModel {
	if f.ID == "" {
		f.ID = r.nextID("f")
	}
	r.fields = append(r.fields, f)
	return &r.fields[len(r.fields)-1]
}

func (r *memRepo) addElement(e models.LayoutElementModel) *models.LayoutElementModel {
	if e.ID == "" {
		e.ID = r.nextID("e")
	}
	r.elements = append(r.elements, e)
	return &r.elements[len(r.elements)-1]
}

func (r *memRepo) field(id string) *models.FieldModel {
	for i := range r.fields {
		if r.fields[i].ID == id {
			return &r.fields[i]
		}
	}
	return nil
}

func (r *memRepo) element(id string) *models.LayoutElementModel {
	for i := range r.elements {
		if r.elements[i].ID == id {
			return &r.elements[i]
		}
	}
	return nil
}

func (r *memRepo) FormExists(_ context.Context, id string) (bool, error) { return r.forms[id], nil }

func (r *memRepo) FindField(_ context.Context, id string) (*models.FieldModel, error) {
	if f := r.field(id); f != nil {
		cp := *f
		return &cp, nil
	}
	return nil, fmt.Errorf("field %s: %w", id, property.ErrNotFound)
}

func (r *memRepo) FindElement(_ context.Context, id string) (*models.LayoutElementModel, error) {
	if e := r.element(id); e != nil {
		cp := *e
		return &cp, nil
	}
	return nil, fmt.Errorf("element %s: %w", id, property.ErrNotFound)
}

func (r *memRepo) Save(_ context.Context, e property.Entity) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	switch t := e.(type) {
	case *property.FieldEntity:
		*r.field(t.Model.ID) = *t.Model
	case *property.ElementEntity:
		*r.element(t.Model.ID) = *t.Model
	}
	return nil
}

func (r *memRepo) SiblingSlugExists(_ context.Context, kind schema.Kind, formID, slug, excludeID string) (bool, error) {
	if kind == schema.KindField {
		for _, f := range r.fields {
			if f.FormID == formID && f.ElementID == slug && f.ID != excludeID {
				return true, nil
			}
		}
		return false, nil
	}
	for _, e := range r.elements {
		if e.FormID == formID && e.ElementID == slug && e.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func eq(p *string, v string) bool { return p != nil && *p == v }

func (r *memRepo) elementsWhere(keep func(e *models.LayoutElementModel) bool) ([]*models.LayoutElementModel, error) {
	var out []*models.LayoutElementModel
	for i := range r.elements {
		if keep(&r.elements[i]) {
			cp := r.elements[i]
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *memRepo) fieldsWhere(keep func(f *models.FieldModel) bool) ([]*models.FieldModel, error) {
	var out []*models.FieldModel
	for i := range r.fields {
		if keep(&r.fields[i]) {
			cp := r.fields[i]
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *memRepo) RootElements(_ context.Context, formID string) ([]*models.LayoutElementModel, error) {
	return r.elementsWhere(func(e *models.LayoutElementModel) bool {
		return e.FormID == formID && e.ParentID == nil && e.ParentFieldID == nil
	})
}

func (r *memRepo) RootFields(_ context.Context, formID string) ([]*models.FieldModel, error) {
	return r.fieldsWhere(func(f *models.FieldModel) bool {
		return f.FormID == formID && f.LayoutElementID == nil && f.ParentFieldID == nil
	})
}

func (r *memRepo) ChildElements(_ context.Context, parentID string) ([]*models.LayoutElementModel, error) {
	return r.elementsWhere(func(e *models.LayoutElementModel) bool { return eq(e.ParentID, parentID) })
}

func (r *memRepo) ChildFields(_ context.Context, elementID string) ([]*models.FieldModel, error) {
	return r.fieldsWhere(func(f *models.FieldModel) bool { return eq(f.LayoutElementID, elementID) })
}

func (r *memRepo) RepeaterElements(_ context.Context, fieldID string) ([]*models.LayoutElementModel, error) {
	return r.elementsWhere(func(e *models.LayoutElementModel) bool {
		return eq(e.ParentFieldID, fieldID) && e.ParentID == nil
	})
}

func (r *memRepo) RepeaterFields(_ context.Context, fieldID string) ([]*models.FieldModel, error) {
	return r.fieldsWhere(func(f *models.FieldModel) bool {
		return eq(f.ParentFieldID, fieldID) && f.LayoutElementID == nil
	})
}

func (r *memRepo) NextOrder(_ context.Context, formID string, elementParent, fieldParent *string) (int, error) {
	same := func(a, b *string) bool {
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		return *a == *b
	}
	max := -1
	for _, f := range r.fields {
		if f.FormID == formID && same(f.LayoutElementID, elementParent) && same(f.ParentFieldID, fieldParent) && f.Order > max {
			max = f.Order
		}
	}
	for _, e := range r.elements {
		if e.FormID == formID && same(e.ParentID, elementParent) && same(e.ParentFieldID, fieldParent) && e.Order > max {
			max = e.Order
		}
	}
	return max + 1, nil
}

func (r *memRepo) CreateField(_ context.Context, f *models.FieldModel) error {
	f.ID = r.nextID("f")
	r.fields = append(r.fields, *f)
	return nil
}

func (r *memRepo) CreateElement(_ context.Context, e *models.LayoutElementModel) error {
	e.ID = r.nextID("e")
	r.elements = append(r.elements, *e)
	return nil
}

func (r *memRepo) DeleteNodes(_ context.Context, fieldIDs, elementIDs []string) error {
	drop := map[string]bool{}
	for _, id := range append(append([]string{}, fieldIDs...), elementIDs...) {
		drop[id] = true
	}
	fields := r.fields[:0]
	for _, f := range r.fields {
		if !drop[f.ID] {
			fields = append(fields, f)
		}
	}
	r.fields = fields
	elements := r.elements[:0]
	for _, e := range r.elements {
		if !drop[e.ID] {
			elements = append(elements, e)
		}
	}
	r.elements = elements
	return nil
}

func (r *memRepo) Reorder(_ context.Context, formID string, updates []store.OrderUpdate) error {
	for _, u := range updates {
		switch u.Kind {
		case schema.KindField:
			f := r.field(u.ID)
			if f == nil || f.FormID != formID {
				return fmt.Errorf("field %s: %w", u.ID, property.ErrNotFound)
			}
			f.Order = u.Order
		case schema.KindElement:
			e := r.element(u.ID)
			if e == nil || e.FormID != formID {
				return fmt.Errorf("element %s: %w", u.ID, property.ErrNotFound)
			}
			e.Order = u.Order
		}
	}
	return nil
}
