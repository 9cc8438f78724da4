// Package store is the gorm-backed persistence for fields and layout elements.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/property"
	"github.com/mx-space/forms/internal/schema"
)

const byOrder = "`order` ASC, created_at ASC"

// Gorm implements property.Store and layout.ChildSource.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm { return &Gorm{db: db} }

// DB exposes the handle for callers that need a transaction spanning stores.
func (g *Gorm) DB() *gorm.DB { return g.db }

func (g *Gorm) FindField(ctx context.Context, id string) (*models.FieldModel, error) {
	var f models.FieldModel
	if err := g.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("field %s: %w", id, property.ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

func (g *Gorm) FindElement(ctx context.Context, id string) (*models.LayoutElementModel, error) {
	var e models.LayoutElementModel
	if err := g.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("element %s: %w", id, property.ErrNotFound)
		}
		return nil, err
	}
	return &e, nil
}

// Save writes every column of the entity's record.
func (g *Gorm) Save(ctx context.Context, e property.Entity) error {
	var record interface{}
	switch t := e.(type) {
	case *property.FieldEntity:
		record = t.Model
	case *property.ElementEntity:
		record = t.Model
	default:
		return fmt.Errorf("store: unsupported entity %T", e)
	}
	return g.db.WithContext(ctx).Save(record).Error
}

// SiblingSlugExists reports whether another field or element of the form
// already uses slug.
func (g *Gorm) SiblingSlugExists(ctx context.Context, kind schema.Kind, formID, slug, excludeID string) (bool, error) {
	var model interface{}
	switch kind {
	case schema.KindField:
		model = &models.FieldModel{}
	case schema.KindElement:
		model = &models.LayoutElementModel{}
	default:
		return false, fmt.Errorf("store: unknown kind %q", kind)
	}
	var n int64
	err := g.db.WithContext(ctx).Model(model).
		Where("form_id = ? AND element_id = ? AND id <> ?", formID, slug, excludeID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *Gorm) RootElements(ctx context.Context, formID string) ([]*models.LayoutElementModel, error) {
	return g.elements(ctx, "form_id = ? AND parent_id IS NULL AND parent_field_id IS NULL", formID)
}

func (g *Gorm) RootFields(ctx context.Context, formID string) ([]*models.FieldModel, error) {
	return g.fields(ctx, "form_id = ? AND layout_element_id IS NULL AND parent_field_id IS NULL", formID)
}

func (g *Gorm) ChildElements(ctx context.Context, parentID string) ([]*models.LayoutElementModel, error) {
	return g.elements(ctx, "parent_id = ?", parentID)
}

func (g *Gorm) ChildFields(ctx context.Context, elementID string) ([]*models.FieldModel, error) {
	return g.fields(ctx, "layout_element_id = ?", elementID)
}

func (g *Gorm) RepeaterElements(ctx context.Context, fieldID string) ([]*models.LayoutElementModel, error) {
	return g.elements(ctx, "parent_field_id = ? AND parent_id IS NULL", fieldID)
}

func (g *Gorm) RepeaterFields(ctx context.Context, fieldID string) ([]*models.FieldModel, error) {
	return g.fields(ctx, "parent_field_id = ? AND layout_element_id IS NULL", fieldID)
}

// FormFields lists every field of a form regardless of nesting.
func (g *Gorm) FormFields(ctx context.Context, formID string) ([]*models.FieldModel, error) {
	return g.fields(ctx, "form_id = ?", formID)
}

func (g *Gorm) elements(ctx context.Context, query string, args ...interface{}) ([]*models.LayoutElementModel, error) {
	var out []*models.LayoutElementModel
	if err := g.db.WithContext(ctx).Where(query, args...).Order(byOrder).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gorm) fields(ctx context.Context, query string, args ...interface{}) ([]*models.FieldModel, error) {
	var out []*models.FieldModel
	if err := g.db.WithContext(ctx).Where(query, args...).Order(byOrder).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// NextOrder returns one past the highest order among the children of the
// given parent, so a new item lands last.
func (g *Gorm) NextOrder(ctx context.Context, formID string, elementParent, fieldParent *string) (int, error) {
	const selectMax = "COALESCE(MAX(`order`), -1)"
	fieldQ := g.db.WithContext(ctx).Model(&models.FieldModel{}).Select(selectMax).Where("form_id = ?", formID)
	fieldQ = nullable(nullable(fieldQ, "layout_element_id", elementParent), "parent_field_id", fieldParent)
	elemQ := g.db.WithContext(ctx).Model(&models.LayoutElementModel{}).Select(selectMax).Where("form_id = ?", formID)
	elemQ = nullable(nullable(elemQ, "parent_id", elementParent), "parent_field_id", fieldParent)

	var fieldMax, elemMax int64
	if err := fieldQ.Scan(&fieldMax).Error; err != nil {
		return 0, err
	}
	if err := elemQ.Scan(&elemMax).Error; err != nil {
		return 0, err
	}
	if elemMax > fieldMax {
		fieldMax = elemMax
	}
	return int(fieldMax) + 1, nil
}

func nullable(q *gorm.DB, column string, v *string) *gorm.DB {
	if v == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *v)
}
