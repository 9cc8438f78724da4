package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/property"
	"github.com/mx-space/forms/internal/schema"
)

// OrderUpdate moves one field or element to a new sibling position.
type OrderUpdate struct {
	ID    string      `json:"id"    binding:"required"`
	Kind  schema.Kind `json:"kind"  binding:"required,oneof=field element"`
	Order int         `json:"order"`
}

func (g *Gorm) CreateField(ctx context.Context, f *models.FieldModel) error {
	return g.db.WithContext(ctx).Create(f).Error
}

func (g *Gorm) CreateElement(ctx context.Context, e *models.LayoutElementModel) error {
	return g.db.WithContext(ctx).Create(e).Error
}

// DeleteNodes removes the given fields and elements in one transaction.
func (g *Gorm) DeleteNodes(ctx context.Context, fieldIDs, elementIDs []string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fieldIDs) > 0 {
			if err := tx.Where("id IN ?", fieldIDs).Delete(&models.FieldModel{}).Error; err != nil {
				return err
			}
		}
		if len(elementIDs) > 0 {
			if err := tx.Where("id IN ?", elementIDs).Delete(&models.LayoutElementModel{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Reorder applies every update or none. Rows outside formID count as missing.
func (g *Gorm) Reorder(ctx context.Context, formID string, updates []OrderUpdate) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			var model interface{}
			switch u.Kind {
			case schema.KindField:
				model = &models.FieldModel{}
			case schema.KindElement:
				model = &models.LayoutElementModel{}
			default:
				return fmt.Errorf("store: unknown kind %q", u.Kind)
			}
			res := tx.Model(model).Where("id = ? AND form_id = ?", u.ID, formID).Update("order", u.Order)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%s %s: %w", u.Kind, u.ID, property.ErrNotFound)
			}
		}
		return nil
	})
}

// FormExists reports whether a live form has id.
func (g *Gorm) FormExists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := g.db.WithContext(ctx).Model(&models.FormModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
