package models

// FieldModel is an input placed on a form. It sits at the form root, inside a
// layout element, or inside a repeater field.
type FieldModel struct {
	Base
	FormID           string                 `json:"form_id"                     gorm:"type:char(36);index;not null"`
	LayoutElementID  *string                `json:"layout_element_id,omitempty" gorm:"type:char(36);index"`
	ParentFieldID    *string                `json:"parent_field_id,omitempty"   gorm:"type:char(36);index"`
	FieldType        string                 `json:"field_type"                  gorm:"not null"`
	Name             string                 `json:"name"                        gorm:"index"`
	Label            string                 `json:"label"`
	Placeholder      string                 `json:"placeholder"`
	HelpText         string                 `json:"help_text"                   gorm:"type:text"`
	ElementID        string                 `json:"element_id"                  gorm:"index"`
	Class            string                 `json:"class"`
	Style            string                 `json:"style"`
	IsRequired       bool                   `json:"is_required"                 gorm:"default:false"`
	Order            int                    `json:"order"                       gorm:"index;default:0"`
	Options          map[string]interface{} `json:"options"                     gorm:"type:longtext;serializer:json"`
	ValidationRules  StringArray            `json:"validation_rules"            gorm:"type:text"`
	ConditionalLogic map[string]interface{} `json:"conditional_logic"           gorm:"type:longtext;serializer:json"`
}

func (FieldModel) TableName() string { return "form_fields" }

// InputName is the key the field's value is submitted under.
func (f *FieldModel) InputName() string {
	if f.Name != "" {
		return f.Name
	}
	if f.ElementID != "" {
		return f.ElementID
	}
	return "field_" + f.ID
}
