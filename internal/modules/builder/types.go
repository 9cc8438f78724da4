package builder

import (
	"github.com/mx-space/forms/internal/property"
	"github.com/mx-space/forms/internal/schema"
	"github.com/mx-space/forms/internal/store"
)

type CreateFieldDTO struct {
	FieldType       string  `json:"field_type"        binding:"required"`
	LayoutElementID *string `json:"layout_element_id"`
	ParentFieldID   *string `json:"parent_field_id"`
	Label           string  `json:"label"`
	Name            string  `json:"name"`
}

type CreateElementDTO struct {
	ElementType   string  `json:"element_type"    binding:"required"`
	ParentID      *string `json:"parent_id"`
	ParentFieldID *string `json:"parent_field_id"`
}

// SavePropertiesDTO carries the edited working set. Extras is only read for
// fields and only the keys present are written.
type SavePropertiesDTO struct {
	Properties property.WorkingSet     `json:"properties" binding:"required"`
	Extras     map[string]interface{} `json:"extras"`
}

type ReorderDTO struct {
	Items []store.OrderUpdate `json:"items" binding:"required,min=1,dive"`
}

// PropertiesResponse is what the editor loads for one item.
type PropertiesResponse struct {
	Schema     *schema.ConfigSchema   `json:"schema"`
	Properties property.WorkingSet    `json:"properties"`
	Extras     map[string]interface{} `json:"extras,omitempty"`
}
