package models

// Table sub-hierarchy element types.
const (
	ElementTable       = "table"
	ElementTableHeader = "table_header"
	ElementTableBody   = "table_body"
	ElementTableFooter = "table_footer"
	ElementTableRow    = "table_row"
	ElementTableCell   = "table_cell"
)

// LayoutElementModel is a structural node (container, row, tabs, table cell…)
// that groups fields and other elements.
type LayoutElementModel struct {
	Base
	FormID        string                 `json:"form_id"                   gorm:"type:char(36);index;not null"`
	ParentID      *string                `json:"parent_id,omitempty"       gorm:"type:char(36);index"`
	ParentFieldID *string                `json:"parent_field_id,omitempty" gorm:"type:char(36);index"`
	ElementType   string                 `json:"element_type"              gorm:"not null"`
	ElementID     string                 `json:"element_id"                gorm:"index"`
	Class         string                 `json:"class"`
	Style         string                 `json:"style"`
	Order         int                    `json:"order"                     gorm:"index;default:0"`
	Settings      map[string]interface{} `json:"settings"                  gorm:"type:longtext;serializer:json"`
}

func (LayoutElementModel) TableName() string { return "form_layout_elements" }
