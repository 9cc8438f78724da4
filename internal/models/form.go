package models

import (
	"encoding/json"
	"time"
)

// FormModel is a form definition owned by the builder.
type FormModel struct {
	Base
	Title       string                 `json:"title"        gorm:"not null"`
	Description string                 `json:"description"  gorm:"type:text"`
	Settings    map[string]interface{} `json:"settings"     gorm:"type:longtext;serializer:json"`
	IsActive    bool                   `json:"is_active"    gorm:"default:true"`
	Version     int                    `json:"version"      gorm:"default:0"`
	PublishedAt *time.Time             `json:"published_at"`
}

func (FormModel) TableName() string { return "forms" }

// NotifyEmails returns the notification recipients configured in settings.
func (f *FormModel) NotifyEmails() []string {
	raw, ok := f.Settings["notify_emails"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// FormVersionModel is an immutable snapshot of a form's layout taken on publish.
type FormVersionModel struct {
	Base
	FormID   string          `json:"form_id"            gorm:"type:char(36);index;not null"`
	Version  int             `json:"version"            gorm:"not null"`
	Title    string          `json:"title"`
	Snapshot json.RawMessage `json:"snapshot,omitempty" gorm:"type:longtext"`
}

func (FormVersionModel) TableName() string { return "form_versions" }
