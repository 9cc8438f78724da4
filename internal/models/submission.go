package models

// SubmissionModel is one response collected from a published form.
type SubmissionModel struct {
	Base
	FormID      string                 `json:"form_id"      gorm:"type:char(36);index;not null"`
	FormVersion int                    `json:"form_version"`
	Values      map[string]interface{} `json:"values"       gorm:"type:longtext;serializer:json"`
	IP          string                 `json:"ip"`
	UserAgent   string                 `json:"user_agent"   gorm:"type:text"`
}

func (SubmissionModel) TableName() string { return "form_submissions" }
