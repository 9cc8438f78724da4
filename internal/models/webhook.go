package models

import "time"

// WebhookModel is an outbound endpoint notified about a form's events.
type WebhookModel struct {
	Base
	FormID     string      `json:"form_id"     gorm:"type:char(36);index;not null"`
	PayloadURL string      `json:"payload_url" gorm:"not null"`
	Events     StringArray `json:"events"      gorm:"type:text"`
	Enabled    bool        `json:"enabled"     gorm:"default:true"`
	Secret     string      `json:"-"           gorm:"not null"`

	EventLogs []WebhookEventModel `json:"event_logs,omitempty" gorm:"foreignKey:HookID"`
}

func (WebhookModel) TableName() string { return "form_webhooks" }

// Subscribed reports whether the hook wants event.
func (w *WebhookModel) Subscribed(event string) bool {
	for _, e := range w.Events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}

// WebhookEventModel is the audit trail of webhook deliveries.
type WebhookEventModel struct {
	Base
	HookID    string                 `json:"hook_id"   gorm:"type:char(36);index;not null"`
	Event     string                 `json:"event"     gorm:"not null"`
	Headers   map[string]interface{} `json:"headers"   gorm:"type:longtext;serializer:json"`
	Payload   map[string]interface{} `json:"payload"   gorm:"type:longtext;serializer:json"`
	Response  map[string]interface{} `json:"response"  gorm:"type:longtext;serializer:json"`
	Success   bool                   `json:"success"`
	Status    int                    `json:"status"`
	Timestamp time.Time              `json:"timestamp" gorm:"index"`
}

func (WebhookEventModel) TableName() string { return "form_webhook_events" }
