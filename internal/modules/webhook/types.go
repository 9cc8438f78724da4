package webhook

import (
	"strings"
	"time"

	"github.com/mx-space/forms/internal/models"
)

// Events a hook may subscribe to. "*" subscribes to all of them.
const (
	EventSubmissionCreated = "submission.created"
	EventSubmissionDeleted = "submission.deleted"
	EventFormPublished     = "form.published"
	EventAll               = "*"
)

var eventEnum = []string{
	EventSubmissionCreated,
	EventSubmissionDeleted,
	EventFormPublished,
}

type CreateWebhookDTO struct {
	PayloadURL string   `json:"payload_url" binding:"required,url"`
	Events     []string `json:"events"      binding:"required,min=1"`
	Enabled    *bool    `json:"enabled"`
	Secret     string   `json:"secret"`
}

type UpdateWebhookDTO struct {
	PayloadURL *string  `json:"payload_url" binding:"omitempty,url"`
	Events     []string `json:"events"`
	Enabled    *bool    `json:"enabled"`
	Secret     *string  `json:"secret"`
}

// Envelope is the JSON body posted to a hook.
type Envelope struct {
	Event     string      `json:"event"`
	FormID    string      `json:"form_id"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type webhookResponse struct {
	ID         string    `json:"id"`
	FormID     string    `json:"form_id"`
	PayloadURL string    `json:"payload_url"`
	Events     []string  `json:"events"`
	Enabled    bool      `json:"enabled"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"modified"`
}

func toResponse(w *models.WebhookModel) webhookResponse {
	events := []string(w.Events)
	if events == nil {
		events = []string{}
	}
	return webhookResponse{
		ID: w.ID, FormID: w.FormID, PayloadURL: w.PayloadURL, Events: events,
		Enabled: w.Enabled, Created: w.CreatedAt, Modified: w.UpdatedAt,
	}
}

// normalizeEvents lowercases, dedupes and drops unknown events. "*" wins.
func normalizeEvents(events []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(events))
	for _, event := range events {
		next := strings.ToLower(strings.TrimSpace(event))
		if next == "" {
			continue
		}
		if next == EventAll || next == "all" {
			return []string{EventAll}
		}
		if !knownEvent(next) {
			continue
		}
		if _, ok := seen[next]; ok {
			continue
		}
		seen[next] = struct{}{}
		out = append(out, next)
	}
	return out
}

func knownEvent(event string) bool {
	for _, e := range eventEnum {
		if e == event {
			return true
		}
	}
	return false
}
