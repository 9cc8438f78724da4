package form

import (
	"time"

	"github.com/mx-space/forms/internal/models"
)

type CreateFormDTO struct {
	Title       string                 `json:"title"       binding:"required,max=200"`
	Description string                 `json:"description"`
	Settings    map[string]interface{} `json:"settings"`
	IsActive    *bool                  `json:"is_active"`
}

type UpdateFormDTO struct {
	Title       *string                `json:"title"       binding:"omitempty,min=1,max=200"`
	Description *string                `json:"description"`
	Settings    map[string]interface{} `json:"settings"`
	IsActive    *bool                  `json:"is_active"`
}

type PublishDTO struct {
	// ExpiresInHours bounds the public link; zero keeps it valid forever.
	ExpiresInHours int `json:"expires_in_hours" binding:"gte=0"`
}

// PublishResult is returned after a publish.
type PublishResult struct {
	Version     int        `json:"version"`
	Token       string     `json:"token"`
	URL         string     `json:"url"`
	PublishedAt time.Time  `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type versionResponse struct {
	ID      string    `json:"id"`
	Version int       `json:"version"`
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
}

func toVersionResponse(v *models.FormVersionModel) versionResponse {
	return versionResponse{ID: v.ID, Version: v.Version, Title: v.Title, Created: v.CreatedAt}
}
