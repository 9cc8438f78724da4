package submission

import (
	"time"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/models"
)

// SubmitDTO is the public submission body. The honeypot input travels inside
// Values like any other input.
type SubmitDTO struct {
	Values map[string]interface{} `json:"values" binding:"required"`
	Ticket string                 `json:"ticket"`
}

// PublicForm is what a visitor's browser needs to render a published form.
type PublicForm struct {
	FormID      string         `json:"form_id"`
	Version     int            `json:"version"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Tree        []*layout.Node `json:"tree"`
	Ticket      string         `json:"ticket"`
	Honeypot    string         `json:"honeypot,omitempty"`

	// Tables maps each table element ID to its cell grid.
	Tables map[string]layout.TableGrid `json:"tables,omitempty"`
}

type submitResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type submissionResponse struct {
	ID          string                 `json:"id"`
	FormID      string                 `json:"form_id"`
	FormVersion int                    `json:"form_version"`
	Values      map[string]interface{} `json:"values"`
	IP          string                 `json:"ip"`
	UserAgent   string                 `json:"user_agent"`
	CreatedAt   time.Time              `json:"created_at"`
}

func toResponse(s *models.SubmissionModel) submissionResponse {
	return submissionResponse{
		ID:          s.ID,
		FormID:      s.FormID,
		FormVersion: s.FormVersion,
		Values:      s.Values,
		IP:          s.IP,
		UserAgent:   s.UserAgent,
		CreatedAt:   s.CreatedAt,
	}
}

// ValidationError carries per-input messages for a rejected submission.
type ValidationError struct {
	Errors map[string][]string
}

func (e *ValidationError) Error() string { return "submission is invalid" }
