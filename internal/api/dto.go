package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/daybook/internal/calendar"
	"github.com/starford/daybook/internal/index"
	"github.com/starford/daybook/internal/models"
)

// JournalEntry is a list item (aliased from the domain layer).
type JournalEntry = models.JournalEntry

// CalendarResponse is the calendar panel payload.
type CalendarResponse = calendar.Result

// UpdateEntryRequest is the request body for saving an entry.
type UpdateEntryRequest struct {
	Content string `json:"content" example:"# Journal Entry for May 1, 2024\n\nHello" validate:"required"`
}

// Validate implements validation.Validatable.
func (r UpdateEntryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

// StatusResponse acknowledges a write.
type StatusResponse struct {
	Status string `json:"status" example:"ok" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// WidgetCallRequest asks the hub to call a procedure on open pages.
type WidgetCallRequest struct {
	Name string            `json:"name" example:"update_journal" validate:"required"`
	Args map[string]string `json:"args,omitempty"`
}

// Validate implements validation.Validatable.
func (r WidgetCallRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// WidgetCallResponse carries the page acknowledgements. Error is set when
// some pages failed.
type WidgetCallResponse struct {
	Acks  []string `json:"acks" validate:"required"`
	Error string   `json:"error,omitempty"`
}

// CurrentEntryResponse names the entry most recently opened by a page.
type CurrentEntryResponse struct {
	Filename string `json:"filename" example:"2024-05-01-093015-entry.md"`
}
