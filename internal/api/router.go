package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/daybook/internal/calendar"
	"github.com/starford/daybook/internal/journal"
	"github.com/starford/daybook/internal/widget"
)

// Deps are the services behind the API.
type Deps struct {
	Journal  *journal.Service
	Calendar *calendar.Service
	Widget   widget.Config
	// Hub, if non-nil, serves the page socket and the call endpoints.
	Hub *widget.Hub
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
	Now    func() time.Time
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(deps Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(deps)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/journal-entries", h.ListEntries)
	r.Get("/journal-entry/{id}", h.GetEntry)
	r.Post("/update-entry/{id}", h.UpdateEntry)
	r.Post("/new-entry", h.NewEntry)
	r.Get("/search", h.Search)
	r.Get("/calendar-events", h.CalendarEvents)
	r.Get("/widget-config", h.WidgetConfig)

	if deps.Hub != nil {
		r.Get("/widget", deps.Hub.ServeHTTP)
		r.Post("/widget/call", h.WidgetCall)
		r.Get("/widget/current", h.CurrentEntry)
	}
	if deps.Events != nil {
		r.Get("/events", deps.Events.ServeHTTP)
	}

	return r
}
