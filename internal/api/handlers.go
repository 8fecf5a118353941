package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/calendar"
	"github.com/starford/daybook/internal/index"
	"github.com/starford/daybook/internal/widget"
)

const entryNotFound = "Entry not found"

// Handler holds API route handlers.
type Handler struct {
	deps Deps
	now  func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{deps: deps, now: now}
}

// entryID extracts the entry filename from the URL.
func entryID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListEntries handles GET /api/journal-entries.
//
//	@Summary		List journal entries, newest first
//	@Tags			entries
//	@Produce		json
//	@Success		200	{array}	JournalEntry
//	@Security		BearerAuth
//	@Router			/journal-entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Journal.List(r.Context())
	if err != nil {
		slog.Error("list entries failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetEntry handles GET /api/journal-entry/{id}.
//
//	@Summary		Get an entry rendered as HTML
//	@Tags			entries
//	@Produce		html
//	@Param			id	path		string	true	"Entry filename"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/journal-entry/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := entryID(r)
	html, err := h.deps.Journal.HTML(r.Context(), id)
	if err != nil {
		h.entryError(w, "get entry", id, err)
		return
	}
	writeHTML(w, http.StatusOK, html)
}

// UpdateEntry handles POST /api/update-entry/{id}.
//
//	@Summary		Replace the Markdown of an entry
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Entry filename"
//	@Param			body	body		UpdateEntryRequest	true	"New content"
//	@Success		200		{object}	StatusResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/update-entry/{id} [post]
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := entryID(r)
	var req UpdateEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if _, err := h.deps.Journal.Update(r.Context(), id, req.Content); err != nil {
		h.entryError(w, "update entry", id, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// NewEntry handles POST /api/new-entry.
//
//	@Summary		Create a blank entry named after the current time
//	@Tags			entries
//	@Produce		json
//	@Success		200	{object}	JournalEntry
//	@Security		BearerAuth
//	@Router			/new-entry [post]
func (h *Handler) NewEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.Journal.New(r.Context())
	if err != nil {
		slog.Error("new entry failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across entries
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.deps.Journal.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// CalendarEvents handles GET /api/calendar-events.
//
//	@Summary		Events for the week of a date and for the date itself
//	@Tags			calendar
//	@Produce		json
//	@Param			date	query		string	false	"ISO date, default today"
//	@Param			refresh	query		bool	false	"Bypass the cache"
//	@Success		200		{object}	CalendarResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calendar-events [get]
func (h *Handler) CalendarEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := calendar.ParseDate(q.Get("date"), h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
		return
	}
	refresh := false
	if v := q.Get("refresh"); v != "" {
		if refresh, err = strconv.ParseBool(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("refresh must be a boolean"))
			return
		}
	}
	res, err := h.deps.Calendar.Events(r.Context(), day, refresh)
	if err != nil {
		slog.Error("calendar events failed", slog.String("date", day.Format(time.DateOnly)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// WidgetConfig handles GET /api/widget-config.
//
//	@Summary		Where the assistant widget lives and how it looks
//	@Tags			widget
//	@Produce		json
//	@Success		200	{object}	widget.Config
//	@Router			/widget-config [get]
func (h *Handler) WidgetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Widget)
}

// WidgetCall handles POST /api/widget/call.
//
//	@Summary		Call a procedure on the pages that have an entry open
//	@Tags			widget
//	@Accept			json
//	@Produce		json
//	@Param			body	body		WidgetCallRequest	true	"Call"
//	@Success		200		{object}	WidgetCallResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/widget/call [post]
func (h *Handler) WidgetCall(w http.ResponseWriter, r *http.Request) {
	var req WidgetCallRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	acks, err := h.deps.Hub.Call(r.Context(), req.Name, req.Args)
	if errors.Is(err, widget.ErrNoPages) {
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		return
	}
	resp := WidgetCallResponse{Acks: acks}
	if resp.Acks == nil {
		resp.Acks = []string{}
	}
	if err != nil {
		slog.Warn("widget call incomplete", slog.String("name", req.Name), slog.String("error", err.Error()))
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// CurrentEntry handles GET /api/widget/current.
func (h *Handler) CurrentEntry(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CurrentEntryResponse{Filename: h.deps.Hub.CurrentEntry()})
}

func (h *Handler) entryError(w http.ResponseWriter, op, id string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(entryNotFound))
	case errors.Is(err, apperr.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entry name"))
	case errors.Is(err, apperr.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
	default:
		slog.Error(op+" failed", slog.String("filename", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
