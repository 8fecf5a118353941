// Package editor drives a journal editing session: it debounces edits into
// saves, keeps one entry bound to the editor, and pushes list, calendar and
// status updates to a View.
package editor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/daybook/internal/calendar"
	"github.com/starford/daybook/internal/markdown"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/parser"
	"github.com/starford/daybook/internal/widget"
)

// ErrNoEntry is returned when an operation needs a bound entry.
var ErrNoEntry = errors.New("editor: no entry bound")

const (
	DefaultSaveDelay      = time.Second
	DefaultStatusHold     = 2 * time.Second
	DefaultRequestTimeout = 15 * time.Second
)

// Editor is the editable region holding an HTML fragment.
type Editor interface {
	Content() string
	SetContent(fragment string) error
}

// API is the part of the server the session talks to.
type API interface {
	ListEntries(ctx context.Context) ([]models.JournalEntry, error)
	EntryHTML(ctx context.Context, filename string) (string, error)
	UpdateEntry(ctx context.Context, filename, content string) error
	NewEntry(ctx context.Context) (*models.JournalEntry, error)
	CalendarEvents(ctx context.Context, date string, refresh bool) (*calendar.Result, error)
}

// Announcer tells the assistant which entry is open.
type Announcer interface {
	Send(m widget.Message) error
}

// Session is the save coordinator for one editor.
//
// Every switch bumps gen. A save armed under an older gen is dropped when it
// fires, so it can neither write the new entry nor write the old one after
// the switch.
type Session struct {
	api       API
	editor    Editor
	view      View
	timer     Timer
	holdTimer Timer
	url       *URLState
	announcer Announcer
	logger    *slog.Logger

	saveDelay      time.Duration
	statusHold     time.Duration
	requestTimeout time.Duration

	mu        sync.Mutex
	current   string
	gen       uint64
	status    Status
	statusSeq uint64
	// pending is set by OnEdit and cleared once that edit's save starts.
	pending bool
	entries []models.JournalEntry

	reloads singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithView sets where rendered state goes.
func WithView(v View) Option { return func(s *Session) { s.view = v } }

// WithTimer replaces the debounce timer.
func WithTimer(t Timer) Option { return func(s *Session) { s.timer = t } }

// WithStatusTimer replaces the timer that clears the status indicator.
func WithStatusTimer(t Timer) Option { return func(s *Session) { s.holdTimer = t } }

// WithSaveDelay sets the debounce window.
func WithSaveDelay(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.saveDelay = d
		}
	}
}

// WithStatusHold sets how long "Saved" or "Save failed" stays visible.
func WithStatusHold(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.statusHold = d
		}
	}
}

// WithRequestTimeout bounds server calls started by timers.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithURLState mirrors the bound entry into u.
func WithURLState(u *URLState) Option { return func(s *Session) { s.url = u } }

// WithAnnouncer reports entry loads to the assistant.
func WithAnnouncer(a Announcer) Option { return func(s *Session) { s.announcer = a } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// NewSession creates a session over an API and an editor.
func NewSession(api API, ed Editor, opts ...Option) *Session {
	s := &Session{
		api:            api,
		editor:         ed,
		view:           nopView{},
		timer:          NewTimer(),
		holdTimer:      NewTimer(),
		logger:         slog.Default(),
		saveDelay:      DefaultSaveDelay,
		statusHold:     DefaultStatusHold,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the bound entry, or "".
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// State returns a snapshot for rendering.
func (s *Session) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ViewState{Current: s.current, Status: s.status}
}

// Start loads the entry list and opens the entry named in the URL state.
func (s *Session) Start(ctx context.Context) error {
	if err := s.RefreshList(ctx); err != nil {
		s.logger.Error("editor: load entries failed", slog.String("error", err.Error()))
	}
	if s.url == nil {
		return nil
	}
	if id := s.url.Entry(); id != "" {
		return s.SwitchEntry(ctx, id)
	}
	return nil
}

// OnEdit re-arms the debounce timer. Only the last edit in a burst saves.
func (s *Session) OnEdit() {
	s.mu.Lock()
	gen := s.gen
	s.pending = true
	s.mu.Unlock()
	s.timer.Schedule(s.saveDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
		defer cancel()
		_ = s.flush(ctx, gen)
	})
}

// Flush saves now, dropping any pending timer.
func (s *Session) Flush(ctx context.Context) error {
	s.timer.Cancel()
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	return s.flush(ctx, gen)
}

func (s *Session) flush(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	id := s.current
	fragment := s.editor.Content()
	s.pending = false
	s.mu.Unlock()

	if id == "" {
		s.logger.Warn("editor: save skipped", slog.String("error", ErrNoEntry.Error()))
		return ErrNoEntry
	}

	s.setStatus(StatusSaving)
	if err := s.api.UpdateEntry(ctx, id, markdown.ToMarkdown(fragment)); err != nil {
		s.logger.Error("editor: save failed", slog.String("filename", id), slog.String("error", err.Error()))
		s.setStatus(StatusFailed)
		return fmt.Errorf("editor: save %s: %w", id, err)
	}
	s.setStatus(StatusSaved)

	if err := s.RefreshList(ctx); err != nil {
		s.logger.Warn("editor: refresh entries failed", slog.String("error", err.Error()))
	}
	// Pull back the server's rendering unless the user kept typing; that
	// newer content has its own save coming. reload checks again once the
	// fetch returns.
	if s.Current() == id && s.unchangedSince(gen, fragment) {
		if err := s.reload(ctx, id, gen, &fragment); err != nil {
			s.logger.Warn("editor: reload after save failed", slog.String("filename", id), slog.String("error", err.Error()))
		}
	}
	if err := s.RefreshCalendar(ctx, false); err != nil && !errors.Is(err, ErrNoEntry) {
		s.logger.Warn("editor: refresh calendar failed", slog.String("error", err.Error()))
	}
	return nil
}

func (s *Session) unchangedSince(gen uint64, fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.editor.Content() == fragment
}

// SwitchEntry cancels any pending save and binds id, replacing the editor
// content with the stored entry. While the fetch is in flight no entry is
// bound, so edits made in that window are not saved anywhere.
func (s *Session) SwitchEntry(ctx context.Context, id string) error {
	s.timer.Cancel()
	s.mu.Lock()
	s.gen++
	prev, wasPending := s.current, s.pending
	s.current = ""
	s.pending = false
	s.mu.Unlock()

	fragment, err := s.fetch(ctx, id)
	if err != nil {
		s.logger.Error("editor: load entry failed", slog.String("filename", id), slog.String("error", err.Error()))
		s.mu.Lock()
		restored := s.current == "" && prev != ""
		if restored {
			s.current = prev
		}
		s.mu.Unlock()
		if restored && wasPending {
			// The editor still holds prev's unsaved edits.
			s.OnEdit()
		}
		return fmt.Errorf("editor: load %s: %w", id, err)
	}
	if err := s.bind(id, fragment); err != nil {
		return err
	}
	s.afterBind(ctx, id, widget.LoadEntry(id))
	return nil
}

// NewEntry creates an entry on the server and binds it with a title-only
// fragment.
func (s *Session) NewEntry(ctx context.Context) (*models.JournalEntry, error) {
	e, err := s.api.NewEntry(ctx)
	if err != nil {
		s.logger.Error("editor: create entry failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("editor: new entry: %w", err)
	}
	s.timer.Cancel()
	if err := s.bind(e.Filename, "<h1>"+html.EscapeString(e.Title)+"</h1><p></p>"); err != nil {
		return nil, err
	}
	if err := s.RefreshList(ctx); err != nil {
		s.logger.Warn("editor: refresh entries failed", slog.String("error", err.Error()))
	}
	s.afterBind(ctx, e.Filename, widget.LoadEntry(e.Filename))
	return e, nil
}

// FocusEmpty creates an entry when the editor gains focus with nothing bound
// and no visible text. It reports whether an entry was created.
func (s *Session) FocusEmpty(ctx context.Context) (bool, error) {
	s.mu.Lock()
	empty := s.current == "" && markdown.IsBlank(s.editor.Content())
	s.mu.Unlock()
	if !empty {
		return false, nil
	}
	if _, err := s.NewEntry(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Reload replaces the editor content with the stored entry.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	id, gen := s.current, s.gen
	s.mu.Unlock()
	if id == "" {
		s.logger.Warn("editor: reload skipped", slog.String("error", ErrNoEntry.Error()))
		return ErrNoEntry
	}
	if err := s.reload(ctx, id, gen, nil); err != nil {
		return err
	}
	if err := s.RefreshList(ctx); err != nil {
		s.logger.Warn("editor: refresh entries failed", slog.String("error", err.Error()))
	}
	return nil
}

// reload replaces the editor content with the stored entry. When snapshot is
// non-nil the editor must still hold exactly that content, so edits made
// during the fetch are kept.
func (s *Session) reload(ctx context.Context, id string, gen uint64, snapshot *string) error {
	fragment, err := s.fetch(ctx, id)
	if err != nil {
		return fmt.Errorf("editor: reload %s: %w", id, err)
	}
	s.mu.Lock()
	if s.gen != gen || s.current != id || (snapshot != nil && s.editor.Content() != *snapshot) {
		s.mu.Unlock()
		return nil
	}
	err = s.editor.SetContent(fragment)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("editor: set content: %w", err)
	}
	s.announce(widget.ReloadEntry(id))
	return nil
}

// fetch collapses concurrent loads of the same entry into one request.
func (s *Session) fetch(ctx context.Context, id string) (string, error) {
	v, err, _ := s.reloads.Do(id, func() (any, error) {
		return s.api.EntryHTML(ctx, id)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) bind(id, fragment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.current = id
	s.pending = false
	if err := s.editor.SetContent(fragment); err != nil {
		return fmt.Errorf("editor: set content: %w", err)
	}
	return nil
}

func (s *Session) afterBind(ctx context.Context, id string, m widget.Message) {
	if s.url != nil {
		if err := s.url.Set(id); err != nil {
			s.logger.Warn("editor: save url state failed", slog.String("error", err.Error()))
		}
	}
	s.announce(m)
	s.renderList()
	if err := s.RefreshCalendar(ctx, false); err != nil {
		s.logger.Warn("editor: refresh calendar failed", slog.String("error", err.Error()))
	}
}

func (s *Session) announce(m widget.Message) {
	if s.announcer == nil {
		return
	}
	if err := s.announcer.Send(m); err != nil {
		s.logger.Warn("editor: widget message failed", slog.String("action", m.Action), slog.String("error", err.Error()))
	}
}

// RefreshList fetches entries and re-renders the list.
func (s *Session) RefreshList(ctx context.Context) error {
	entries, err := s.api.ListEntries(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	s.renderList()
	return nil
}

func (s *Session) renderList() {
	s.mu.Lock()
	entries := s.entries
	st := ViewState{Current: s.current, Status: s.status}
	s.mu.Unlock()
	s.view.ShowEntries(RenderEntryList(entries, &st))
}

// RefreshCalendar shows today's events for the bound entry's date.
func (s *Session) RefreshCalendar(ctx context.Context, refresh bool) error {
	id := s.Current()
	if id == "" {
		s.logger.Debug("editor: calendar skipped", slog.String("error", ErrNoEntry.Error()))
		return ErrNoEntry
	}
	res, err := s.api.CalendarEvents(ctx, s.entryDate(id), refresh)
	if err != nil {
		return err
	}
	s.view.ShowCalendar(RenderCalendar(res.TodaysEvents, s.logger))
	return nil
}

// entryDate prefers the listed date and falls back to the filename.
func (s *Session) entryDate(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Filename == id && e.Date != "" {
			return e.Date
		}
	}
	return parser.DateFromFilename(id)
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.statusSeq++
	seq := s.statusSeq
	s.mu.Unlock()
	s.view.ShowStatus(st)

	if st != StatusSaved && st != StatusFailed {
		return
	}
	s.holdTimer.Schedule(s.statusHold, func() {
		s.mu.Lock()
		if s.statusSeq != seq {
			s.mu.Unlock()
			return
		}
		s.status = StatusIdle
		s.mu.Unlock()
		s.view.ShowStatus(StatusIdle)
	})
}

// RegisterCalls binds the calls the assistant may make on this page.
func (s *Session) RegisterCalls(d *widget.Dispatcher) {
	d.Register(widget.CallUpdateJournal, func(ctx context.Context, args map[string]string) (string, error) {
		if name := args["filename"]; name != "" && name != s.Current() {
			return "", fmt.Errorf("editor: %s is not open", name)
		}
		if err := s.Reload(ctx); err != nil {
			return "", err
		}
		return widget.AckUpdated, nil
	})
}

// Close stops pending timers.
func (s *Session) Close() {
	s.timer.Cancel()
	s.holdTimer.Cancel()
}

type nopView struct{}

func (nopView) ShowEntries([]ListItem)      {}
func (nopView) ShowCalendar([]CalendarItem) {}
func (nopView) ShowStatus(Status)           {}
