package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/daybook/internal/calendar"
	"github.com/starford/daybook/internal/markdown"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/widget"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type update struct{ filename, content string }

type fakeAPI struct {
	mu        sync.Mutex
	entries   []models.JournalEntry
	html      map[string]string
	updates   []update
	updateErr error
	created   int
	listCalls int
	htmlCalls int
	calDates  []string

	// htmlGate, when set, blocks the next EntryHTML call until closed.
	htmlGate    chan struct{}
	htmlEntered chan struct{}
}

// blockNextHTML makes the next EntryHTML call wait for release. entered is
// closed once that call is waiting.
func (f *fakeAPI) blockNextHTML() (entered <-chan struct{}, release func()) {
	gate, in := make(chan struct{}), make(chan struct{})
	f.mu.Lock()
	f.htmlGate, f.htmlEntered = gate, in
	f.mu.Unlock()
	return in, func() { close(gate) }
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		entries: []models.JournalEntry{
			{Filename: "2024-05-02-080000-entry.md", Title: "B", Date: "2024-05-02"},
			{Filename: "2024-05-01-080000-entry.md", Title: "A", Date: "2024-05-01"},
		},
		html: map[string]string{
			"2024-05-01-080000-entry.md": "<h1>A</h1>\n<p>alpha</p>\n",
			"2024-05-02-080000-entry.md": "<h1>B</h1>\n<p>beta</p>\n",
		},
	}
}

func (f *fakeAPI) ListEntries(context.Context) ([]models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]models.JournalEntry(nil), f.entries...), nil
}

func (f *fakeAPI) EntryHTML(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	gate, entered := f.htmlGate, f.htmlEntered
	f.htmlGate, f.htmlEntered = nil, nil
	f.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.htmlCalls++
	h, ok := f.html[name]
	if !ok {
		return "", errors.New("status 404")
	}
	return h, nil
}

func (f *fakeAPI) UpdateEntry(_ context.Context, name, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, update{name, content})
	f.html[name] = "<h1>saved</h1>"
	return nil
}

func (f *fakeAPI) NewEntry(context.Context) (*models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	e := models.JournalEntry{Filename: "2024-05-03-100000-entry.md", Title: "Journal Entry for May 3, 2024", Date: "2024-05-03"}
	f.entries = append([]models.JournalEntry{e}, f.entries...)
	f.html[e.Filename] = "<h1>" + e.Title + "</h1>"
	return &e, nil
}

func (f *fakeAPI) CalendarEvents(_ context.Context, date string, _ bool) (*calendar.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calDates = append(f.calDates, date)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ev := []models.CalendarEvent{{Title: "Standup", Start: start, End: start.Add(15 * time.Minute)}}
	return &calendar.Result{AllEvents: ev, TodaysEvents: ev}, nil
}

func (f *fakeAPI) savedUpdates() []update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]update(nil), f.updates...)
}

type memEditor struct {
	mu      sync.Mutex
	content string
}

func (m *memEditor) Content() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content
}

func (m *memEditor) SetContent(s string) error {
	m.mu.Lock()
	m.content = s
	m.mu.Unlock()
	return nil
}

type recordingView struct {
	mu       sync.Mutex
	lists    [][]ListItem
	calendar [][]CalendarItem
	statuses []Status
}

func (v *recordingView) ShowEntries(items []ListItem) {
	v.mu.Lock()
	v.lists = append(v.lists, items)
	v.mu.Unlock()
}

func (v *recordingView) ShowCalendar(items []CalendarItem) {
	v.mu.Lock()
	v.calendar = append(v.calendar, items)
	v.mu.Unlock()
}

func (v *recordingView) ShowStatus(s Status) {
	v.mu.Lock()
	v.statuses = append(v.statuses, s)
	v.mu.Unlock()
}

func (v *recordingView) lastList() []ListItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.lists) == 0 {
		return nil
	}
	return v.lists[len(v.lists)-1]
}

type recordingAnnouncer struct {
	mu   sync.Mutex
	msgs []widget.Message
}

func (a *recordingAnnouncer) Send(m widget.Message) error {
	a.mu.Lock()
	a.msgs = append(a.msgs, m)
	a.mu.Unlock()
	return nil
}

// leakyTimer never cancels, so a callback armed before a switch still runs.
type leakyTimer struct{ fns []func() }

func (l *leakyTimer) Schedule(_ time.Duration, fn func()) { l.fns = append(l.fns, fn) }
func (l *leakyTimer) Cancel()                             {}

type harness struct {
	api     *fakeAPI
	ed      *memEditor
	view    *recordingView
	timer   *ManualTimer
	hold    *ManualTimer
	ann     *recordingAnnouncer
	session *Session
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		api:   newFakeAPI(),
		ed:    &memEditor{},
		view:  &recordingView{},
		timer: &ManualTimer{},
		hold:  &ManualTimer{},
		ann:   &recordingAnnouncer{},
	}
	base := []Option{
		WithView(h.view),
		WithTimer(h.timer),
		WithStatusTimer(h.hold),
		WithAnnouncer(h.ann),
		WithLogger(quiet),
		WithSaveDelay(1500 * time.Millisecond),
	}
	h.session = NewSession(h.api, h.ed, append(base, opts...)...)
	return h
}

const entryA = "2024-05-01-080000-entry.md"
const entryB = "2024-05-02-080000-entry.md"

func TestOnEdit_DebouncesToOneSave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.session.SwitchEntry(ctx, entryA); err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"a", "ab", "abc"} {
		_ = h.ed.SetContent("<h1>A</h1><p>" + text + "</p>")
		h.session.OnEdit()
	}
	if h.timer.Scheduled() != 3 {
		t.Errorf("scheduled = %d, want 3", h.timer.Scheduled())
	}
	if h.timer.Delay() != 1500*time.Millisecond {
		t.Errorf("delay = %v", h.timer.Delay())
	}
	if len(h.api.savedUpdates()) != 0 {
		t.Fatal("saved before the timer fired")
	}

	if !h.timer.Fire() {
		t.Fatal("nothing pending")
	}
	if h.timer.Fire() {
		t.Error("second fire should be a no-op")
	}
	ups := h.api.savedUpdates()
	if len(ups) != 1 {
		t.Fatalf("updates = %d, want 1", len(ups))
	}
	if ups[0].filename != entryA || ups[0].content != markdown.ToMarkdown("<h1>A</h1><p>abc</p>") {
		t.Errorf("update = %+v", ups[0])
	}
}

func TestSwitchEntry_CancelsPendingSave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.session.SwitchEntry(ctx, entryA)
	_ = h.ed.SetContent("<h1>A</h1><p>typed</p>")
	h.session.OnEdit()

	if err := h.session.SwitchEntry(ctx, entryB); err != nil {
		t.Fatal(err)
	}
	if h.timer.Pending() {
		t.Error("pending save survived the switch")
	}
	if h.ed.Content() != "<h1>B</h1>\n<p>beta</p>\n" {
		t.Errorf("editor = %q", h.ed.Content())
	}
	if h.session.Current() != entryB {
		t.Errorf("current = %q", h.session.Current())
	}
}

func TestSwitchEntry_StaleTimerNeverWrites(t *testing.T) {
	timer := &leakyTimer{}
	h := newHarness(t, WithTimer(timer))
	ctx := context.Background()
	_ = h.session.SwitchEntry(ctx, entryA)
	_ = h.ed.SetContent("<h1>A</h1><p>typed</p>")
	h.session.OnEdit()

	_ = h.session.SwitchEntry(ctx, entryB)
	for _, fn := range timer.fns {
		fn()
	}
	if ups := h.api.savedUpdates(); len(ups) != 0 {
		t.Errorf("stale timer wrote %+v", ups)
	}
}

func TestFlush_NoEntryIsNoop(t *testing.T) {
	h := newHarness(t)
	_ = h.ed.SetContent("<p>orphan</p>")
	h.session.OnEdit()
	h.timer.Fire()

	if err := h.session.Flush(context.Background()); !errors.Is(err, ErrNoEntry) {
		t.Errorf("Flush err = %v, want ErrNoEntry", err)
	}
	if len(h.api.savedUpdates()) != 0 {
		t.Error("saved with no entry bound")
	}
	if len(h.view.statuses) != 0 {
		t.Errorf("statuses = %v", h.view.statuses)
	}
}

func TestFlush_FailureKeepsContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.session.SwitchEntry(ctx, entryA)
	h.api.updateErr = errors.New("connection refused")
	_ = h.ed.SetContent("<h1>A</h1><p>unsaved</p>")

	if err := h.session.Flush(ctx); err == nil {
		t.Fatal("expected error")
	}
	if h.ed.Content() != "<h1>A</h1><p>unsaved</p>" {
		t.Errorf("editor changed: %q", h.ed.Content())
	}
	if got := h.view.statuses; len(got) != 2 || got[0] != StatusSaving || got[1] != StatusFailed {
		t.Errorf("statuses = %v", got)
	}
	if h.timer.Pending() {
		t.Error("failure scheduled a retry")
	}
	if h.session.State().Status != StatusFailed {
		t.Errorf("state = %+v", h.session.State())
	}
	h.hold.Fire()
	if h.session.State().Status != StatusIdle {
		t.Errorf("status not cleared: %+v", h.session.State())
	}
}

func TestFlush_SuccessRefreshesAndReloads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.session.SwitchEntry(ctx, entryA)
	lists := h.api.listCalls
	_ = h.ed.SetContent("<h1>A</h1><p>more</p>")

	if err := h.session.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if h.api.listCalls != lists+1 {
		t.Errorf("list refreshes = %d, want 1", h.api.listCalls-lists)
	}
	if h.ed.Content() != "<h1>saved</h1>" {
		t.Errorf("editor not reloaded: %q", h.ed.Content())
	}
	if got := h.view.statuses; len(got) != 2 || got[1] != StatusSaved {
		t.Errorf("statuses = %v", got)
	}
	last := h.ann.msgs[len(h.ann.msgs)-1]
	if last != widget.ReloadEntry(entryA) {
		t.Errorf("announce = %+v", last)
	}
	h.hold.Fire()
	if got := h.view.statuses; got[len(got)-1] != StatusIdle {
		t.Errorf("statuses = %v", got)
	}
}

func TestFlush_ReloadKeepsTypingDuringFetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.session.SwitchEntry(ctx, entryA)
	_ = h.ed.SetContent("<h1>A</h1><p>first</p>")

	entered, release := h.api.blockNextHTML()
	done := make(chan error, 1)
	go func() { done <- h.session.Flush(ctx) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reload never fetched")
	}
	_ = h.ed.SetContent("<h1>A</h1><p>first and more</p>")
	h.session.OnEdit()
	release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if got := h.ed.Content(); got != "<h1>A</h1><p>first and more</p>" {
		t.Fatalf("typing overwritten by reload: %q", got)
	}
	if !h.timer.Fire() {
		t.Fatal("follow-up save not pending")
	}
	ups := h.api.savedUpdates()
	if len(ups) != 2 || ups[1].content != markdown.ToMarkdown("<h1>A</h1><p>first and more</p>") {
		t.Errorf("updates = %+v", ups)
	}
}

func TestSwitchEntry_UpdatesURLAndAnnounces(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state")
	u, err := NewURLState("daybook://journal", state)
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, WithURLState(u))
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = h.session.SwitchEntry(context.Background(), entryB)

	if u.Entry() != entryB {
		t.Errorf("url = %q", u.String())
	}
	if len(h.ann.msgs) != 1 || h.ann.msgs[0] != widget.LoadEntry(entryB) {
		t.Errorf("announce = %+v", h.ann.msgs)
	}
	list := h.view.lastList()
	if len(list) != 2 || list[0].Filename != entryB || !list[0].Current || list[1].Current {
		t.Errorf("list = %+v", list)
	}
	if dates := h.api.calDates; len(dates) == 0 || dates[len(dates)-1] != "2024-05-02" {
		t.Errorf("calendar dates = %v", dates)
	}

	// A new session resumes the same entry.
	u2, _ := NewURLState("daybook://journal", state)
	h2 := newHarness(t, WithURLState(u2))
	if err := h2.session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h2.session.Current() != entryB {
		t.Errorf("resumed current = %q", h2.session.Current())
	}
}

func TestSwitchEntry_MissingKeepsBinding(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.session.SwitchEntry(ctx, entryA)
	if err := h.session.SwitchEntry(ctx, "2019-01-01-000000-entry.md"); err == nil {
		t.Fatal("expected error")
	}
	if h.session.Current() != entryA {
		t.Errorf("current = %q", h.session.Current())
	}
}

func TestSwitchEntry_FailureRearmsPendingSave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.session.SwitchEntry(ctx, entryA)
	_ = h.ed.SetContent("<h1>A</h1><p>unsaved</p>")
	h.session.OnEdit()

	if err := h.session.SwitchEntry(ctx, "2019-01-01-000000-entry.md"); err == nil {
		t.Fatal("expected error")
	}
	if !h.timer.Pending() {
		t.Fatal("pending save was dropped by the failed switch")
	}
	if h.session.Current() != entryA {
		t.Fatalf("current = %q", h.session.Current())
	}
	h.timer.Fire()
	ups := h.api.savedUpdates()
	if len(ups) != 1 || ups[0].filename != entryA || ups[0].content != markdown.ToMarkdown("<h1>A</h1><p>unsaved</p>") {
		t.Errorf("updates = %+v", ups)
	}
}

func TestSwitchEntry_FailureWithoutEditsSchedulesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.session.SwitchEntry(ctx, entryA)
	_ = h.session.SwitchEntry(ctx, "2019-01-01-000000-entry.md")
	if h.timer.Pending() {
		t.Error("save scheduled with no edits")
	}
}

func TestNewEntry(t *testing.T) {
	h := newHarness(t)
	e, err := h.session.NewEntry(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.ed.Content() != "<h1>Journal Entry for May 3, 2024</h1><p></p>" {
		t.Errorf("editor = %q", h.ed.Content())
	}
	if h.session.Current() != e.Filename {
		t.Errorf("current = %q", h.session.Current())
	}
	list := h.view.lastList()
	if len(list) != 3 || !list[0].Current {
		t.Errorf("list = %+v", list)
	}
}

func TestFocusEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_ = h.ed.SetContent("<p> </p>")
	created, err := h.session.FocusEmpty(ctx)
	if err != nil || !created {
		t.Fatalf("FocusEmpty = %v, %v", created, err)
	}
	created, _ = h.session.FocusEmpty(ctx)
	if created || h.api.created != 1 {
		t.Errorf("second focus created an entry (created=%d)", h.api.created)
	}

	h2 := newHarness(t)
	_ = h2.ed.SetContent("<p>draft text</p>")
	if created, _ := h2.session.FocusEmpty(ctx); created {
		t.Error("created an entry over visible text")
	}
}

func TestRegisterCalls_UpdateJournal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := widget.NewDispatcher()
	h.session.RegisterCalls(d)

	if _, err := d.Dispatch(ctx, widget.CallUpdateJournal, nil); !errors.Is(err, ErrNoEntry) {
		t.Errorf("no entry err = %v", err)
	}

	_ = h.session.SwitchEntry(ctx, entryA)
	h.api.html[entryA] = "<h1>A</h1><p>from assistant</p>"
	ack, err := d.Dispatch(ctx, widget.CallUpdateJournal, map[string]string{"filename": entryA})
	if err != nil || ack != widget.AckUpdated {
		t.Fatalf("ack = %q, %v", ack, err)
	}
	if !strings.Contains(h.ed.Content(), "from assistant") {
		t.Errorf("editor = %q", h.ed.Content())
	}

	if _, err := d.Dispatch(ctx, widget.CallUpdateJournal, map[string]string{"filename": entryB}); err == nil {
		t.Error("expected error for an entry that is not open")
	}
}

func TestRefreshCalendar_NoEntry(t *testing.T) {
	h := newHarness(t)
	if err := h.session.RefreshCalendar(context.Background(), true); !errors.Is(err, ErrNoEntry) {
		t.Errorf("err = %v", err)
	}
	if len(h.api.calDates) != 0 {
		t.Error("fetched calendar with no entry")
	}
}
