package journal_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/index"
	"github.com/starford/daybook/internal/journal"
	"github.com/starford/daybook/internal/markdown"
	"github.com/starford/daybook/internal/testutil"
)

var day = time.Date(2024, time.May, 1, 9, 30, 15, 0, time.UTC)

func TestNewEntry(t *testing.T) {
	svc, store := testutil.TestService(t, journal.WithClock(testutil.FixedClock(day)))
	ctx := context.Background()

	e, err := svc.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Filename != "2024-05-01-093015-entry.md" {
		t.Errorf("filename = %q", e.Filename)
	}
	if e.Title != "Journal Entry for May 1, 2024" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Date != "2024-05-01" {
		t.Errorf("date = %q", e.Date)
	}
	data, err := store.Read(e.Filename)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "# Journal Entry for May 1, 2024\n\n" {
		t.Errorf("content = %q", data)
	}
}

func TestNewEntry_SameSecondGetsNextName(t *testing.T) {
	svc, _ := testutil.TestService(t, journal.WithClock(testutil.FixedClock(day)))
	ctx := context.Background()

	first, _ := svc.New(ctx)
	second, err := svc.New(ctx)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	if second.Filename == first.Filename {
		t.Fatal("names collide")
	}
	if second.Filename != "2024-05-01-093016-entry.md" {
		t.Errorf("second filename = %q", second.Filename)
	}

	list, _ := svc.List(ctx)
	if len(list) != 2 || list[0].Filename != second.Filename {
		t.Errorf("list order = %+v", list)
	}
}

func TestNewEntry_TitleFormat(t *testing.T) {
	svc, _ := testutil.TestService(t,
		journal.WithClock(testutil.FixedClock(day)),
		journal.WithTitleFormat("Today, %s"))
	e, err := svc.New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Title != "Today, May 1, 2024" {
		t.Errorf("title = %q", e.Title)
	}
}

func TestUpdateAndList(t *testing.T) {
	var changes []string
	svc, _ := testutil.TestService(t,
		journal.WithClock(testutil.FixedClock(day)),
		journal.WithChangeFunc(func(kind, name string) { changes = append(changes, kind+":"+name) }))
	ctx := context.Background()

	e, _ := svc.New(ctx)
	if _, err := svc.Update(ctx, e.Filename, "# Walk\n\nThrough the park."); err != nil {
		t.Fatalf("Update: %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Title != "Walk" || list[0].Preview != "Through the park." {
		t.Errorf("entry = %+v", list[0])
	}
	want := []string{"created:" + e.Filename, "updated:" + e.Filename}
	if strings.Join(changes, ",") != strings.Join(want, ",") {
		t.Errorf("changes = %v, want %v", changes, want)
	}
}

func TestUpdate_Errors(t *testing.T) {
	svc, _ := testutil.TestService(t)
	ctx := context.Background()

	if _, err := svc.Update(ctx, "2020-01-01-000000-entry.md", "# x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing entry err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Update(ctx, "../escape.md", "# x"); !errors.Is(err, apperr.ErrInvalidName) {
		t.Errorf("traversal err = %v, want ErrInvalidName", err)
	}
	e, _ := svc.New(ctx)
	if _, err := svc.Update(ctx, e.Filename, "  \n"); !errors.Is(err, apperr.ErrEmptyContent) {
		t.Errorf("blank content err = %v, want ErrEmptyContent", err)
	}
}

func TestHTML(t *testing.T) {
	svc, store := testutil.TestService(t)
	_ = store.Write("2024-01-02-000000-entry.md", []byte("# Hi\n\nHello **you**"))

	html, err := svc.HTML(context.Background(), "2024-01-02-000000-entry.md")
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "<h1>Hi</h1>") || !strings.Contains(html, "<strong>you</strong>") {
		t.Errorf("html = %q", html)
	}

	if _, err := svc.HTML(context.Background(), "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestGetAndSearch(t *testing.T) {
	svc, _ := testutil.TestService(t, journal.WithClock(testutil.FixedClock(day)))
	ctx := context.Background()
	e, _ := svc.New(ctx)
	_, _ = svc.Update(ctx, e.Filename, "# Hike\n\nSaw a heron by the lake.")

	d, err := svc.Get(ctx, e.Filename)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Title != "Hike" || d.Checksum == "" || !strings.Contains(d.Content, "heron") {
		t.Errorf("detail = %+v", d)
	}

	hits, err := svc.Search(ctx, "heron", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Filename != e.Filename {
		t.Errorf("hits = %+v", hits)
	}
}

func TestFrontmatterSurvivesEditorSave(t *testing.T) {
	svc, store := testutil.TestService(t)
	ctx := context.Background()
	const name = "2024-05-01-093015-entry.md"
	_ = store.Write(name, []byte("---\ntitle: Trip\ntags: [travel]\n---\n# Day one\n\nWent out.\n"))

	for i := 0; i < 2; i++ {
		html, err := svc.HTML(ctx, name)
		if err != nil {
			t.Fatalf("HTML: %v", err)
		}
		if strings.Contains(html, "title:") || strings.Contains(html, "<hr") {
			t.Fatalf("frontmatter leaked into editor html: %q", html)
		}
		d, err := svc.Update(ctx, name, markdown.ToMarkdown(html))
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if d.Title != "Trip" || len(d.Tags) != 1 || d.Tags[0] != "travel" {
			t.Errorf("save %d: title=%q tags=%v", i, d.Title, d.Tags)
		}
	}

	data, _ := store.Read(name)
	if !strings.HasPrefix(string(data), "---\ntitle: Trip\n") || strings.Count(string(data), "title: Trip") != 1 {
		t.Errorf("stored = %q", data)
	}
	if !strings.Contains(string(data), "# Day one\n\nWent out.") {
		t.Errorf("body lost: %q", data)
	}
}

func TestUpdate_ContentFrontmatterReplacesStored(t *testing.T) {
	svc, store := testutil.TestService(t)
	const name = "2024-05-01-093015-entry.md"
	_ = store.Write(name, []byte("---\ntitle: Old\n---\n# A\n"))

	d, err := svc.Update(context.Background(), name, "---\ntitle: New\n---\n# A\n")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if d.Title != "New" || strings.Contains(d.Content, "Old") {
		t.Errorf("detail = %+v", d)
	}
}

type failingIndex struct{ *index.DB }

func (failingIndex) UpsertEntry(index.EntryRow, string) error { return errors.New("disk I/O error") }

func TestWrites_IndexFailureStillSucceeds(t *testing.T) {
	_, store := testutil.TestJournal(t)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := journal.NewService(store, failingIndex{testutil.TestDB(t)},
		journal.WithClock(testutil.FixedClock(day)), journal.WithLogger(quiet))
	ctx := context.Background()

	e, err := svc.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := svc.Update(ctx, e.Filename, "# Kept\n\nbody"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	data, _ := store.Read(e.Filename)
	if string(data) != "# Kept\n\nbody" {
		t.Errorf("stored = %q", data)
	}
}
