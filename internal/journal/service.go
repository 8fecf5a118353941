// Package journal implements the journal entry operations behind the HTTP
// API and the assistant tools.
package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/index"
	"github.com/starford/daybook/internal/markdown"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/parser"
	"github.com/starford/daybook/internal/storage"
)

// DefaultTitleFormat is the fmt format of a new entry's title; %s is the
// long form of the creation date.
const DefaultTitleFormat = "Journal Entry for %s"

const (
	filenameLayout  = "2006-01-02-150405"
	filenameSuffix  = "-entry.md"
	titleDateLayout = "January 2, 2006"
	maxNameAttempts = 60
)

// ChangeFunc is notified after the service writes an entry.
type ChangeFunc func(kind, filename string)

// Service coordinates storage, index, and rendering.
type Service struct {
	store       storage.Provider
	db          index.EntryIndex
	renderer    *markdown.Renderer
	titleFormat string
	now         func() time.Time
	onChange    ChangeFunc
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTitleFormat overrides DefaultTitleFormat.
func WithTitleFormat(format string) Option {
	return func(s *Service) {
		if format != "" {
			s.titleFormat = format
		}
	}
}

// WithClock overrides time.Now, used for entry names and titles.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithChangeFunc registers a callback invoked after creates and updates.
func WithChangeFunc(fn ChangeFunc) Option {
	return func(s *Service) { s.onChange = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new journal service.
func NewService(store storage.Provider, db index.EntryIndex, opts ...Option) *Service {
	s := &Service{
		store:       store,
		db:          db,
		renderer:    markdown.NewRenderer(),
		titleFormat: DefaultTitleFormat,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every entry, newest first.
func (s *Service) List(_ context.Context) ([]models.JournalEntry, error) {
	rows, err := s.db.ListEntries(0)
	if err != nil {
		return nil, err
	}
	out := make([]models.JournalEntry, len(rows))
	for i, r := range rows {
		out[i] = models.JournalEntry{
			Filename: r.Filename,
			Title:    r.Title,
			Date:     r.Date,
			Preview:  r.Preview,
		}
	}
	return out, nil
}

// Get returns the full entry.
func (s *Service) Get(_ context.Context, filename string) (*models.EntryDetail, error) {
	data, err := s.read(filename)
	if err != nil {
		return nil, err
	}
	return s.detail(filename, data), nil
}

// HTML renders the stored Markdown of an entry for the editor. Frontmatter
// stays on disk and is not shown.
func (s *Service) HTML(_ context.Context, filename string) (string, error) {
	data, err := s.read(filename)
	if err != nil {
		return "", err
	}
	_, body := parser.SplitFrontmatter(data)
	return s.renderer.Render(bytes.TrimLeft(body, "\r\n"))
}

// Update replaces the full content of an existing entry.
func (s *Service) Update(_ context.Context, filename, content string) (*models.EntryDetail, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.ErrEmptyContent
	}
	old, err := s.read(filename)
	if err != nil {
		return nil, err
	}
	data := []byte(content)
	// The editor never sees frontmatter, so content without a block of its
	// own keeps the stored one.
	if block, _ := parser.SplitFrontmatter(old); block != nil {
		if own, _ := parser.SplitFrontmatter(data); own == nil {
			data = append(append(append([]byte{}, block...), '\n'), data...)
		}
	}
	if err := s.store.Write(filename, data); err != nil {
		return nil, err
	}
	s.reindex(filename, data)
	s.changed(index.EventUpdated, filename)
	return s.detail(filename, data), nil
}

// New creates a blank entry named after the current time. A name already
// taken moves the timestamp forward one second at a time.
func (s *Service) New(_ context.Context) (*models.JournalEntry, error) {
	now := s.now()
	title := fmt.Sprintf(s.titleFormat, now.Format(titleDateLayout))
	data := []byte("# " + title + "\n\n")

	for i := 0; i < maxNameAttempts; i++ {
		name := now.Add(time.Duration(i)*time.Second).Format(filenameLayout) + filenameSuffix
		err := s.store.Create(name, data)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.reindex(name, data)
		s.changed(index.EventCreated, name)
		return &models.JournalEntry{
			Filename: name,
			Title:    title,
			Date:     parser.DateFromFilename(name),
			Preview:  "",
		}, nil
	}
	return nil, fmt.Errorf("journal: new entry: %w", apperr.ErrAlreadyExists)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// reindex updates the index after a write. The file is already on disk, so a
// failure is logged and left for the watcher to reconcile.
func (s *Service) reindex(filename string, data []byte) {
	if err := index.IndexEntry(s.db, filename, data, s.now()); err != nil {
		s.logger.Error("journal: index failed", slog.String("filename", filename), slog.String("error", err.Error()))
	}
}

func (s *Service) read(filename string) ([]byte, error) {
	if !s.store.Match(filename) {
		return nil, apperr.ErrInvalidName
	}
	data, err := s.store.Read(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Service) detail(filename string, data []byte) *models.EntryDetail {
	res := parser.Parse(filename, data)
	return &models.EntryDetail{
		Filename:  filename,
		Title:     res.Title,
		Date:      res.Date,
		Tags:      res.Tags,
		Content:   string(data),
		Checksum:  storage.Checksum(data),
		UpdatedAt: s.now(),
	}
}

func (s *Service) changed(kind, filename string) {
	if s.onChange != nil {
		s.onChange(kind, filename)
	}
}
