// Package calendar serves the week of events shown next to the journal,
// cached on disk per week.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"github.com/starford/daybook/internal/models"
)

const (
	// DefaultMaxResults bounds how many events are loaded per week.
	DefaultMaxResults = 100
	// TodayLimit bounds the events returned for the requested day.
	TodayLimit = 10
)

// Result is what the calendar panel receives.
type Result struct {
	AllEvents    []models.CalendarEvent `json:"all_events"`
	TodaysEvents []models.CalendarEvent `json:"todays_events"`
}

// Service answers calendar queries from a Source and a week cache.
type Service struct {
	source     Source
	cache      *diskv.Diskv
	maxResults int
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCacheDir enables the on-disk week cache rooted at dir.
func WithCacheDir(dir string) Option {
	return func(s *Service) {
		if dir == "" {
			return
		}
		s.cache = diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 256 * 1024,
		})
	}
}

// WithMaxResults overrides DefaultMaxResults.
func WithMaxResults(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a calendar service.
func NewService(source Source, opts ...Option) *Service {
	s := &Service{
		source:     source,
		maxResults: DefaultMaxResults,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WeekStart returns the Monday of the week containing day, at midnight.
func WeekStart(day time.Time) time.Time {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	offset := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -offset)
}

// ParseDate parses an ISO date, defaulting to today when s is empty.
func ParseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: bad date %q: %w", s, err)
	}
	return t, nil
}

// Events returns the week containing day and up to TodayLimit events that
// start on day. refresh skips the cache and rewrites it.
func (s *Service) Events(ctx context.Context, day time.Time, refresh bool) (*Result, error) {
	start := WeekStart(day)
	key := start.Format(time.DateOnly)

	week, ok := s.cached(key, refresh)
	if !ok {
		loaded, err := s.source.Events(ctx, start, s.maxResults)
		if err != nil {
			return nil, err
		}
		week = inRange(loaded, key, start.AddDate(0, 0, 7).Format(time.DateOnly))
		s.store(key, week)
	}

	today := day.Format(time.DateOnly)
	todays := make([]models.CalendarEvent, 0, TodayLimit)
	for _, e := range week {
		if len(todays) == TodayLimit {
			break
		}
		if e.Date() == today {
			todays = append(todays, e)
		}
	}
	return &Result{AllEvents: week, TodaysEvents: todays}, nil
}

func (s *Service) cached(key string, refresh bool) ([]models.CalendarEvent, bool) {
	if s.cache == nil || refresh || !s.cache.Has(key) {
		return nil, false
	}
	data, err := s.cache.Read(key)
	if err != nil {
		s.logger.Warn("calendar: cache read failed", slog.String("week", key), slog.String("error", err.Error()))
		return nil, false
	}
	var events []models.CalendarEvent
	if err := json.Unmarshal(data, &events); err != nil {
		s.logger.Warn("calendar: cache entry corrupt", slog.String("week", key), slog.String("error", err.Error()))
		return nil, false
	}
	return events, true
}

func (s *Service) store(key string, events []models.CalendarEvent) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(events)
	if err != nil {
		return
	}
	if err := s.cache.Write(key, data); err != nil {
		s.logger.Warn("calendar: cache write failed", slog.String("week", key), slog.String("error", err.Error()))
	}
}

// inRange keeps events whose start date falls in [from, to).
func inRange(events []models.CalendarEvent, from, to string) []models.CalendarEvent {
	out := make([]models.CalendarEvent, 0, len(events))
	for _, e := range events {
		if d := e.Date(); d >= from && d < to {
			out = append(out, e)
		}
	}
	return out
}
