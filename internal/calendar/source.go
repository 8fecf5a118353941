package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/starford/daybook/internal/models"
)

// Source loads calendar events starting on or after from.
type Source interface {
	Events(ctx context.Context, from time.Time, max int) ([]models.CalendarEvent, error)
}

// eventList is the subset of a Google Calendar events.list response we read.
type eventList struct {
	Items []eventItem `json:"items"`
}

type eventItem struct {
	Status  string    `json:"status"`
	Summary string    `json:"summary"`
	Start   eventTime `json:"start"`
	End     eventTime `json:"end"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (t eventTime) parse() (time.Time, bool, error) {
	if t.DateTime != "" {
		ts, err := time.Parse(time.RFC3339, t.DateTime)
		return ts, false, err
	}
	if t.Date != "" {
		ts, err := time.Parse(time.DateOnly, t.Date)
		return ts, true, err
	}
	return time.Time{}, false, errors.New("no dateTime or date")
}

// FileSource reads an exported events.list JSON document from disk.
// An empty Path or a missing file yields no events.
type FileSource struct {
	Path   string
	Logger *slog.Logger
}

// Events implements Source.
func (f *FileSource) Events(ctx context.Context, from time.Time, max int) ([]models.CalendarEvent, error) {
	if f.Path == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		f.logger().Warn("calendar: data file missing", slog.String("path", f.Path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: read %s: %w", f.Path, err)
	}
	events, err := ParseEvents(data, f.logger())
	if err != nil {
		return nil, err
	}

	fromDay := from.Format(time.DateOnly)
	out := events[:0]
	for _, e := range events {
		if e.Date() >= fromDay {
			out = append(out, e)
		}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (f *FileSource) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// ParseEvents decodes an events.list document into events ordered by start.
// Items without a summary or with an unparsable start are skipped with a
// warning. An unparsable end falls back to the start.
func ParseEvents(data []byte, logger *slog.Logger) ([]models.CalendarEvent, error) {
	var list eventList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("calendar: decode events: %w", err)
	}

	events := make([]models.CalendarEvent, 0, len(list.Items))
	for i, item := range list.Items {
		if item.Status == "cancelled" {
			continue
		}
		if item.Summary == "" {
			logger.Warn("calendar: skipping event without summary", slog.Int("item", i))
			continue
		}
		start, allDay, err := item.Start.parse()
		if err != nil {
			logger.Warn("calendar: skipping event with bad start",
				slog.Int("item", i), slog.String("summary", item.Summary), slog.String("error", err.Error()))
			continue
		}
		end, _, err := item.End.parse()
		if err != nil {
			end = start
		}
		events = append(events, models.CalendarEvent{
			Title:  item.Summary,
			Start:  start,
			End:    end,
			AllDay: allDay,
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })
	return events, nil
}
