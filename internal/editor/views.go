package editor

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/starford/daybook/internal/models"
)

// Status is the transient save indicator.
type Status string

const (
	StatusIdle   Status = ""
	StatusSaving Status = "Saving…"
	StatusSaved  Status = "Saved"
	StatusFailed Status = "Save failed"
)

// ViewState is the session state rendering reads from.
type ViewState struct {
	Current string
	Status  Status
}

// ListItem is one row of the entry list.
type ListItem struct {
	models.JournalEntry
	Current bool
}

// CalendarItem is one row of the calendar panel.
type CalendarItem struct {
	Title string
	Span  string
}

// View receives rendered state from a Session.
type View interface {
	ShowEntries(items []ListItem)
	ShowCalendar(items []CalendarItem)
	ShowStatus(s Status)
}

// RenderEntryList keeps store order and marks the entry bound in st.
func RenderEntryList(entries []models.JournalEntry, st *ViewState) []ListItem {
	items := make([]ListItem, len(entries))
	for i, e := range entries {
		items[i] = ListItem{JournalEntry: e, Current: st != nil && e.Filename == st.Current}
	}
	return items
}

const clockLayout = "03:04 PM"

// RenderCalendar formats events as "HH:MM AM - HH:MM PM" rows. Events with no
// title or start are skipped with a warning.
func RenderCalendar(events []models.CalendarEvent, logger *slog.Logger) []CalendarItem {
	if logger == nil {
		logger = slog.Default()
	}
	items := make([]CalendarItem, 0, len(events))
	for i, e := range events {
		if e.Title == "" || e.Start.IsZero() {
			logger.Warn("editor: skipping malformed calendar event", slog.Int("index", i), slog.String("title", e.Title))
			continue
		}
		span := "All day"
		if !e.AllDay {
			end := e.End
			if end.IsZero() {
				end = e.Start
			}
			span = e.Start.Format(clockLayout) + " - " + end.Format(clockLayout)
		}
		items = append(items, CalendarItem{Title: e.Title, Span: span})
	}
	return items
}

// WriteEntryTable prints the entry list, highlighting the current entry.
func WriteEntryTable(w io.Writer, items []ListItem) {
	bold := color.New(color.Bold)
	cur := color.New(color.FgHiGreen, color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	tbl.AddRow("", bold.Sprint("Date"), bold.Sprint("Title"), bold.Sprint("Preview"))
	for _, it := range items {
		marker, title := " ", it.Title
		if it.Current {
			marker, title = cur.Sprint(">"), cur.Sprint(it.Title)
		}
		tbl.AddRow(marker, it.Date, title, it.Preview)
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// WriteCalendarTable prints calendar rows.
func WriteCalendarTable(w io.Writer, items []CalendarItem) {
	faint := color.New(color.Faint)
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, it := range items {
		tbl.AddRow(faint.Sprint(it.Span), it.Title)
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(w, tbl)
}

// TerminalView prints every update to a writer.
type TerminalView struct {
	W io.Writer
}

// ShowEntries implements View.
func (v TerminalView) ShowEntries(items []ListItem) { WriteEntryTable(v.W, items) }

// ShowCalendar implements View.
func (v TerminalView) ShowCalendar(items []CalendarItem) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(v.W, color.New(color.Faint).Sprint("no events today"))
		return
	}
	WriteCalendarTable(v.W, items)
}

// ShowStatus implements View.
func (v TerminalView) ShowStatus(s Status) {
	switch s {
	case StatusIdle:
		return
	case StatusFailed:
		_, _ = fmt.Fprintln(v.W, color.New(color.FgRed).Sprint(s))
	default:
		_, _ = fmt.Fprintln(v.W, color.New(color.Faint).Sprint(s))
	}
}
