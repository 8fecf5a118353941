// Package models defines the domain types for daybook.
package models

import "time"

// JournalEntry is the list projection of one entry file.
// Filename is the identifier and encodes the creation date and time.
type JournalEntry struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Preview  string `json:"preview"`
}

// EntryDetail is the full representation of an entry.
type EntryDetail struct {
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Tags      []string  `json:"tags"`
	Content   string    `json:"content"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryMetadata is what storage listings return.
type EntryMetadata struct {
	Filename  string    `json:"filename"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CalendarEvent is a read-only event shown next to the journal.
type CalendarEvent struct {
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"all_day,omitempty"`
}

// Date returns the calendar date the event starts on.
func (e CalendarEvent) Date() string {
	return e.Start.Format(time.DateOnly)
}
