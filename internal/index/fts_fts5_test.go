//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries_fts`).Scan(&count); err != nil {
		t.Fatalf("entries_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := EntryRow{Filename: "fts.md", Title: "FTS Entry", Checksum: "f1", Tags: []string{"search"}}
	if err := db.UpsertEntry(row, "Walked along the riverside at dawn."); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}

	results, err := db.Search("riverside", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertEntry(EntryRow{Filename: "gone.md", Checksum: "g"}, "vanishing content")
	_ = db.DeleteEntry("gone.md")

	results, err := db.Search("vanishing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
}

func TestMatchQuery(t *testing.T) {
	tests := map[string]string{
		"river":         `"river"*`,
		"morning  walk": `"morning" "walk"*`,
		`say "hi"`:      `"say" """hi"""*`,
		"":              "",
	}
	for in, want := range tests {
		if got := matchQuery(in); got != want {
			t.Errorf("matchQuery(%q) = %q, want %q", in, got, want)
		}
	}
}
