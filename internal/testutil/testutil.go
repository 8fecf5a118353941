// Package testutil provides shared test helpers for journal directories and databases.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/daybook/internal/index"
	"github.com/starford/daybook/internal/journal"
	"github.com/starford/daybook/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "daybook-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestJournal creates a temporary journal directory with a storage.Provider.
func TestJournal(t *testing.T) (string, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// FixedClock returns a clock pinned at ts.
func FixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

// TestService wires a journal service over a temp directory and database.
func TestService(t *testing.T, opts ...journal.Option) (*journal.Service, storage.Provider) {
	t.Helper()
	_, store := TestJournal(t)
	return journal.NewService(store, TestDB(t), opts...), store
}
