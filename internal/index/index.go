package index

// EntryIndex defines the index operations the journal service depends on.
type EntryIndex interface {
	UpsertEntry(e EntryRow, body string) error
	DeleteEntry(filename string) error
	GetChecksum(filename string) (string, error)
	ListEntries(limit int) ([]EntryRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies EntryIndex at compile time.
var _ EntryIndex = (*DB)(nil)
