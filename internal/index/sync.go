package index

import (
	"log/slog"
	"time"

	"github.com/starford/daybook/internal/parser"
	"github.com/starford/daybook/internal/storage"
)

// Sync walks the journal directory and brings the index up to date:
//   - new/changed entries are parsed and upserted
//   - entries removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Filename] = struct{}{}

		if checksums[m.Filename] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Filename)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("filename", m.Filename), slog.String("error", err.Error()))
			continue
		}
		if err := IndexEntry(db, m.Filename, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("filename", m.Filename), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("filename", m.Filename))
		}
	}

	for name := range checksums {
		if _, ok := disk[name]; !ok {
			if err := db.DeleteEntry(name); err != nil {
				logger.Warn("sync: delete failed", slog.String("filename", name), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("filename", name))
			}
		}
	}

	return nil
}

// IndexEntry parses data and upserts it into the index.
func IndexEntry(db EntryIndex, filename string, data []byte, updatedAt time.Time) error {
	res := parser.Parse(filename, data)
	return db.UpsertEntry(EntryRow{
		Filename:  filename,
		Title:     res.Title,
		Date:      res.Date,
		Preview:   res.Preview,
		Tags:      res.Tags,
		Checksum:  storage.Checksum(data),
		UpdatedAt: updatedAt,
	}, res.Body)
}
