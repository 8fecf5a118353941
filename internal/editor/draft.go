package editor

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DraftEditor is an Editor backed by an HTML file that the user edits with
// any text editor. Watch turns outside writes into edit notifications.
type DraftEditor struct {
	path string

	mu      sync.Mutex
	written [sha256.Size]byte
	wrote   bool
}

// NewDraftEditor creates the draft file's directory if needed.
func NewDraftEditor(path string) (*DraftEditor, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("editor: draft dir: %w", err)
	}
	return &DraftEditor{path: path}, nil
}

// Path returns the draft file location.
func (d *DraftEditor) Path() string { return d.path }

// Content implements Editor. A missing file reads as empty.
func (d *DraftEditor) Content() string {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return ""
	}
	return string(data)
}

// SetContent implements Editor. The write is remembered so Watch does not
// report it back as an edit.
func (d *DraftEditor) SetContent(fragment string) error {
	data := []byte(fragment)
	d.mu.Lock()
	d.written = sha256.Sum256(data)
	d.wrote = true
	d.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".draft-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, d.path)
}

// isEcho reports whether the file holds exactly what SetContent last wrote.
func (d *DraftEditor) isEcho(data []byte) bool {
	sum := sha256.Sum256(data)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wrote && sum == d.written
}

// Watch calls onEdit for every change to the draft file made by someone
// other than SetContent, until ctx is cancelled.
func (d *DraftEditor) Watch(ctx context.Context, logger *slog.Logger, onEdit func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory; editors often replace the file instead of
	// writing in place.
	dir := filepath.Dir(d.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("editor: watching draft", slog.String("path", d.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(d.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(d.path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				logger.Warn("editor: read draft failed", slog.String("error", err.Error()))
				continue
			}
			if d.isEcho(data) {
				continue
			}
			onEdit()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("editor: watcher error", slog.String("error", err.Error()))
		}
	}
}
