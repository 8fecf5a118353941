package editor

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EntryParam is the query parameter that mirrors the bound entry.
const EntryParam = "entry"

// ReadEntry returns the entry named in raw's query, or "".
func ReadEntry(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get(EntryParam)
}

// WithEntry returns raw with its entry parameter set to id, or removed when
// id is empty. Other parameters are kept.
func WithEntry(raw, id string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("editor: parse url: %w", err)
	}
	q := u.Query()
	if id == "" {
		q.Del(EntryParam)
	} else {
		q.Set(EntryParam, id)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// URLState holds the page address and, when file is set, keeps it on disk
// so the next session opens the same entry.
type URLState struct {
	mu   sync.Mutex
	raw  string
	file string
}

// NewURLState starts from the address saved in file, falling back to base.
func NewURLState(base, file string) (*URLState, error) {
	s := &URLState{raw: base, file: file}
	if file == "" {
		return s, nil
	}
	data, err := os.ReadFile(file)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("editor: read state: %w", err)
	}
	if saved := strings.TrimSpace(string(data)); saved != "" {
		if _, err := url.Parse(saved); err == nil {
			s.raw = saved
		}
	}
	return s, nil
}

// Entry reads the entry parameter.
func (s *URLState) Entry() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ReadEntry(s.raw)
}

// String returns the current address.
func (s *URLState) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Set records id as the bound entry.
func (s *URLState) Set(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := WithEntry(s.raw, id)
	if err != nil {
		return err
	}
	s.raw = next
	if s.file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("editor: state dir: %w", err)
	}
	if err := os.WriteFile(s.file, []byte(next+"\n"), 0o644); err != nil {
		return fmt.Errorf("editor: write state: %w", err)
	}
	return nil
}
