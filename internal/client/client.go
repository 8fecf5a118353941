// Package client is a typed HTTP client for the daybook API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/daybook/internal/calendar"
	"github.com/starford/daybook/internal/models"
	"github.com/starford/daybook/internal/widget"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: status %d", e.Code)
	}
	return fmt.Sprintf("client: status %d: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client talks to a daybook server.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthHeader returns the headers to authenticate side channels such as the
// widget socket.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// ListEntries returns every entry, newest first.
func (c *Client) ListEntries(ctx context.Context) ([]models.JournalEntry, error) {
	var out []models.JournalEntry
	if err := c.doJSON(ctx, http.MethodGet, "/api/journal-entries", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EntryHTML returns the rendered HTML of an entry.
func (c *Client) EntryHTML(ctx context.Context, filename string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/journal-entry/"+url.PathEscape(filename), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("client: read body: %w", err)
	}
	return string(body), nil
}

// UpdateEntry replaces the Markdown of an entry.
func (c *Client) UpdateEntry(ctx context.Context, filename, content string) error {
	body := map[string]string{"content": content}
	return c.doJSON(ctx, http.MethodPost, "/api/update-entry/"+url.PathEscape(filename), body, nil)
}

// NewEntry asks the server to create a blank entry.
func (c *Client) NewEntry(ctx context.Context) (*models.JournalEntry, error) {
	var out models.JournalEntry
	if err := c.doJSON(ctx, http.MethodPost, "/api/new-entry", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CalendarEvents fetches the week around date (YYYY-MM-DD, empty for today).
func (c *Client) CalendarEvents(ctx context.Context, date string, refresh bool) (*calendar.Result, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if refresh {
		q.Set("refresh", "true")
	}
	path := "/api/calendar-events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out calendar.Result
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WidgetConfig fetches where the assistant widget lives.
func (c *Client) WidgetConfig(ctx context.Context) (*widget.Config, error) {
	var out widget.Config
	if err := c.doJSON(ctx, http.MethodGet, "/api/widget-config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WidgetCall asks the server hub to call name on open pages.
// A 409 maps to widget.ErrNoPages.
func (c *Client) WidgetCall(ctx context.Context, name string, args map[string]string) ([]string, error) {
	req := struct {
		Name string            `json:"name"`
		Args map[string]string `json:"args,omitempty"`
	}{name, args}
	var out struct {
		Acks  []string `json:"acks"`
		Error string   `json:"error,omitempty"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/widget/call", req, &out)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusConflict {
		return nil, widget.ErrNoPages
	}
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return out.Acks, errors.New(out.Error)
	}
	return out.Acks, nil
}

// CurrentEntry returns the entry most recently opened by a page.
func (c *Client) CurrentEntry(ctx context.Context) (string, error) {
	var out struct {
		Filename string `json:"filename"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/widget/current", nil, &out); err != nil {
		return "", err
	}
	return out.Filename, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode: %w", err)
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return resp, nil
}

// errorMessage pulls {"error": "..."} out of a failed response, or the raw
// text when the body is not JSON.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
