package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNoPages is returned by Call when no connected page matches.
var ErrNoPages = errors.New("widget: no page has the entry open")

// ErrAckTimeout marks a page that did not acknowledge in time.
var ErrAckTimeout = errors.New("widget: acknowledgement timed out")

const (
	writeWait  = 10 * time.Second
	readWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
)

// page is one connected journal page.
type page struct {
	id    string
	conn  *websocket.Conn
	wmu   sync.Mutex
	entry string
}

func (p *page) write(f Frame) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(f)
}

// Hub accepts page connections and routes assistant calls to them.
type Hub struct {
	mu      sync.RWMutex
	pages   map[*page]struct{}
	pending map[string]chan Frame
	current string

	upgrader   websocket.Upgrader
	ackTimeout time.Duration
	onMessage  func(Message)
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAckTimeout bounds how long Call waits for each page.
func WithAckTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.ackTimeout = d
		}
	}
}

// WithMessageFunc is invoked for every valid page message.
func WithMessageFunc(fn func(Message)) HubOption {
	return func(h *Hub) { h.onMessage = fn }
}

// WithHubLogger sets the logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// NewHub creates a Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		pages:      make(map[*page]struct{}),
		pending:    make(map[string]chan Frame),
		ackTimeout: 5 * time.Second,
		logger:     slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin:      func(*http.Request) bool { return true },
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CurrentEntry returns the entry most recently announced by any page.
func (h *Hub) CurrentEntry() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Pages returns the number of connected pages.
func (h *Hub) Pages() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pages)
}

// ServeHTTP upgrades the request and serves the page until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("widget: upgrade failed", slog.String("error", err.Error()))
		return
	}
	p := &page{id: uuid.NewString(), conn: conn}

	h.wg.Add(1)
	defer h.wg.Done()
	h.mu.Lock()
	h.pages[p] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("widget: page connected", slog.String("page", p.id))

	done := make(chan struct{})
	defer func() {
		close(done)
		h.mu.Lock()
		delete(h.pages, p)
		h.mu.Unlock()
		p.wmu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		p.wmu.Unlock()
		h.logger.Info("widget: page disconnected", slog.String("page", p.id))
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	go h.ping(p, done)

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("widget: read failed", slog.String("page", p.id), slog.String("error", err.Error()))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		h.handle(p, f)
	}
}

func (h *Hub) ping(p *page, done <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			p.wmu.Lock()
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := p.conn.WriteMessage(websocket.PingMessage, nil)
			p.wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) handle(p *page, f Frame) {
	switch f.Type {
	case FrameMessage:
		m := f.message()
		if err := m.Validate(); err != nil {
			h.logger.Warn("widget: bad message", slog.String("page", p.id), slog.String("error", err.Error()))
			return
		}
		h.mu.Lock()
		p.entry = m.Filename
		h.current = m.Filename
		h.mu.Unlock()
		h.logger.Info("widget: "+m.Action, slog.String("page", p.id), slog.String("filename", m.Filename))
		if h.onMessage != nil {
			h.onMessage(m)
		}
	case FrameAck:
		h.mu.Lock()
		ch, ok := h.pending[f.ID]
		delete(h.pending, f.ID)
		h.mu.Unlock()
		if ok {
			ch <- f
		}
	default:
		h.logger.Warn("widget: unexpected frame", slog.String("page", p.id), slog.String("type", f.Type))
	}
}

// Call sends a named call to every page that has args["filename"] open, or
// to every page when no filename is given, and returns the acknowledgements
// received. Pages that fail or time out are reported in the joined error.
func (h *Hub) Call(ctx context.Context, name string, args map[string]string) ([]string, error) {
	filename := args["filename"]

	type waiter struct {
		page *page
		id   string
		ch   chan Frame
	}
	var waiters []waiter

	h.mu.Lock()
	for p := range h.pages {
		if filename != "" && p.entry != filename {
			continue
		}
		w := waiter{page: p, id: uuid.NewString(), ch: make(chan Frame, 1)}
		h.pending[w.id] = w.ch
		waiters = append(waiters, w)
	}
	h.mu.Unlock()

	if len(waiters) == 0 {
		return nil, ErrNoPages
	}

	defer func() {
		h.mu.Lock()
		for _, w := range waiters {
			delete(h.pending, w.id)
		}
		h.mu.Unlock()
	}()

	var errs []error
	live := waiters[:0]
	for _, w := range waiters {
		if err := w.page.write(Frame{Type: FrameCall, ID: w.id, Name: name, Args: args}); err != nil {
			errs = append(errs, fmt.Errorf("widget: page %s: %w", w.page.id, err))
			continue
		}
		live = append(live, w)
	}

	wctx, cancel := context.WithTimeout(ctx, h.ackTimeout)
	defer cancel()

	var acks []string
	for _, w := range live {
		var f Frame
		select {
		case f = <-w.ch:
		case <-wctx.Done():
			select {
			case f = <-w.ch:
			default:
				if err := ctx.Err(); err != nil {
					errs = append(errs, err)
				} else {
					errs = append(errs, fmt.Errorf("%w: page %s", ErrAckTimeout, w.page.id))
				}
				continue
			}
		}
		if f.Error != "" {
			errs = append(errs, fmt.Errorf("widget: page %s: %s", w.page.id, f.Error))
			continue
		}
		acks = append(acks, f.Result)
	}
	return acks, errors.Join(errs...)
}

// Close disconnects every page and waits for their handlers to return.
func (h *Hub) Close() {
	h.mu.RLock()
	pages := make([]*page, 0, len(h.pages))
	for p := range h.pages {
		pages = append(pages, p)
	}
	h.mu.RUnlock()
	for _, p := range pages {
		p.wmu.Lock()
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
		_ = p.conn.Close()
		p.wmu.Unlock()
	}
	h.wg.Wait()
}
