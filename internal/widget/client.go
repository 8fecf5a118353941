package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is the page end of the socket: it announces the bound entry and
// answers calls through a Dispatcher.
type Client struct {
	conn       *websocket.Conn
	wmu        sync.Mutex
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// Dial connects to the hub at url. header may carry an Authorization line.
func Dial(ctx context.Context, url string, header http.Header, d *Dispatcher, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("widget: dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("widget: dial %s: %w", url, err)
	}
	return &Client{conn: conn, dispatcher: d, logger: logger}, nil
}

// Send writes an outbound message.
func (c *Client) Send(m Message) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("widget: send: %w", err)
	}
	return c.write(messageFrame(m))
}

func (c *Client) write(f Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

// Run reads calls until ctx ends or the hub hangs up. Each call is served
// on its own goroutine so a slow handler does not stall the socket.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("widget: read: %w", err)
		}
		if f.Type != FrameCall {
			c.logger.Warn("widget: unexpected frame", slog.String("type", f.Type))
			continue
		}
		wg.Add(1)
		go func(call Frame) {
			defer wg.Done()
			ack := c.dispatcher.ack(ctx, call)
			if ack.Error != "" {
				c.logger.Warn("widget: call failed", slog.String("name", call.Name), slog.String("error", ack.Error))
			}
			if err := c.write(ack); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Warn("widget: ack failed", slog.String("name", call.Name), slog.String("error", err.Error()))
			}
		}(f)
	}
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.wmu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.wmu.Unlock()
	return c.conn.Close()
}
