package widget

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownCall is returned for a procedure name with no handler.
var ErrUnknownCall = errors.New("unknown call")

// Handler serves one named call and returns the acknowledgement text.
type Handler func(ctx context.Context, args map[string]string) (string, error)

// Dispatcher maps call names to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds name to h, replacing any previous handler.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	d.handlers[name] = h
	d.mu.Unlock()
}

// Names lists the registered calls in order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler registered for name.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]string) (string, error) {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("widget: %w: %s", ErrUnknownCall, name)
	}
	return h(ctx, args)
}

// ack turns a call frame into its acknowledgement.
func (d *Dispatcher) ack(ctx context.Context, call Frame) Frame {
	out := Frame{Type: FrameAck, ID: call.ID}
	res, err := d.Dispatch(ctx, call.Name, call.Args)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = res
	return out
}
