package editor

import (
	"sync"
	"time"
)

// Timer runs one pending callback after a delay. Scheduling again replaces
// the pending callback.
type Timer interface {
	Schedule(delay time.Duration, fn func())
	Cancel()
}

// RealTimer is a Timer backed by time.AfterFunc.
type RealTimer struct {
	mu  sync.Mutex
	t   *time.Timer
	seq uint64
}

// NewTimer returns a RealTimer.
func NewTimer() *RealTimer {
	return &RealTimer{}
}

// Schedule implements Timer.
func (r *RealTimer) Schedule(delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.t != nil {
		r.t.Stop()
	}
	r.seq++
	seq := r.seq
	// Stop does not wait for a callback that already fired, so a
	// superseded one checks seq before running.
	r.t = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.seq != seq {
			r.mu.Unlock()
			return
		}
		r.t = nil
		r.mu.Unlock()
		fn()
	})
}

// Cancel implements Timer.
func (r *RealTimer) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.t != nil {
		r.t.Stop()
		r.t = nil
	}
}

// ManualTimer is a Timer that only fires when told to.
type ManualTimer struct {
	mu    sync.Mutex
	fn    func()
	delay time.Duration
	count int
}

// Schedule implements Timer.
func (m *ManualTimer) Schedule(delay time.Duration, fn func()) {
	m.mu.Lock()
	m.fn = fn
	m.delay = delay
	m.count++
	m.mu.Unlock()
}

// Cancel implements Timer.
func (m *ManualTimer) Cancel() {
	m.mu.Lock()
	m.fn = nil
	m.mu.Unlock()
}

// Pending reports whether a callback is armed.
func (m *ManualTimer) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}

// Delay returns the delay of the last Schedule call.
func (m *ManualTimer) Delay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay
}

// Scheduled returns how many times Schedule was called.
func (m *ManualTimer) Scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Fire runs the pending callback, if any, on the calling goroutine.
func (m *ManualTimer) Fire() bool {
	m.mu.Lock()
	fn := m.fn
	m.fn = nil
	m.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
