package navigation

import (
	"sync"
	"time"
)

// Debouncer runs at most one pending callback per key. Scheduling a key
// again replaces its pending callback.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]pendingCall
	gen     uint64
	stopped bool
}

type pendingCall struct {
	timer *time.Timer
	gen   uint64
}

// NewDebouncer returns an idle Debouncer.
func NewDebouncer() *Debouncer {
	return &Debouncer{pending: map[string]pendingCall{}}
}

// Schedule cancels any pending callback for key and runs fn after delay.
// A non-positive delay runs fn immediately on the calling goroutine.
func (d *Debouncer) Schedule(key string, delay time.Duration, fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.cancelLocked(key)
	if delay <= 0 {
		d.mu.Unlock()
		fn()
		return
	}
	d.gen++
	gen := d.gen
	timer := time.AfterFunc(delay, func() {
		d.mu.Lock()
		current, ok := d.pending[key]
		if !ok || current.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
	d.pending[key] = pendingCall{timer: timer, gen: gen}
	d.mu.Unlock()
}

// Cancel drops the pending callback for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked(key)
}

// Pending reports whether key has a callback waiting.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop cancels everything and ignores later Schedule calls.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.pending {
		d.cancelLocked(key)
	}
	d.stopped = true
}

func (d *Debouncer) cancelLocked(key string) {
	if call, ok := d.pending[key]; ok {
		call.timer.Stop()
		delete(d.pending, key)
	}
}
