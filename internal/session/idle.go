package session

import (
	"sync"
	"time"
)

// IdleWatcher is the whole-site inactivity window, independent of the
// per-order countdown: any request from a device resets its timer, and a
// full window of silence fires the idle effect (cart clear) once. Both
// watchers can be active for the same device at the same time.
type IdleWatcher struct {
	ttl    time.Duration
	onIdle func(deviceID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewIdleWatcher(ttl time.Duration, onIdle func(deviceID string)) *IdleWatcher {
	return &IdleWatcher{ttl: ttl, onIdle: onIdle, timers: make(map[string]*time.Timer)}
}

// Touch registers activity for a device, starting or resetting its window.
func (w *IdleWatcher) Touch(deviceID string) {
	if deviceID == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[deviceID]; ok {
		t.Reset(w.ttl)
		return
	}
	w.timers[deviceID] = time.AfterFunc(w.ttl, func() { w.fire(deviceID) })
}

func (w *IdleWatcher) fire(deviceID string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.timers, deviceID)
	w.mu.Unlock()
	w.onIdle(deviceID)
}

// Stop cancels all pending windows without firing them.
func (w *IdleWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}
