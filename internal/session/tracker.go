package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"finedine/internal/common/kv"
	"finedine/internal/common/logger"
)

const keyPrefix = "session:"

// record is what gets persisted per session. The expiry is computed once at
// start and never recomputed, so a reload or restart resumes the same
// countdown instead of resetting it.
type record struct {
	OrderID   string    `json:"order_id"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type countdown struct {
	rec  record
	stop chan struct{}
	once sync.Once
}

// Tracker runs the per-order post-service countdowns. Start persists the
// expiry in the KV collaborator and ticks it down; at zero the terminal
// effect fires exactly once: the persisted key is removed and the OnExpire
// callback runs (cart clear + session-ended event are wired there).
type Tracker struct {
	kv   kv.Store
	ttl  time.Duration
	tick time.Duration
	lg   *logger.Logger

	// OnExpire must be set before Start is called.
	OnExpire func(orderID, deviceID string)

	mu     sync.Mutex
	active map[string]*countdown
}

func NewTracker(store kv.Store, ttl, tick time.Duration, lg *logger.Logger) *Tracker {
	return &Tracker{kv: store, ttl: ttl, tick: tick, lg: lg, active: make(map[string]*countdown)}
}

// Start begins (or resumes) the countdown for an order. If a session record
// already exists the persisted expiry wins and the duration is not reset.
func (t *Tracker) Start(ctx context.Context, orderID, deviceID string) error {
	rec := record{OrderID: orderID, DeviceID: deviceID, ExpiresAt: time.Now().UTC().Add(t.ttl)}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	// Keep the key around slightly past the expiry so a crashed process can
	// still observe and finish the session on resume.
	ok, err := t.kv.SetNX(ctx, keyPrefix+orderID, string(raw), t.ttl+time.Minute)
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if !ok {
		existing, err := t.kv.Get(ctx, keyPrefix+orderID)
		if err != nil {
			return fmt.Errorf("load existing session: %w", err)
		}
		if err := json.Unmarshal([]byte(existing), &rec); err != nil {
			return fmt.Errorf("decode existing session: %w", err)
		}
	}
	t.run(rec)
	return nil
}

// Resume restores countdowns from persisted records after a restart.
func (t *Tracker) Resume(ctx context.Context) error {
	keys, err := t.kv.Scan(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("scan sessions: %w", err)
	}
	for _, k := range keys {
		raw, err := t.kv.Get(ctx, k)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			t.lg.Error("session_decode_failed", err, map[string]any{"key": k})
			continue
		}
		if rec.OrderID == "" {
			rec.OrderID = strings.TrimPrefix(k, keyPrefix)
		}
		t.run(rec)
	}
	return nil
}

func (t *Tracker) run(rec record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, running := t.active[rec.OrderID]; running {
		return
	}
	c := &countdown{rec: rec, stop: make(chan struct{})}
	t.active[rec.OrderID] = c
	go t.loop(c)
}

func (t *Tracker) loop(c *countdown) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			if Remaining(c.rec.ExpiresAt, now) > 0 {
				continue
			}
			c.once.Do(func() { t.expire(c.rec) })
			return
		}
	}
}

// expire is the one-shot terminal effect.
func (t *Tracker) expire(rec record) {
	t.mu.Lock()
	delete(t.active, rec.OrderID)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.kv.Del(ctx, keyPrefix+rec.OrderID); err != nil && !errors.Is(err, kv.ErrNotFound) {
		t.lg.Error("session_key_delete_failed", err, map[string]any{"order_id": rec.OrderID})
	}
	if t.OnExpire != nil {
		t.OnExpire(rec.OrderID, rec.DeviceID)
	}
	t.lg.Info("session_expired", map[string]any{"order_id": rec.OrderID, "device": rec.DeviceID})
}

// Cancel stops a countdown without firing its effect; used when the order is
// archived or the owning view goes away.
func (t *Tracker) Cancel(orderID string) {
	t.mu.Lock()
	c, ok := t.active[orderID]
	if ok {
		delete(t.active, orderID)
	}
	t.mu.Unlock()
	if ok {
		c.once.Do(func() {}) // poison the effect in case the loop is mid-tick
		close(c.stop)
	}
}

// Stop cancels every running countdown; called on shutdown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	all := make([]*countdown, 0, len(t.active))
	for _, c := range t.active {
		all = append(all, c)
	}
	t.active = make(map[string]*countdown)
	t.mu.Unlock()
	for _, c := range all {
		c.once.Do(func() {})
		close(c.stop)
	}
}

// Remaining is the countdown arithmetic: never negative.
func Remaining(expiresAt, now time.Time) time.Duration {
	if d := expiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Lookup returns the remaining time for an order's session, or ok=false when
// no session exists. Used by the status endpoint so the client renders the
// persisted countdown rather than its own clock.
func (t *Tracker) Lookup(ctx context.Context, orderID string) (time.Duration, bool) {
	raw, err := t.kv.Get(ctx, keyPrefix+orderID)
	if err != nil {
		return 0, false
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return 0, false
	}
	return Remaining(rec.ExpiresAt, time.Now().UTC()), true
}
