package viewtrack

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reloom/reloom-go/logger"
)

// DefaultDelay is the engagement threshold: a view only counts after the
// design has stayed open this long.
const DefaultDelay = 2 * time.Second

// SendFunc delivers one view event to the backend.
type SendFunc func(ctx context.Context, designID string) error

// Tracker records "significant view" events, at most once per design per
// browsing session. It is not a page-load counter: a design abandoned
// before the delay elapses sends nothing.
type Tracker struct {
	mu     sync.Mutex
	send   SendFunc
	delay  time.Duration
	seen   map[string]bool
	timers map[string]*time.Timer
	log    *logger.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDelay overrides the engagement delay. Used by tests.
func WithDelay(d time.Duration) Option {
	return func(t *Tracker) { t.delay = d }
}

// New creates a tracker that delivers events through send. The tracker's
// dedup set lives for the tracker's lifetime, i.e. one browsing session.
func New(send SendFunc, opts ...Option) *Tracker {
	t := &Tracker{
		send:   send,
		delay:  DefaultDelay,
		seen:   make(map[string]bool),
		timers: make(map[string]*time.Timer),
		log:    logger.WithComponent("viewtrack"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track starts the engagement timer for designID. IDs that are not UUIDs
// are ignored, which protects against non-detail routes ("create",
// "edit") triggering events. Already-viewed and already-pending IDs are
// no-ops.
func (t *Tracker) Track(designID string) {
	if _, err := uuid.Parse(designID); err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen[designID] || t.timers[designID] != nil {
		return
	}
	t.timers[designID] = time.AfterFunc(t.delay, func() {
		t.fire(designID)
	})
}

// Cancel abandons a pending view before the delay elapses: the timer is
// stopped and no event is sent. Safe to call for unknown IDs.
func (t *Tracker) Cancel(designID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer := t.timers[designID]; timer != nil {
		timer.Stop()
		delete(t.timers, designID)
	}
}

// Viewed reports whether designID has been counted this session.
func (t *Tracker) Viewed(designID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seen[designID]
}

// Close cancels all pending timers. Pending views are abandoned, not sent.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// fire marks the design viewed and sends the event. The record is kept
// even when the send fails: view tracking is best-effort telemetry and
// never retries.
func (t *Tracker) fire(designID string) {
	t.mu.Lock()
	if t.timers[designID] == nil {
		// Cancelled between the timer firing and this call.
		t.mu.Unlock()
		return
	}
	delete(t.timers, designID)
	t.seen[designID] = true
	t.mu.Unlock()

	if err := t.send(context.Background(), designID); err != nil {
		t.log.Debug("view event failed", logger.Fields(
			logger.FieldDesignID, designID,
			logger.FieldError, err.Error(),
		))
	}
}
