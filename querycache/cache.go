package querycache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/observability"
)

// State is an entry's position in the freshness state machine.
type State int

const (
	// StateFresh means the value is within its stale time.
	StateFresh State = iota
	// StateStale means the value should be refetched on next read.
	StateStale
	// StateFetching means a fetch for the key is in flight.
	StateFetching
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateFetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// ErrDisabled is returned by Fetch when the query is disabled and no
// cached value exists.
var ErrDisabled = errors.New("querycache: query disabled and no cached value")

// Options controls a single Fetch call.
type Options struct {
	// StaleTime is how long a fetched value counts as Fresh. Zero means
	// every read refetches (while still coalescing concurrent readers).
	StaleTime time.Duration
	// Disabled suppresses fetching: only an already-cached value is
	// returned. The zero value keeps fetching enabled.
	Disabled bool
}

type entry struct {
	value     any
	hasValue  bool
	fetchedAt time.Time
	state     State
	lastErr   error
	patch     *patch

	// invalidated records an invalidation that arrived while a fetch was
	// in flight: the resolution must land Stale, not Fresh, because the
	// response may predate whatever prompted the invalidation.
	invalidated bool
}

// patch snapshots an entry before an optimistic mutation, for exact restore.
type patch struct {
	value     any
	hasValue  bool
	fetchedAt time.Time
	state     State
	lastErr   error
}

// Cache is a keyed cache of server responses. Safe for concurrent use;
// keys are independent, there is no cross-key coordination.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	log     *logger.Logger
	metrics *metrics
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		log:     logger.WithComponent("querycache"),
		metrics: newMetrics(),
		now:     time.Now,
	}
}

// Fetch returns the value for key, fetching it when absent or stale.
// A Fresh entry is returned without a network call. Concurrent calls for
// the same key share a single in-flight fetch. On fetch failure any
// previous value is returned alongside the error.
func Fetch[T any](ctx context.Context, c *Cache, key string, fetcher func(context.Context) (T, error), opts Options) (T, error) {
	var zero T

	c.mu.Lock()
	e := c.entries[key]
	if e != nil && e.hasValue {
		if v, ok := e.value.(T); ok {
			fresh := e.state == StateFresh && opts.StaleTime > 0 && c.now().Sub(e.fetchedAt) < opts.StaleTime
			if fresh || opts.Disabled {
				c.mu.Unlock()
				c.metrics.hit(ctx)
				return v, nil
			}
		}
	}
	if opts.Disabled {
		c.mu.Unlock()
		return zero, ErrDisabled
	}
	if e == nil {
		e = &entry{state: StateStale}
		c.entries[key] = e
	}
	e.state = StateFetching
	c.mu.Unlock()
	c.metrics.miss(ctx)

	result, err, _ := c.group.Do(key, func() (any, error) {
		fctx, span := observability.StartSpan(ctx, observability.SpanCacheFetch)
		observability.SetSpanAttribute(fctx, observability.AttrCacheKey, key)
		v, ferr := fetcher(fctx)
		if ferr != nil {
			observability.SetSpanError(fctx, ferr)
		}
		span.End()

		c.mu.Lock()
		defer c.mu.Unlock()
		e := c.entries[key]
		if e == nil {
			// Invalidated away mid-flight; recreate so the resolution
			// still lands in the cache.
			e = &entry{}
			c.entries[key] = e
		}
		if ferr != nil {
			// Keep the previous value; the entry never corrupts.
			e.state = StateStale
			e.lastErr = ferr
			e.invalidated = false
			return nil, ferr
		}
		if e.patch == nil {
			e.value = v
			e.hasValue = true
		}
		e.fetchedAt = c.now()
		if e.invalidated {
			e.state = StateStale
			e.invalidated = false
		} else {
			e.state = StateFresh
		}
		e.lastErr = nil
		return v, nil
	})

	if err != nil {
		// Surface the stale value alongside the error when one exists.
		c.mu.Lock()
		if e := c.entries[key]; e != nil && e.hasValue {
			if v, ok := e.value.(T); ok {
				c.mu.Unlock()
				return v, err
			}
		}
		c.mu.Unlock()
		return zero, err
	}

	v, ok := result.(T)
	if !ok {
		return zero, errors.New("querycache: cached value has unexpected type")
	}
	return v, nil
}

// Peek returns the cached value for key without triggering a fetch.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key as Fresh. Used to seed the cache with data
// obtained outside Fetch (e.g. a list response warming detail entries).
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil {
		e = &entry{}
		c.entries[key] = e
	}
	e.value = value
	e.hasValue = true
	e.fetchedAt = c.now()
	e.state = StateFresh
	e.lastErr = nil
}

// EntryState returns the state of key's entry and whether the entry exists.
func (c *Cache) EntryState(key string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil {
		return StateStale, false
	}
	return e.state, true
}

// LastError returns the error recorded by the most recent failed fetch
// for key, or nil.
func (c *Cache) LastError(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.entries[key]; e != nil {
		return e.lastErr
	}
	return nil
}

// Invalidate marks key Stale. The value stays readable; the next Fetch
// by an enabled caller refetches. Invalidating a key whose fetch is in
// flight makes that fetch's resolution land Stale.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	invalidateLocked(c.entries[key])
}

// InvalidatePrefix marks every entry whose key starts with prefix Stale.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.InvalidateFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// InvalidateFunc marks every entry whose key matches pred Stale.
func (c *Cache) InvalidateFunc(pred func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if pred(key) {
			invalidateLocked(e)
		}
	}
}

// invalidateLocked applies an invalidation to one entry. Caller holds
// the cache lock.
func invalidateLocked(e *entry) {
	if e == nil {
		return
	}
	switch e.state {
	case StateFresh:
		e.state = StateStale
	case StateFetching:
		e.invalidated = true
	}
}

// Remove drops key's entry entirely.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry. Used on logout so one user's data never leaks
// into the next session.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}
