package querycache

import (
	"context"
	"errors"

	"github.com/reloom/reloom-go/logger"
)

// ErrMutationPending is returned when a Mutate is attempted on a key that
// already has an unresolved optimistic patch. The caller should retry
// after the first mutation settles.
var ErrMutationPending = errors.New("querycache: optimistic mutation already pending for key")

// Mutate optimistically updates key and commits the change to the server.
//
// apply receives the current cached value (zero value when absent) and
// returns the tentative value, which is stored synchronously so readers
// see it immediately. apply must be a pure transformation; it runs under
// the cache lock. The previous entry is snapshotted before the tentative
// value lands.
//
// On commit success the patch is discarded and the key is marked Stale so
// the next read fetches authoritative state. On failure the snapshot is
// restored exactly and the commit error is returned; the caller owns user
// messaging.
func Mutate[T any](ctx context.Context, c *Cache, key string, apply func(current T) T, commit func(context.Context) error) error {
	c.mu.Lock()
	e := c.entries[key]
	if e == nil {
		e = &entry{state: StateStale}
		c.entries[key] = e
	}
	if e.patch != nil {
		c.mu.Unlock()
		return ErrMutationPending
	}

	var current T
	if e.hasValue {
		if v, ok := e.value.(T); ok {
			current = v
		}
	}

	snap := &patch{
		value:     e.value,
		hasValue:  e.hasValue,
		fetchedAt: e.fetchedAt,
		state:     e.state,
		lastErr:   e.lastErr,
	}
	e.patch = snap
	e.value = apply(current)
	e.hasValue = true
	e.fetchedAt = c.now()
	e.state = StateFresh
	c.mu.Unlock()

	err := commit(ctx)

	c.mu.Lock()
	e = c.entries[key]
	if e != nil && e.patch == snap {
		e.patch = nil
		if err != nil {
			// Exact restore of the pre-mutation entry.
			e.value = snap.value
			e.hasValue = snap.hasValue
			e.fetchedAt = snap.fetchedAt
			e.state = snap.state
			e.lastErr = snap.lastErr
		} else if e.state == StateFresh {
			// Refetch authoritative state on next read.
			e.state = StateStale
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.metrics.rollback(ctx)
		c.log.Debug("optimistic mutation rolled back", logger.Fields(
			logger.FieldCacheKey, key,
			logger.FieldError, err.Error(),
		))
	}
	return err
}

// MutationPending reports whether key has an unresolved optimistic patch.
func (c *Cache) MutationPending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	return e != nil && e.patch != nil
}
