package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/observability"
)

// Page is one chunk of a paginated list, mirroring the backend's
// {items, total, skip, limit} contract.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// ErrLoadInFlight is returned by LoadNext while a fetch for the current
// signature is already outstanding.
var ErrLoadInFlight = errors.New("feed: page fetch already in flight")

// ErrExhausted is returned by LoadNext when every page has been loaded.
var ErrExhausted = errors.New("feed: no more pages")

// ErrStaleResolution is returned by LoadNext when the signature changed
// while the fetch was in flight and the fetched page was discarded.
var ErrStaleResolution = errors.New("feed: resolution discarded after signature change")

// FetchFunc fetches one page at the given offset.
type FetchFunc[T any] func(ctx context.Context, skip, limit int) (Page[T], error)

// Loader drives an infinite-scroll feed: pages are fetched in strictly
// increasing index order, one at a time per query signature, and
// concatenated in server order.
type Loader[T any] struct {
	mu        sync.Mutex
	fetch     FetchFunc[T]
	limit     int
	signature string
	pages     []Page[T]
	total     int
	hasTotal  bool
	inFlight  bool
	log       *logger.Logger
}

// NewLoader creates a loader for one query signature.
func NewLoader[T any](signature string, limit int, fetch FetchFunc[T]) *Loader[T] {
	return &Loader[T]{
		fetch:     fetch,
		limit:     limit,
		signature: signature,
		log:       logger.WithComponent("feed"),
	}
}

// Signature returns the loader's current query signature.
func (l *Loader[T]) Signature() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.signature
}

// HasMore reports whether another page exists, computed from the total
// reported by the most recent page fetch (last value wins). Before the
// first fetch it is true.
func (l *Loader[T]) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMoreLocked()
}

func (l *Loader[T]) hasMoreLocked() bool {
	if !l.hasTotal {
		return true
	}
	return len(l.pages)*l.limit < l.total
}

// Items returns all loaded items concatenated in fetch order.
func (l *Loader[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	var items []T
	for _, p := range l.pages {
		items = append(items, p.Items...)
	}
	return items
}

// Apply rewrites every loaded item in place, preserving page
// boundaries and order. Optimistic flows use it to patch list entries
// (and to restore them on rollback).
func (l *Loader[T]) Apply(fn func(T) T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for pi := range l.pages {
		items := l.pages[pi].Items
		for i := range items {
			items[i] = fn(items[i])
		}
	}
}

// Total returns the most recently reported total.
func (l *Loader[T]) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// PageCount returns how many pages have been loaded.
func (l *Loader[T]) PageCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pages)
}

// LoadNext fetches the next page. It returns ErrLoadInFlight when a fetch
// is already outstanding and ErrExhausted when every page is loaded. If
// the signature changes while the fetch is in flight, the resolution is
// dropped rather than merged into the new sequence and ErrStaleResolution
// is returned.
func (l *Loader[T]) LoadNext(ctx context.Context) (Page[T], error) {
	l.mu.Lock()
	if l.inFlight {
		l.mu.Unlock()
		return Page[T]{}, ErrLoadInFlight
	}
	if !l.hasMoreLocked() {
		l.mu.Unlock()
		return Page[T]{}, ErrExhausted
	}
	l.inFlight = true
	startSig := l.signature
	skip := len(l.pages) * l.limit
	limit := l.limit
	l.mu.Unlock()

	fctx, span := observability.StartSpan(ctx, observability.SpanFeedLoad)
	observability.SetSpanAttribute(fctx, "feed.signature", startSig)
	observability.SetSpanAttribute(fctx, "feed.skip", skip)
	page, err := l.fetch(fctx, skip, limit)
	if err != nil {
		observability.SetSpanError(fctx, err)
	}
	span.End()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.signature != startSig {
		// The filter changed mid-flight; this page belongs to the old
		// sequence. The new sequence's own inFlight flag was reset.
		if err != nil {
			return Page[T]{}, err
		}
		return Page[T]{}, ErrStaleResolution
	}
	l.inFlight = false
	if err != nil {
		return Page[T]{}, err
	}
	l.pages = append(l.pages, page)
	l.total = page.Total
	l.hasTotal = true
	l.log.Debug("page loaded", logger.Fields(
		"signature", startSig,
		"skip", skip,
		"items", len(page.Items),
		"total", page.Total,
	))
	return page, nil
}

// LoadMoreIfNeeded is the visibility-signal entry point: it fetches the
// next page only when more pages exist and none is in flight. Callers
// wire it to a scroll sentinel. Returns nil in the no-op cases.
func (l *Loader[T]) LoadMoreIfNeeded(ctx context.Context) error {
	_, err := l.LoadNext(ctx)
	if errors.Is(err, ErrLoadInFlight) || errors.Is(err, ErrExhausted) || errors.Is(err, ErrStaleResolution) {
		return nil
	}
	return err
}

// Reset discards all loaded pages and restarts from page zero under the
// new signature. Pages never merge across signatures.
func (l *Loader[T]) Reset(signature string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.signature = signature
	l.pages = nil
	l.total = 0
	l.hasTotal = false
	l.inFlight = false
}
