package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/reloom/reloom-go/feed"
	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/observability"
	"github.com/reloom/reloom-go/querycache"
)

// Type classifies a notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeSystem  Type = "system"
)

// Notification is one entry in the user's notification tray.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// unreadCount is the /notifications/unread-count payload.
type unreadCount struct {
	Count int `json:"count"`
}

const countKey = "notifications/unread-count"

// Options tunes the notification service.
type Options struct {
	// PageSize is the tray page size.
	PageSize int
	// StaleTime is the freshness window for the unread counter.
	StaleTime time.Duration
}

// Service drives the notification tray: a paginated list, an unread
// counter, and optimistic read-marking with rollback.
type Service struct {
	api       *httpapi.Client
	cache     *querycache.Cache
	pageSize  int
	staleTime time.Duration
	metrics   *observability.Metrics
	log       *logger.Logger

	mu     sync.Mutex
	loader *feed.Loader[Notification]
}

// NewService creates the notification service.
func NewService(api *httpapi.Client, cache *querycache.Cache, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.StaleTime <= 0 {
		opts.StaleTime = 30 * time.Second
	}
	s := &Service{
		api:       api,
		cache:     cache,
		pageSize:  opts.PageSize,
		staleTime: opts.StaleTime,
		log:       logger.GetGlobalLogger().WithComponent("notifications"),
	}
	if metrics, err := observability.NewMetrics(observability.Meter("github.com/reloom/reloom-go/notifications")); err != nil {
		s.log.Warn("mutation metrics disabled", logger.ErrorFields("init_metrics", err))
	} else {
		s.metrics = metrics
	}
	return s
}

// Feed returns the tray's paginated loader, newest first. The same
// loader is reused so optimistic read-marking patches the list callers
// are displaying.
func (s *Service) Feed() *feed.Loader[Notification] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loader == nil {
		s.loader = feed.NewLoader("notifications", s.pageSize, s.fetchPage)
	}
	return s.loader
}

// ResetFeed discards loaded pages, e.g. after login changes.
func (s *Service) ResetFeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loader != nil {
		s.loader.Reset("notifications")
	}
}

func (s *Service) fetchPage(ctx context.Context, skip, limit int) (feed.Page[Notification], error) {
	return httpapi.Get[feed.Page[Notification]](ctx, s.api, "/notifications", httpapi.WithQuery(map[string]string{
		"skip":  strconv.Itoa(skip),
		"limit": strconv.Itoa(limit),
	}))
}

// UnreadCount returns the unread counter, served from cache when fresh.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	c, err := querycache.Fetch(ctx, s.cache, countKey, func(ctx context.Context) (unreadCount, error) {
		return httpapi.Get[unreadCount](ctx, s.api, "/notifications/unread-count")
	}, querycache.Options{StaleTime: s.staleTime})
	return c.Count, err
}

// MarkRead optimistically marks one notification read: the loaded list
// entry flips immediately and the unread counter drops by one, floored
// at zero, before the change is committed. On failure both are
// restored and the error returned.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("notifications: id is required")
	}

	oc := observability.NewOperationContext("notifications.mark_read", "", s.metrics)
	ctx = observability.WithOperationContext(ctx, oc)
	ctx, span := oc.StartSpanForOperation(ctx, observability.SpanMutation)
	observability.SetSpanAttribute(ctx, "notification.id", id)

	loader := s.Feed()
	var prev *Notification
	loader.Apply(func(n Notification) Notification {
		if n.ID == id && !n.IsRead {
			snap := n
			prev = &snap
			n.IsRead = true
		}
		return n
	})

	err := querycache.Mutate(ctx, s.cache, countKey,
		func(c unreadCount) unreadCount {
			if c.Count > 0 {
				c.Count--
			}
			return c
		},
		func(ctx context.Context) error {
			_, err := httpapi.Patch[struct{}](ctx, s.api, "/notifications/"+id+"/read", nil)
			return err
		})
	if err != nil {
		if prev != nil {
			restore := *prev
			loader.Apply(func(n Notification) Notification {
				if n.ID == id {
					return restore
				}
				return n
			})
		}
		oc.EndOperation(ctx, span, mutationStatus(err), err)
		return err
	}
	oc.EndOperation(ctx, span, "committed", nil)

	s.log.Debug("notification read", logger.Fields("notification_id", id))
	return nil
}

// mutationStatus names the outcome of a failed optimistic mutation.
func mutationStatus(err error) string {
	if errors.Is(err, querycache.ErrMutationPending) {
		return "rejected"
	}
	return "rolled_back"
}

// MarkAllRead optimistically zeroes the unread counter and marks every
// loaded notification read. On failure the previous read flags and
// counter are restored.
func (s *Service) MarkAllRead(ctx context.Context) error {
	oc := observability.NewOperationContext("notifications.mark_all_read", "", s.metrics)
	ctx = observability.WithOperationContext(ctx, oc)
	ctx, span := oc.StartSpanForOperation(ctx, observability.SpanMutation)

	loader := s.Feed()

	prevRead := make(map[string]bool)
	loader.Apply(func(n Notification) Notification {
		prevRead[n.ID] = n.IsRead
		n.IsRead = true
		return n
	})

	err := querycache.Mutate(ctx, s.cache, countKey,
		func(unreadCount) unreadCount { return unreadCount{Count: 0} },
		func(ctx context.Context) error {
			_, err := httpapi.Patch[struct{}](ctx, s.api, "/notifications/read-all", nil)
			return err
		})
	if err != nil {
		loader.Apply(func(n Notification) Notification {
			if wasRead, ok := prevRead[n.ID]; ok {
				n.IsRead = wasRead
			}
			return n
		})
		oc.EndOperation(ctx, span, mutationStatus(err), err)
		return err
	}
	oc.EndOperation(ctx, span, "committed", nil)

	s.log.Debug("all notifications read")
	return nil
}
