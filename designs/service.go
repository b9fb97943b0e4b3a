package designs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/reloom/reloom-go/feed"
	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/observability"
	"github.com/reloom/reloom-go/profiles"
	"github.com/reloom/reloom-go/querycache"
	"github.com/reloom/reloom-go/session"
	"github.com/reloom/reloom-go/validation"
	"github.com/reloom/reloom-go/viewtrack"
)

// Options tunes the design service.
type Options struct {
	// FeedPageSize is the page size for design feeds.
	FeedPageSize int
	// StaleTime is the freshness window for cached designs and comments.
	StaleTime time.Duration
	// ViewDelay overrides the engagement threshold before a view event
	// is sent. Zero keeps the default.
	ViewDelay time.Duration
}

// Service is the design domain: feeds, CRUD, images, likes, comments,
// and view tracking.
type Service struct {
	api       *httpapi.Client
	cache     *querycache.Cache
	sessions  *session.Store
	views     *viewtrack.Tracker
	pageSize  int
	staleTime time.Duration
	metrics   *observability.Metrics
	log       *logger.Logger
}

// NewService creates the design service.
func NewService(api *httpapi.Client, cache *querycache.Cache, sessions *session.Store, opts Options) *Service {
	if opts.FeedPageSize <= 0 {
		opts.FeedPageSize = 20
	}
	if opts.StaleTime <= 0 {
		opts.StaleTime = 30 * time.Second
	}

	s := &Service{
		api:       api,
		cache:     cache,
		sessions:  sessions,
		pageSize:  opts.FeedPageSize,
		staleTime: opts.StaleTime,
		log:       logger.GetGlobalLogger().WithComponent("designs"),
	}
	if metrics, err := observability.NewMetrics(observability.Meter("github.com/reloom/reloom-go/designs")); err != nil {
		s.log.Warn("mutation metrics disabled", logger.ErrorFields("init_metrics", err))
	} else {
		s.metrics = metrics
	}

	var trackerOpts []viewtrack.Option
	if opts.ViewDelay > 0 {
		trackerOpts = append(trackerOpts, viewtrack.WithDelay(opts.ViewDelay))
	}
	s.views = viewtrack.New(s.sendView, trackerOpts...)
	return s
}

// Close releases the view tracker's pending timers.
func (s *Service) Close() {
	s.views.Close()
}

// NewFeed creates a paginated loader for the given query. Changing
// filters means creating a new loader (or calling Reset with the new
// signature); pages from different queries never mix.
func (s *Service) NewFeed(q FeedQuery) *feed.Loader[Design] {
	sig := querycache.Signature("designs", map[string]string{
		"q":        q.Q,
		"category": q.Category,
		"user_id":  q.UserID,
	})
	return feed.NewLoader(sig, s.pageSize, func(ctx context.Context, skip, limit int) (feed.Page[Design], error) {
		query := map[string]string{
			"skip":  strconv.Itoa(skip),
			"limit": strconv.Itoa(limit),
		}
		if q.Q != "" {
			query["q"] = q.Q
		}
		if q.Category != "" {
			query["category"] = q.Category
		}
		if q.UserID != "" {
			query["user_id"] = q.UserID
		}
		return httpapi.Get[feed.Page[Design]](ctx, s.api, "/designs/", httpapi.WithQuery(query))
	})
}

// Get returns one design by ID, served from cache when fresh.
func (s *Service) Get(ctx context.Context, id string) (Design, error) {
	if id == "" {
		return Design{}, fmt.Errorf("designs: id is required")
	}
	return querycache.Fetch(ctx, s.cache, designKey(id), func(ctx context.Context) (Design, error) {
		return httpapi.Get[Design](ctx, s.api, "/designs/"+id)
	}, querycache.Options{StaleTime: s.staleTime})
}

// Create submits a new design with its images as one atomic multipart
// request. Between one and five images are required, each at most 5MB.
func (s *Service) Create(ctx context.Context, in CreateInput) (Design, error) {
	if err := validation.Validate(in); err != nil {
		return Design{}, err
	}
	if err := checkImages(in.Images, 1); err != nil {
		return Design{}, err
	}

	body := &httpapi.MultipartBody{
		Fields: map[string]string{
			"title":       in.Title,
			"description": in.Description,
			"materials":   in.Materials,
		},
	}
	for _, img := range in.Images {
		body.Files = append(body.Files, httpapi.FileField{
			FieldName:   "images",
			FileName:    img.FileName,
			ContentType: img.ContentType,
			Data:        img.Data,
		})
	}

	created, err := httpapi.Post[Design](ctx, s.api, "/designs/", body)
	if err != nil {
		return Design{}, err
	}

	s.cache.Set(designKey(created.ID), created)
	s.invalidateFeeds()
	s.log.Info("design created", logger.Fields(logger.FieldDesignID, created.ID))
	return created, nil
}

// Update edits a design's metadata.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Design, error) {
	if id == "" {
		return Design{}, fmt.Errorf("designs: id is required")
	}
	if err := validation.Validate(in); err != nil {
		return Design{}, err
	}

	updated, err := httpapi.Put[Design](ctx, s.api, "/designs/"+id, in)
	if err != nil {
		return Design{}, err
	}

	s.cache.Set(designKey(id), updated)
	s.invalidateFeeds()
	return updated, nil
}

// Delete removes a design and drops it from the cache.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("designs: id is required")
	}
	if _, err := httpapi.Delete[struct{}](ctx, s.api, "/designs/"+id); err != nil {
		return err
	}
	s.cache.Remove(designKey(id))
	s.cache.Remove(commentsKey(id))
	s.invalidateFeeds()
	s.log.Info("design deleted", logger.Fields(logger.FieldDesignID, id))
	return nil
}

// Duplicate clones an existing design server-side.
func (s *Service) Duplicate(ctx context.Context, id string) (Design, error) {
	if id == "" {
		return Design{}, fmt.Errorf("designs: id is required")
	}
	dup, err := httpapi.Post[Design](ctx, s.api, "/designs/"+id+"/duplicate", nil)
	if err != nil {
		return Design{}, err
	}
	s.cache.Set(designKey(dup.ID), dup)
	s.invalidateFeeds()
	return dup, nil
}

// UploadImage adds one image to an existing design.
func (s *Service) UploadImage(ctx context.Context, id string, img ImageFile) (Design, error) {
	if id == "" {
		return Design{}, fmt.Errorf("designs: id is required")
	}
	if err := checkImages([]ImageFile{img}, 1); err != nil {
		return Design{}, err
	}

	body := &httpapi.MultipartBody{
		Files: []httpapi.FileField{{
			FieldName:   "file",
			FileName:    img.FileName,
			ContentType: img.ContentType,
			Data:        img.Data,
		}},
	}
	updated, err := httpapi.Post[Design](ctx, s.api, "/designs/"+id+"/images", body)
	if err != nil {
		return Design{}, err
	}
	s.cache.Set(designKey(id), updated)
	return updated, nil
}

// DeleteImage removes one image from a design. The backend refuses to
// delete the last image (CANNOT_DELETE_LAST_IMAGE); the same rule is
// not duplicated here because the cached design may be stale.
func (s *Service) DeleteImage(ctx context.Context, id, imageID string) error {
	if id == "" || imageID == "" {
		return fmt.Errorf("designs: design and image ids are required")
	}
	if _, err := httpapi.Delete[struct{}](ctx, s.api, "/designs/"+id+"/images/"+imageID); err != nil {
		return err
	}
	s.cache.Invalidate(designKey(id))
	return nil
}

// Likers lists the profiles that liked a design.
func (s *Service) Likers(ctx context.Context, id string) ([]profiles.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("designs: id is required")
	}
	return httpapi.Get[[]profiles.Profile](ctx, s.api, "/designs/"+id+"/likes")
}

// TrackView registers a design detail visit. The view event is sent
// once per design per session, after the engagement delay, unless
// CancelView is called first.
func (s *Service) TrackView(designID string) {
	s.views.Track(designID)
}

// CancelView abandons a pending view before the delay elapses.
func (s *Service) CancelView(designID string) {
	s.views.Cancel(designID)
}

// sendView posts the view event. Failures are the tracker's concern
// (logged, never retried).
func (s *Service) sendView(ctx context.Context, designID string) error {
	_, err := httpapi.Post[struct{}](ctx, s.api, "/designs/"+designID+"/view", nil)
	return err
}

// invalidateFeeds marks every cached design list stale.
func (s *Service) invalidateFeeds() {
	s.cache.InvalidatePrefix("designs")
}

func (s *Service) currentUserID() string {
	if u := s.sessions.Current().User; u != nil {
		return u.ID
	}
	return ""
}

func designKey(id string) string {
	return querycache.Key("designs", id)
}

func commentsKey(id string) string {
	return querycache.Key("designs", id, "comments")
}

func checkImages(images []ImageFile, minCount int) error {
	if len(images) < minCount {
		return fmt.Errorf("designs: at least %d image(s) required", minCount)
	}
	if len(images) > MaxImages {
		return fmt.Errorf("designs: at most %d images allowed", MaxImages)
	}
	for _, img := range images {
		if len(img.Data) == 0 {
			return fmt.Errorf("designs: image %q is empty", img.FileName)
		}
		if len(img.Data) > MaxImageSize {
			return fmt.Errorf("designs: image %q exceeds %d bytes", img.FileName, MaxImageSize)
		}
	}
	return nil
}
