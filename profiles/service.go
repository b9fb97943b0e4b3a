package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/querycache"
	"github.com/reloom/reloom-go/session"
	"github.com/reloom/reloom-go/validation"
)

// MaxAvatarSize is the largest accepted avatar upload.
const MaxAvatarSize = 5 * 1024 * 1024

// Options tunes the profile service.
type Options struct {
	// StaleTime is the freshness window for cached profiles and stats.
	StaleTime time.Duration
}

// Service reads and edits user profiles. Profiles are cached because
// every feed card resolves its author through here.
type Service struct {
	api       *httpapi.Client
	cache     *querycache.Cache
	sessions  *session.Store
	staleTime time.Duration
	log       *logger.Logger
}

// NewService creates the profile service.
func NewService(api *httpapi.Client, cache *querycache.Cache, sessions *session.Store, opts Options) *Service {
	if opts.StaleTime <= 0 {
		opts.StaleTime = 5 * time.Minute
	}
	return &Service{
		api:       api,
		cache:     cache,
		sessions:  sessions,
		staleTime: opts.StaleTime,
		log:       logger.GetGlobalLogger().WithComponent("profiles"),
	}
}

// Get returns a profile by user ID, served from cache when fresh.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, fmt.Errorf("profiles: user id is required")
	}
	key := querycache.Key("profiles", userID)
	return querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) (Profile, error) {
		return httpapi.Get[Profile](ctx, s.api, "/profiles/"+userID)
	}, querycache.Options{StaleTime: s.staleTime})
}

// GetByUsername returns a profile by username, served from cache when fresh.
func (s *Service) GetByUsername(ctx context.Context, username string) (Profile, error) {
	if username == "" {
		return Profile{}, fmt.Errorf("profiles: username is required")
	}
	key := querycache.Key("profiles", "by-username", username)
	return querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) (Profile, error) {
		return httpapi.Get[Profile](ctx, s.api, "/profiles/by-username/"+username)
	}, querycache.Options{StaleTime: s.staleTime})
}

// Stats returns a designer's aggregated counters.
func (s *Service) Stats(ctx context.Context, userID string) (UserStats, error) {
	if userID == "" {
		return UserStats{}, fmt.Errorf("profiles: user id is required")
	}
	key := querycache.Key("profiles", userID, "stats")
	return querycache.Fetch(ctx, s.cache, key, func(ctx context.Context) (UserStats, error) {
		return httpapi.Get[UserStats](ctx, s.api, "/profiles/"+userID+"/stats")
	}, querycache.Options{StaleTime: s.staleTime})
}

// UpdateMe edits the viewer's own profile. The session user and cached
// profile entries are refreshed from the server's response.
func (s *Service) UpdateMe(ctx context.Context, in UpdateInput) (Profile, error) {
	if err := validation.Validate(in); err != nil {
		return Profile{}, err
	}

	updated, err := httpapi.Put[Profile](ctx, s.api, "/profiles/me", in)
	if err != nil {
		return Profile{}, err
	}

	s.applyOwnProfile(updated)
	s.log.Info("profile updated", logger.Fields(logger.FieldUserID, updated.ID))
	return updated, nil
}

// UploadAvatar replaces the viewer's avatar image.
func (s *Service) UploadAvatar(ctx context.Context, fileName, contentType string, data []byte) (Profile, error) {
	if len(data) == 0 {
		return Profile{}, fmt.Errorf("profiles: avatar file is empty")
	}
	if len(data) > MaxAvatarSize {
		return Profile{}, fmt.Errorf("profiles: avatar exceeds %d bytes", MaxAvatarSize)
	}

	body := &httpapi.MultipartBody{
		Files: []httpapi.FileField{{
			FieldName:   "file",
			FileName:    fileName,
			ContentType: contentType,
			Data:        data,
		}},
	}
	req := httpapi.Request{Method: "POST", Path: "/profiles/me/avatar", Body: body}
	resp, err := s.api.Do(ctx, req)
	if err != nil {
		return Profile{}, err
	}

	var updated Profile
	if err := json.Unmarshal(resp.Body, &updated); err != nil {
		return Profile{}, httpapi.NewValidationError(fmt.Sprintf("decode avatar response: %v", err))
	}

	s.applyOwnProfile(updated)
	s.log.Info("avatar uploaded", logger.Fields(logger.FieldUserID, updated.ID))
	return updated, nil
}

// DeleteAvatar removes the viewer's avatar. The server answers 204, so
// the local session and cache are patched directly.
func (s *Service) DeleteAvatar(ctx context.Context) error {
	if _, err := httpapi.Delete[struct{}](ctx, s.api, "/profiles/me/avatar"); err != nil {
		return err
	}

	if user, ok := s.currentUser(); ok {
		user.AvatarURL = ""
		if err := s.sessions.UpdateUser(user); err != nil {
			s.log.Warn("failed to persist session user", logger.ErrorFields("delete_avatar", err))
		}
		s.cache.Invalidate(querycache.Key("profiles", user.ID))
	}
	s.log.Info("avatar removed")
	return nil
}

// applyOwnProfile pushes an updated own profile into the session store
// and the profile cache.
func (s *Service) applyOwnProfile(p Profile) {
	if user, ok := s.currentUser(); ok && user.ID == p.ID {
		user.Username = p.Username
		user.FullName = p.FullName
		user.AvatarURL = p.AvatarURL
		user.Bio = p.Bio
		if p.Email != "" {
			user.Email = p.Email
		}
		if err := s.sessions.UpdateUser(user); err != nil {
			s.log.Warn("failed to persist session user", logger.ErrorFields("update_user", err))
		}
	}
	s.cache.Set(querycache.Key("profiles", p.ID), p)
	if p.Username != "" {
		s.cache.Set(querycache.Key("profiles", "by-username", p.Username), p)
	}
}

func (s *Service) currentUser() (session.User, bool) {
	sess := s.sessions.Current()
	if !sess.Authenticated || sess.User == nil {
		return session.User{}, false
	}
	return *sess.User, true
}
