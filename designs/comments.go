package designs

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/observability"
	"github.com/reloom/reloom-go/profiles"
	"github.com/reloom/reloom-go/querycache"
)

// tempIDPrefix marks locally synthesized comments awaiting server
// confirmation.
const tempIDPrefix = "temp-"

// Comments lists a design's comments, newest first, served from cache
// when fresh.
func (s *Service) Comments(ctx context.Context, designID string) ([]Comment, error) {
	if designID == "" {
		return nil, fmt.Errorf("designs: id is required")
	}
	return querycache.Fetch(ctx, s.cache, commentsKey(designID), func(ctx context.Context) ([]Comment, error) {
		return httpapi.Get[[]Comment](ctx, s.api, "/designs/"+designID+"/comments")
	}, querycache.Options{StaleTime: s.staleTime})
}

// PostComment optimistically prepends the comment to the cached list,
// then commits it. On success the list is marked stale so the next
// read replaces the temporary entry with the authoritative one. On
// failure the temporary entry is removed and the error returned; the
// caller keeps the input text so the user can resubmit it.
func (s *Service) PostComment(ctx context.Context, designID, content string) (Comment, error) {
	if designID == "" {
		return Comment{}, fmt.Errorf("designs: id is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, fmt.Errorf("designs: comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLen {
		return Comment{}, fmt.Errorf("designs: comment exceeds %d characters", MaxCommentLen)
	}

	sess := s.sessions.Current()
	if !sess.Authenticated || sess.User == nil {
		return Comment{}, fmt.Errorf("designs: login required to comment")
	}
	user := *sess.User

	temp := Comment{
		ID:        tempIDPrefix + uuid.NewString(),
		Content:   content,
		CreatedAt: time.Now(),
		UserID:    user.ID,
		DesignID:  designID,
		Author: profiles.Profile{
			ID:        user.ID,
			Username:  user.Username,
			FullName:  user.FullName,
			AvatarURL: user.AvatarURL,
		},
	}

	oc := observability.NewOperationContext("designs.post_comment", user.ID, s.metrics)
	ctx = observability.WithOperationContext(ctx, oc)
	ctx, span := oc.StartSpanForOperation(ctx, observability.SpanMutation)
	observability.SetSpanAttribute(ctx, observability.AttrDesignID, designID)

	err := querycache.Mutate(ctx, s.cache, commentsKey(designID),
		func(current []Comment) []Comment {
			next := make([]Comment, 0, len(current)+1)
			next = append(next, temp)
			return append(next, current...)
		},
		func(ctx context.Context) error {
			_, err := httpapi.Post[Comment](ctx, s.api, "/designs/"+designID+"/comments",
				map[string]string{"content": content})
			return err
		})
	if err != nil {
		oc.EndOperation(ctx, span, mutationStatus(err), err)
		return Comment{}, err
	}
	oc.EndOperation(ctx, span, "committed", nil)

	s.log.Debug("comment posted", logger.Fields(logger.FieldDesignID, designID))
	return temp, nil
}
