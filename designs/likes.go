package designs

import (
	"context"
	"errors"
	"fmt"

	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/observability"
	"github.com/reloom/reloom-go/querycache"
)

// ToggleLike optimistically flips the viewer's like on a design: the
// cached design updates immediately, then the toggle is committed to
// the backend. On failure the cached design is restored exactly.
//
// While a toggle for the same design is unresolved, another call
// returns querycache.ErrMutationPending instead of queueing; rapid
// double-clicks cannot drift the counter.
//
// The returned bool is the tentative liked state after the flip.
func (s *Service) ToggleLike(ctx context.Context, designID string) (bool, error) {
	if designID == "" {
		return false, fmt.Errorf("designs: id is required")
	}
	if !s.sessions.Authenticated() {
		return false, fmt.Errorf("designs: login required to like")
	}

	oc := observability.NewOperationContext("designs.toggle_like", s.currentUserID(), s.metrics)
	ctx = observability.WithOperationContext(ctx, oc)
	ctx, span := oc.StartSpanForOperation(ctx, observability.SpanMutation)
	observability.SetSpanAttribute(ctx, observability.AttrDesignID, designID)

	// The design must be cached before flipping, otherwise there is
	// nothing to patch or roll back.
	current, err := s.Get(ctx, designID)
	if err != nil {
		oc.EndOperation(ctx, span, "rejected", err)
		return false, err
	}
	liked := !(current.Stats != nil && current.Stats.IsLikedByMe)

	err = querycache.Mutate(ctx, s.cache, designKey(designID), toggleLiked,
		func(ctx context.Context) error {
			_, err := httpapi.Post[struct{}](ctx, s.api, "/designs/"+designID+"/like", nil)
			return err
		})
	if err != nil {
		oc.EndOperation(ctx, span, mutationStatus(err), err)
		return false, err
	}
	oc.EndOperation(ctx, span, "committed", nil)

	s.log.Debug("like toggled", logger.Fields(
		logger.FieldDesignID, designID,
		"liked", liked,
	))
	return liked, nil
}

// mutationStatus names the outcome of a failed optimistic mutation.
func mutationStatus(err error) string {
	if errors.Is(err, querycache.ErrMutationPending) {
		return "rejected"
	}
	return "rolled_back"
}

// LikePending reports whether a like toggle for the design is still
// unresolved. Callers use this to disable the like control.
func (s *Service) LikePending(designID string) bool {
	return s.cache.MutationPending(designKey(designID))
}

// toggleLiked flips the liked flag and adjusts the counter. Stats are
// copied so the rollback snapshot is never aliased.
func toggleLiked(d Design) Design {
	var stats DesignStats
	if d.Stats != nil {
		stats = *d.Stats
	}
	if stats.IsLikedByMe {
		stats.IsLikedByMe = false
		if stats.Likes > 0 {
			stats.Likes--
		}
	} else {
		stats.IsLikedByMe = true
		stats.Likes++
	}
	d.Stats = &stats
	return d
}
