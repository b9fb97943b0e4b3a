package querycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMutate_OptimisticApplyAndCommit(t *testing.T) {
	c := New()
	ctx := context.Background()
	c.Set("likes/d1", 5)

	applied := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := Mutate(ctx, c, "likes/d1",
			func(current int) int { return current + 1 },
			func(context.Context) error {
				close(applied)
				<-release
				return nil
			})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}()

	// The tentative value is visible while the commit is still in flight.
	<-applied
	if v, _ := c.Peek("likes/d1"); v.(int) != 6 {
		t.Errorf("expected optimistic 6, got %v", v)
	}
	if !c.MutationPending("likes/d1") {
		t.Error("expected pending mutation")
	}

	close(release)
	wg.Wait()

	// Patch discarded; key marked stale so the next read refetches
	// authoritative state.
	if c.MutationPending("likes/d1") {
		t.Error("expected patch discarded after commit")
	}
	if state, _ := c.EntryState("likes/d1"); state != StateStale {
		t.Errorf("expected stale after commit, got %v", state)
	}
	if v, _ := c.Peek("likes/d1"); v.(int) != 6 {
		t.Errorf("expected committed value kept, got %v", v)
	}
}

func TestMutate_RollbackRestoresExactly(t *testing.T) {
	c := New()
	ctx := context.Background()
	c.Set("likes/d1", 5)
	before, _ := c.Peek("likes/d1")
	stateBefore, _ := c.EntryState("likes/d1")

	boom := errors.New("network unreachable")
	err := Mutate(ctx, c, "likes/d1",
		func(current int) int { return current + 1 },
		func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}

	after, _ := c.Peek("likes/d1")
	if after != before {
		t.Errorf("expected exact restore: before=%v after=%v", before, after)
	}
	if state, _ := c.EntryState("likes/d1"); state != stateBefore {
		t.Errorf("expected state restored to %v, got %v", stateBefore, state)
	}
	if c.MutationPending("likes/d1") {
		t.Error("expected no pending patch after rollback")
	}
}

func TestMutate_SecondMutationRejected(t *testing.T) {
	c := New()
	ctx := context.Background()
	c.Set("likes/d1", 5)

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = Mutate(ctx, c, "likes/d1",
			func(current int) int { return current + 1 },
			func(context.Context) error {
				close(started)
				<-release
				return nil
			})
	}()

	<-started
	// A second mutation on the same key while the first is pending must be
	// rejected, never silently interleaved.
	err := Mutate(ctx, c, "likes/d1",
		func(current int) int { return current - 1 },
		func(context.Context) error { return nil })
	if !errors.Is(err, ErrMutationPending) {
		t.Errorf("expected ErrMutationPending, got %v", err)
	}

	close(release)
	wg.Wait()

	// The first mutation's value won; nothing was lost or double-applied.
	if v, _ := c.Peek("likes/d1"); v.(int) != 6 {
		t.Errorf("expected 6, got %v", v)
	}

	// Independent keys are unaffected by the pending patch discipline.
	if err := Mutate(ctx, c, "likes/d2",
		func(current int) int { return current + 1 },
		func(context.Context) error { return nil }); err != nil {
		t.Errorf("unexpected error on independent key: %v", err)
	}
}

func TestMutate_AbsentKeyStartsFromZeroValue(t *testing.T) {
	c := New()
	ctx := context.Background()

	err := Mutate(ctx, c, "comments/d1",
		func(current []string) []string { return append([]string{"new"}, current...) },
		func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok := c.Peek("comments/d1")
	if !ok {
		t.Fatal("expected entry created")
	}
	list := v.([]string)
	if len(list) != 1 || list[0] != "new" {
		t.Errorf("unexpected list: %v", list)
	}
}

func TestMutate_RollbackToAbsent(t *testing.T) {
	c := New()
	ctx := context.Background()

	boom := errors.New("rejected")
	err := Mutate(ctx, c, "comments/d1",
		func(current []string) []string { return append([]string{"new"}, current...) },
		func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected error, got %v", err)
	}

	// The key had no value before the mutation, so it has none after.
	if _, ok := c.Peek("comments/d1"); ok {
		t.Error("expected value absent after rollback")
	}
}

func TestMutate_SequentialMutationsAllowed(t *testing.T) {
	c := New()
	ctx := context.Background()
	c.Set("count", 0)

	for i := 0; i < 3; i++ {
		if err := Mutate(ctx, c, "count",
			func(current int) int { return current + 1 },
			func(context.Context) error { return nil }); err != nil {
			t.Fatalf("mutation %d: %v", i, err)
		}
	}
	if v, _ := c.Peek("count"); v.(int) != 3 {
		t.Errorf("expected 3, got %v", v)
	}
}

func TestMutate_LikeToggleRoundTrip(t *testing.T) {
	type likeState struct {
		Liked bool
		Count int
	}
	c := New()
	ctx := context.Background()
	c.Set("likes/d1", likeState{Liked: false, Count: 4})

	// Server state after a successful toggle.
	server := likeState{Liked: true, Count: 5}

	err := Mutate(ctx, c, "likes/d1",
		func(cur likeState) likeState {
			cur.Liked = !cur.Liked
			if cur.Liked {
				cur.Count++
			} else {
				cur.Count--
			}
			return cur
		},
		func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, _ := c.Peek("likes/d1")
	got := v.(likeState)
	if got.Count != 5 || !got.Liked {
		t.Errorf("expected liked count 5, got %+v", got)
	}

	// Invalidation plus refetch must converge on what the server reports.
	refetched, err := Fetch(ctx, c, "likes/d1",
		func(context.Context) (likeState, error) { return server, nil },
		Options{StaleTime: time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refetched != got {
		t.Errorf("server state %+v diverges from optimistic %+v", refetched, got)
	}
}
