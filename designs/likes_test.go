package designs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/reloom/reloom-go/observability"
	"github.com/reloom/reloom-go/querycache"
)

// likeBackend keeps authoritative like state server-side.
type likeBackend struct {
	mu    sync.Mutex
	likes int
	liked bool
	block chan struct{} // when set, /like blocks until closed
	fail  bool
}

func (b *likeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /designs/d-1", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		d := Design{ID: "d-1", Stats: &DesignStats{Likes: b.likes, IsLikedByMe: b.liked}}
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(d)
	})
	mux.HandleFunc("POST /designs/d-1/like", func(w http.ResponseWriter, r *http.Request) {
		if b.block != nil {
			<-b.block
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if b.liked {
			b.liked = false
			b.likes--
		} else {
			b.liked = true
			b.likes++
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestToggleLikeRoundTrip(t *testing.T) {
	backend := &likeBackend{likes: 3}
	svc, sessions, cleanup := newTestService(t, backend.handler(), Options{StaleTime: time.Minute})
	defer cleanup()
	login(t, sessions)

	ctx := context.Background()
	liked, err := svc.ToggleLike(ctx, "d-1")
	if err != nil {
		t.Fatalf("ToggleLike() error: %v", err)
	}
	if !liked {
		t.Error("expected liked = true")
	}

	// Optimistic value is visible immediately.
	cached, ok := svc.cache.Peek(designKey("d-1"))
	if !ok {
		t.Fatal("expected cached design")
	}
	d := cached.(Design)
	if !d.Stats.IsLikedByMe || d.Stats.Likes != 4 {
		t.Errorf("optimistic stats = %+v, want liked with 4 likes", d.Stats)
	}

	// The commit marked the key stale; a refetch converges with the server.
	if state, _ := svc.cache.EntryState(designKey("d-1")); state != querycache.StateStale {
		t.Errorf("state = %v, want stale after commit", state)
	}
	refetched, err := svc.Get(ctx, "d-1")
	if err != nil {
		t.Fatalf("Get() after toggle error: %v", err)
	}
	if !refetched.Stats.IsLikedByMe || refetched.Stats.Likes != 4 {
		t.Errorf("server stats = %+v, want liked with 4 likes", refetched.Stats)
	}
}

func TestToggleLikeRollsBackOnFailure(t *testing.T) {
	backend := &likeBackend{likes: 3, fail: true}
	svc, sessions, cleanup := newTestService(t, backend.handler(), Options{StaleTime: time.Minute})
	defer cleanup()
	login(t, sessions)

	ctx := context.Background()
	if _, err := svc.Get(ctx, "d-1"); err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	if _, err := svc.ToggleLike(ctx, "d-1"); err == nil {
		t.Fatal("expected commit failure")
	}

	cached, _ := svc.cache.Peek(designKey("d-1"))
	d := cached.(Design)
	if d.Stats.IsLikedByMe || d.Stats.Likes != 3 {
		t.Errorf("stats = %+v, want exact pre-toggle state restored", d.Stats)
	}
}

func TestToggleLikeRejectsWhilePending(t *testing.T) {
	backend := &likeBackend{likes: 3, block: make(chan struct{})}
	svc, sessions, cleanup := newTestService(t, backend.handler(), Options{StaleTime: time.Minute})
	defer cleanup()
	login(t, sessions)

	ctx := context.Background()
	if _, err := svc.Get(ctx, "d-1"); err != nil {
		t.Fatalf("Get() error: %v", err)
	}

	var firstErr atomic.Value
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.ToggleLike(ctx, "d-1"); err != nil {
			firstErr.Store(err)
		}
	}()

	// Wait until the first toggle's patch is in place.
	deadline := time.Now().Add(time.Second)
	for !svc.LikePending("d-1") {
		if time.Now().After(deadline) {
			t.Fatal("first toggle never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := svc.ToggleLike(ctx, "d-1")
	if !errors.Is(err, querycache.ErrMutationPending) {
		t.Fatalf("second toggle error = %v, want ErrMutationPending", err)
	}

	close(backend.block)
	<-done
	if v := firstErr.Load(); v != nil {
		t.Fatalf("first toggle error: %v", v)
	}

	// With the first settled, a retry is accepted.
	if _, err := svc.ToggleLike(ctx, "d-1"); err != nil {
		t.Fatalf("retry after settle error: %v", err)
	}
}

func TestToggleLikeEmitsMutationSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	backend := &likeBackend{likes: 3}
	svc, sessions, cleanup := newTestService(t, backend.handler(), Options{StaleTime: time.Minute})
	defer cleanup()
	login(t, sessions)

	if _, err := svc.ToggleLike(context.Background(), "d-1"); err != nil {
		t.Fatalf("ToggleLike() error: %v", err)
	}

	var found bool
	for _, span := range recorder.Ended() {
		if span.Name() != observability.SpanMutation {
			continue
		}
		found = true
		attrs := make(map[string]string)
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		if got := attrs[observability.AttrOperationName]; got != "designs.toggle_like" {
			t.Errorf("operation attr = %q", got)
		}
		if got := attrs[observability.AttrDesignID]; got != "d-1" {
			t.Errorf("design attr = %q", got)
		}
		if got := attrs[observability.AttrStatus]; got != "committed" {
			t.Errorf("status attr = %q", got)
		}
	}
	if !found {
		t.Fatal("expected a mutation span")
	}
}

func TestToggleLikeRequiresLogin(t *testing.T) {
	backend := &likeBackend{}
	svc, _, cleanup := newTestService(t, backend.handler(), Options{})
	defer cleanup()

	if _, err := svc.ToggleLike(context.Background(), "d-1"); err == nil {
		t.Fatal("expected error when logged out")
	}
}
