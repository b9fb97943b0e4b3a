package designs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reloom/reloom-go/feed"
	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/localstore"
	"github.com/reloom/reloom-go/querycache"
	"github.com/reloom/reloom-go/session"
)

func newTestService(t *testing.T, handler http.Handler, opts Options) (*Service, *session.Store, func()) {
	t.Helper()

	srv := httptest.NewServer(handler)

	kv, err := localstore.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	sessions, err := session.NewStore(kv)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}

	api, err := httpapi.New(httpapi.Config{
		BaseURL:     srv.URL,
		TokenSource: sessions.Token,
	})
	if err != nil {
		t.Fatalf("api client: %v", err)
	}

	svc := NewService(api, querycache.New(), sessions, opts)
	cleanup := func() {
		svc.Close()
		srv.Close()
		_ = kv.Close()
	}
	return svc, sessions, cleanup
}

func login(t *testing.T, sessions *session.Store) {
	t.Helper()
	if err := sessions.Login("tok", session.User{ID: "user-1", Username: "ada"}); err != nil {
		t.Fatalf("login: %v", err)
	}
}

// pagedBackend serves /designs/ pages out of a fixed item set.
func pagedBackend(t *testing.T, total int) http.Handler {
	t.Helper()
	items := make([]Design, total)
	for i := range items {
		items[i] = Design{ID: fmt.Sprintf("d-%03d", i), Title: fmt.Sprintf("Design %d", i)}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /designs/", func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := skip + limit
		if end > total {
			end = total
		}
		page := feed.Page[Design]{Items: items[skip:end], Total: total, Skip: skip, Limit: limit}
		_ = json.NewEncoder(w).Encode(page)
	})
	return mux
}

func TestFeedAssemblesAllPagesInOrder(t *testing.T) {
	svc, _, cleanup := newTestService(t, pagedBackend(t, 45), Options{FeedPageSize: 20})
	defer cleanup()

	loader := svc.NewFeed(FeedQuery{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !loader.HasMore() {
			t.Fatalf("HasMore() = false before page %d", i)
		}
		if _, err := loader.LoadNext(ctx); err != nil {
			t.Fatalf("LoadNext(page %d) error: %v", i, err)
		}
	}
	if loader.HasMore() {
		t.Error("HasMore() = true after all 45 items loaded")
	}

	items := loader.Items()
	if len(items) != 45 {
		t.Fatalf("len(items) = %d, want 45", len(items))
	}
	seen := make(map[string]bool, len(items))
	for i, d := range items {
		if seen[d.ID] {
			t.Errorf("duplicate item %s", d.ID)
		}
		seen[d.ID] = true
		if want := fmt.Sprintf("d-%03d", i); d.ID != want {
			t.Errorf("items[%d] = %s, want %s (server order)", i, d.ID, want)
		}
	}
}

func TestFeedSignatureCarriesFilters(t *testing.T) {
	var gotQuery atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("GET /designs/", func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Encode())
		_ = json.NewEncoder(w).Encode(feed.Page[Design]{Total: 0})
	})

	svc, _, cleanup := newTestService(t, mux, Options{FeedPageSize: 20})
	defer cleanup()

	loader := svc.NewFeed(FeedQuery{Q: "denim", UserID: "user-1"})
	if _, err := loader.LoadNext(context.Background()); err != nil {
		t.Fatalf("LoadNext() error: %v", err)
	}

	q := gotQuery.Load().(string)
	if q != "limit=20&q=denim&skip=0&user_id=user-1" {
		t.Errorf("query = %q", q)
	}

	other := svc.NewFeed(FeedQuery{Q: "wool"})
	if other.Signature() == loader.Signature() {
		t.Error("different filters must produce different signatures")
	}
}

func TestGetCachesDesign(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /designs/d-1", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(Design{ID: "d-1", Title: "Tote"})
	})

	svc, _, cleanup := newTestService(t, mux, Options{StaleTime: time.Minute})
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := svc.Get(ctx, "d-1")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if d.Title != "Tote" {
			t.Errorf("Title = %q", d.Title)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("backend calls = %d, want 1", calls.Load())
	}
}

func TestCreateSendsAtomicMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /designs/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("title"); got != "Denim Tote" {
			t.Errorf("title = %q", got)
		}
		if got := len(r.MultipartForm.File["images"]); got != 2 {
			t.Errorf("image count = %d, want 2", got)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Design{ID: "d-new", Title: "Denim Tote"})
	})

	svc, sessions, cleanup := newTestService(t, mux, Options{})
	defer cleanup()
	login(t, sessions)

	d, err := svc.Create(context.Background(), CreateInput{
		Title:       "Denim Tote",
		Description: "A tote bag made from an old denim jacket.",
		Materials:   "denim, thread",
		Images: []ImageFile{
			{FileName: "front.jpg", ContentType: "image/jpeg", Data: []byte("img1")},
			{FileName: "back.jpg", ContentType: "image/jpeg", Data: []byte("img2")},
		},
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if d.ID != "d-new" {
		t.Errorf("ID = %q", d.ID)
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, _, cleanup := newTestService(t, http.NewServeMux(), Options{})
	defer cleanup()

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"short title", CreateInput{Title: "ab", Description: "long enough description", Materials: "denim",
			Images: []ImageFile{{FileName: "a.jpg", Data: []byte("x")}}}},
		{"no images", CreateInput{Title: "Denim Tote", Description: "long enough description", Materials: "denim"}},
		{"too many images", CreateInput{Title: "Denim Tote", Description: "long enough description", Materials: "denim",
			Images: make([]ImageFile, MaxImages+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.in); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDeleteImageSurfacesCodedError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /designs/d-1/images/img-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"detail": map[string]string{"code": httpapi.CodeCannotDeleteLastImg},
		})
	})

	svc, _, cleanup := newTestService(t, mux, Options{})
	defer cleanup()

	err := svc.DeleteImage(context.Background(), "d-1", "img-1")
	var apiErr *httpapi.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *httpapi.Error, got %v", err)
	}
	coded, ok := apiErr.Detail.(httpapi.CodedDetail)
	if !ok {
		t.Fatalf("expected coded detail, got %T", apiErr.Detail)
	}
	if coded.Code != httpapi.CodeCannotDeleteLastImg {
		t.Errorf("Code = %q", coded.Code)
	}
}

func TestDeleteRemovesFromCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /designs/d-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Design{ID: "d-1"})
	})
	mux.HandleFunc("DELETE /designs/d-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	svc, _, cleanup := newTestService(t, mux, Options{StaleTime: time.Minute})
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.Get(ctx, "d-1"); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if err := svc.Delete(ctx, "d-1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, ok := svc.cache.Peek(designKey("d-1")); ok {
		t.Error("design should be gone from the cache")
	}
}

func TestTrackViewSendsOncePerSession(t *testing.T) {
	var views atomic.Int32
	id := "7b1276e5-423b-44ce-a972-ab47cc1a6d1c"
	mux := http.NewServeMux()
	mux.HandleFunc("POST /designs/"+id+"/view", func(w http.ResponseWriter, r *http.Request) {
		views.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	svc, _, cleanup := newTestService(t, mux, Options{ViewDelay: 20 * time.Millisecond})
	defer cleanup()

	svc.TrackView(id)
	svc.TrackView(id) // within the delay window, still one event
	time.Sleep(100 * time.Millisecond)
	svc.TrackView(id) // already viewed this session
	time.Sleep(50 * time.Millisecond)

	if got := views.Load(); got != 1 {
		t.Errorf("view events = %d, want 1", got)
	}
}

func TestCancelViewBeforeDelay(t *testing.T) {
	var views atomic.Int32
	id := "7b1276e5-423b-44ce-a972-ab47cc1a6d1c"
	mux := http.NewServeMux()
	mux.HandleFunc("POST /designs/"+id+"/view", func(w http.ResponseWriter, r *http.Request) {
		views.Add(1)
	})

	svc, _, cleanup := newTestService(t, mux, Options{ViewDelay: 50 * time.Millisecond})
	defer cleanup()

	svc.TrackView(id)
	svc.CancelView(id)
	time.Sleep(120 * time.Millisecond)

	if got := views.Load(); got != 0 {
		t.Errorf("view events = %d, want 0 after cancel", got)
	}
}
