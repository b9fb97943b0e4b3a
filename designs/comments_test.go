package designs

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/reloom/reloom-go/session"
)

// commentBackend stores comments newest-first like the real API.
type commentBackend struct {
	comments []Comment
	fail     bool
}

func (b *commentBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /designs/d-1/comments", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(b.comments)
	})
	mux.HandleFunc("POST /designs/d-1/comments", func(w http.ResponseWriter, r *http.Request) {
		if b.fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var in struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		c := Comment{ID: "c-100", Content: in.Content, DesignID: "d-1", CreatedAt: time.Now()}
		b.comments = append([]Comment{c}, b.comments...)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(c)
	})
	return mux
}

func TestPostCommentOptimisticThenAuthoritative(t *testing.T) {
	backend := &commentBackend{comments: []Comment{{ID: "c-1", Content: "older"}}}
	svc, sessions, cleanup := newTestService(t, backend.handler(), Options{StaleTime: time.Minute})
	defer cleanup()
	login(t, sessions)

	ctx := context.Background()
	if _, err := svc.Comments(ctx, "d-1"); err != nil {
		t.Fatalf("Comments() error: %v", err)
	}

	temp, err := svc.PostComment(ctx, "d-1", "  Nice work!  ")
	if err != nil {
		t.Fatalf("PostComment() error: %v", err)
	}
	if temp.Content != "Nice work!" {
		t.Errorf("Content = %q, want trimmed", temp.Content)
	}
	if !strings.HasPrefix(temp.ID, tempIDPrefix) {
		t.Errorf("ID = %q, want temporary id", temp.ID)
	}
	if temp.Author.Username != "ada" {
		t.Errorf("Author = %+v, want current user", temp.Author)
	}

	// The authoritative refetch replaces the temporary entry.
	list, err := svc.Comments(ctx, "d-1")
	if err != nil {
		t.Fatalf("Comments() after post error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != "c-100" || list[0].Content != "Nice work!" {
		t.Errorf("list[0] = %+v, want server comment first", list[0])
	}
}

func TestPostCommentRollsBackOnFailure(t *testing.T) {
	backend := &commentBackend{fail: true}
	svc, sessions, cleanup := newTestService(t, backend.handler(), Options{StaleTime: time.Minute})
	defer cleanup()
	login(t, sessions)

	ctx := context.Background()
	if _, err := svc.Comments(ctx, "d-1"); err != nil {
		t.Fatalf("Comments() error: %v", err)
	}

	if _, err := svc.PostComment(ctx, "d-1", "Nice work!"); err == nil {
		t.Fatal("expected commit failure")
	}

	// The temporary comment is gone; the input text stays with the
	// caller for resubmission.
	cached, ok := svc.cache.Peek(commentsKey("d-1"))
	if !ok {
		t.Fatal("expected cached comment list")
	}
	if got := len(cached.([]Comment)); got != 0 {
		t.Errorf("len = %d, want 0 after rollback", got)
	}

	backend.fail = false
	if _, err := svc.PostComment(ctx, "d-1", "Nice work!"); err != nil {
		t.Fatalf("resubmission error: %v", err)
	}
}

func TestPostCommentValidation(t *testing.T) {
	svc, sessions, cleanup := newTestService(t, http.NewServeMux(), Options{})
	defer cleanup()
	login(t, sessions)

	ctx := context.Background()
	if _, err := svc.PostComment(ctx, "d-1", "   "); err == nil {
		t.Error("expected error for blank comment")
	}
	long := strings.Repeat("x", MaxCommentLen+1)
	if _, err := svc.PostComment(ctx, "d-1", long); err == nil {
		t.Error("expected error for over-length comment")
	}
}

func TestPostCommentRequiresLogin(t *testing.T) {
	svc, _, cleanup := newTestService(t, http.NewServeMux(), Options{})
	defer cleanup()

	if _, err := svc.PostComment(context.Background(), "d-1", "hi"); err == nil {
		t.Fatal("expected error when logged out")
	}
}

func TestCommentUsesSessionUser(t *testing.T) {
	backend := &commentBackend{}
	svc, sessions, cleanup := newTestService(t, backend.handler(), Options{StaleTime: time.Minute})
	defer cleanup()

	if err := sessions.Login("tok", session.User{ID: "user-9", Username: "zoe", AvatarURL: "/a.png"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	temp, err := svc.PostComment(context.Background(), "d-1", "love the stitching")
	if err != nil {
		t.Fatalf("PostComment() error: %v", err)
	}
	if temp.UserID != "user-9" || temp.Author.AvatarURL != "/a.png" {
		t.Errorf("temp = %+v, want session identity", temp)
	}
}
