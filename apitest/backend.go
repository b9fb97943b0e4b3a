// Package apitest provides an in-process fake of the ReLoom REST API
// for integration tests. The backend speaks the same contract the real
// service does, including the structured `detail` error convention,
// bearer authentication, and paginated lists.
package apitest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reloom/reloom-go/designs"
	"github.com/reloom/reloom-go/feed"
	"github.com/reloom/reloom-go/notifications"
	"github.com/reloom/reloom-go/profiles"
)

// Account is a registered user with its password, server-side.
type Account struct {
	Profile  profiles.Profile
	Email    string
	Password string
}

// Backend is the fake API state. All fields are guarded by mu; tests
// may inspect them between requests.
type Backend struct {
	mu sync.Mutex

	accounts      map[string]*Account // by user id
	designs       []*designs.Design
	likes         map[string]map[string]bool // design id -> user id -> liked
	comments      map[string][]designs.Comment
	views         map[string]int
	notifications map[string][]notifications.Notification // by user id
}

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	return &Backend{
		accounts:      make(map[string]*Account),
		likes:         make(map[string]map[string]bool),
		comments:      make(map[string][]designs.Comment),
		views:         make(map[string]int),
		notifications: make(map[string][]notifications.Notification),
	}
}

// AddAccount registers a user that can log in.
func (b *Backend) AddAccount(username, email, password string) profiles.Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := profiles.Profile{ID: uuid.NewString(), Username: username, Email: email}
	b.accounts[p.ID] = &Account{Profile: p, Email: email, Password: password}
	return p
}

// AddDesign seeds a design owned by userID.
func (b *Backend) AddDesign(userID, title string) designs.Design {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := designs.Design{
		ID:        uuid.NewString(),
		Title:     title,
		UserID:    userID,
		CreatedAt: time.Now(),
		Images:    []designs.DesignImage{{ID: uuid.NewString(), URL: "/media/" + title + ".jpg", IsPrimary: true}},
	}
	b.designs = append(b.designs, &d)
	return d
}

// AddNotification seeds an unread notification for userID.
func (b *Backend) AddNotification(userID, title string) notifications.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := notifications.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      notifications.TypeInfo,
		Title:     title,
		CreatedAt: time.Now(),
	}
	b.notifications[userID] = append([]notifications.Notification{n}, b.notifications[userID]...)
	return n
}

// Views returns how many view events a design has received.
func (b *Backend) Views(designID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.views[designID]
}

// Handler builds the gin engine serving the API.
func (b *Backend) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.POST("/auth/login", b.login)
	r.POST("/auth/signup", b.signup)

	r.GET("/profiles/:id", b.getProfile)
	r.GET("/profiles/:id/stats", b.getStats)
	r.GET("/profiles/by-username/:username", b.getProfileByUsername)
	r.PUT("/profiles/me", b.authed(b.updateProfile))

	r.GET("/designs/", b.listDesigns)
	r.GET("/designs/:id", b.getDesign)
	r.DELETE("/designs/:id", b.authed(b.deleteDesign))
	r.POST("/designs/:id/like", b.authed(b.toggleLike))
	r.GET("/designs/:id/likes", b.listLikers)
	r.POST("/designs/:id/view", b.recordView)
	r.GET("/designs/:id/comments", b.listComments)
	r.POST("/designs/:id/comments", b.authed(b.postComment))

	r.GET("/notifications", b.authed(b.listNotifications))
	r.GET("/notifications/unread-count", b.authed(b.unreadCount))
	r.PATCH("/notifications/:id/read", b.authed(b.markRead))
	r.PATCH("/notifications/read-all", b.authed(b.markAllRead))

	return r
}

// detail writes the structured error convention: {"detail": ...}.
func detail(c *gin.Context, status int, d any) {
	c.AbortWithStatusJSON(status, gin.H{"detail": d})
}

// authed resolves the bearer token to an account before running next.
func (b *Backend) authed(next func(*gin.Context, *Account)) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			detail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		userID, err := tokenSubject(token)
		if err != nil {
			detail(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		b.mu.Lock()
		acct := b.accounts[userID]
		b.mu.Unlock()
		if acct == nil {
			detail(c, http.StatusUnauthorized, "Unknown user")
			return
		}
		next(c, acct)
	}
}

func (b *Backend) login(c *gin.Context) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acct := range b.accounts {
		if acct.Email == in.Email && acct.Password == in.Password {
			c.JSON(http.StatusOK, gin.H{
				"access_token": makeToken(acct.Profile.ID),
				"token_type":   "bearer",
			})
			return
		}
	}
	detail(c, http.StatusUnauthorized, "Incorrect email or password")
}

func (b *Backend) signup(c *gin.Context) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Malformed body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acct := range b.accounts {
		if acct.Email == in.Email {
			detail(c, http.StatusConflict, "Email already registered")
			return
		}
	}
	p := profiles.Profile{ID: uuid.NewString(), Username: in.Username, Email: in.Email}
	b.accounts[p.ID] = &Account{Profile: p, Email: in.Email, Password: in.Password}
	c.JSON(http.StatusCreated, gin.H{
		"access_token": makeToken(p.ID),
		"user": gin.H{
			"id":       p.ID,
			"email":    p.Email,
			"username": p.Username,
		},
	})
}

func (b *Backend) getProfile(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.accounts[c.Param("id")]
	if acct == nil {
		detail(c, http.StatusNotFound, "Profile not found")
		return
	}
	c.JSON(http.StatusOK, acct.Profile)
}

func (b *Backend) getProfileByUsername(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acct := range b.accounts {
		if acct.Profile.Username == c.Param("username") {
			c.JSON(http.StatusOK, acct.Profile)
			return
		}
	}
	detail(c, http.StatusNotFound, "Profile not found")
}

func (b *Backend) getStats(c *gin.Context) {
	userID := c.Param("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := profiles.UserStats{}
	for _, d := range b.designs {
		if d.UserID != userID {
			continue
		}
		stats.TotalDesigns++
		stats.TotalViews += b.views[d.ID]
		for _, liked := range b.likes[d.ID] {
			if liked {
				stats.TotalLikes++
			}
		}
	}
	c.JSON(http.StatusOK, stats)
}

func (b *Backend) updateProfile(c *gin.Context, acct *Account) {
	var in profiles.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Malformed body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acct.Profile.FullName = in.FullName
	acct.Profile.Bio = in.Bio
	acct.Profile.Website = in.Website
	c.JSON(http.StatusOK, acct.Profile)
}

func (b *Backend) listDesigns(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	q := strings.ToLower(c.Query("q"))
	userID := c.Query("user_id")

	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []designs.Design
	viewer := b.viewerID(c)
	for _, d := range b.designs {
		if userID != "" && d.UserID != userID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Title), q) {
			continue
		}
		matched = append(matched, b.withStats(*d, viewer))
	}

	end := skip + limit
	if end > len(matched) {
		end = len(matched)
	}
	var items []designs.Design
	if skip < len(matched) {
		items = matched[skip:end]
	}
	c.JSON(http.StatusOK, feed.Page[designs.Design]{
		Items: items, Total: len(matched), Skip: skip, Limit: limit,
	})
}

func (b *Backend) getDesign(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDesign(c.Param("id"))
	if d == nil {
		detail(c, http.StatusNotFound, "Design not found")
		return
	}
	c.JSON(http.StatusOK, b.withStats(*d, b.viewerID(c)))
}

func (b *Backend) deleteDesign(c *gin.Context, acct *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, d := range b.designs {
		if d.ID == c.Param("id") {
			if d.UserID != acct.Profile.ID {
				detail(c, http.StatusForbidden, "Not your design")
				return
			}
			b.designs = append(b.designs[:i], b.designs[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	detail(c, http.StatusNotFound, "Design not found")
}

func (b *Backend) toggleLike(c *gin.Context, acct *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.findDesign(c.Param("id"))
	if d == nil {
		detail(c, http.StatusNotFound, "Design not found")
		return
	}
	if b.likes[d.ID] == nil {
		b.likes[d.ID] = make(map[string]bool)
	}
	b.likes[d.ID][acct.Profile.ID] = !b.likes[d.ID][acct.Profile.ID]
	c.Status(http.StatusNoContent)
}

func (b *Backend) listLikers(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var likers []profiles.Profile
	for userID, liked := range b.likes[c.Param("id")] {
		if liked && b.accounts[userID] != nil {
			likers = append(likers, b.accounts[userID].Profile)
		}
	}
	c.JSON(http.StatusOK, likers)
}

func (b *Backend) recordView(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.findDesign(c.Param("id")) == nil {
		detail(c, http.StatusNotFound, "Design not found")
		return
	}
	b.views[c.Param("id")]++
	c.Status(http.StatusNoContent)
}

func (b *Backend) listComments(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.comments[c.Param("id")]
	if list == nil {
		list = []designs.Comment{}
	}
	c.JSON(http.StatusOK, list)
}

func (b *Backend) postComment(c *gin.Context, acct *Account) {
	var in struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusUnprocessableEntity, "Malformed body")
		return
	}
	if in.Content == "" || len(in.Content) > designs.MaxCommentLen {
		detail(c, http.StatusUnprocessableEntity, []gin.H{
			{"loc": []string{"body", "content"}, "msg": "Comment must be 1-500 characters"},
		})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	designID := c.Param("id")
	if b.findDesign(designID) == nil {
		detail(c, http.StatusNotFound, "Design not found")
		return
	}
	comment := designs.Comment{
		ID:        uuid.NewString(),
		Content:   in.Content,
		CreatedAt: time.Now(),
		UserID:    acct.Profile.ID,
		DesignID:  designID,
		Author:    acct.Profile,
	}
	b.comments[designID] = append([]designs.Comment{comment}, b.comments[designID]...)
	c.JSON(http.StatusCreated, comment)
}

func (b *Backend) listNotifications(c *gin.Context, acct *Account) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	b.mu.Lock()
	defer b.mu.Unlock()
	all := b.notifications[acct.Profile.ID]
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	var items []notifications.Notification
	if skip < len(all) {
		items = all[skip:end]
	}
	c.JSON(http.StatusOK, feed.Page[notifications.Notification]{
		Items: items, Total: len(all), Skip: skip, Limit: limit,
	})
}

func (b *Backend) unreadCount(c *gin.Context, acct *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, n := range b.notifications[acct.Profile.ID] {
		if !n.IsRead {
			count++
		}
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (b *Backend) markRead(c *gin.Context, acct *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.notifications[acct.Profile.ID]
	for i := range list {
		if list[i].ID == c.Param("id") {
			list[i].IsRead = true
			c.Status(http.StatusNoContent)
			return
		}
	}
	detail(c, http.StatusNotFound, "Notification not found")
}

func (b *Backend) markAllRead(c *gin.Context, acct *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.notifications[acct.Profile.ID]
	for i := range list {
		list[i].IsRead = true
	}
	c.Status(http.StatusNoContent)
}

// findDesign must be called with mu held.
func (b *Backend) findDesign(id string) *designs.Design {
	for _, d := range b.designs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// withStats must be called with mu held.
func (b *Backend) withStats(d designs.Design, viewerID string) designs.Design {
	stats := designs.DesignStats{
		Comments: len(b.comments[d.ID]),
		Views:    b.views[d.ID],
	}
	for userID, liked := range b.likes[d.ID] {
		if liked {
			stats.Likes++
			if userID == viewerID {
				stats.IsLikedByMe = true
			}
		}
	}
	d.Stats = &stats
	return d
}

// viewerID resolves the optional bearer token to a user id; anonymous
// requests return "".
func (b *Backend) viewerID(c *gin.Context) string {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	userID, err := tokenSubject(token)
	if err != nil {
		return ""
	}
	return userID
}

// makeToken issues an unsigned JWT with the user id as subject.
func makeToken(userID string) string {
	enc := func(v any) string {
		data, _ := json.Marshal(v)
		return base64.RawURLEncoding.EncodeToString(data)
	}
	header := map[string]string{"alg": "none", "typ": "JWT"}
	claims := map[string]any{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	return enc(header) + "." + enc(claims) + "."
}

// tokenSubject reads the sub claim back out of an unsigned token.
func tokenSubject(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", err
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("missing subject")
	}
	return claims.Sub, nil
}
