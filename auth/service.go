package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/logger"
	"github.com/reloom/reloom-go/profiles"
	"github.com/reloom/reloom-go/querycache"
	"github.com/reloom/reloom-go/session"
	"github.com/reloom/reloom-go/validation"
)

// LoginInput is the credential set for Login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupInput is the registration payload for Signup.
type SignupInput struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// tokenResponse is the backend's /auth/login payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// signupResponse is the backend's /auth/signup payload. The token and
// user are only present when the backend auto-logs-in new accounts.
type signupResponse struct {
	AccessToken string        `json:"access_token"`
	User        *session.User `json:"user"`
}

// Service authenticates against the backend and keeps the session
// store in sync. Inputs are validated locally before any request is
// sent, mirroring the server's own rules.
type Service struct {
	api      *httpapi.Client
	sessions *session.Store
	cache    *querycache.Cache
	log      *logger.Logger
}

// NewService creates the auth service.
func NewService(api *httpapi.Client, sessions *session.Store, cache *querycache.Cache) *Service {
	return &Service{
		api:      api,
		sessions: sessions,
		cache:    cache,
		log:      logger.GetGlobalLogger().WithComponent("auth"),
	}
}

// Login exchanges credentials for an access token, resolves the user's
// profile, and atomically installs both in the session store.
func (s *Service) Login(ctx context.Context, in LoginInput) (session.User, error) {
	if err := validation.Validate(in); err != nil {
		return session.User{}, err
	}

	tok, err := httpapi.Post[tokenResponse](ctx, s.api, "/auth/login", in, httpapi.WithoutAuth())
	if err != nil {
		return session.User{}, err
	}
	if tok.AccessToken == "" {
		return session.User{}, fmt.Errorf("auth: login response missing access token")
	}

	userID, err := tokenSubject(tok.AccessToken)
	if err != nil {
		return session.User{}, fmt.Errorf("auth: %w", err)
	}

	// The token endpoint returns no identity beyond the subject claim,
	// so the profile is fetched before the session is installed. The
	// profile may omit the email; the login email fills the gap.
	profile, err := httpapi.Get[profiles.Profile](ctx, s.api, "/profiles/"+userID,
		httpapi.WithHeaders(map[string]string{"Authorization": "Bearer " + tok.AccessToken}))
	if err != nil {
		return session.User{}, err
	}

	user := session.User{
		ID:        profile.ID,
		Email:     profile.Email,
		Username:  profile.Username,
		FullName:  profile.FullName,
		AvatarURL: profile.AvatarURL,
		Bio:       profile.Bio,
	}
	if user.Email == "" {
		user.Email = in.Email
	}

	if err := s.sessions.Login(tok.AccessToken, user); err != nil {
		return session.User{}, err
	}

	s.log.Info("logged in", logger.Fields(
		logger.FieldUserID, user.ID,
		logger.FieldUsername, user.Username,
	))
	return user, nil
}

// Signup registers a new account. When the backend returns a token and
// user the session is installed immediately; otherwise the caller is
// expected to follow up with Login. The second return value reports
// whether the account was auto-logged-in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (session.User, bool, error) {
	if err := validation.Validate(in); err != nil {
		return session.User{}, false, err
	}

	resp, err := httpapi.Post[signupResponse](ctx, s.api, "/auth/signup", in, httpapi.WithoutAuth())
	if err != nil {
		return session.User{}, false, err
	}

	if resp.AccessToken == "" || resp.User == nil {
		s.log.Info("signed up, login required", logger.Fields(logger.FieldUsername, in.Username))
		return session.User{}, false, nil
	}

	if err := s.sessions.Login(resp.AccessToken, *resp.User); err != nil {
		return session.User{}, false, err
	}

	s.log.Info("signed up and logged in", logger.Fields(
		logger.FieldUserID, resp.User.ID,
		logger.FieldUsername, resp.User.Username,
	))
	return *resp.User, true, nil
}

// Logout clears the session and drops every cached response so no
// per-user data survives into the next session.
func (s *Service) Logout() {
	s.sessions.Logout()
	if s.cache != nil {
		s.cache.Clear()
	}
	s.log.Info("logged out")
}

// tokenSubject extracts the subject claim from an access token without
// verifying the signature. Validity is the backend's concern; the
// subject is only used to locate the profile to fetch.
func tokenSubject(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("access token has no subject claim")
	}
	return sub, nil
}
