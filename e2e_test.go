package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vidstream/vidstream/config"
	"github.com/vidstream/vidstream/internal/api/auth"
	"github.com/vidstream/vidstream/internal/api/channel"
	"github.com/vidstream/vidstream/internal/api/media"
	"github.com/vidstream/vidstream/internal/api/video"
	"github.com/vidstream/vidstream/internal/router"
	"github.com/vidstream/vidstream/internal/types"
)

// memAuthRepo is an in-memory AuthRepo so the lifecycle tests run the real
// service, token issuer, middleware and router without a database.
type memAuthRepo struct {
	mu    sync.Mutex
	users map[string]*types.UserAuth
	seq   int
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{users: map[string]*types.UserAuth{}}
}

func (r *memAuthRepo) GetUserByHandle(_ context.Context, handle string) (*types.UserAuth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == handle || u.Email == handle {
			cp := *u
			return &cp, nil
		}
	}
	return nil, types.ErrNotFound
}

func (r *memAuthRepo) GetUserByID(_ context.Context, userID string) (*types.UserAuth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memAuthRepo) HandleExists(_ context.Context, username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAuthRepo) CreateUser(_ context.Context, params auth.CreateUserParams) (*types.UserAuth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == params.Username || u.Email == params.Email {
			return nil, fmt.Errorf("duplicate: %w", types.ErrConflict)
		}
	}
	r.seq++
	now := time.Now()
	u := &types.UserAuth{
		ID:            fmt.Sprintf("user-%d", r.seq),
		Username:      params.Username,
		Email:         params.Email,
		FullName:      params.FullName,
		PasswordHash:  params.PasswordHash,
		AvatarURL:     params.AvatarURL,
		CoverImageURL: params.CoverImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *memAuthRepo) UpdateRefreshToken(_ context.Context, userID string, token *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return types.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (r *memAuthRepo) RotateRefreshToken(_ context.Context, userID, oldToken, newToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != oldToken {
		return fmt.Errorf("refresh token is stale: %w", types.ErrUnauthenticated)
	}
	u.RefreshToken = &newToken
	return nil
}

func (r *memAuthRepo) UpdatePassword(_ context.Context, userID, newHashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return types.ErrNotFound
	}
	u.PasswordHash = newHashedPassword
	return nil
}

func (r *memAuthRepo) UpdateProfile(_ context.Context, userID string, params types.UpdateProfileParams) (*types.UserAuth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	if params.FullName != nil {
		u.FullName = strings.TrimSpace(*params.FullName)
	}
	if params.Email != nil {
		u.Email = types.NormalizeHandle(*params.Email)
	}
	cp := *u
	return &cp, nil
}

func (r *memAuthRepo) UpdateAvatar(_ context.Context, userID, avatarURL string) (*types.UserAuth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	u.AvatarURL = avatarURL
	cp := *u
	return &cp, nil
}

func (r *memAuthRepo) UpdateCoverImage(_ context.Context, userID, coverImageURL string) (*types.UserAuth, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	u.CoverImageURL = &coverImageURL
	cp := *u
	return &cp, nil
}

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, localPath string) (*media.UploadResult, error) {
	if localPath == "" {
		return nil, nil
	}
	return &media.UploadResult{URL: "https://cdn.example.com/" + localPath}, nil
}

type stubChannelService struct{}

func (stubChannelService) GetChannelProfile(context.Context, string, *string) (*types.ChannelProfile, error) {
	return nil, types.ErrNotFound
}
func (stubChannelService) GetWatchHistory(context.Context, string) ([]types.WatchHistoryEntry, error) {
	return []types.WatchHistoryEntry{}, nil
}
func (stubChannelService) ToggleSubscription(context.Context, string, string) (bool, error) {
	return false, types.ErrNotFound
}

type stubVideoService struct{}

func (stubVideoService) Publish(context.Context, video.PublishParams) (*types.Video, error) {
	return nil, types.ErrBadRequest
}
func (stubVideoService) GetVideo(context.Context, string, *string) (*types.Video, error) {
	return nil, types.ErrNotFound
}

// SessionLifecycleSuite drives the public HTTP surface end to end:
// register, login, authenticated reads, token rotation, replay rejection,
// password change and logout.
type SessionLifecycleSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
}

func (s *SessionLifecycleSuite) SetupSuite() {
	logger := slog.Default()
	jwtCfg := config.JWTConfig{
		SecretKey:        "e2e-access-secret",
		RefreshSecretKey: "e2e-refresh-secret",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		Issuer:           "e2e",
		Audience:         "e2e-clients",
	}

	tokens := auth.NewTokenIssuer(jwtCfg, logger)
	repo := newMemAuthRepo()
	authService := auth.NewAuthService(repo, tokens, stubUploader{}, logger)
	authHandler := auth.NewAuthHandler(authService, jwtCfg, nil, logger)

	r := router.SetupRouter(&router.Config{
		AuthHandler:          authHandler,
		ChannelHandler:       channel.NewChannelHandler(stubChannelService{}, logger),
		VideoHandler:         video.NewVideoHandler(stubVideoService{}, logger),
		Authenticate:         auth.Authenticate(logger, tokens, authService),
		OptionalAuthenticate: auth.OptionalAuthenticate(logger, tokens, authService),
		AllowedOrigins:       []string{"*"},
	})

	// TLS so the Secure cookies actually flow through the jar.
	s.server = httptest.NewTLSServer(r)
	s.client = s.server.Client()
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	s.client.Jar = jar
}

func (s *SessionLifecycleSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
}

func (s *SessionLifecycleSuite) postJSON(client *http.Client, path string, body any) *http.Response {
	b, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := client.Post(s.server.URL+path, "application/json", bytes.NewReader(b))
	s.Require().NoError(err)
	return resp
}

func (s *SessionLifecycleSuite) TestFullSessionLifecycle() {
	register := auth.RegisterRequest{
		Username:  "E2EUser",
		Email:     "e2e@example.com",
		FullName:  "E2E User",
		Password:  "password123",
		AvatarRef: "tmp/avatar.png",
	}

	// Register
	resp := s.postJSON(s.client, "/api/v1/users/register", register)
	s.Equal(http.StatusCreated, resp.StatusCode)
	var created types.UserProfile
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	s.Equal("e2euser", created.Username)

	// Duplicate registration is a conflict
	resp = s.postJSON(s.client, "/api/v1/users/register", register)
	s.Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Login, handle case-insensitive
	resp = s.postJSON(s.client, "/api/v1/users/login",
		auth.LoginRequest{UsernameOrEmail: "E2E@Example.com", Password: "password123"})
	s.Equal(http.StatusOK, resp.StatusCode)
	var login auth.LoginResult
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	s.NotEmpty(login.AccessToken)
	s.NotEmpty(login.RefreshToken)

	// Cookie-authenticated read
	resp, err := s.client.Get(s.server.URL + "/api/v1/users/current-user")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	var me types.UserProfile
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&me))
	resp.Body.Close()
	s.Equal("e2euser", me.Username)

	// Bearer-authenticated read with a cookie-less client
	bare := s.server.Client()
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/users/current-user", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err = bare.Do(req)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Rotate the pair
	resp = s.postJSON(s.client, "/api/v1/users/refresh-token", struct{}{})
	s.Equal(http.StatusOK, resp.StatusCode)
	var rotated auth.TokenPair
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&rotated))
	resp.Body.Close()
	s.NotEqual(login.RefreshToken, rotated.RefreshToken)

	// Replaying the pre-rotation token must fail
	resp = s.postJSON(bare, "/api/v1/users/refresh-token",
		auth.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Change password and log back in with it
	resp = s.postJSON(s.client, "/api/v1/users/change-password",
		auth.ChangePasswordRequest{OldPassword: "password123", NewPassword: "evenbetter456"})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.postJSON(bare, "/api/v1/users/login",
		auth.LoginRequest{UsernameOrEmail: "e2euser", Password: "evenbetter456"})
	s.Equal(http.StatusOK, resp.StatusCode)
	var relogin auth.LoginResult
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&relogin))
	resp.Body.Close()

	// Logout revokes the refresh token and clears cookies
	resp = s.postJSON(s.client, "/api/v1/users/logout", struct{}{})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = s.client.Get(s.server.URL + "/api/v1/users/current-user")
	s.Require().NoError(err)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The revoked refresh token is dead even though it still verifies
	resp = s.postJSON(bare, "/api/v1/users/refresh-token",
		auth.RefreshTokenRequest{RefreshToken: relogin.RefreshToken})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func (s *SessionLifecycleSuite) TestAnonymousAccessRejected() {
	bare := s.server.Client()
	resp, err := bare.Get(s.server.URL + "/api/v1/users/current-user")
	s.Require().NoError(err)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionLifecycleSuite(t *testing.T) {
	suite.Run(t, new(SessionLifecycleSuite))
}
