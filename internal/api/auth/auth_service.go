package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markbates/goth"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidstream/vidstream/internal/api/media"
	"github.com/vidstream/vidstream/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// TokenPair is the access+refresh credential pair issued on login/refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult bundles the token pair with the sanitized identity.
type LoginResult struct {
	TokenPair
	User *types.UserProfile `json:"user"`
}

// RegisterParams are the validated registration inputs. AvatarRef is
// mandatory; CoverImageRef is optional and fail-soft.
type RegisterParams struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarRef     string
	CoverImageRef *string
}

// AuthService orchestrates credential verification and the dual-token
// session protocol.
type AuthService interface {
	// Register creates a new identity. Fails with types.ErrBadRequest on
	// empty required fields, types.ErrConflict on duplicate handles, and
	// types.ErrUploadFailed when the mandatory avatar upload yields nothing.
	Register(ctx context.Context, params RegisterParams) (*types.UserProfile, error)

	// Login verifies credentials, issues a token pair and persists the
	// refresh token, invalidating all previously issued refresh tokens.
	Login(ctx context.Context, usernameOrEmail, password string) (*LoginResult, error)

	// Logout clears the persisted refresh token. Idempotent.
	Logout(ctx context.Context, userID string) error

	// Refresh rotates the token pair. Any failure — bad signature, expiry,
	// unknown identity, or a stale token losing the compare-and-swap —
	// surfaces as types.ErrUnauthenticated.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	// ChangePassword re-hashes and persists the new password after
	// verifying the old one. Tokens are not rotated.
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error

	GetUserByID(ctx context.Context, userID string) (*types.UserProfile, error)
	UpdateAccount(ctx context.Context, userID string, params types.UpdateProfileParams) (*types.UserProfile, error)
	UpdateAvatar(ctx context.Context, userID, avatarRef string) (*types.UserProfile, error)
	UpdateCoverImage(ctx context.Context, userID, coverRef string) (*types.UserProfile, error)

	// GetOrCreateUserFromProvider resolves an OAuth provider profile to a
	// local identity, creating one on first sign-in, and issues the same
	// token pair a password login would.
	GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*LoginResult, error)
}

type AuthServiceImpl struct {
	logger   *slog.Logger
	repo     AuthRepo
	tokens   *TokenIssuer
	uploader media.UploadService
}

func NewAuthService(repo AuthRepo, tokens *TokenIssuer, uploader media.UploadService, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:   logger,
		repo:     repo,
		tokens:   tokens,
		uploader: uploader,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, params RegisterParams) (*types.UserProfile, error) {
	l := s.logger.With(slog.String("method", "Register"))

	username := types.NormalizeHandle(params.Username)
	email := types.NormalizeHandle(params.Email)
	fullName := strings.TrimSpace(params.FullName)

	if username == "" || email == "" || fullName == "" || strings.TrimSpace(params.Password) == "" {
		return nil, fmt.Errorf("all fields are required: %w", types.ErrBadRequest)
	}
	if params.AvatarRef == "" {
		return nil, fmt.Errorf("avatar file is required: %w", types.ErrBadRequest)
	}

	// Fast-path duplicate check; the unique indexes remain authoritative
	// for the race between check and insert.
	exists, err := s.repo.HandleExists(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("existence check failed: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("user with email or username already exists: %w", types.ErrConflict)
	}

	avatar, err := s.uploader.Upload(ctx, params.AvatarRef)
	if err != nil {
		return nil, fmt.Errorf("avatar upload: %w", err)
	}
	if avatar == nil {
		return nil, fmt.Errorf("avatar upload yielded no result: %w", types.ErrUploadFailed)
	}

	// Cover image is optional and fail-soft: a failed upload leaves the
	// field empty instead of failing registration.
	var coverURL *string
	if params.CoverImageRef != nil {
		cover, coverErr := s.uploader.Upload(ctx, *params.CoverImageRef)
		if coverErr != nil {
			l.WarnContext(ctx, "Cover image upload failed, continuing without",
				slog.Any("error", coverErr))
		} else if cover != nil {
			coverURL = &cover.URL
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		// Hashing failure is fatal to the registration; nothing was written.
		return nil, fmt.Errorf("failed to hash password: %w", types.ErrInternal)
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  string(hashed),
		AvatarURL:     avatar.URL,
		CoverImageURL: coverURL,
	})
	if err != nil {
		return nil, err
	}

	l.InfoContext(ctx, "User registered", slog.String("username", user.Username))
	return user.Sanitized(), nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResult, error) {
	handle := types.NormalizeHandle(usernameOrEmail)
	if handle == "" || password == "" {
		return nil, fmt.Errorf("handle and password are required: %w", types.ErrBadRequest)
	}

	user, err := s.repo.GetUserByHandle(ctx, handle)
	if err != nil {
		return nil, err // types.ErrNotFound passes through.
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("password mismatch: %w", types.ErrUnauthenticated)
	}

	return s.issueSession(ctx, user)
}

// issueSession mints a token pair and persists the refresh token,
// overwriting any prior value (single-active-session rotation policy).
func (s *AuthServiceImpl) issueSession(ctx context.Context, user *types.UserAuth) (*LoginResult, error) {
	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.repo.UpdateRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return &LoginResult{
		TokenPair: TokenPair{AccessToken: accessToken, RefreshToken: refreshToken},
		User:      user.Sanitized(),
	}, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, userID string) error {
	err := s.repo.UpdateRefreshToken(ctx, userID, nil)
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	s.logger.InfoContext(ctx, "User logged out", slog.String("user_id", userID))
	return nil
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token missing: %w", types.ErrUnauthenticated)
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		// Identity gone since issuance; don't leak which part failed.
		return nil, fmt.Errorf("identity not resolvable: %w", types.ErrUnauthenticated)
	}

	// Cryptographic validity is not enough: the presented token must equal
	// the persisted one, otherwise it was rotated or revoked.
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return nil, fmt.Errorf("refresh token does not match stored value: %w", types.ErrUnauthenticated)
	}

	newAccess, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	newRefresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// CAS on the previous token closes the replay race: of two concurrent
	// refreshes with the same token, exactly one commits.
	if err := s.repo.RotateRefreshToken(ctx, user.ID, refreshToken, newRefresh); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: newAccess, RefreshToken: newRefresh}, nil
}

func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("new password is required: %w", types.ErrBadRequest)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("old password mismatch: %w", types.ErrUnauthenticated)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", types.ErrInternal)
	}

	return s.repo.UpdatePassword(ctx, userID, string(hashed))
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, userID string) (*types.UserProfile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *AuthServiceImpl) UpdateAccount(ctx context.Context, userID string, params types.UpdateProfileParams) (*types.UserProfile, error) {
	if params.FullName == nil && params.Email == nil {
		return nil, fmt.Errorf("no fields to update: %w", types.ErrBadRequest)
	}
	user, err := s.repo.UpdateProfile(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *AuthServiceImpl) UpdateAvatar(ctx context.Context, userID, avatarRef string) (*types.UserProfile, error) {
	if avatarRef == "" {
		return nil, fmt.Errorf("avatar file is required: %w", types.ErrBadRequest)
	}
	result, err := s.uploader.Upload(ctx, avatarRef)
	if err != nil {
		return nil, fmt.Errorf("avatar upload: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("avatar upload yielded no result: %w", types.ErrUploadFailed)
	}
	user, err := s.repo.UpdateAvatar(ctx, userID, result.URL)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *AuthServiceImpl) UpdateCoverImage(ctx context.Context, userID, coverRef string) (*types.UserProfile, error) {
	if coverRef == "" {
		return nil, fmt.Errorf("cover image file is required: %w", types.ErrBadRequest)
	}
	result, err := s.uploader.Upload(ctx, coverRef)
	if err != nil {
		return nil, fmt.Errorf("cover image upload: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("cover image upload yielded no result: %w", types.ErrUploadFailed)
	}
	user, err := s.repo.UpdateCoverImage(ctx, userID, result.URL)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *AuthServiceImpl) GetOrCreateUserFromProvider(ctx context.Context, provider string, providerUser goth.User) (*LoginResult, error) {
	email := types.NormalizeHandle(providerUser.Email)
	if email == "" {
		return nil, fmt.Errorf("provider %s returned no email: %w", provider, types.ErrBadRequest)
	}

	user, err := s.repo.GetUserByHandle(ctx, email)
	if err == nil {
		return s.issueSession(ctx, user)
	}

	// First sign-in through this provider: derive a handle and create the
	// identity with an unusable random password.
	username := types.NormalizeHandle(providerUser.NickName)
	if username == "" {
		username = types.NormalizeHandle(strings.SplitN(email, "@", 2)[0])
	}
	fullName := strings.TrimSpace(providerUser.Name)
	if fullName == "" {
		fullName = username
	}
	avatarURL := providerUser.AvatarURL
	if avatarURL == "" {
		avatarURL = "https://api.dicebear.com/9.x/initials/svg?seed=" + username
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(provider+":"+providerUser.UserID), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash provider secret: %w", types.ErrInternal)
	}

	created, err := s.repo.CreateUser(ctx, CreateUserParams{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hashed),
		AvatarURL:    avatarURL,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User created from provider",
		slog.String("provider", provider), slog.String("username", created.Username))
	return s.issueSession(ctx, created)
}
