package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Cookie names for the two bearer tokens. Both are HttpOnly; the refresh
// cookie is scoped to the refresh endpoint by the handler.
const AccessTokenCookie = "accessToken"
const RefreshTokenCookie = "refreshToken"

// Claims are the JWT claims for both token classes. Access tokens carry
// the full identity triple; refresh tokens carry only UserID. Secrets and
// the refresh token itself are never embedded.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RegisterRequest represents the expected JSON body for user registration.
// AvatarRef/CoverImageRef are local staging references produced by the
// upload boundary; the service exchanges them for CDN URLs.
type RegisterRequest struct {
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	FullName      string  `json:"full_name"`
	Password      string  `json:"password"`
	AvatarRef     string  `json:"avatar_ref"`
	CoverImageRef *string `json:"cover_image_ref,omitempty"`
}

// LoginRequest represents the login request body. The handle may be a
// username or an email address.
type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

// RefreshTokenRequest is the fallback body for clients not using the
// refresh cookie.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type UpdateAvatarRequest struct {
	AvatarRef string `json:"avatar_ref"`
}

type UpdateCoverImageRequest struct {
	CoverImageRef string `json:"cover_image_ref"`
}

// OAuthSignInRequest carries the provider profile handed over by the OAuth
// callback boundary.
type OAuthSignInRequest struct {
	Provider  string `json:"provider"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	NickName  string `json:"nick_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	UserID    string `json:"user_id,omitempty"` // Provider-side user id.
}
