package types

import (
	"strings"
	"time"
)

// UserAuth is the full user record as stored, including secret fields.
// Only the auth core ever sees PasswordHash and RefreshToken; everything
// that leaves the core goes through Sanitized().
type UserAuth struct {
	ID            string    `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Username      string    `json:"username" example:"johndoe"` // Unique, always stored lowercase.
	Email         string    `json:"email" example:"john.doe@example.com"`
	FullName      string    `json:"full_name"`
	PasswordHash  string    `json:"-"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL *string   `json:"cover_image_url,omitempty"`
	RefreshToken  *string   `json:"-"` // Currently active refresh token; nil when logged out.
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserProfile is the public projection of a user. It never carries the
// password hash or the refresh token.
type UserProfile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL *string   `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Sanitized strips the secret fields for responses and context values.
func (u *UserAuth) Sanitized() *UserProfile {
	return &UserProfile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// NormalizeHandle applies the canonical trim+lowercase rule used for
// usernames and emails at every boundary.
func NormalizeHandle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// UpdateProfileParams holds the mutable account fields. A nil field means
// "leave unchanged".
type UpdateProfileParams struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
}
