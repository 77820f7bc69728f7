package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vidstream/vidstream/config"
	"github.com/vidstream/vidstream/internal/types"
)

// TokenIssuer signs and verifies the two bearer token classes. Access and
// refresh tokens use independent secrets and independent expiries, so a
// leaked access secret cannot forge refresh tokens.
type TokenIssuer struct {
	logger *slog.Logger
	cfg    config.JWTConfig
}

func NewTokenIssuer(cfg config.JWTConfig, logger *slog.Logger) *TokenIssuer {
	if cfg.SecretKey == "" || cfg.RefreshSecretKey == "" {
		panic("JWT secret keys cannot be empty")
	}
	return &TokenIssuer{logger: logger, cfg: cfg}
}

// IssueAccessToken mints a short-lived stateless token binding the
// identity triple.
func (t *TokenIssuer) IssueAccessToken(user *types.UserAuth) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    t.cfg.Issuer,
			Audience:  jwt.ClaimStrings{t.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.AccessTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken mints the longer-lived token. It carries only the user
// id; validity additionally requires equality with the persisted value.
func (t *TokenIssuer) IssueRefreshToken(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.cfg.RefreshTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.cfg.RefreshSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates signature, expiry and issuer with the access
// secret and returns the embedded claims.
func (t *TokenIssuer) VerifyAccessToken(tokenString string) (*Claims, error) {
	return t.verify(tokenString, []byte(t.cfg.SecretKey))
}

// VerifyRefreshToken validates the presented refresh token with the
// refresh secret and returns the bound user id. Equality with the
// persisted token is checked by the service, not here.
func (t *TokenIssuer) VerifyRefreshToken(tokenString string) (string, error) {
	claims, err := t.verify(tokenString, []byte(t.cfg.RefreshSecretKey))
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (t *TokenIssuer) verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		// Callers treat all of these the same; the log keeps the detail.
		reason := "invalid"
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			reason = "expired"
		case errors.Is(err, jwt.ErrTokenMalformed):
			reason = "malformed"
		case errors.Is(err, jwt.ErrSignatureInvalid):
			reason = "bad signature"
		}
		t.logger.Warn("Token verification failed", slog.String("reason", reason), slog.Any("error", err))
		return nil, fmt.Errorf("token verification failed: %w", types.ErrUnauthenticated)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token marked invalid: %w", types.ErrUnauthenticated)
	}
	if t.cfg.Issuer != "" && claims.Issuer != t.cfg.Issuer {
		return nil, fmt.Errorf("token issuer mismatch: %w", types.ErrUnauthenticated)
	}
	return claims, nil
}
