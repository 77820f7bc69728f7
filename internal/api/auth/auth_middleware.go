package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidstream/vidstream/internal/api"
	"github.com/vidstream/vidstream/internal/types"
)

type contextKey string

const UserIDKey contextKey = "userID"
const UserKey contextKey = "user"

// extractAccessToken pulls the bearer token from the access cookie or,
// failing that, the Authorization header. Cookie wins.
func extractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
		return ""
	}
	return headerParts[1]
}

// Authenticate is the session verifier: it extracts the access token,
// verifies it, resolves the identity (without secret fields) and attaches
// it to the request context. Every failure mode collapses to 401 so no
// internal detail leaks.
func Authenticate(logger *slog.Logger, tokens *TokenIssuer, service AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			tokenString := extractAccessToken(r)
			if tokenString == "" {
				l.WarnContext(ctx, "Missing access token")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			claims, err := tokens.VerifyAccessToken(tokenString)
			if err != nil {
				l.WarnContext(ctx, "Access token verification failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			// The identity may have been deleted since issuance.
			user, err := service.GetUserByID(ctx, claims.UserID)
			if err != nil {
				l.WarnContext(ctx, "Token identity no longer resolvable",
					slog.String("user_id", claims.UserID), slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid access token")
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticate attaches the identity when a valid access token is
// present and otherwise lets the request through anonymously. Used by
// public reads that personalize output (e.g. the is-subscribed flag).
func OptionalAuthenticate(logger *slog.Logger, tokens *TokenIssuer, service AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString := extractAccessToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.VerifyAccessToken(tokenString)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			user, err := service.GetUserByID(ctx, claims.UserID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext returns the authenticated user id, if any.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserFromContext returns the sanitized identity attached by the
// verifier.
func GetUserFromContext(ctx context.Context) (*types.UserProfile, bool) {
	user, ok := ctx.Value(UserKey).(*types.UserProfile)
	return user, ok
}
