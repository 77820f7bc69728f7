package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/markbates/goth"

	"github.com/vidstream/vidstream/app/observability/metrics"
	"github.com/vidstream/vidstream/config"
	"github.com/vidstream/vidstream/internal/api"
	"github.com/vidstream/vidstream/internal/types"
)

type AuthHandler struct {
	service AuthService
	jwtCfg  config.JWTConfig
	metrics *metrics.AppMetrics // Optional; nil in tests.
	logger  *slog.Logger
}

func NewAuthHandler(service AuthService, jwtCfg config.JWTConfig, m *metrics.AppMetrics, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		jwtCfg:  jwtCfg,
		metrics: m,
		logger:  logger,
	}
}

// setAuthCookies writes both token cookies: same-site, http-only, secure.
// Tokens are also returned in the body for non-cookie clients.
func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, pair TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  time.Now().Add(h.jwtCfg.AccessTokenTTL),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  time.Now().Add(h.jwtCfg.RefreshTokenTTL),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Register(ctx, RegisterParams{
		Username:      req.Username,
		Email:         req.Email,
		FullName:      req.FullName,
		Password:      req.Password,
		AvatarRef:     req.AvatarRef,
		CoverImageRef: req.CoverImageRef,
	})
	if h.metrics != nil {
		h.metrics.RegisterRequestsTotal.Add(ctx, 1)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "Registration failed", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UsernameOrEmail == "" || req.Password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "username_or_email and password are required")
		return
	}

	result, err := h.service.Login(ctx, req.UsernameOrEmail, req.Password)
	if h.metrics != nil {
		h.metrics.LoginRequestsTotal.Add(ctx, 1)
		h.metrics.LoginDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		h.logger.WarnContext(ctx, "Login failed", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), "invalid credentials")
		return
	}

	h.setAuthCookies(w, result.TokenPair)
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.service.Logout(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "Logout failed", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), "logout failed")
		return
	}

	h.clearAuthCookies(w)
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Cookie first, body as fallback for non-cookie clients.
	var presented string
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req RefreshTokenRequest
		if err := api.DecodeJSONBody(w, r, &req); err == nil {
			presented = req.RefreshToken
		}
	}
	if presented == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Refresh token required")
		return
	}

	pair, err := h.service.Refresh(ctx, presented)
	if h.metrics != nil {
		h.metrics.TokenRefreshTotal.Add(ctx, 1)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "Token refresh rejected", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	h.setAuthCookies(w, *pair)
	api.WriteJSONResponse(w, r, http.StatusOK, pair)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		h.logger.WarnContext(ctx, "Password change failed", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), "password change failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed successfully",
	})
}

// CurrentUser returns the identity resolved by the session verifier.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var params types.UpdateProfileParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.UpdateAccount(ctx, userID, params)
	if err != nil {
		api.ErrorResponse(w, r, api.StatusFromError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateAvatarRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.UpdateAvatar(ctx, userID, req.AvatarRef)
	if err != nil {
		api.ErrorResponse(w, r, api.StatusFromError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *AuthHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateCoverImageRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.UpdateCoverImage(ctx, userID, req.CoverImageRef)
	if err != nil {
		api.ErrorResponse(w, r, api.StatusFromError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

// OAuthSignIn exchanges a provider profile for a local session. The OAuth
// dance itself happens at the gateway; this endpoint receives its result.
func (h *AuthHandler) OAuthSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	provider := chi.URLParam(r, "provider")
	var req OAuthSignInRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if provider == "" {
		provider = req.Provider
	}

	result, err := h.service.GetOrCreateUserFromProvider(ctx, provider, goth.User{
		Provider:  provider,
		Email:     req.Email,
		Name:      req.Name,
		NickName:  req.NickName,
		AvatarURL: req.AvatarURL,
		UserID:    req.UserID,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "OAuth sign-in failed",
			slog.String("provider", provider), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), "sign-in failed")
		return
	}

	h.setAuthCookies(w, result.TokenPair)
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}
