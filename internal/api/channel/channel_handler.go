package channel

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidstream/vidstream/internal/api"
	"github.com/vidstream/vidstream/internal/api/auth"
)

type ChannelHandler struct {
	service ChannelService
	logger  *slog.Logger
}

func NewChannelHandler(service ChannelService, logger *slog.Logger) *ChannelHandler {
	return &ChannelHandler{
		service: service,
		logger:  logger,
	}
}

// GetChannelProfile serves the public channel view. The viewer is optional:
// when the optional-auth middleware attached an identity, the is-subscribed
// flag is computed against it.
func (h *ChannelHandler) GetChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := chi.URLParam(r, "username")
	if username == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "username is required")
		return
	}

	var viewerID *string
	if id, ok := auth.GetUserIDFromContext(ctx); ok {
		viewerID = &id
	}

	profile, err := h.service.GetChannelProfile(ctx, username, viewerID)
	if err != nil {
		h.logger.WarnContext(ctx, "Channel profile lookup failed",
			slog.String("username", username), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

func (h *ChannelHandler) GetWatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	history, err := h.service.GetWatchHistory(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Watch history fetch failed", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), "failed to fetch watch history")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, history)
}

func (h *ChannelHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	username := chi.URLParam(r, "username")
	subscribed, err := h.service.ToggleSubscription(ctx, userID, username)
	if err != nil {
		api.ErrorResponse(w, r, api.StatusFromError(err), err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]any{
		"success":    true,
		"subscribed": subscribed,
	})
}
