package video

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidstream/vidstream/internal/api"
	"github.com/vidstream/vidstream/internal/api/auth"
)

type PublishRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	VideoRef     string `json:"video_ref"`
	ThumbnailRef string `json:"thumbnail_ref"`
}

type VideoHandler struct {
	service VideoService
	logger  *slog.Logger
}

func NewVideoHandler(service VideoService, logger *slog.Logger) *VideoHandler {
	return &VideoHandler{
		service: service,
		logger:  logger,
	}
}

func (h *VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := auth.GetUserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PublishRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	video, err := h.service.Publish(ctx, PublishParams{
		OwnerID:      userID,
		Title:        req.Title,
		Description:  req.Description,
		VideoRef:     req.VideoRef,
		ThumbnailRef: req.ThumbnailRef,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "Video publish failed", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusFromError(err), err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, video)
}

// GetVideo is public; an authenticated viewer additionally gets the view
// recorded in their watch history.
func (h *VideoHandler) GetVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := chi.URLParam(r, "videoID")
	if videoID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "videoID is required")
		return
	}

	var viewerID *string
	if id, ok := auth.GetUserIDFromContext(ctx); ok {
		viewerID = &id
	}

	video, err := h.service.GetVideo(ctx, videoID, viewerID)
	if err != nil {
		api.ErrorResponse(w, r, api.StatusFromError(err), err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, video)
}
