package video

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vidstream/vidstream/internal/api/media"
	"github.com/vidstream/vidstream/internal/types"
)

var _ VideoService = (*VideoServiceImpl)(nil)

// PublishParams are the inputs for publishing a new video. Both media refs
// are mandatory.
type PublishParams struct {
	OwnerID      string
	Title        string
	Description  string
	VideoRef     string
	ThumbnailRef string
}

type VideoService interface {
	// Publish uploads the video and thumbnail and persists the metadata
	// record. Either missing upload result fails the publish.
	Publish(ctx context.Context, params PublishParams) (*types.Video, error)

	// GetVideo fetches a video; when viewerID is non-nil the view is
	// appended to the viewer's watch history.
	GetVideo(ctx context.Context, videoID string, viewerID *string) (*types.Video, error)
}

type VideoServiceImpl struct {
	logger   *slog.Logger
	repo     VideoRepo
	uploader media.UploadService
}

func NewVideoService(repo VideoRepo, uploader media.UploadService, logger *slog.Logger) *VideoServiceImpl {
	return &VideoServiceImpl{
		logger:   logger,
		repo:     repo,
		uploader: uploader,
	}
}

func (s *VideoServiceImpl) Publish(ctx context.Context, params PublishParams) (*types.Video, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", types.ErrBadRequest)
	}
	if params.VideoRef == "" {
		return nil, fmt.Errorf("video file is required: %w", types.ErrBadRequest)
	}
	if params.ThumbnailRef == "" {
		return nil, fmt.Errorf("thumbnail is required: %w", types.ErrBadRequest)
	}

	videoAsset, err := s.uploader.Upload(ctx, params.VideoRef)
	if err != nil {
		return nil, fmt.Errorf("video upload: %w", err)
	}
	if videoAsset == nil {
		return nil, fmt.Errorf("video upload yielded no result: %w", types.ErrUploadFailed)
	}

	thumbAsset, err := s.uploader.Upload(ctx, params.ThumbnailRef)
	if err != nil {
		return nil, fmt.Errorf("thumbnail upload: %w", err)
	}
	if thumbAsset == nil {
		return nil, fmt.Errorf("thumbnail upload yielded no result: %w", types.ErrUploadFailed)
	}

	video, err := s.repo.CreateVideo(ctx, CreateVideoParams{
		OwnerID:      params.OwnerID,
		Title:        strings.TrimSpace(params.Title),
		Description:  strings.TrimSpace(params.Description),
		VideoURL:     videoAsset.URL,
		ThumbnailURL: thumbAsset.URL,
		Duration:     videoAsset.Duration,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Video published",
		slog.String("video_id", video.ID), slog.String("owner_id", video.OwnerID))
	return video, nil
}

func (s *VideoServiceImpl) GetVideo(ctx context.Context, videoID string, viewerID *string) (*types.Video, error) {
	video, err := s.repo.GetVideoByID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if viewerID != nil {
		// History append is best-effort; a failed write must not break the
		// read path.
		if err := s.repo.AppendWatchHistory(ctx, *viewerID, video.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to append watch history",
				slog.String("video_id", video.ID), slog.Any("error", err))
		}
	}

	return video, nil
}
