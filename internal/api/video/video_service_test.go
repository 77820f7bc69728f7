package video

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vidstream/vidstream/internal/api/media"
	"github.com/vidstream/vidstream/internal/types"
)

// MockVideoRepo is a mock implementation of the VideoRepo interface
type MockVideoRepo struct {
	mock.Mock
}

func (m *MockVideoRepo) CreateVideo(ctx context.Context, params CreateVideoParams) (*types.Video, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Video), args.Error(1)
}

func (m *MockVideoRepo) GetVideoByID(ctx context.Context, videoID string) (*types.Video, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Video), args.Error(1)
}

func (m *MockVideoRepo) AppendWatchHistory(ctx context.Context, userID, videoID string) error {
	args := m.Called(ctx, userID, videoID)
	return args.Error(0)
}

// fakeUploader mirrors the upload collaborator; failRefs error out and
// skipRefs yield (nil, nil).
type fakeUploader struct {
	failRefs map[string]bool
	skipRefs map[string]bool
}

func (f *fakeUploader) Upload(ctx context.Context, localPath string) (*media.UploadResult, error) {
	if f.failRefs[localPath] {
		return nil, errors.New("upload blew up")
	}
	if f.skipRefs[localPath] {
		return nil, nil
	}
	return &media.UploadResult{URL: "https://cdn.example.com/" + localPath, Duration: 42.5}, nil
}

func validPublishParams() PublishParams {
	return PublishParams{
		OwnerID:      "owner-1",
		Title:        "My Video",
		Description:  "A description",
		VideoRef:     "tmp/clip.mp4",
		ThumbnailRef: "tmp/thumb.png",
	}
}

func TestPublish(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		service := NewVideoService(mockRepo, &fakeUploader{}, slog.Default())

		mockRepo.On("CreateVideo", ctx, CreateVideoParams{
			OwnerID:      "owner-1",
			Title:        "My Video",
			Description:  "A description",
			VideoURL:     "https://cdn.example.com/tmp/clip.mp4",
			ThumbnailURL: "https://cdn.example.com/tmp/thumb.png",
			Duration:     42.5,
		}).Return(&types.Video{ID: "vid-1", OwnerID: "owner-1", Title: "My Video"}, nil).Once()

		video, err := service.Publish(ctx, validPublishParams())

		assert.NoError(t, err)
		assert.Equal(t, "vid-1", video.ID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		service := NewVideoService(mockRepo, &fakeUploader{}, slog.Default())

		params := validPublishParams()
		params.Title = "  "
		_, err := service.Publish(context.Background(), params)
		assert.ErrorIs(t, err, types.ErrBadRequest)

		params = validPublishParams()
		params.VideoRef = ""
		_, err = service.Publish(context.Background(), params)
		assert.ErrorIs(t, err, types.ErrBadRequest)

		params = validPublishParams()
		params.ThumbnailRef = ""
		_, err = service.Publish(context.Background(), params)
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("VideoUploadFails", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		uploader := &fakeUploader{failRefs: map[string]bool{"tmp/clip.mp4": true}}
		service := NewVideoService(mockRepo, uploader, slog.Default())

		_, err := service.Publish(context.Background(), validPublishParams())

		assert.Error(t, err)
		mockRepo.AssertNotCalled(t, "CreateVideo", mock.Anything, mock.Anything)
	})

	t.Run("ThumbnailUploadYieldsNothing", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		uploader := &fakeUploader{skipRefs: map[string]bool{"tmp/thumb.png": true}}
		service := NewVideoService(mockRepo, uploader, slog.Default())

		_, err := service.Publish(context.Background(), validPublishParams())

		assert.ErrorIs(t, err, types.ErrUploadFailed)
		mockRepo.AssertNotCalled(t, "CreateVideo", mock.Anything, mock.Anything)
	})
}

func TestGetVideo(t *testing.T) {
	video := &types.Video{ID: "vid-1", Title: "My Video"}

	t.Run("AnonymousDoesNotRecordHistory", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		service := NewVideoService(mockRepo, &fakeUploader{}, slog.Default())

		mockRepo.On("GetVideoByID", ctx, "vid-1").Return(video, nil).Once()

		got, err := service.GetVideo(ctx, "vid-1", nil)

		assert.NoError(t, err)
		assert.Equal(t, "vid-1", got.ID)
		mockRepo.AssertNotCalled(t, "AppendWatchHistory", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ViewerViewIsRecorded", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		service := NewVideoService(mockRepo, &fakeUploader{}, slog.Default())

		viewer := "viewer-1"
		mockRepo.On("GetVideoByID", ctx, "vid-1").Return(video, nil).Once()
		mockRepo.On("AppendWatchHistory", ctx, "viewer-1", "vid-1").Return(nil).Once()

		_, err := service.GetVideo(ctx, "vid-1", &viewer)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("HistoryFailureDoesNotBreakRead", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		service := NewVideoService(mockRepo, &fakeUploader{}, slog.Default())

		viewer := "viewer-1"
		mockRepo.On("GetVideoByID", ctx, "vid-1").Return(video, nil).Once()
		mockRepo.On("AppendWatchHistory", ctx, "viewer-1", "vid-1").
			Return(errors.New("history table unavailable")).Once()

		got, err := service.GetVideo(ctx, "vid-1", &viewer)

		assert.NoError(t, err)
		assert.Equal(t, "vid-1", got.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		service := NewVideoService(mockRepo, &fakeUploader{}, slog.Default())

		mockRepo.On("GetVideoByID", ctx, "ghost").Return(nil, types.ErrNotFound).Once()

		_, err := service.GetVideo(ctx, "ghost", nil)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}
