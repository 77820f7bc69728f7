package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vidstream/vidstream/internal/types"
)

var _ ChannelService = (*ChannelServiceImpl)(nil)

// ChannelService is the read-side aggregation facade. Profiles are cached
// briefly; subscriber counts tolerate a few seconds of staleness.
type ChannelService interface {
	GetChannelProfile(ctx context.Context, username string, viewerID *string) (*types.ChannelProfile, error)
	GetWatchHistory(ctx context.Context, userID string) ([]types.WatchHistoryEntry, error)
	ToggleSubscription(ctx context.Context, subscriberID, channelUsername string) (bool, error)
}

const profileCacheTTL = 30 * time.Second

type ChannelServiceImpl struct {
	logger *slog.Logger
	repo   ChannelRepo
	cache  *gocache.Cache
}

func NewChannelService(repo ChannelRepo, logger *slog.Logger) *ChannelServiceImpl {
	return &ChannelServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  gocache.New(profileCacheTTL, 2*profileCacheTTL),
	}
}

func profileCacheKey(username string, viewerID *string) string {
	if viewerID == nil {
		return username + "|anon"
	}
	return username + "|" + *viewerID
}

func (s *ChannelServiceImpl) GetChannelProfile(ctx context.Context, username string, viewerID *string) (*types.ChannelProfile, error) {
	username = types.NormalizeHandle(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", types.ErrBadRequest)
	}

	key := profileCacheKey(username, viewerID)
	if cached, found := s.cache.Get(key); found {
		return cached.(*types.ChannelProfile), nil
	}

	profile, err := s.repo.GetChannelProfile(ctx, username, viewerID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, profile, gocache.DefaultExpiration)
	return profile, nil
}

func (s *ChannelServiceImpl) GetWatchHistory(ctx context.Context, userID string) ([]types.WatchHistoryEntry, error) {
	return s.repo.GetWatchHistory(ctx, userID)
}

func (s *ChannelServiceImpl) ToggleSubscription(ctx context.Context, subscriberID, channelUsername string) (bool, error) {
	channelUsername = types.NormalizeHandle(channelUsername)
	channelID, err := s.repo.GetChannelIDByUsername(ctx, channelUsername)
	if err != nil {
		return false, err
	}

	subscribed, err := s.repo.ToggleSubscription(ctx, subscriberID, channelID)
	if err != nil {
		return false, err
	}

	// The toggle changes the aggregates, so drop the channel's cached
	// profiles. Flush is coarse but the cache is tiny and short-lived.
	s.cache.Flush()

	s.logger.InfoContext(ctx, "Subscription toggled",
		slog.String("channel", channelUsername), slog.Bool("subscribed", subscribed))
	return subscribed, nil
}
