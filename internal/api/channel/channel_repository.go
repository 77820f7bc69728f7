package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	authrepo "github.com/vidstream/vidstream/internal/api/auth"
	"github.com/vidstream/vidstream/internal/types"
)

var _ ChannelRepo = (*PostgresChannelRepo)(nil)

// ChannelRepo computes the derived relational views over the identity
// graph and the subscription edge set. Read-mostly; the only write is the
// subscription toggle, which never touches the auth core's fields.
type ChannelRepo interface {
	// GetChannelProfile aggregates subscriber counts for the channel with
	// the given (already lowercased) username. viewerID may be nil for
	// anonymous viewers; IsSubscribed is then always false.
	GetChannelProfile(ctx context.Context, username string, viewerID *string) (*types.ChannelProfile, error)

	// GetWatchHistory expands the viewer's stored watch history into full
	// video records with the owner projection embedded, preserving append
	// order.
	GetWatchHistory(ctx context.Context, userID string) ([]types.WatchHistoryEntry, error)

	// ToggleSubscription flips the subscriber→channel edge and reports the
	// resulting state.
	ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error)

	// GetChannelIDByUsername resolves a channel handle to its id.
	GetChannelIDByUsername(ctx context.Context, username string) (string, error)
}

type PostgresChannelRepo struct {
	logger *slog.Logger
	pgpool authrepo.PGXPool
}

func NewPostgresChannelRepo(pgpool authrepo.PGXPool, logger *slog.Logger) *PostgresChannelRepo {
	return &PostgresChannelRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresChannelRepo) GetChannelProfile(ctx context.Context, username string, viewerID *string) (*types.ChannelProfile, error) {
	ctx, span := otel.Tracer("ChannelRepo").Start(ctx, "GetChannelProfile", trace.WithAttributes(
		attribute.String("channel.username", username),
	))
	defer span.End()

	// One round trip: counts via correlated subqueries, the viewer flag
	// via EXISTS. A NULL viewer id makes the EXISTS vacuously false.
	query := `
		SELECT u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url,
		       (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id)    AS subscribers_count,
		       (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS subscribed_to_count,
		       EXISTS(SELECT 1 FROM subscriptions s
		              WHERE s.channel_id = u.id AND s.subscriber_id = $2::uuid)    AS is_subscribed
		FROM users u
		WHERE u.username = $1
	`

	var profile types.ChannelProfile
	err := r.pgpool.QueryRow(ctx, query, username, viewerID).Scan(
		&profile.ID, &profile.Username, &profile.FullName, &profile.Email,
		&profile.AvatarURL, &profile.CoverImageURL,
		&profile.SubscribersCount, &profile.SubscribedToCount, &profile.IsSubscribed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("channel %q not found: %w", username, types.ErrNotFound)
		}
		return nil, fmt.Errorf("channel profile query failed: %w", err)
	}

	return &profile, nil
}

func (r *PostgresChannelRepo) GetWatchHistory(ctx context.Context, userID string) ([]types.WatchHistoryEntry, error) {
	ctx, span := otel.Tracer("ChannelRepo").Start(ctx, "GetWatchHistory")
	defer span.End()

	// Ordered by insertion position, not recency; the stored order is the
	// contract.
	query := `
		SELECT v.id, v.title, v.description, v.video_url, v.thumbnail_url, v.duration, v.created_at,
		       o.full_name, o.username, o.avatar_url
		FROM watch_history wh
		JOIN videos v ON v.id = wh.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE wh.user_id = $1
		ORDER BY wh.position
	`

	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("watch history query failed: %w", err)
	}
	defer rows.Close()

	entries := []types.WatchHistoryEntry{}
	for rows.Next() {
		var e types.WatchHistoryEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.VideoURL,
			&e.ThumbnailURL, &e.Duration, &e.CreatedAt,
			&e.Owner.FullName, &e.Owner.Username, &e.Owner.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan watch history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("watch history rows: %w", err)
	}

	return entries, nil
}

func (r *PostgresChannelRepo) GetChannelIDByUsername(ctx context.Context, username string) (string, error) {
	var id string
	err := r.pgpool.QueryRow(ctx,
		`SELECT id FROM users WHERE username = $1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("channel %q not found: %w", username, types.ErrNotFound)
		}
		return "", fmt.Errorf("channel lookup failed: %w", err)
	}
	return id, nil
}

func (r *PostgresChannelRepo) ToggleSubscription(ctx context.Context, subscriberID, channelID string) (bool, error) {
	if subscriberID == channelID {
		return false, fmt.Errorf("cannot subscribe to own channel: %w", types.ErrBadRequest)
	}

	tag, err := r.pgpool.Exec(ctx,
		`DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`,
		subscriberID, channelID)
	if err != nil {
		return false, fmt.Errorf("unsubscribe failed: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = r.pgpool.Exec(ctx,
		`INSERT INTO subscriptions (subscriber_id, channel_id) VALUES ($1, $2)
         ON CONFLICT DO NOTHING`,
		subscriberID, channelID)
	if err != nil {
		return false, fmt.Errorf("subscribe failed: %w", err)
	}
	return true, nil
}
