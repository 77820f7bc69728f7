package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	authrepo "github.com/vidstream/vidstream/internal/api/auth"
	"github.com/vidstream/vidstream/internal/types"
)

var _ VideoRepo = (*PostgresVideoRepo)(nil)

// VideoRepo persists video metadata and the append-only watch history.
type VideoRepo interface {
	CreateVideo(ctx context.Context, params CreateVideoParams) (*types.Video, error)
	GetVideoByID(ctx context.Context, videoID string) (*types.Video, error)

	// AppendWatchHistory records that the user viewed the video, appended
	// after any existing entries.
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
}

type CreateVideoParams struct {
	OwnerID      string
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	Duration     float64
}

type PostgresVideoRepo struct {
	logger *slog.Logger
	pgpool authrepo.PGXPool
}

func NewPostgresVideoRepo(pgpool authrepo.PGXPool, logger *slog.Logger) *PostgresVideoRepo {
	return &PostgresVideoRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const videoColumns = `id, owner_id, title, description, video_url, thumbnail_url, duration, is_published, created_at, updated_at`

func scanVideo(row pgx.Row) (*types.Video, error) {
	var v types.Video
	err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL,
		&v.ThumbnailURL, &v.Duration, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("video not found: %w", types.ErrNotFound)
		}
		return nil, fmt.Errorf("scan video: %w", err)
	}
	return &v, nil
}

func (r *PostgresVideoRepo) CreateVideo(ctx context.Context, params CreateVideoParams) (*types.Video, error) {
	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO videos (owner_id, title, description, video_url, thumbnail_url, duration)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+videoColumns,
		params.OwnerID, params.Title, params.Description, params.VideoURL,
		params.ThumbnailURL, params.Duration)
	return scanVideo(row)
}

func (r *PostgresVideoRepo) GetVideoByID(ctx context.Context, videoID string) (*types.Video, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = $1`, videoID)
	return scanVideo(row)
}

func (r *PostgresVideoRepo) AppendWatchHistory(ctx context.Context, userID, videoID string) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO watch_history (user_id, video_id) VALUES ($1, $2)`,
		userID, videoID)
	if err != nil {
		return fmt.Errorf("append watch history: %w", err)
	}
	return nil
}
