package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vidstream/vidstream/internal/types"
)

const uniqueViolation = "23505"

// PGXPool is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type PGXPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential store contract over the user entity.
type AuthRepo interface {
	// GetUserByHandle matches handle against username OR email. The handle
	// must already be normalized. Returns types.ErrNotFound on no match.
	GetUserByHandle(ctx context.Context, handle string) (*types.UserAuth, error)
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)

	// HandleExists is the fast-path duplicate pre-check; the unique
	// indexes on users are the authoritative guard.
	HandleExists(ctx context.Context, username, email string) (bool, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*types.UserAuth, error)

	// UpdateRefreshToken overwrites the persisted refresh token; nil clears
	// it (logout). Overwriting invalidates every previously issued token.
	UpdateRefreshToken(ctx context.Context, userID string, token *string) error

	// RotateRefreshToken is a compare-and-swap keyed on the previous token
	// value. Returns types.ErrUnauthenticated when the stored token no
	// longer equals oldToken — a concurrent rotation won.
	RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string) error

	UpdatePassword(ctx context.Context, userID, newHashedPassword string) error
	UpdateProfile(ctx context.Context, userID string, params types.UpdateProfileParams) (*types.UserAuth, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (*types.UserAuth, error)
	UpdateCoverImage(ctx context.Context, userID, coverImageURL string) (*types.UserAuth, error)
}

type CreateUserParams struct {
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL *string
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresAuthRepo(pgpool PGXPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at`

func scanUser(row pgx.Row) (*types.UserAuth, error) {
	var user types.UserAuth
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.PasswordHash, &user.AvatarURL, &user.CoverImageURL,
		&user.RefreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", types.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserByHandle(ctx context.Context, handle string) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 OR email = $1`,
		handle)
	return scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		userID)
	return scanUser(row)
}

func (r *PostgresAuthRepo) HandleExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.pgpool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("handle existence check failed: %w", err)
	}
	return exists, nil
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, params CreateUserParams) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("username", params.Username),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (username, email, full_name, password_hash, avatar_url, cover_image_url)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+userColumns,
		params.Username, params.Email, params.FullName, params.PasswordHash,
		params.AvatarURL, params.CoverImageURL)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			span.SetStatus(codes.Error, "duplicate user")
			return nil, fmt.Errorf("username or email already taken: %w", types.ErrConflict)
		}
		span.SetStatus(codes.Error, "insert failed")
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) UpdateRefreshToken(ctx context.Context, userID string, token *string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = $2 WHERE id = $3`,
		token, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update refresh token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) RotateRefreshToken(ctx context.Context, userID, oldToken, newToken string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET refresh_token = $1, updated_at = $2
         WHERE id = $3 AND refresh_token = $4`,
		newToken, time.Now(), userID, oldToken)
	if err != nil {
		return fmt.Errorf("rotate refresh token: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Stored token no longer matches: rotated concurrently, cleared by
		// logout, or a replay of a stale token. Force re-login.
		return fmt.Errorf("refresh token is stale: %w", types.ErrUnauthenticated)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID, newHashedPassword string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		newHashedPassword, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update password: db update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdateProfile(ctx context.Context, userID string, params types.UpdateProfileParams) (*types.UserAuth, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "UpdateProfile", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
	))
	defer span.End()

	setClauses := []string{"updated_at = now()"}
	args := []any{}
	argPos := 1

	if params.FullName != nil {
		setClauses = append(setClauses, fmt.Sprintf("full_name = $%d", argPos))
		args = append(args, strings.TrimSpace(*params.FullName))
		argPos++
	}
	if params.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argPos))
		args = append(args, types.NormalizeHandle(*params.Email))
		argPos++
	}
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argPos, userColumns)

	user, err := scanUser(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("email already taken: %w", types.ErrConflict)
		}
		span.SetStatus(codes.Error, "update failed")
		return nil, err
	}
	return user, nil
}

func (r *PostgresAuthRepo) UpdateAvatar(ctx context.Context, userID, avatarURL string) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`UPDATE users SET avatar_url = $1, updated_at = now() WHERE id = $2 RETURNING `+userColumns,
		avatarURL, userID)
	return scanUser(row)
}

func (r *PostgresAuthRepo) UpdateCoverImage(ctx context.Context, userID, coverImageURL string) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`UPDATE users SET cover_image_url = $1, updated_at = now() WHERE id = $2 RETURNING `+userColumns,
		coverImageURL, userID)
	return scanUser(row)
}
