package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

const uniqueViolation = "23505"

const publicColumns = `id, username, email, fullname, avatar_url, cover_image_url, created_at, updated_at`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanPublic(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Fullname, &u.AvatarURL, &u.CoverImageURL,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func scanCredentials(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Fullname, &u.AvatarURL, &u.CoverImageURL,
		&u.PasswordHash, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}

// Create inserts u with a freshly hashed password and fills in the generated
// id and timestamps.
func (r *UserRepository) Create(ctx context.Context, u *entity.User, password string) error {
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (username, email, fullname, password_hash, avatar_url, cover_image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.Fullname, hash, u.AvatarURL, u.CoverImageURL)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapErr(err)
	}
	u.PasswordHash = hash
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return scanPublic(r.db.QueryRow(ctx, `SELECT `+publicColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) GetCredentialsByID(ctx context.Context, id string) (*entity.User, error) {
	return scanCredentials(r.db.QueryRow(ctx, `
		SELECT id, username, email, fullname, avatar_url, cover_image_url,
		       password_hash, COALESCE(refresh_token, ''), created_at, updated_at
		FROM users
		WHERE id = $1
	`, id))
}

// FindByUsernameOrEmail matches on either identifier; empty values never match.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error) {
	return scanCredentials(r.db.QueryRow(ctx, `
		SELECT id, username, email, fullname, avatar_url, cover_image_url,
		       password_hash, COALESCE(refresh_token, ''), created_at, updated_at
		FROM users
		WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
		ORDER BY created_at
		LIMIT 1
	`, username, email))
}

func (r *UserRepository) exec(ctx context.Context, sql string, args ...any) error {
	res, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	return r.exec(ctx, `UPDATE users SET refresh_token = $1, updated_at = now() WHERE id = $2`, token, id)
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET refresh_token = NULL, updated_at = now() WHERE id = $1`, id)
}

// UpdatePassword touches only the password column.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, password string) error {
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return r.exec(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, fullname, email string) (*entity.User, error) {
	return scanPublic(r.db.QueryRow(ctx, `
		UPDATE users SET fullname = $1, email = $2, updated_at = now()
		WHERE id = $3
		RETURNING `+publicColumns, fullname, email, id))
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, url string) (*entity.User, error) {
	return scanPublic(r.db.QueryRow(ctx, `
		UPDATE users SET avatar_url = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+publicColumns, url, id))
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id, url string) (*entity.User, error) {
	return scanPublic(r.db.QueryRow(ctx, `
		UPDATE users SET cover_image_url = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+publicColumns, url, id))
}

func (r *UserRepository) GetChannelProfile(ctx context.Context, username, viewerID string) (*entity.ChannelProfile, error) {
	var viewer any
	if viewerID != "" {
		viewer = viewerID
	}
	p := &entity.ChannelProfile{}
	err := r.db.QueryRow(ctx, `
		SELECT u.id, u.fullname, u.username, u.email, u.avatar_url, u.cover_image_url,
		       (SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id),
		       (SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
		       EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2::uuid)
		FROM users u
		WHERE u.username = $1
	`, username, viewer).Scan(&p.ID, &p.Fullname, &p.Username, &p.Email, &p.AvatarURL, &p.CoverImageURL,
		&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

// GetWatchHistory resolves watch_history into full videos ordered by position.
// Videos whose owner is gone come back with a nil Owner.
func (r *UserRepository) GetWatchHistory(ctx context.Context, userID string) ([]entity.Video, error) {
	rows, err := r.db.Query(ctx, `
		SELECT v.id, v.video_file, v.thumbnail, v.title, v.description, v.duration, v.views,
		       v.is_published, v.created_at, v.updated_at,
		       COALESCE(o.id::text, ''), COALESCE(o.fullname, ''), COALESCE(o.username, ''), COALESCE(o.avatar_url, '')
		FROM watch_history w
		JOIN videos v ON v.id = w.video_id
		LEFT JOIN users o ON o.id = v.owner_id
		WHERE w.user_id = $1
		ORDER BY w.position
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []entity.Video{}
	for rows.Next() {
		var v entity.Video
		var owner entity.VideoOwner
		if err := rows.Scan(&v.ID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description, &v.Duration, &v.Views,
			&v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
			&owner.ID, &owner.Fullname, &owner.Username, &owner.AvatarURL); err != nil {
			return nil, err
		}
		if owner.ID != "" {
			v.Owner = &owner
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

var _ repository.UserRepository = (*UserRepository)(nil)
