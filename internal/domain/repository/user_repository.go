package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate username or email")
)

// UserRepository is the credential store. Implementations hash passwords on
// write and enforce username/email uniqueness, reporting ErrDuplicate.
//
// GetByID and the Update* methods return users without PasswordHash and
// RefreshToken; GetCredentialsByID and FindByUsernameOrEmail include them.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User, password string) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetCredentialsByID(ctx context.Context, id string) (*entity.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error)

	SetRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshToken(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, password string) error
	UpdateProfile(ctx context.Context, id, fullname, email string) (*entity.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (*entity.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*entity.User, error)

	// GetChannelProfile looks a channel up by username. viewerID may be empty
	// for anonymous viewers, in which case IsSubscribed is false.
	GetChannelProfile(ctx context.Context, username, viewerID string) (*entity.ChannelProfile, error)
	// GetWatchHistory returns the user's watched videos in watch order.
	GetWatchHistory(ctx context.Context, userID string) ([]entity.Video, error)
}
