package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	repo "github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/internal/infrastructure/search"
	"github.com/oksasatya/go-account-service/pkg/apperror"
	"github.com/oksasatya/go-account-service/pkg/helpers"
	"github.com/oksasatya/go-account-service/pkg/mailer"
	"github.com/oksasatya/go-account-service/pkg/mailer/templates"
)

// Uploader hosts a staged local file and returns its public URL. The local
// file is gone afterwards whatever the outcome.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// UserIndex mirrors public user data into the search backend.
type UserIndex interface {
	Put(ctx context.Context, u *entity.User) error
	Search(ctx context.Context, q string, size int) ([]search.UserDocument, error)
}

// Notifier enqueues email jobs.
type Notifier interface {
	PublishJSON(ctx context.Context, body any) error
}

// StagedFile is a multipart upload already written to local disk.
type StagedFile struct {
	Path     string
	Filename string
}

type Service struct {
	Repo     repo.UserRepository
	Tokens   *TokenService
	Media    Uploader
	Index    UserIndex // optional
	Notifier Notifier  // optional
	Logger   *logrus.Logger
	AppName  string
}

func NewService(r repo.UserRepository, tokens *TokenService, media Uploader, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = helpers.NewNopLogger()
	}
	return &Service{Repo: r, Tokens: tokens, Media: media, Logger: logger}
}

type RegisterInput struct {
	Fullname   string
	Username   string
	Email      string
	Password   string
	Avatar     *StagedFile
	CoverImage *StagedFile
}

type LoginInput struct {
	Email    string
	Username string
	Password string
}

type LoginResult struct {
	User   *entity.User
	Tokens TokenPair
}

func errPasswordTooLong() error { return apperror.Validation("Password must be at most 72 bytes") }

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register creates an account. The avatar is required; a failing cover
// upload is logged and the account is created without one.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	if blank(in.Fullname) || blank(in.Username) || blank(in.Email) || blank(in.Password) {
		return nil, apperror.Validation("All fields are required")
	}
	if len(in.Password) > helpers.MaxPasswordBytes {
		return nil, errPasswordTooLong()
	}
	username, email := normalize(in.Username), normalize(in.Email)

	_, err := s.Repo.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return nil, apperror.Conflict("Username or email already exists")
	case !errors.Is(err, repo.ErrNotFound):
		return nil, apperror.Internal("User registration failed", err)
	}

	if in.Avatar == nil {
		return nil, apperror.Validation("Avatar file is required")
	}
	avatarURL, err := s.Media.Upload(ctx, in.Avatar.Path)
	if err != nil {
		s.Logger.WithError(err).WithField("file", in.Avatar.Filename).Warn("avatar upload failed")
		return nil, apperror.Validation("Avatar file is required")
	}

	var coverURL string
	if in.CoverImage != nil {
		coverURL, err = s.Media.Upload(ctx, in.CoverImage.Path)
		if err != nil {
			s.Logger.WithError(err).WithField("file", in.CoverImage.Filename).Warn("cover image upload failed")
			coverURL = ""
		}
	}

	u := &entity.User{
		Username:      username,
		Email:         email,
		Fullname:      strings.TrimSpace(in.Fullname),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}
	if err := s.Repo.Create(ctx, u, in.Password); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			return nil, apperror.Conflict("Username or email already exists")
		case errors.Is(err, helpers.ErrPasswordTooLong):
			return nil, errPasswordTooLong()
		}
		return nil, apperror.Internal("User registration failed", err)
	}

	created, err := s.Repo.GetByID(ctx, u.ID)
	if err != nil {
		return nil, apperror.Internal("User registration failed", err)
	}

	s.index(ctx, created)
	s.notify(ctx, created, templates.Welcome)
	return created, nil
}

// Login authenticates by email or username and rotates the refresh token.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username, email := normalize(in.Username), normalize(in.Email)
	if username == "" && email == "" {
		return nil, apperror.Validation("username or email is required")
	}
	u, err := s.Repo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperror.NotFound("User does not exist")
		}
		return nil, apperror.Internal("login failed", err)
	}
	if !u.PasswordMatches(in.Password) {
		return nil, apperror.Auth("Invalid user credentials")
	}
	pair, err := s.Tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u.WithoutSecrets(), Tokens: pair}, nil
}

// Logout drops the stored refresh token so it can no longer be exchanged.
func (s *Service) Logout(ctx context.Context, current *entity.User) error {
	if err := s.Repo.ClearRefreshToken(ctx, current.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return apperror.Internal("logout failed", err)
	}
	return nil
}

// Refresh exchanges the user's current refresh token for a new pair. A
// validly signed token that is not the stored one is treated as replayed.
func (s *Service) Refresh(ctx context.Context, incoming string) (*LoginResult, error) {
	if blank(incoming) {
		return nil, apperror.Unauthorized("unauthorized request")
	}
	claims, err := s.Tokens.VerifyRefresh(incoming)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, err.Error(), err)
	}
	u, err := s.Repo.GetCredentialsByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, "invalid refresh token", err)
	}
	if u.RefreshToken == "" || u.RefreshToken != incoming {
		s.Logger.WithField("user_id", u.ID).Warn("refresh token mismatch")
		return nil, apperror.Unauthorized("refresh token is expired or used")
	}
	pair, err := s.Tokens.IssuePair(ctx, u)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, msgTokenGeneration, err)
	}
	return &LoginResult{User: u.WithoutSecrets(), Tokens: pair}, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, current *entity.User, oldPassword, newPassword string) error {
	if blank(newPassword) {
		return apperror.Validation("new password is required")
	}
	if len(newPassword) > helpers.MaxPasswordBytes {
		return errPasswordTooLong()
	}
	u, err := s.Repo.GetCredentialsByID(ctx, current.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		return apperror.Internal("change password failed", err)
	}
	if !u.PasswordMatches(oldPassword) {
		return apperror.Auth("Invalid old password")
	}
	if err := s.Repo.UpdatePassword(ctx, u.ID, newPassword); err != nil {
		if errors.Is(err, helpers.ErrPasswordTooLong) {
			return errPasswordTooLong()
		}
		return apperror.Internal("change password failed", err)
	}
	s.notify(ctx, u, templates.PasswordChanged)
	return nil
}

func (s *Service) GetCurrentUser(_ context.Context, current *entity.User) *entity.User {
	return current.WithoutSecrets()
}

func (s *Service) UpdateProfile(ctx context.Context, current *entity.User, fullname, email string) (*entity.User, error) {
	if blank(fullname) || blank(email) {
		return nil, apperror.Validation("All fields are required")
	}
	u, err := s.Repo.UpdateProfile(ctx, current.ID, strings.TrimSpace(fullname), normalize(email))
	if err != nil {
		return nil, s.updateErr(err)
	}
	s.index(ctx, u)
	return u, nil
}

func (s *Service) UpdateAvatar(ctx context.Context, current *entity.User, file *StagedFile) (*entity.User, error) {
	if file == nil {
		return nil, apperror.Validation("Avatar file is missing")
	}
	url, err := s.Media.Upload(ctx, file.Path)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", current.ID).Warn("avatar upload failed")
		return nil, apperror.Validation("Error while uploading avatar")
	}
	u, err := s.Repo.UpdateAvatar(ctx, current.ID, url)
	if err != nil {
		return nil, s.updateErr(err)
	}
	s.index(ctx, u)
	return u, nil
}

func (s *Service) UpdateCoverImage(ctx context.Context, current *entity.User, file *StagedFile) (*entity.User, error) {
	if file == nil {
		return nil, apperror.Validation("Cover image file is missing")
	}
	url, err := s.Media.Upload(ctx, file.Path)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", current.ID).Warn("cover image upload failed")
		return nil, apperror.Validation("Error while uploading cover image")
	}
	u, err := s.Repo.UpdateCoverImage(ctx, current.ID, url)
	if err != nil {
		return nil, s.updateErr(err)
	}
	s.index(ctx, u)
	return u, nil
}

// GetChannelProfile looks up a channel by username. viewer may be nil.
func (s *Service) GetChannelProfile(ctx context.Context, username string, viewer *entity.User) (*entity.ChannelProfile, error) {
	username = normalize(username)
	if username == "" {
		return nil, apperror.Validation("username is missing")
	}
	var viewerID string
	if viewer != nil {
		viewerID = viewer.ID
	}
	p, err := s.Repo.GetChannelProfile(ctx, username, viewerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperror.NotFound("channel does not exist")
		}
		return nil, apperror.Internal("fetch channel failed", err)
	}
	return p, nil
}

func (s *Service) GetWatchHistory(ctx context.Context, current *entity.User) ([]entity.Video, error) {
	videos, err := s.Repo.GetWatchHistory(ctx, current.ID)
	if err != nil {
		return nil, apperror.Internal("fetch watch history failed", err)
	}
	return videos, nil
}

// SearchUsers queries the user index. An unconfigured index yields no hits.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]search.UserDocument, error) {
	if blank(q) {
		return nil, apperror.Validation("search query is required")
	}
	if s.Index == nil {
		return []search.UserDocument{}, nil
	}
	docs, err := s.Index.Search(ctx, strings.TrimSpace(q), size)
	if err != nil {
		return nil, apperror.Internal("search failed", err)
	}
	return docs, nil
}

func (s *Service) updateErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return apperror.Conflict("email already in use")
	case errors.Is(err, repo.ErrNotFound):
		return apperror.NotFound("User not found")
	default:
		return apperror.Internal("update account failed", err)
	}
}

func (s *Service) index(ctx context.Context, u *entity.User) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Put(ctx, u); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
	}
}

func (s *Service) notify(ctx context.Context, u *entity.User, template string) {
	if s.Notifier == nil {
		return
	}
	job := mailer.TemplateJob(u.Email, template, templates.AccountData{
		AppName:  s.AppName,
		Fullname: u.Fullname,
		Username: u.Username,
		Email:    u.Email,
		Time:     time.Now(),
	}.ToMap())
	if err := s.Notifier.PublishJSON(ctx, job); err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{"user_id": u.ID, "template": template}).Warn("enqueue email failed")
	}
}
