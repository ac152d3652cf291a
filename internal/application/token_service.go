package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	repo "github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/pkg/apperror"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

const msgTokenGeneration = "something went wrong while generating tokens"

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// TokenService signs token pairs and keeps the user's single live refresh
// token in the credential store.
type TokenService struct {
	Repo   repo.UserRepository
	JWT    *helpers.JWTManager
	Logger *logrus.Logger
}

func NewTokenService(r repo.UserRepository, jwt *helpers.JWTManager, logger *logrus.Logger) *TokenService {
	if logger == nil {
		logger = helpers.NewNopLogger()
	}
	return &TokenService{Repo: r, JWT: jwt, Logger: logger}
}

// IssuePair signs a new access/refresh pair for u and persists the refresh
// token, replacing whichever one was live before.
func (t *TokenService) IssuePair(ctx context.Context, u *entity.User) (TokenPair, error) {
	access, aexp, err := t.JWT.GenerateAccessToken(helpers.AccessIdentity{
		UserID:   u.ID,
		Email:    u.Email,
		Username: u.Username,
		Fullname: u.Fullname,
	})
	if err != nil {
		t.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return TokenPair{}, apperror.Internal(msgTokenGeneration, err)
	}
	refresh, rexp, err := t.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		t.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return TokenPair{}, apperror.Internal(msgTokenGeneration, err)
	}
	if err := t.Repo.SetRefreshToken(ctx, u.ID, refresh); err != nil {
		t.Logger.WithError(err).WithField("user_id", u.ID).Error("persist refresh token failed")
		return TokenPair{}, apperror.Internal(msgTokenGeneration, err)
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// VerifyAccess returns the claims of a valid access token.
func (t *TokenService) VerifyAccess(token string) (*helpers.Claims, error) {
	return t.JWT.Verify(token, helpers.AccessToken)
}

// VerifyRefresh returns the claims of a valid refresh token.
func (t *TokenService) VerifyRefresh(token string) (*helpers.Claims, error) {
	return t.JWT.Verify(token, helpers.RefreshToken)
}
