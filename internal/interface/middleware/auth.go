package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-account-service/internal/domain/entity"
	repo "github.com/oksasatya/go-account-service/internal/domain/repository"
	"github.com/oksasatya/go-account-service/pkg/apperror"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

const ctxUserKey = "current_user"

// TokenVerifier checks access tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (*helpers.Claims, error)
}

// UserLoader loads the public projection of a user.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// accessToken reads the token from the accessToken cookie, falling back to
// an "Authorization: Bearer" header.
func accessToken(c *gin.Context) string {
	if t, err := c.Cookie(helpers.AccessTokenCookie); err == nil && t != "" {
		return t
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func authenticate(c *gin.Context, token string, v TokenVerifier, users UserLoader) (*entity.User, error) {
	claims, err := v.VerifyAccess(token)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, "Invalid or expired access token", err)
	}
	u, err := users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Internal("load user failed", err)
	}
	return u, nil
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Auth rejects requests without a valid access token for an existing user.
// On success the user is available through CurrentUser.
func Auth(v TokenVerifier, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			abort(c, apperror.Unauthorized("Access token is required"))
			return
		}
		u, err := authenticate(c, token, v, users)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(ctxUserKey, u)
		c.Next()
	}
}

// OptionalAuth lets anonymous requests through. A token, when present, is
// held to the same rules as Auth.
func OptionalAuth(v TokenVerifier, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			c.Next()
			return
		}
		u, err := authenticate(c, token, v, users)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(ctxUserKey, u)
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *entity.User {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*entity.User)
	return u
}
