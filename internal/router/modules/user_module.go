package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-account-service/internal/interface/http"
	"github.com/oksasatya/go-account-service/internal/interface/middleware"
)

// UserModule mounts the account routes under /v1/users.
//
// Public: register, login, refresh-token, c/:username (optional auth)
// Protected: logout, change-password, current-user, update-account,
// avatar, cover-image, history, search
type UserModule struct {
	Handler  *handlers.UserHandler
	Verifier middleware.TokenVerifier
	Users    middleware.UserLoader
	Redis    *redis.Client
}

func NewUserModule(h *handlers.UserHandler, v middleware.TokenVerifier, users middleware.UserLoader, rdb *redis.Client) *UserModule {
	return &UserModule{Handler: h, Verifier: v, Users: users, Redis: rdb}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	h := m.Handler
	users := rg.Group("/v1/users")

	limit := func(perMinute int, key middleware.KeyFunc) gin.HandlerFunc {
		return middleware.RateLimit(m.Redis, middleware.RateRule{Max: perMinute, Window: time.Minute, Key: key})
	}

	users.POST("/register", limit(5, middleware.ByIP), h.Register)
	users.POST("/login", limit(10, middleware.ByIP), h.Login)
	users.POST("/refresh-token", limit(60, middleware.ByIP), h.Refresh)
	users.GET("/c/:username", limit(120, middleware.ByRoute), middleware.OptionalAuth(m.Verifier, m.Users), h.ChannelProfile)

	auth := users.Group("/")
	auth.Use(
		middleware.Auth(m.Verifier, m.Users),
		limit(300, middleware.ByIP),
		limit(120, middleware.ByUser),
	)
	{
		auth.POST("/logout", h.Logout)
		auth.POST("/change-password", h.ChangePassword)
		auth.GET("/current-user", h.CurrentUser)
		auth.PATCH("/update-account", h.UpdateAccount)
		auth.PATCH("/avatar", h.UpdateAvatar)
		auth.PATCH("/cover-image", h.UpdateCoverImage)
		auth.GET("/history", h.WatchHistory)
		auth.GET("/search", h.Search)
	}
}
