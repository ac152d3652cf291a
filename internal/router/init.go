package router

import (
	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/container"
	pginfra "github.com/oksasatya/go-account-service/internal/infrastructure/postgres"
	handlers "github.com/oksasatya/go-account-service/internal/interface/http"
	"github.com/oksasatya/go-account-service/internal/router/modules"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

func buildUserModule(c *container.Container) *modules.UserModule {
	repo := pginfra.NewUserRepository(c.DB)
	tokens := application.NewTokenService(repo, c.JWT, c.Logger)

	svc := application.NewService(repo, tokens, c.Media, c.Logger)
	svc.Index = c.Index
	svc.Notifier = c.Notifier
	svc.AppName = c.Config.AppName

	handler := handlers.NewUserHandler(svc, c.Logger,
		helpers.NewAuthCookies(c.Config.CookieDomain, c.Config.CookieSecure),
		c.Config.UploadTmpDir)

	return modules.NewUserModule(handler, tokens, repo, c.Redis)
}

// InitModules builds every feature module from c and adds it to r.
// Call once during startup, before Mount.
func InitModules(r *Registry, c *container.Container) {
	r.Add(buildUserModule(c))
	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(c.Redis, c.Gatherer))
	}
}
