package container

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-account-service/config"
	"github.com/oksasatya/go-account-service/internal/application"
	"github.com/oksasatya/go-account-service/internal/infrastructure/postgres"
	"github.com/oksasatya/go-account-service/internal/interface/middleware"
	"github.com/oksasatya/go-account-service/pkg/helpers"
)

// Container holds the process-wide components built once in main and passed
// explicitly to the router. Optional components are nil when not configured.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	DB    postgres.DB
	Redis *redis.Client // optional, disables rate limiting when nil
	JWT   *helpers.JWTManager

	Media    application.Uploader
	Index    application.UserIndex // optional
	Notifier application.Notifier  // optional

	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
}
