package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/oksasatya/go-account-service/config"
	"github.com/oksasatya/go-account-service/internal/container"
	pginfra "github.com/oksasatya/go-account-service/internal/infrastructure/postgres"
	"github.com/oksasatya/go-account-service/internal/infrastructure/search"
	"github.com/oksasatya/go-account-service/internal/interface/middleware"
	"github.com/oksasatya/go-account-service/internal/router"
	"github.com/oksasatya/go-account-service/pkg/helpers"
	"github.com/oksasatya/go-account-service/pkg/media"
	"github.com/oksasatya/go-account-service/pkg/validation"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogFile)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("account service stopped")
	}
	logger.Info("server exited properly")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{
		DSN:             cfg.PostgresDSN(),
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLife,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := helpers.NewRedisClient(helpers.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = rdb.Close() }()
	if err := helpers.PingRedis(ctx, rdb); err != nil {
		logger.WithError(err).Warn("redis unreachable; rate limiting fails open")
	}

	store, closeStore, err := newObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("media store: %w", err)
	}
	defer closeStore()
	if err := os.MkdirAll(cfg.UploadTmpDir, 0o750); err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &container.Container{
		Config:   cfg,
		Logger:   logger,
		DB:       pool,
		Redis:    rdb,
		JWT:      helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL),
		Media:    media.NewUploader(store, cfg.UploadTimeout, logger),
		Metrics:  middleware.NewHTTPMetrics(reg, "accounts"),
		Gatherer: reg,
	}
	attachOptional(c)
	if q, ok := c.Notifier.(*helpers.RabbitQueue); ok {
		defer q.Close()
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: newEngine(c), ReadHeaderTimeout: 10 * time.Second}
	return serve(ctx, srv, logger)
}

// attachOptional wires search and email notifications. Either may be
// unavailable; the service then runs without it.
func attachOptional(c *container.Container) {
	cfg, logger := c.Config, c.Logger

	es, err := helpers.NewESClient(helpers.ESOptions{
		Addresses: cfg.ESAddrs(),
		Username:  cfg.ElasticsearchUser,
		Password:  cfg.ElasticsearchPass,
	})
	switch {
	case err != nil:
		logger.WithError(err).Warn("elasticsearch disabled")
	case es != nil:
		c.Index = search.NewUserIndex(es, cfg.ESUsersIndex)
	}

	if !cfg.MailSendEnabled {
		return
	}
	queue, err := helpers.OpenRabbitQueue(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
	if err != nil {
		logger.WithError(err).Warn("rabbitmq unavailable; account emails disabled")
		return
	}
	c.Notifier = queue
}

func newEngine(c *container.Container) *gin.Engine {
	cfg := c.Config
	r := gin.New()
	r.Use(
		middleware.RequestIDMiddleware(),
		middleware.RealIP(),
		middleware.Recovery(c.Logger),
		c.Metrics.Handler(),
		middleware.ErrorHandler(c.Logger),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins(),
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}

	registry := router.NewRegistry(r, "/api")
	router.InitModules(registry, c)
	registry.Mount()
	return r
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, logger *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	return nil
}

// newObjectStore picks the media backend named by MEDIA_PROVIDER.
func newObjectStore(ctx context.Context, cfg *config.Config) (media.ObjectStore, func(), error) {
	switch cfg.MediaProvider {
	case "gcs":
		client, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			return nil, nil, err
		}
		return media.NewGCSStore(client, cfg.GCSBucket), func() { _ = client.Close() }, nil
	case "s3":
		client, err := helpers.NewS3Client(ctx, helpers.S3Options{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		return media.NewS3Store(client, cfg.S3Bucket, cfg.S3Region, cfg.S3PublicBaseURL), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown MEDIA_PROVIDER %q", cfg.MediaProvider)
	}
}

func runMigrations(dsn, dir string, logger *logrus.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return err
	}
	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("schema up to date")
	case err != nil:
		return err
	default:
		logger.Info("migrations applied")
	}
	return nil
}
