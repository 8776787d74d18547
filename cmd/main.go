package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-accounts/config"
	"github.com/oksasatya/go-ddd-user-accounts/internal/container"
	pginfra "github.com/oksasatya/go-ddd-user-accounts/internal/infrastructure/postgres"
	"github.com/oksasatya/go-ddd-user-accounts/internal/infrastructure/search"
	"github.com/oksasatya/go-ddd-user-accounts/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-user-accounts/internal/router"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/mailer"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/storage"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()

	backend, closeStorage := avatarStorage(ctx, cfg, logger)
	defer closeStorage()

	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTResetSecret, cfg.AccessTTL, cfg.RefreshTTL)

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetJWT(jwtManager)
	container.SetStorage(backend)

	if cfg.EmailsEnabled() {
		sender, err := mailer.NewSender(cfg)
		if err != nil {
			logger.WithError(err).Fatal("failed to init email sender")
		}
		container.SetSender(sender)
		logger.WithField("transport", sender.Transport()).Info("emails enabled")
	} else {
		logger.Info("emails disabled: EMAILS_ENABLED is off or transport is not configured")
	}

	if cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable; queued emails disabled")
		} else {
			defer pub.Close()
			container.SetRabbitPub(pub)
		}
	}

	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := search.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			logger.WithError(err).Warn("elasticsearch unavailable; user search disabled")
		} else {
			container.SetUserIndex(search.NewUserIndex(es, cfg.ESUsersIndex))
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}
	if cfg.StorageBackend != "gcs" {
		r.Static("/static/uploads", cfg.AvatarDir)
	}

	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

// avatarStorage picks the avatar backend from STORAGE_BACKEND.
func avatarStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (storage.Backend, func()) {
	if cfg.StorageBackend != "gcs" {
		return storage.NewLocal(cfg.AvatarDir), func() {}
	}
	if cfg.GCSBucket == "" {
		logger.Fatal("STORAGE_BACKEND=gcs requires GCS_BUCKET")
	}
	client, err := storage.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to init GCS client")
	}
	return storage.NewGCS(client, cfg.GCSBucket), func() { _ = client.Close() }
}
