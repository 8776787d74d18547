package main

import (
	"context"
	"errors"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-accounts/config"
	userapp "github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/repository"
	pginfra "github.com/oksasatya/go-ddd-user-accounts/internal/infrastructure/postgres"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
)

var errNoSuperuserPassword = errors.New("FIRST_SUPERUSER_PASSWORD is required")

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	jwt := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTResetSecret, cfg.AccessTTL, cfg.RefreshTTL)
	svc := userapp.NewService(pginfra.NewUserRepository(pool), jwt, nil, logger, nil, nil, cfg.ResetTokenTTL())

	u, created, err := seedSuperuser(ctx, svc, cfg.FirstSuperuser, cfg.FirstSuperuserPassword)
	if err != nil {
		logger.WithError(err).Fatal("failed to seed superuser")
	}
	logger.WithFields(logrus.Fields{"id": u.ID, "email": u.Email, "created": created}).Info("superuser ensured")
}

// seedSuperuser creates the first superuser unless an account with that email already exists.
func seedSuperuser(ctx context.Context, svc *userapp.Service, email, password string) (*entity.User, bool, error) {
	u, err := svc.Get(ctx, repository.UserFilter{Email: email})
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, nil
	}
	if password == "" {
		return nil, false, errNoSuperuserPassword
	}
	u, err = svc.Create(ctx, entity.UserCreate{Email: email, Password: password, FullName: "Superuser", IsSuperuser: true})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}
