package router

import (
	appuser "github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/internal/container"
	pginfra "github.com/oksasatya/go-ddd-user-accounts/internal/infrastructure/postgres"
	handlers "github.com/oksasatya/go-ddd-user-accounts/internal/interface/http"
	"github.com/oksasatya/go-ddd-user-accounts/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-user-accounts/internal/router/modules"
	mailtpl "github.com/oksasatya/go-ddd-user-accounts/pkg/mailer/templates"
)

// Deps holds the services and handlers built from the container.
type Deps struct {
	Users    *appuser.Service
	Follows  *appuser.FollowService
	Avatars  *appuser.AvatarService
	Notifier *appuser.NotificationService

	UserHandler   *handlers.UserHandler
	AuthHandler   *handlers.AuthHandler
	FollowHandler *handlers.FollowHandler
	AdminHandler  *handlers.AdminHandler
	EmailHandler  *handlers.EmailHandler
}

// userIndex keeps a missing index as a nil interface.
func userIndex() appuser.UserIndex {
	if x := container.GetUserIndex(); x != nil {
		return x
	}
	return nil
}

func jobPublisher() appuser.JobPublisher {
	if p := container.GetRabbitPub(); p != nil {
		return p
	}
	return nil
}

// BuildDeps constructs repositories, services and handlers from the container singletons.
func BuildDeps() Deps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	pool := container.GetPGPool()

	users := pginfra.NewUserRepository(pool)
	follows := pginfra.NewFollowRepository(pool)

	notifier := appuser.NewNotificationService(cfg, container.GetSender(), mailtpl.Dir(cfg.EmailTemplatesDir), jobPublisher(), logger)
	svc := appuser.NewService(users, container.GetJWT(), container.GetRedis(), logger, userIndex(), notifier, cfg.ResetTokenTTL())
	followSvc := appuser.NewFollowService(users, follows, logger)
	avatars := appuser.NewAvatarService(users, container.GetStorage(), userIndex(), cfg.AvatarMaxBytes, logger)

	return Deps{
		Users:    svc,
		Follows:  followSvc,
		Avatars:  avatars,
		Notifier: notifier,

		UserHandler:   handlers.NewUserHandler(svc, avatars, logger, cfg.CookieDomain, cfg.CookieSecure, cfg.AvatarMaxBytes),
		AuthHandler:   handlers.NewAuthHandler(svc, logger),
		FollowHandler: handlers.NewFollowHandler(followSvc, logger),
		AdminHandler:  handlers.NewAdminHandler(svc, notifier, logger),
		EmailHandler:  handlers.NewEmailHandler(notifier, logger),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) Deps {
	deps := BuildDeps()
	rdb := container.GetRedis()
	auth := middleware.Auth(deps.Users, container.GetJWT())

	r.Add(modules.NewUserModule(deps.UserHandler, auth, rdb))
	r.Add(modules.NewAuthModule(deps.AuthHandler, rdb))
	r.Add(modules.NewFollowModule(deps.FollowHandler, auth, rdb))
	r.Add(modules.NewAdminModule(deps.AdminHandler, deps.EmailHandler, auth, middleware.RequireSuperuser(deps.Users), rdb))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(rdb))
	}
	return deps
}
