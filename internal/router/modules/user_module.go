package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-ddd-user-accounts/internal/interface/http"
	"github.com/oksasatya/go-ddd-user-accounts/internal/interface/middleware"
)

// UserModule wires account and profile routes.
// Public: POST /api/login, /api/refresh, /api/register
// Protected: POST /api/logout, GET|PUT /api/profile, POST /api/profile/avatar, GET /api/users/search
type UserModule struct {
	Handler *handlers.UserHandler
	Auth    gin.HandlerFunc
	Redis   *redis.Client
}

func NewUserModule(h *handlers.UserHandler, auth gin.HandlerFunc, rdb *redis.Client) *UserModule {
	return &UserModule{Handler: h, Auth: auth, Redis: rdb}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	loginLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIP(), nil)   // 10 req/min per IP
	refreshLimiter := middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByIP(), nil) // 60 req/min per IP
	registerLimiter := middleware.RateLimit(m.Redis, 5, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/register", registerLimiter, m.Handler.Register)

	auth := rg.Group("/")
	auth.Use(m.Auth)
	auth.Use(
		middleware.RateLimit(m.Redis, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
		auth.GET("/users/search", m.Handler.Search)
	}
}
