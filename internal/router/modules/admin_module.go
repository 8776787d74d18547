package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-ddd-user-accounts/internal/interface/http"
	"github.com/oksasatya/go-ddd-user-accounts/internal/interface/middleware"
)

// AdminModule registers superuser-only routes under /api/admin.
type AdminModule struct {
	Users     *handlers.AdminHandler
	Email     *handlers.EmailHandler
	Auth      gin.HandlerFunc
	Superuser gin.HandlerFunc
	Redis     *redis.Client
}

func NewAdminModule(users *handlers.AdminHandler, email *handlers.EmailHandler, auth, superuser gin.HandlerFunc, rdb *redis.Client) *AdminModule {
	return &AdminModule{Users: users, Email: email, Auth: auth, Superuser: superuser, Redis: rdb}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(m.Auth, m.Superuser)
	{
		admin.POST("/users", m.Users.CreateUser)
		admin.DELETE("/users/:id", m.Users.DeleteUser)
		admin.POST("/email/test", middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByUserID(), nil), m.Email.Test)
	}
}
