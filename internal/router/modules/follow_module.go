package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-ddd-user-accounts/internal/interface/http"
	"github.com/oksasatya/go-ddd-user-accounts/internal/interface/middleware"
)

type FollowModule struct {
	Handler *handlers.FollowHandler
	Auth    gin.HandlerFunc
	Redis   *redis.Client
}

func NewFollowModule(h *handlers.FollowHandler, auth gin.HandlerFunc, rdb *redis.Client) *FollowModule {
	return &FollowModule{Handler: h, Auth: auth, Redis: rdb}
}

func (m *FollowModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	users.Use(m.Auth, middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		users.POST("/:id/:action", m.Handler.Follow)
		users.GET("/:id/following", m.Handler.Following)
		users.GET("/:id/followers", m.Handler.Followers)
	}
}
