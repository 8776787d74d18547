package container

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-accounts/config"
	"github.com/oksasatya/go-ddd-user-accounts/internal/infrastructure/search"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/mailer"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/storage"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client

	jwtManager *helpers.JWTManager

	avatarStore storage.Backend
	emailSender mailer.Sender
	rabbitPub   *helpers.RabbitPublisher
	userIndex   *search.UserIndex
)

func SetConfig(c *config.Config)   { cfg = c }
func GetConfig() *config.Config    { return cfg }
func SetLogger(l *logrus.Logger)   { logger = l }
func GetLogger() *logrus.Logger    { return logger }
func SetPGPool(p *pgxpool.Pool)    { pgPool = p }
func GetPGPool() *pgxpool.Pool     { return pgPool }
func SetRedis(r *redis.Client)     { redisClient = r }
func GetRedis() *redis.Client      { return redisClient }
func SetJWT(m *helpers.JWTManager) { jwtManager = m }
func GetJWT() *helpers.JWTManager {
	if jwtManager != nil {
		return jwtManager
	}
	return helpers.DefaultJWT()
}

func SetStorage(b storage.Backend)            { avatarStore = b }
func GetStorage() storage.Backend             { return avatarStore }
func SetSender(s mailer.Sender)               { emailSender = s }
func GetSender() mailer.Sender                { return emailSender }
func SetRabbitPub(p *helpers.RabbitPublisher) { rabbitPub = p }
func GetRabbitPub() *helpers.RabbitPublisher  { return rabbitPub }
func SetUserIndex(x *search.UserIndex)        { userIndex = x }
func GetUserIndex() *search.UserIndex         { return userIndex }
