package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	repo "github.com/oksasatya/go-ddd-user-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
)

const sessionTTL = 24 * time.Hour

// UserIndex is the search side of user profiles.
type UserIndex interface {
	Index(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, size int) ([]map[string]any, error)
}

type Service struct {
	Repo     repo.UserRepository
	JWT      *helpers.JWTManager
	Redis    redis.Cmdable
	Logger   *logrus.Logger
	Index    UserIndex
	Notifier *NotificationService
	ResetTTL time.Duration
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func NewService(repo repo.UserRepository, jwt *helpers.JWTManager, rdb redis.Cmdable, logger *logrus.Logger, index UserIndex, notifier *NotificationService, resetTTL time.Duration) *Service {
	return &Service{
		Repo:     repo,
		JWT:      jwt,
		Redis:    rdb,
		Logger:   logger,
		Index:    index,
		Notifier: notifier,
		ResetTTL: resetTTL,
	}
}

// Authenticate returns the user when email and password match, and (nil, nil) otherwise.
// Only infrastructure failures produce an error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	if email == "" {
		helpers.BurnPasswordCheck(password)
		return nil, nil
	}
	u, err := s.Repo.Get(ctx, repo.UserFilter{Email: email})
	if err != nil {
		return nil, err
	}
	if u == nil {
		helpers.BurnPasswordCheck(password)
		return nil, nil
	}
	if !helpers.CompareHashAndPassword(u.HashedPassword, password) {
		return nil, nil
	}
	return u, nil
}

func (s *Service) IsActive(u *entity.User) bool { return u.IsActive }

func (s *Service) IsSuperuser(u *entity.User) bool { return u.IsSuperuser }

// Get looks a user up by ID and/or email; absent users yield (nil, nil).
func (s *Service) Get(ctx context.Context, f repo.UserFilter) (*entity.User, error) {
	return s.Repo.Get(ctx, f)
}

func (s *Service) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return s.Repo.GetByID(ctx, id)
}

// Create hashes the password and persists a new active user.
func (s *Service) Create(ctx context.Context, in entity.UserCreate) (*entity.User, error) {
	if in.Email == "" {
		return nil, apperror.InvalidArgument("USER_EMAIL_REQUIRED", "email is required")
	}
	if in.Password == "" {
		return nil, apperror.InvalidArgument("USER_PASSWORD_REQUIRED", "password is required")
	}
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Email:          in.Email,
		HashedPassword: hash,
		FullName:       in.FullName,
		IsActive:       true,
		IsSuperuser:    in.IsSuperuser,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.indexUser(ctx, u)
	return u, nil
}

// Update applies every set field of in to a copy of u and persists it.
// An unset password leaves the stored hash untouched.
func (s *Service) Update(ctx context.Context, u *entity.User, in entity.UserUpdate) (*entity.User, error) {
	next := *u
	_, passwordSet := in.Password.Get()
	if email, ok := in.Email.Get(); ok {
		if email == "" {
			return nil, apperror.InvalidArgument("USER_EMAIL_REQUIRED", "email cannot be empty", "user_id", u.ID)
		}
		next.Email = email
	}
	if password, ok := in.Password.Get(); ok {
		if password == "" {
			return nil, apperror.InvalidArgument("USER_PASSWORD_EMPTY", "password cannot be empty", "user_id", u.ID)
		}
		hash, err := helpers.HashPassword(password)
		if err != nil {
			return nil, err
		}
		next.HashedPassword = hash
	}
	if name, ok := in.FullName.Get(); ok {
		next.FullName = name
	}
	if active, ok := in.IsActive.Get(); ok {
		next.IsActive = active
	}
	if super, ok := in.IsSuperuser.Get(); ok {
		next.IsSuperuser = super
	}
	row := next
	if !passwordSet {
		row.HashedPassword = ""
	}
	if err := s.Repo.Update(ctx, &row); err != nil {
		return nil, err
	}
	next.UpdatedAt = row.UpdatedAt
	s.indexUser(ctx, &next)
	return &next, nil
}

// Delete removes the user, its session and its search document.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.Redis != nil {
		if err := helpers.RedisDel(ctx, s.Redis, helpers.SessionKey(id)); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", id).Warn("redis session delete failed")
		}
	}
	if s.Index != nil {
		if err := s.Index.Delete(ctx, id); err != nil {
			helpers.LogError(s.Logger, "es delete failed", err, nil)
		}
	}
	return nil
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	pair, err := s.tokenPair(u.ID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate tokens failed")
		}
		return TokenPair{}, err
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"full_name":  u.FullName,
			"sid":        sid,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		}
		key := helpers.SessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, sessionTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}
	return pair, nil
}

func (s *Service) tokenPair(userID, sid string) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(userID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(userID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Login authenticates and opens a session. Inactive users are refused.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if u == nil {
		return nil, TokenPair{}, apperror.Unauthorized("INVALID_CREDENTIALS", "incorrect email or password")
	}
	if !s.IsActive(u) {
		return nil, TokenPair{}, apperror.InvalidArgument("USER_INACTIVE", "inactive user", "user_id", u.ID)
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// SessionValid reports whether sid is the current session of userID.
// Without Redis every signed token is accepted.
func (s *Service) SessionValid(ctx context.Context, userID, sid string) bool {
	if s.Redis == nil {
		return true
	}
	cur, err := s.Redis.HGet(ctx, helpers.SessionKey(userID), "sid").Result()
	return err == nil && cur == sid
}

// Refresh validates the refresh token against the stored session and rotates both tokens.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	invalid := apperror.Unauthorized("INVALID_REFRESH_TOKEN", "invalid refresh token")
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", invalid
	}
	u, err := s.Repo.Get(ctx, repo.UserFilter{ID: claims.UserID})
	if err != nil {
		return TokenPair{}, "", err
	}
	if u == nil || !u.IsActive || !s.SessionValid(ctx, u.ID, claims.SessionID) {
		return TokenPair{}, "", invalid
	}
	sid := uuid.NewString()
	pair, err := s.tokenPair(u.ID, sid)
	if err != nil {
		return TokenPair{}, "", err
	}
	if s.Redis != nil {
		key := helpers.SessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"sid":        sid,
			"updated_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, sessionTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}
	return pair, u.ID, nil
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	if s.Redis == nil {
		return nil
	}
	return helpers.RedisDel(ctx, s.Redis, helpers.SessionKey(userID))
}

// RecoverPassword mails a reset link to a registered address. Unknown addresses
// return nil so callers cannot tell which emails exist. A failed delivery to a
// registered address is returned as DeliveryFailure.
func (s *Service) RecoverPassword(ctx context.Context, email string) error {
	if s.Notifier == nil || !s.Notifier.Enabled() {
		return apperror.Configuration("EMAILS_DISABLED", "emails are not enabled")
	}
	u, err := s.Repo.Get(ctx, repo.UserFilter{Email: email})
	if err != nil {
		return err
	}
	if u == nil {
		if s.Logger != nil {
			s.Logger.Info("password recovery requested for unknown email")
		}
		return nil
	}
	token, _, err := s.JWT.GenerateResetToken(u.Email, s.ResetTTL)
	if err != nil {
		return err
	}
	_, err = s.Notifier.SendResetPasswordEmail(ctx, u.Email, u.Email, token)
	return err
}

// ResetPassword sets a new password for the subject of a valid, unused reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*entity.User, error) {
	claims, err := s.JWT.ParseResetToken(token)
	if err != nil {
		return nil, apperror.InvalidArgument("RESET_TOKEN_INVALID", "invalid token")
	}
	if newPassword == "" {
		return nil, apperror.InvalidArgument("USER_PASSWORD_EMPTY", "password cannot be empty")
	}
	u, err := s.Repo.Get(ctx, repo.UserFilter{Email: claims.Subject})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("USER_NOT_FOUND", "email", claims.Subject)
	}
	if !u.IsActive {
		return nil, apperror.InvalidArgument("USER_INACTIVE", "inactive user", "user_id", u.ID)
	}
	if s.Redis != nil && claims.ID != "" {
		ttl := time.Until(claims.ExpiresAt.Time)
		if ttl <= 0 {
			ttl = time.Minute
		}
		key := helpers.ResetTokenKey(claims.ID)
		first, err := helpers.RedisClaimOnce(ctx, s.Redis, key, ttl)
		if err != nil {
			return nil, err
		}
		if !first {
			return nil, apperror.InvalidArgument("RESET_TOKEN_USED", "token already used")
		}
		updated, err := s.Update(ctx, u, entity.UserUpdate{Password: entity.Some(newPassword)})
		if err != nil {
			// the token stays usable until the password actually changes
			if delErr := helpers.RedisDel(context.WithoutCancel(ctx), s.Redis, key); delErr != nil && s.Logger != nil {
				s.Logger.WithError(delErr).WithField("user_id", u.ID).Warn("reset token release failed")
			}
			return nil, err
		}
		return updated, nil
	}
	return s.Update(ctx, u, entity.UserUpdate{Password: entity.Some(newPassword)})
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, u); err != nil {
		helpers.LogError(s.Logger, "es index failed", err, logrus.Fields{"user_id": u.ID})
	}
}

// SearchUsers performs a multi_match search on email and full name.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.Index == nil {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	return s.Index.Search(ctx, q, size)
}
