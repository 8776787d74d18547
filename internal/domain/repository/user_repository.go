package repository

import (
	"context"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
)

// UserFilter selects a single user. Empty fields are ignored; at least one must be set.
type UserFilter struct {
	ID    string
	Email string
}

// UserRepository defines the interface for user-related database operations.
// Get returns (nil, nil) when nothing matches; GetByID and GetByEmail return a NotFound error.
// Update writes the profile columns only: an empty HashedPassword keeps the stored
// hash and avatar_path is left to UpdateAvatar.
type UserRepository interface {
	Get(ctx context.Context, f UserFilter) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
	Update(ctx context.Context, u *entity.User) error
	UpdateAvatar(ctx context.Context, id, avatarPath string) error
	Delete(ctx context.Context, id string) error
}

// FollowRepository owns the follow edges. Follow and Unfollow are idempotent
// and return the follower's refreshed state.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followeeID string) (entity.FollowState, error)
	Unfollow(ctx context.Context, followerID, followeeID string) (entity.FollowState, error)
	ListFollowing(ctx context.Context, userID string) ([]string, error)
	ListFollowers(ctx context.Context, userID string) ([]string, error)
}
