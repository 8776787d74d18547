package application

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	repo "github.com/oksasatya/go-ddd-user-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
)

type FollowService struct {
	Users   repo.UserRepository
	Follows repo.FollowRepository
	Logger  *logrus.Logger
}

func NewFollowService(users repo.UserRepository, follows repo.FollowRepository, logger *logrus.Logger) *FollowService {
	return &FollowService{Users: users, Follows: follows, Logger: logger}
}

// Follow applies action from currentUserID towards userID and returns the actor
// with its refreshed following set. Both actions are idempotent.
func (s *FollowService) Follow(ctx context.Context, action, userID, currentUserID string) (*entity.User, error) {
	act, ok := entity.ParseFollowAction(action)
	if !ok {
		return nil, apperror.InvalidArgument("FOLLOW_ACTION_INVALID", "action must be follow or unfollow", "action", action)
	}
	if userID == currentUserID {
		return nil, apperror.InvalidArgument("FOLLOW_SELF", "users cannot follow themselves", "user_id", userID)
	}
	actor, err := s.Users.GetByID(ctx, currentUserID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	var state entity.FollowState
	switch act {
	case entity.FollowActionFollow:
		state, err = s.Follows.Follow(ctx, actor.ID, userID)
	case entity.FollowActionUnfollow:
		state, err = s.Follows.Unfollow(ctx, actor.ID, userID)
	}
	if err != nil {
		return nil, err
	}
	actor.Following = state.Following
	actor.UpdatedAt = state.UpdatedAt
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"actor": actor.ID, "target": userID, "action": string(act)}).Debug("follow applied")
	}
	return actor, nil
}

// ListFollowing returns the IDs userID follows.
func (s *FollowService) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.Follows.ListFollowing(ctx, userID)
}

// ListFollowers returns the IDs following userID.
func (s *FollowService) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.Follows.ListFollowers(ctx, userID)
}
