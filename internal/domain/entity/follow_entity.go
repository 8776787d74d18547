package entity

import "time"

// FollowAction is the mutation applied to a follow edge.
type FollowAction string

const (
	FollowActionFollow   FollowAction = "follow"
	FollowActionUnfollow FollowAction = "unfollow"
)

// ParseFollowAction accepts only the two known literals.
func ParseFollowAction(s string) (FollowAction, bool) {
	switch a := FollowAction(s); a {
	case FollowActionFollow, FollowActionUnfollow:
		return a, true
	default:
		return "", false
	}
}

// FollowState is what a follow mutation leaves behind on the actor.
type FollowState struct {
	Following []string
	UpdatedAt time.Time
}
