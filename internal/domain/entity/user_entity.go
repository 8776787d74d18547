package entity

import (
	"slices"
	"time"
)

// User is the aggregate root for the account domain.
// HashedPassword holds a bcrypt hash, never the plaintext.
// Following is the set of user IDs this user follows; the repository keeps it sorted.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	FullName       string
	IsActive       bool
	IsSuperuser    bool
	AvatarPath     string
	Following      []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Follows reports whether u follows the user with the given id.
func (u *User) Follows(id string) bool {
	return slices.Contains(u.Following, id)
}

// UserCreate is the registration payload.
type UserCreate struct {
	Email       string
	Password    string
	FullName    string
	IsSuperuser bool
}

// UserUpdate carries profile changes; unset fields are left untouched.
type UserUpdate struct {
	Email       Optional[string] `json:"email"`
	Password    Optional[string] `json:"password"`
	FullName    Optional[string] `json:"full_name"`
	IsActive    Optional[bool]   `json:"is_active"`
	IsSuperuser Optional[bool]   `json:"is_superuser"`
}
