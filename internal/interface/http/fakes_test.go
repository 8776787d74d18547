package handlers_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	repo "github.com/oksasatya/go-ddd-user-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/mailer"
)

type memDB struct {
	mu    sync.Mutex
	users map[string]entity.User
	edges map[[2]string]bool
}

func newMemDB() *memDB {
	return &memDB{users: map[string]entity.User{}, edges: map[[2]string]bool{}}
}

func (m *memDB) followingLocked(id string) []string {
	out := []string{}
	for e := range m.edges {
		if e[0] == id {
			out = append(out, e[1])
		}
	}
	slices.Sort(out)
	return out
}

type userRepo struct{ *memDB }

func (r userRepo) Get(_ context.Context, f repo.UserFilter) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if (f.ID != "" && u.ID == f.ID) || (f.ID == "" && strings.EqualFold(u.Email, f.Email)) {
			u.Following = r.followingLocked(u.ID)
			return &u, nil
		}
	}
	return nil, nil
}

func (r userRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, _ := r.Get(ctx, repo.UserFilter{ID: id})
	if u == nil {
		return nil, apperror.NotFound("USER_NOT_FOUND", "user_id", id)
	}
	return u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, _ := r.Get(ctx, repo.UserFilter{Email: email})
	if u == nil {
		return nil, apperror.NotFound("USER_NOT_FOUND", "email", email)
	}
	return u, nil
}

func (r userRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.users {
		if strings.EqualFold(x.Email, u.Email) {
			return apperror.InvalidArgument("USER_EMAIL_TAKEN", "email already registered")
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	u.Following = []string{}
	r.users[u.ID] = *u
	return nil
}

func (r userRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[u.ID]
	if !ok {
		return apperror.NotFound("USER_NOT_FOUND", "user_id", u.ID)
	}
	u.UpdatedAt = time.Now()
	next := *u
	if next.HashedPassword == "" {
		next.HashedPassword = cur.HashedPassword
	}
	next.AvatarPath = cur.AvatarPath
	r.users[u.ID] = next
	return nil
}

func (r userRepo) UpdateAvatar(_ context.Context, id, avatarPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.users[id]
	if !ok {
		return apperror.NotFound("USER_NOT_FOUND", "user_id", id)
	}
	cur.AvatarPath = avatarPath
	cur.UpdatedAt = time.Now()
	r.users[id] = cur
	return nil
}

func (r userRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return apperror.NotFound("USER_NOT_FOUND", "user_id", id)
	}
	delete(r.users, id)
	return nil
}

type followRepo struct{ *memDB }

func (r followRepo) set(follower, followee string, on bool) (entity.FollowState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range []string{follower, followee} {
		if _, ok := r.users[id]; !ok {
			return entity.FollowState{}, apperror.NotFound("USER_NOT_FOUND", "user_id", id)
		}
	}
	if on {
		r.edges[[2]string{follower, followee}] = true
	} else {
		delete(r.edges, [2]string{follower, followee})
	}
	return entity.FollowState{Following: r.followingLocked(follower), UpdatedAt: time.Now()}, nil
}

func (r followRepo) Follow(_ context.Context, a, b string) (entity.FollowState, error) {
	return r.set(a, b, true)
}

func (r followRepo) Unfollow(_ context.Context, a, b string) (entity.FollowState, error) {
	return r.set(a, b, false)
}

func (r followRepo) ListFollowing(_ context.Context, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.followingLocked(id), nil
}

func (r followRepo) ListFollowers(_ context.Context, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for e := range r.edges {
		if e[1] == id {
			out = append(out, e[0])
		}
	}
	slices.Sort(out)
	return out, nil
}

type captureSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *captureSender) Transport() string { return "capture" }

func (s *captureSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSender) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *captureSender) last() mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return mailer.Message{}
	}
	return s.sent[len(s.sent)-1]
}
