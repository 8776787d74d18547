package application

import (
	"context"
	"io"
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

// memStore backs both repository fakes so follow edges and users stay consistent.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*entity.User
	edges   map[[2]string]bool
	calls   int
	failGet error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*entity.User{}, edges: map[[2]string]bool{}}
}

func (m *memStore) following(id string) []string {
	out := []string{}
	for e := range m.edges {
		if e[0] == id {
			out = append(out, e[1])
		}
	}
	slices.Sort(out)
	return out
}

func (m *memStore) snapshot(u *entity.User) *entity.User {
	cp := *u
	cp.Following = m.following(u.ID)
	return &cp
}

type memUsers struct{ *memStore }

func (r memUsers) Get(_ context.Context, f repo.UserFilter) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failGet != nil {
		return nil, r.failGet
	}
	if f.ID == "" && f.Email == "" {
		return nil, apperror.InvalidArgument("USER_FILTER_EMPTY", "empty filter")
	}
	for _, u := range r.users {
		if f.ID != "" && u.ID != f.ID {
			continue
		}
		if f.Email != "" && !strings.EqualFold(u.Email, f.Email) {
			continue
		}
		return r.snapshot(u), nil
	}
	return nil, nil
}

func (r memUsers) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := r.Get(ctx, repo.UserFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("USER_NOT_FOUND", "user_id", id)
	}
	return u, nil
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := r.Get(ctx, repo.UserFilter{Email: email})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("USER_NOT_FOUND", "email", email)
	}
	return u, nil
}

func (r memUsers) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, x := range r.users {
		if strings.EqualFold(x.Email, u.Email) {
			return apperror.InvalidArgument("USER_EMAIL_TAKEN", "email already registered")
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	u.Following = []string{}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r memUsers) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	cur, ok := r.users[u.ID]
	if !ok {
		return apperror.NotFound("USER_NOT_FOUND", "user_id", u.ID)
	}
	u.UpdatedAt = time.Now()
	cp := *u
	if cp.HashedPassword == "" {
		cp.HashedPassword = cur.HashedPassword
	}
	cp.AvatarPath = cur.AvatarPath
	r.users[u.ID] = &cp
	return nil
}

func (r memUsers) UpdateAvatar(_ context.Context, id, avatarPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	cur, ok := r.users[id]
	if !ok {
		return apperror.NotFound("USER_NOT_FOUND", "user_id", id)
	}
	cur.AvatarPath = avatarPath
	cur.UpdatedAt = time.Now()
	return nil
}

func (r memUsers) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if _, ok := r.users[id]; !ok {
		return apperror.NotFound("USER_NOT_FOUND", "user_id", id)
	}
	delete(r.users, id)
	return nil
}

type memFollows struct{ *memStore }

func (r memFollows) mutate(follower, followee string, add bool) (entity.FollowState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	u, ok := r.users[follower]
	if !ok {
		return entity.FollowState{}, apperror.NotFound("USER_NOT_FOUND", "user_id", follower)
	}
	if _, ok := r.users[followee]; !ok {
		return entity.FollowState{}, apperror.NotFound("USER_NOT_FOUND", "user_id", followee)
	}
	if add {
		r.edges[[2]string{follower, followee}] = true
	} else {
		delete(r.edges, [2]string{follower, followee})
	}
	u.UpdatedAt = time.Now()
	return entity.FollowState{Following: r.following(follower), UpdatedAt: u.UpdatedAt}, nil
}

func (r memFollows) Follow(_ context.Context, follower, followee string) (entity.FollowState, error) {
	return r.mutate(follower, followee, true)
}

func (r memFollows) Unfollow(_ context.Context, follower, followee string) (entity.FollowState, error) {
	return r.mutate(follower, followee, false)
}

func (r memFollows) ListFollowing(_ context.Context, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.following(id), nil
}

func (r memFollows) ListFollowers(_ context.Context, id string) ([]string, error) {
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

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Transport() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakePublisher struct {
	jobs []any
	err  error
}

func (f *fakePublisher) PublishJSON(_ context.Context, body any) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, body)
	return nil
}

type fakeIndex struct {
	indexed []string
	deleted []string
	hits    []map[string]any
	size    int
}

func (f *fakeIndex) Index(_ context.Context, u *entity.User) error {
	f.indexed = append(f.indexed, u.ID)
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, size int) ([]map[string]any, error) {
	f.size = size
	return f.hits, nil
}

type memBackend struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memBackend) Save(_ context.Context, key, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.objects[key] = data
	b.types[key] = contentType
	return "mem://" + key, nil
}
