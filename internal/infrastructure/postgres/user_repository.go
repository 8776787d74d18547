package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
)

const selectUser = `
	SELECT u.id::text, u.email, u.hashed_password, u.full_name, u.is_active, u.is_superuser, u.avatar_path,
	       ARRAY(SELECT f.followee_id::text FROM user_follows f WHERE f.follower_id = u.id ORDER BY f.followee_id),
	       u.created_at, u.updated_at
	FROM users u`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Get returns the single user matching every non-empty filter field, or (nil, nil).
func (r *UserRepository) Get(ctx context.Context, f repository.UserFilter) (*entity.User, error) {
	var (
		conds []string
		args  []any
	)
	if f.ID != "" {
		args = append(args, f.ID)
		conds = append(conds, "u.id = $"+strconv.Itoa(len(args)))
	}
	if f.Email != "" {
		args = append(args, f.Email)
		conds = append(conds, "lower(u.email) = lower($"+strconv.Itoa(len(args))+")")
	}
	if len(conds) == 0 {
		return nil, apperror.InvalidArgument("USER_FILTER_EMPTY", "user filter needs at least one field")
	}

	u := &entity.User{}
	row := r.db.QueryRow(ctx, selectUser+"\n\tWHERE "+strings.Join(conds, " AND "), args...)
	if err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.IsActive, &u.IsSuperuser,
		&u.AvatarPath, &u.Following, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isInvalidText(err) {
			// malformed uuid: nothing can match
			return nil, nil
		}
		return nil, oops.With("operation", "get user").With("id", f.ID).Wrap(err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := r.Get(ctx, repository.UserFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("USER_NOT_FOUND", "id", id)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := r.Get(ctx, repository.UserFilter{Email: email})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("USER_NOT_FOUND", "email", email)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, full_name, is_active, is_superuser, avatar_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at, updated_at
	`, u.Email, u.HashedPassword, u.FullName, u.IsActive, u.IsSuperuser, u.AvatarPath)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperror.InvalidArgument("USER_EMAIL_TAKEN", "email already registered", "email", u.Email)
		}
		return oops.With("operation", "insert user").With("email", u.Email).Wrap(err)
	}
	u.Following = []string{}
	return nil
}

// Update writes the profile columns of u and refreshes UpdatedAt. An empty
// HashedPassword keeps the stored hash. Avatar and follow edges are not touched.
func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET email = $1, hashed_password = COALESCE(NULLIF($2, ''), hashed_password), full_name = $3,
		    is_active = $4, is_superuser = $5, updated_at = now()
		WHERE id = $6
		RETURNING updated_at
	`, u.Email, u.HashedPassword, u.FullName, u.IsActive, u.IsSuperuser, u.ID)

	if err := row.Scan(&u.UpdatedAt); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return apperror.NotFound("USER_NOT_FOUND", "id", u.ID)
		case isUniqueViolation(err):
			return apperror.InvalidArgument("USER_EMAIL_TAKEN", "email already registered", "email", u.Email)
		}
		return oops.With("operation", "update user").With("id", u.ID).Wrap(err)
	}
	return nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id, avatarPath string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET avatar_path = $1, updated_at = now() WHERE id = $2`, avatarPath, id)
	if err != nil {
		if isInvalidText(err) {
			return apperror.NotFound("USER_NOT_FOUND", "id", id)
		}
		return oops.With("operation", "update avatar").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("USER_NOT_FOUND", "id", id)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isInvalidText(err) {
			return apperror.NotFound("USER_NOT_FOUND", "id", id)
		}
		return oops.With("operation", "delete user").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("USER_NOT_FOUND", "id", id)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool { return pgCode(err) == pgerrcode.UniqueViolation }

func isInvalidText(err error) bool { return pgCode(err) == pgerrcode.InvalidTextRepresentation }

var _ repository.UserRepository = (*UserRepository)(nil)
