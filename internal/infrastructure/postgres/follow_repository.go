package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/repository"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
)

const (
	insertFollow  = `INSERT INTO user_follows (follower_id, followee_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	deleteFollow  = `DELETE FROM user_follows WHERE follower_id = $1 AND followee_id = $2`
	touchFollower = `
		UPDATE users SET updated_at = now() WHERE id = $1
		RETURNING updated_at,
		          ARRAY(SELECT followee_id::text FROM user_follows WHERE follower_id = $1 ORDER BY followee_id)`
)

// FollowRepository stores follow edges in the user_follows join table.
// Each mutation is a set-union or set-difference on the table, never a rewrite of the whole set.
type FollowRepository struct {
	db DB
}

func NewFollowRepository(db DB) *FollowRepository {
	return &FollowRepository{db: db}
}

func (r *FollowRepository) Follow(ctx context.Context, followerID, followeeID string) (entity.FollowState, error) {
	return r.mutate(ctx, "follow", insertFollow, followerID, followeeID)
}

func (r *FollowRepository) Unfollow(ctx context.Context, followerID, followeeID string) (entity.FollowState, error) {
	return r.mutate(ctx, "unfollow", deleteFollow, followerID, followeeID)
}

func (r *FollowRepository) mutate(ctx context.Context, op, stmt, followerID, followeeID string) (entity.FollowState, error) {
	st, err := r.inTx(ctx, stmt, followerID, followeeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgerrcode.ForeignKeyViolation {
			return entity.FollowState{}, apperror.NotFound("USER_NOT_FOUND", "follower_id", followerID, "followee_id", followeeID)
		}
		return entity.FollowState{}, oops.
			With("operation", op).
			With("follower_id", followerID).
			With("followee_id", followeeID).
			Wrap(err)
	}
	return st, nil
}

// inTx applies stmt and touches the follower row in one read-committed transaction.
func (r *FollowRepository) inTx(ctx context.Context, stmt, followerID, followeeID string) (entity.FollowState, error) {
	var st entity.FollowState
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return st, err
	}
	if _, err := tx.Exec(ctx, stmt, followerID, followeeID); err != nil {
		_ = tx.Rollback(ctx)
		return st, err
	}
	if err := tx.QueryRow(ctx, touchFollower, followerID).Scan(&st.UpdatedAt, &st.Following); err != nil {
		_ = tx.Rollback(ctx)
		return st, err
	}
	if err := tx.Commit(ctx); err != nil {
		return st, err
	}
	return st, nil
}

func (r *FollowRepository) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return r.list(ctx, "list following", `SELECT followee_id::text FROM user_follows WHERE follower_id = $1 ORDER BY followee_id`, userID)
}

func (r *FollowRepository) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	return r.list(ctx, "list followers", `SELECT follower_id::text FROM user_follows WHERE followee_id = $1 ORDER BY follower_id`, userID)
}

func (r *FollowRepository) list(ctx context.Context, op, query, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, oops.With("operation", op).With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, oops.With("operation", op).With("user_id", userID).Wrap(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", op).With("user_id", userID).Wrap(err)
	}
	return ids, nil
}

var _ repository.FollowRepository = (*FollowRepository)(nil)
