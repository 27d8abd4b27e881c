package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/pkg/database"
	apperrors "github.com/utafrali/shopease/pkg/errors"
)

const (
	userColumns = `id, name, email, password_hash, role, created_at, updated_at`

	insertUserQuery = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getUserByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	getUserByIDQuery    = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	countUsersByRole    = `SELECT COUNT(*) FROM users WHERE role = $1`
)

// UserRepository implements repository.UserRepository on PostgreSQL.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a PostgreSQL-backed account store.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "user.create", insertUserQuery)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, insertUserQuery, u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, "user.get_by_email", getUserByEmailQuery)
	defer func() { end(err) }()
	return r.getOne(ctx, getUserByEmailQuery, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, "user.get_by_id", getUserByIDQuery)
	defer func() { end(err) }()
	return r.getOne(ctx, getUserByIDQuery, id)
}

func (r *UserRepository) getOne(ctx context.Context, query, key string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, key).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", key)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role string) (n int, err error) {
	ctx, end := database.TraceQuery(ctx, "user.count_by_role", countUsersByRole)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, countUsersByRole, role).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
