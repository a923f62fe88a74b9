package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, high_score, role, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.HighScore,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user record
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, high_score, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.HighScore,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrUserExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return user, nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return user, nil
}

// FindUserByUsername retrieves a user by exact username match
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	return user, nil
}

// UpdateUsername changes a user's username and returns the updated record
func (r *Repository) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*domain.User, error) {
	query := `
		UPDATE users SET username = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, username, time.Now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("updating username: %w", err)
	}
	return user, nil
}

// UpdateHighScoreIfGreater raises the cached high score to the given
// value only if it is greater than the current one. The predicate runs
// inside the statement so concurrent submissions cannot clobber a
// higher score with a lower one.
func (r *Repository) UpdateHighScoreIfGreater(ctx context.Context, id uuid.UUID, score int64) (bool, error) {
	query := `
		UPDATE users SET high_score = $2, updated_at = $3
		WHERE id = $1 AND high_score < $2
	`
	tag, err := r.pool.Exec(ctx, query, id, score, time.Now())
	if err != nil {
		return false, fmt.Errorf("updating high score: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
