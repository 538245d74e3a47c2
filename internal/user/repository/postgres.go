package repository

import (
	"context"
	"database/sql"
	"errors"

	"passkeyd/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, handle, display_name, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByHandle returns the user with the given handle, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHandle(ctx context.Context, handle string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, handle, display_name, created_at FROM users WHERE handle = $1`, handle)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, handle, display_name, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Handle, u.DisplayName, u.CreatedAt)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Handle, &u.DisplayName, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
