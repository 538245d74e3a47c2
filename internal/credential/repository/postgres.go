package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"passkeyd/internal/credential/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a credential repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByCredentialID returns the credential for the given credential ID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByCredentialID(ctx context.Context, credentialID []byte) (*domain.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT credential_id, user_id, public_key, attestation_type, aaguid, transports, sign_count, created_at
		 FROM credentials WHERE credential_id = $1`, credentialID)
	c, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListByUser returns the user's credentials ordered by registration time, oldest first.
// Returns an empty slice when the user has none.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT credential_id, user_id, public_key, attestation_type, aaguid, transports, sign_count, created_at
		 FROM credentials WHERE user_id = $1 ORDER BY created_at ASC, credential_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Credential{}
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create persists the credential to the database.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (credential_id, user_id, public_key, attestation_type, aaguid, transports, sign_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.PublicKey, c.AttestationType, c.AAGUID,
		strings.Join(c.Transports, ","), int64(c.SignCount), c.CreatedAt)
	return err
}

// UpdateSignCount compare-and-sets the stored counter: the update applies only
// when signCount is strictly greater than the stored value. Returns
// ErrCounterRegression when the credential exists but the counter did not
// advance, and sql.ErrNoRows when the credential does not exist.
func (r *PostgresRepository) UpdateSignCount(ctx context.Context, credentialID []byte, signCount uint32) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET sign_count = $2 WHERE credential_id = $1 AND sign_count < $2`,
		credentialID, int64(signCount))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE credential_id = $1)`, credentialID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrCounterRegression
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*domain.Credential, error) {
	var (
		c          domain.Credential
		transports string
		signCount  int64
		aaguid     []byte
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.PublicKey, &c.AttestationType, &aaguid, &transports, &signCount, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.AAGUID = aaguid
	c.SignCount = uint32(signCount)
	if transports != "" {
		c.Transports = strings.Split(transports, ",")
	}
	return &c, nil
}
