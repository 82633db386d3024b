// Package auth handles password authentication and JWT issuance.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// credentials is the login record for one user.
type credentials struct {
	UserID       string
	PasswordHash string
	IsActive     bool
}

// errNoCredentials is returned when no user has the given username.
var errNoCredentials = errors.New("credentials not found")

// Repository reads password hashes. Profile data lives in the user package.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new auth Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetCredentials returns the password hash and status for username.
func (r *Repository) GetCredentials(ctx context.Context, username string) (*credentials, error) {
	c := &credentials{}
	err := r.db.QueryRow(ctx,
		`SELECT id, password_hash, is_active FROM users WHERE username = $1`,
		username,
	).Scan(&c.UserID, &c.PasswordHash, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get credentials: %w", err)
	}
	return c, nil
}
