package store

import (
	"context"
)

// CreateUser inserts a new user with a bcrypt password hash.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO users (email, password_hash)
VALUES ($1,$2)
`, email, passwordHash)
	return err
}

// GetUserByEmail returns the user id and password hash for a login attempt.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := s.DB.QueryRowContext(ctx, `
SELECT id, password_hash FROM users WHERE email=$1
`, email).Scan(&id, &hash)
	if err != nil {
		return "", "", err
	}
	return id, hash, nil
}
