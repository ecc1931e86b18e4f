package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Token is a stored OAuth token row for one (user, platform) pair.
// Rows are insert-only; the most recently created row is the one the
// pipeline consults, so reconnecting simply shadows older tokens.
type Token struct {
	ID           int64
	UserID       string
	Platform     string
	AccessToken  string
	RefreshToken string
	InstanceURL  string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Expired reports whether the token is past its wall-clock expiry.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// SaveToken inserts a new token row for the platform.
func (s *Store) SaveToken(ctx context.Context, t Token) (int64, error) {
	if strings.TrimSpace(t.AccessToken) == "" {
		return 0, fmt.Errorf("access token required")
	}
	if t.Platform != "salesforce" && t.Platform != "hubspot" {
		return 0, fmt.Errorf("unsupported platform: %s", t.Platform)
	}
	var id int64
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO oauth_tokens (user_id, platform, access_token, refresh_token, instance_url, expires_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, t.UserID, t.Platform, t.AccessToken, nullableString(t.RefreshToken), nullableString(t.InstanceURL), t.ExpiresAt.UTC()).Scan(&id)
	return id, err
}

// LatestToken returns the most recently created token for the user and
// platform, expired or not; the caller decides what expiry means.
func (s *Store) LatestToken(ctx context.Context, userID, platform string) (Token, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, platform, access_token, refresh_token, instance_url, expires_at, created_at
FROM oauth_tokens
WHERE user_id=$1 AND platform=$2
ORDER BY created_at DESC
LIMIT 1
`, userID, platform)
	var t Token
	var uid, refresh, instance sql.NullString
	if err := row.Scan(&t.ID, &uid, &t.Platform, &t.AccessToken, &refresh, &instance, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Token{}, false, nil
		}
		return Token{}, false, err
	}
	t.UserID = uid.String
	t.RefreshToken = refresh.String
	t.InstanceURL = instance.String
	return t, true, nil
}

// DeleteTokens removes all token rows for the platform (disconnect).
func (s *Store) DeleteTokens(ctx context.Context, userID, platform string) error {
	_, err := s.DB.ExecContext(ctx, `
DELETE FROM oauth_tokens WHERE user_id=$1 AND platform=$2
`, userID, platform)
	return err
}
