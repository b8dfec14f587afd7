package models

import (
	"time"
)

// PasswordResetToken is a stored, single-use password recovery record.
// Only the SHA-256 hash of the token value is persisted.
type PasswordResetToken struct {
	TokenHash string    `json:"-"`
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether now is past the token's expiry.
func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
