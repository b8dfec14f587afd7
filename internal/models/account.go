package models

import (
	"time"
)

// Account is a registered user identity. Active starts false and is set once by
// activation; it never reverts.
type Account struct {
	ID                string
	Email             string
	Username          string
	PasswordHash      string
	Active            bool
	PasswordChangedAt time.Time  // Bumped on every credential change
	LastLoginAt       *time.Time // NULL until the first successful login
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsUnverified reports whether the account still awaits email activation.
func (a *Account) IsUnverified() bool {
	return !a.Active
}
