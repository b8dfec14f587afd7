package models

import "time"

// Profile holds the public, non-authentication fields of an account.
type Profile struct {
	AccountID string
	Username  string
	Bio       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
