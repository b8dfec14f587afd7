package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_MatchesSentinels(t *testing.T) {
	verr := NewValidationError(FieldError{Field: "email", Message: "already registered"})
	verr.Cause = ErrConflict

	assert.True(t, errors.Is(verr, ErrValidation))
	assert.True(t, errors.Is(verr, ErrConflict))
	assert.False(t, errors.Is(verr, ErrNotFound))
}

func TestValidationError_WithoutCause(t *testing.T) {
	verr := NewValidationError()
	assert.False(t, verr.HasErrors())

	verr.Add("password", "too short")
	verr.Add("username", "this field is required")

	assert.True(t, verr.HasErrors())
	assert.False(t, errors.Is(verr, ErrConflict))
	assert.Equal(t, "validation failed: password: too short; username: this field is required", verr.Error())
}

func TestPasswordResetToken_IsExpired(t *testing.T) {
	tok := &PasswordResetToken{}
	now := tok.ExpiresAt

	assert.False(t, tok.IsExpired(now), "expiry instant itself is still valid")
	assert.True(t, tok.IsExpired(now.Add(1)))
}
