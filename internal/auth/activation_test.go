package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/accounts/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "activation-secret-for-tests-0123456789"

func newTestAccount() *models.Account {
	return &models.Account{
		ID:                uuid.NewString(),
		Email:             "alice@example.com",
		Username:          "alice",
		PasswordHash:      "$2a$04$abcdefghijklmnopqrstuv",
		PasswordChangedAt: time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC),
	}
}

func newFixedCodec(now time.Time) *ActivationTokenCodec {
	c := NewActivationTokenCodec(testSecret, 72*time.Hour)
	c.now = func() time.Time { return now }
	return c
}

func TestActivationTokenCodec_RoundTrip(t *testing.T) {
	account := newTestAccount()
	codec := newFixedCodec(time.Now())

	token, err := codec.Mint(account)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.True(t, codec.Verify(account, token))
}

func TestActivationTokenCodec_DeterministicForSameInputs(t *testing.T) {
	account := newTestAccount()
	codec := newFixedCodec(time.Unix(1_700_000_000, 0))

	a, err := codec.Mint(account)
	require.NoError(t, err)
	b, err := codec.Mint(account)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestActivationTokenCodec_RejectsWhenFingerprintChanges(t *testing.T) {
	now := time.Now()
	loginAt := now.Add(time.Minute)

	tests := []struct {
		name   string
		mutate func(a *models.Account)
	}{
		{"activated", func(a *models.Account) { a.Active = true }},
		{"password rehashed", func(a *models.Account) { a.PasswordHash = "$2a$04$zzzzzzzzzzzzzzzzzzzzzz" }},
		{"password changed at", func(a *models.Account) { a.PasswordChangedAt = a.PasswordChangedAt.Add(time.Microsecond) }},
		{"logged in", func(a *models.Account) { a.LastLoginAt = &loginAt }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := newTestAccount()
			codec := newFixedCodec(now)

			token, err := codec.Mint(account)
			require.NoError(t, err)

			tt.mutate(account)
			assert.False(t, codec.Verify(account, token))
		})
	}
}

func TestActivationTokenCodec_RejectsOtherAccount(t *testing.T) {
	codec := newFixedCodec(time.Now())
	alice := newTestAccount()
	bob := newTestAccount()
	bob.PasswordHash = alice.PasswordHash
	bob.PasswordChangedAt = alice.PasswordChangedAt

	token, err := codec.Mint(alice)
	require.NoError(t, err)

	assert.False(t, codec.Verify(bob, token))
}

func TestActivationTokenCodec_RejectsOtherSecret(t *testing.T) {
	account := newTestAccount()
	now := time.Now()

	token, err := newFixedCodec(now).Mint(account)
	require.NoError(t, err)

	other := NewActivationTokenCodec("a-completely-different-secret-value", 72*time.Hour)
	other.now = func() time.Time { return now }
	assert.False(t, other.Verify(account, token))
}

func TestActivationTokenCodec_MaxAge(t *testing.T) {
	account := newTestAccount()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := newFixedCodec(issued).Mint(account)
	require.NoError(t, err)

	assert.True(t, newFixedCodec(issued.Add(72*time.Hour)).Verify(account, token))
	assert.False(t, newFixedCodec(issued.Add(72*time.Hour+time.Second)).Verify(account, token))
}

func TestActivationTokenCodec_RejectsFutureIssuedAt(t *testing.T) {
	account := newTestAccount()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := newFixedCodec(issued).Mint(account)
	require.NoError(t, err)

	assert.False(t, newFixedCodec(issued.Add(-time.Hour)).Verify(account, token))
}

func TestActivationTokenCodec_RejectsGarbage(t *testing.T) {
	account := newTestAccount()
	codec := newFixedCodec(time.Now())

	token, err := codec.Mint(account)
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	if strings.HasSuffix(token, "xx") {
		tampered = token[:len(token)-2] + "yy"
	}

	for _, tok := range []string{"", "not-a-token", "a.b.c", tampered} {
		assert.False(t, codec.Verify(account, tok), tok)
	}
	assert.False(t, codec.Verify(nil, token))
}

func TestActivationTokenCodec_MintRequiresID(t *testing.T) {
	codec := newFixedCodec(time.Now())

	_, err := codec.Mint(&models.Account{})
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestIdentity_RoundTrip(t *testing.T) {
	id := uuid.NewString()

	encoded := EncodeIdentity(id)
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "/")

	decoded, err := DecodeIdentity(encoded)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}

func TestDecodeIdentity_Invalid(t *testing.T) {
	tests := []string{
		"",
		"!!!not-base64!!!",
		EncodeIdentity("42"),
		EncodeIdentity("not-a-uuid-at-all"),
	}

	for _, in := range tests {
		_, err := DecodeIdentity(in)
		assert.ErrorIs(t, err, ErrInvalidIdentity, in)
	}
}
