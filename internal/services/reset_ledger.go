package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/BradenHooton/accounts/internal/models"
	"github.com/google/uuid"
)

// DefaultResetTokenTTL applies when no positive TTL is configured.
const DefaultResetTokenTTL = time.Hour

// ResetTokenRepository persists reset tokens keyed by the hash of their value.
type ResetTokenRepository interface {
	Insert(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	InsertReplacing(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	ConsumeAndSetPassword(ctx context.Context, tokenHash, passwordHash string) (*models.PasswordResetToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// IssuedResetToken pairs the stored record with the only copy of the plain
// token value, which goes into the emailed link.
type IssuedResetToken struct {
	Value  string
	Record *models.PasswordResetToken
}

// ResetTokenLedger issues, looks up and consumes single-use reset tokens.
type ResetTokenLedger struct {
	repo            ResetTokenRepository
	ttl             time.Duration
	invalidatePrior bool
	now             func() time.Time
}

// NewResetTokenLedger creates a ledger. When invalidatePrior is set, issuing
// a token revokes the account's other outstanding tokens.
func NewResetTokenLedger(repo ResetTokenRepository, ttl time.Duration, invalidatePrior bool) *ResetTokenLedger {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenLedger{
		repo:            repo,
		ttl:             ttl,
		invalidatePrior: invalidatePrior,
		now:             time.Now,
	}
}

// HashResetToken returns the storage key for a token value.
func HashResetToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// TTL is the lifetime given to tokens issued without an explicit one.
func (l *ResetTokenLedger) TTL() time.Duration {
	return l.ttl
}

// Issue persists a fresh token for account expiring ttl from now. A
// non-positive ttl falls back to the ledger default.
func (l *ResetTokenLedger) Issue(ctx context.Context, account *models.Account, ttl time.Duration) (*IssuedResetToken, error) {
	if ttl <= 0 {
		ttl = l.ttl
	}

	value, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate reset token: %w", err)
	}

	insert := l.repo.Insert
	if l.invalidatePrior {
		insert = l.repo.InsertReplacing
	}

	record, err := insert(ctx, account.ID, HashResetToken(value.String()), l.now().Add(ttl))
	if err != nil {
		return nil, err
	}

	return &IssuedResetToken{Value: value.String(), Record: record}, nil
}

// Lookup finds the record for a token value. Unknown and malformed values
// both yield models.ErrNotFound; malformed ones never reach the store.
func (l *ResetTokenLedger) Lookup(ctx context.Context, value string) (*models.PasswordResetToken, error) {
	if _, err := uuid.Parse(value); err != nil {
		return nil, models.ErrNotFound
	}

	return l.repo.GetByHash(ctx, HashResetToken(value))
}

func (l *ResetTokenLedger) IsExpired(record *models.PasswordResetToken) bool {
	return record.IsExpired(l.now())
}

// Redeem deletes the record if it is still live and sets the account's
// password hash in the same commit. A record that was already redeemed, or
// expired in the meantime, yields models.ErrNotFound. When the credential
// update fails the record stays live.
func (l *ResetTokenLedger) Redeem(ctx context.Context, record *models.PasswordResetToken, passwordHash string) error {
	_, err := l.repo.ConsumeAndSetPassword(ctx, record.TokenHash, passwordHash)
	return err
}

// PurgeExpired garbage-collects expired records.
func (l *ResetTokenLedger) PurgeExpired(ctx context.Context) (int64, error) {
	return l.repo.DeleteExpired(ctx)
}
