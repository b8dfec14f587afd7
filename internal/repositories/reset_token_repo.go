package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/accounts/internal/database"
	"github.com/BradenHooton/accounts/internal/models"
	"github.com/jackc/pgx/v5"
)

// ResetTokenRepository persists password reset tokens by hash.
type ResetTokenRepository struct {
	db *database.DB
}

func NewResetTokenRepository(db *database.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func scanResetTokenRow(row rowScanner) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken

	err := row.Scan(&token.TokenHash, &token.AccountID, &token.CreatedAt, &token.ExpiresAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &token, nil
}

const insertResetToken = `
	INSERT INTO password_reset_tokens (token_hash, account_id, expires_at)
	VALUES ($1, $2, $3)
	RETURNING token_hash, account_id, created_at, expires_at
`

// Insert stores a new token, leaving any other live tokens of the account intact.
func (r *ResetTokenRepository) Insert(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	token, err := scanResetTokenRow(r.db.Pool.QueryRow(ctx, insertResetToken, tokenHash, accountID, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create reset token: %w", err)
	}
	return token, nil
}

// InsertReplacing removes the account's outstanding tokens and stores the
// new one in the same transaction.
func (r *ResetTokenRepository) InsertReplacing(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	var token *models.PasswordResetToken

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE account_id = $1`, accountID); err != nil {
			return fmt.Errorf("failed to revoke prior reset tokens: %w", err)
		}

		var err error
		token, err = scanResetTokenRow(tx.QueryRow(ctx, insertResetToken, tokenHash, accountID, expiresAt))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reset token: %w", err)
	}
	return token, nil
}

func (r *ResetTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT token_hash, account_id, created_at, expires_at
		FROM password_reset_tokens WHERE token_hash = $1
	`
	return scanResetTokenRow(r.db.Pool.QueryRow(ctx, query, tokenHash))
}

const deleteLiveResetToken = `
	DELETE FROM password_reset_tokens
	WHERE token_hash = $1 AND expires_at > NOW()
	RETURNING token_hash, account_id, created_at, expires_at
`

// ConsumeAndSetPassword deletes the token only while it is unexpired and
// stores passwordHash on its account in the same transaction. Of two
// concurrent callers at most one succeeds; the other sees ErrNotFound. If the
// credential update fails the token is kept.
func (r *ResetTokenRepository) ConsumeAndSetPassword(ctx context.Context, tokenHash, passwordHash string) (*models.PasswordResetToken, error) {
	var token *models.PasswordResetToken

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		token, err = scanResetTokenRow(tx.QueryRow(ctx, deleteLiveResetToken, tokenHash))
		if err != nil {
			return err
		}
		return setPassword(ctx, tx, token.AccountID, passwordHash)
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// DeleteExpired removes every token whose expiry has passed.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountForAccount reports how many tokens the account currently holds.
func (r *ResetTokenRepository) CountForAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM password_reset_tokens WHERE account_id = $1`, accountID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reset tokens: %w", err)
	}
	return n, nil
}
