package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/BradenHooton/accounts/internal/database"
	"github.com/BradenHooton/accounts/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const accountColumns = `id, email, username, password_hash, active, password_changed_at, last_login_at, created_at, updated_at`

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account

	err := scanner.Scan(
		&account.ID, &account.Email, &account.Username, &account.PasswordHash,
		&account.Active, &account.PasswordChangedAt, &account.LastLoginAt,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &account, nil
}

// Create inserts an unverified account. Timestamps are assigned by the
// database so the returned row matches what later reads will see.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (id, email, username, password_hash, active)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING ` + accountColumns

	created, err := scanAccountRow(r.pool.QueryRow(ctx, query,
		uuid.New().String(),
		strings.ToLower(strings.TrimSpace(account.Email)),
		account.Username,
		account.PasswordHash,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return created, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively against the lower(email) index.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`

	return scanAccountRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	return scanAccountRow(r.pool.QueryRow(ctx, query, username))
}

// MarkActive flips the active flag in a single statement. It is a no-op
// for an account that is already active.
func (r *AccountRepository) MarkActive(ctx context.Context, id string) (*models.Account, error) {
	query := `
		UPDATE accounts SET active = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	account, err := scanAccountRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to activate account: %w", err)
	}
	return account, nil
}

const updatePasswordQuery = `
	UPDATE accounts
	SET password_hash = $2, password_changed_at = NOW(), updated_at = NOW()
	WHERE id = $1
`

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

func setPassword(ctx context.Context, db execer, id, passwordHash string) error {
	tag, err := db.Exec(ctx, updatePasswordQuery, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new credential hash and bumps password_changed_at.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return setPassword(ctx, r.pool, id, passwordHash)
}

func (r *AccountRepository) TouchLastLogin(ctx context.Context, id string) error {
	query := `UPDATE accounts SET last_login_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
