package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/accounts/internal/database"
	"github.com/BradenHooton/accounts/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{pool: db.Pool}
}

// Profiles are read through the account so an account whose profile row is
// missing still renders, with an empty bio.
const profileSelect = `
	SELECT a.id, a.username, COALESCE(p.bio, ''), COALESCE(p.created_at, a.created_at), COALESCE(p.updated_at, a.updated_at)
	FROM accounts a
	LEFT JOIN profiles p ON p.account_id = a.id
`

func scanProfileRow(row rowScanner) (*models.Profile, error) {
	var profile models.Profile

	err := row.Scan(&profile.AccountID, &profile.Username, &profile.Bio, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &profile, nil
}

// Create adds an empty profile for the account if it has none.
func (r *ProfileRepository) Create(ctx context.Context, accountID string) error {
	query := `INSERT INTO profiles (account_id) VALUES ($1) ON CONFLICT (account_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("failed to create profile: %w", database.MapPostgresError(err))
	}
	return nil
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return scanProfileRow(r.pool.QueryRow(ctx, profileSelect+` WHERE a.username = $1`, username))
}

func (r *ProfileRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Profile, error) {
	return scanProfileRow(r.pool.QueryRow(ctx, profileSelect+` WHERE a.id = $1`, accountID))
}

// UpsertBio sets the bio, creating the profile row if needed.
func (r *ProfileRepository) UpsertBio(ctx context.Context, accountID, bio string) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (account_id, bio) VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET bio = EXCLUDED.bio, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, accountID, bio); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", database.MapPostgresError(err))
	}
	return r.GetByAccountID(ctx, accountID)
}
