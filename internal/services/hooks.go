package services

import (
	"context"

	"github.com/BradenHooton/accounts/internal/models"
)

// PostCreateHook runs synchronously after Register stores a new account.
// A hook error is logged; it does not undo the registration.
type PostCreateHook interface {
	Name() string
	AfterCreate(ctx context.Context, account *models.Account) error
}

// ProfileRepository stores the one-to-one profile of an account.
type ProfileRepository interface {
	Create(ctx context.Context, accountID string) error
	GetByUsername(ctx context.Context, username string) (*models.Profile, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Profile, error)
	UpsertBio(ctx context.Context, accountID, bio string) (*models.Profile, error)
}

// ProfileHook gives every new account an empty profile.
type ProfileHook struct {
	profiles ProfileRepository
}

func NewProfileHook(profiles ProfileRepository) *ProfileHook {
	return &ProfileHook{profiles: profiles}
}

func (h *ProfileHook) Name() string { return "profile" }

func (h *ProfileHook) AfterCreate(ctx context.Context, account *models.Account) error {
	return h.profiles.Create(ctx, account.ID)
}
