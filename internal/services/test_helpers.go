package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/accounts/internal/models"
	"github.com/BradenHooton/accounts/internal/notify"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	CreateFunc         func(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByIDFunc        func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.Account, error)
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.Account, error)
	MarkActiveFunc     func(ctx context.Context, id string) (*models.Account, error)
	TouchLastLoginFunc func(ctx context.Context, id string) error
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) MarkActive(ctx context.Context, id string) (*models.Account, error) {
	if m.MarkActiveFunc != nil {
		return m.MarkActiveFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) TouchLastLogin(ctx context.Context, id string) error {
	if m.TouchLastLoginFunc != nil {
		return m.TouchLastLoginFunc(ctx, id)
	}
	return nil
}

// MockProfileRepository implements ProfileRepository for testing
type MockProfileRepository struct {
	CreateFunc         func(ctx context.Context, accountID string) error
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.Profile, error)
	GetByAccountIDFunc func(ctx context.Context, accountID string) (*models.Profile, error)
	UpsertBioFunc      func(ctx context.Context, accountID, bio string) (*models.Profile, error)
}

func (m *MockProfileRepository) Create(ctx context.Context, accountID string) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, accountID)
	}
	return nil
}

func (m *MockProfileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockProfileRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Profile, error) {
	if m.GetByAccountIDFunc != nil {
		return m.GetByAccountIDFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockProfileRepository) UpsertBio(ctx context.Context, accountID, bio string) (*models.Profile, error) {
	if m.UpsertBioFunc != nil {
		return m.UpsertBioFunc(ctx, accountID, bio)
	}
	return &models.Profile{AccountID: accountID, Bio: bio}, nil
}

// MockSink records every message it is handed.
type MockSink struct {
	mu      sync.Mutex
	SendErr error
	Sent    []notify.Message
}

func (m *MockSink) Send(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// Last returns the most recent message, or the zero Message.
func (m *MockSink) Last() notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return notify.Message{}
	}
	return m.Sent[len(m.Sent)-1]
}

// Messages returns a copy of everything sent so far.
func (m *MockSink) Messages() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.Sent...)
}

// MemoryResetTokenRepository is an in-memory ResetTokenRepository with the
// same conditional-delete semantics as the Postgres one.
type MemoryResetTokenRepository struct {
	mu       sync.Mutex
	tokens   map[string]*models.PasswordResetToken
	Now      func() time.Time
	Accounts PasswordSetter
}

// PasswordSetter is the credential store a consumed token writes to.
type PasswordSetter interface {
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

func NewMemoryResetTokenRepository() *MemoryResetTokenRepository {
	return &MemoryResetTokenRepository{
		tokens: make(map[string]*models.PasswordResetToken),
		Now:    time.Now,
	}
}

func (r *MemoryResetTokenRepository) Insert(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[tokenHash]; exists {
		return nil, models.ErrConflict
	}
	token := &models.PasswordResetToken{
		TokenHash: tokenHash,
		AccountID: accountID,
		CreatedAt: r.Now(),
		ExpiresAt: expiresAt,
	}
	r.tokens[tokenHash] = token
	copied := *token
	return &copied, nil
}

func (r *MemoryResetTokenRepository) InsertReplacing(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	r.mu.Lock()
	for hash, token := range r.tokens {
		if token.AccountID == accountID {
			delete(r.tokens, hash)
		}
	}
	r.mu.Unlock()

	return r.Insert(ctx, accountID, tokenHash, expiresAt)
}

func (r *MemoryResetTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenHash]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *token
	return &copied, nil
}

// ConsumeAndSetPassword deletes a live token and sets the password through
// Accounts. A failed update leaves the token stored.
func (r *MemoryResetTokenRepository) ConsumeAndSetPassword(ctx context.Context, tokenHash, passwordHash string) (*models.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenHash]
	if !ok || !token.ExpiresAt.After(r.Now()) {
		return nil, models.ErrNotFound
	}
	if r.Accounts != nil {
		if err := r.Accounts.UpdatePassword(ctx, token.AccountID, passwordHash); err != nil {
			return nil, err
		}
	}
	delete(r.tokens, tokenHash)
	return token, nil
}

func (r *MemoryResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, token := range r.tokens {
		if !token.ExpiresAt.After(r.Now()) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored tokens for accountID.
func (r *MemoryResetTokenRepository) Count(accountID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, token := range r.tokens {
		if token.AccountID == accountID {
			n++
		}
	}
	return n
}

// MemoryAccountRepository is an in-memory AccountRepository enforcing
// case-insensitive email and exact username uniqueness.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	nextID   func() string
}

func NewMemoryAccountRepository(nextID func() string) *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*models.Account),
		nextID:   nextID,
	}
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if equalFoldEmail(existing.Email, account.Email) {
			return nil, &models.ConflictError{Field: "email"}
		}
		if existing.Username == account.Username {
			return nil, &models.ConflictError{Field: "username"}
		}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	created := *account
	created.ID = r.nextID()
	created.Email = normalizeEmail(account.Email)
	created.Active = false
	created.PasswordChangedAt = now
	created.CreatedAt = now
	created.UpdatedAt = now
	r.accounts[created.ID] = &created

	out := created
	return &out, nil
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *account
	return &out, nil
}

func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if equalFoldEmail(account.Email, email) {
			out := *account
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.Username == username {
			out := *account
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryAccountRepository) MarkActive(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	account.Active = true
	account.UpdatedAt = time.Now().UTC()
	out := *account
	return &out, nil
}

func (r *MemoryAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.PasswordChangedAt = time.Now().UTC().Truncate(time.Microsecond)
	return nil
}

func (r *MemoryAccountRepository) TouchLastLogin(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	now := time.Now().UTC()
	account.LastLoginAt = &now
	return nil
}

func equalFoldEmail(a, b string) bool {
	return normalizeEmail(a) == normalizeEmail(b)
}

// NewTestAccount builds an account fixture.
func NewTestAccount(id, email, username, passwordHash string, active bool) *models.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Account{
		ID:                id,
		Email:             email,
		Username:          username,
		PasswordHash:      passwordHash,
		Active:            active,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
