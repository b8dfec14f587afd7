package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/accounts/internal/auth"
	"github.com/BradenHooton/accounts/internal/models"
	"github.com/BradenHooton/accounts/internal/notify"
	pkgauth "github.com/BradenHooton/accounts/pkg/auth"
	"github.com/BradenHooton/accounts/pkg/logger"
)

// AccountRepository is the durable account store.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	MarkActive(ctx context.Context, id string) (*models.Account, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Username        string `json:"username" validate:"required,max=150"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type RegisterResult struct {
	Account *models.Account
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ConsumeResetRequest struct {
	Token           string `json:"-"`
	NewPassword     string `json:"new_password" validate:"required"`
	PasswordConfirm string `json:"new_password_confirm" validate:"required,eqfield=NewPassword"`
}

// ResendOutcome distinguishes a sent activation email from the informational
// "already active" result.
type ResendOutcome int

const (
	ResendSent ResendOutcome = iota + 1
	ResendAlreadyActive
)

// Acknowledgement is the single answer RequestPasswordReset ever gives.
type Acknowledgement struct {
	Message string `json:"message"`
}

var resetAcknowledgement = Acknowledgement{
	Message: "If an account exists for that email, a password reset link has been sent.",
}

type AccountServiceDeps struct {
	Accounts AccountRepository
	Profiles ProfileRepository
	Ledger   *ResetTokenLedger
	Codec    *auth.ActivationTokenCodec
	Sink     notify.Sink
	Hooks    []PostCreateHook
	Audit    *logger.AuditLogger
	Timing   *auth.TimingDelay
	Logger   *slog.Logger
	BaseURL  string
}

// AccountService drives the account lifecycle: registration, activation,
// login, and password recovery.
type AccountService struct {
	accounts AccountRepository
	profiles ProfileRepository
	ledger   *ResetTokenLedger
	codec    *auth.ActivationTokenCodec
	sink     notify.Sink
	hooks    []PostCreateHook
	audit    *logger.AuditLogger
	timing   *auth.TimingDelay
	logger   *slog.Logger
	baseURL  string
}

func NewAccountService(deps AccountServiceDeps) *AccountService {
	return &AccountService{
		accounts: deps.Accounts,
		profiles: deps.Profiles,
		ledger:   deps.Ledger,
		codec:    deps.Codec,
		sink:     deps.Sink,
		hooks:    deps.Hooks,
		audit:    deps.Audit,
		timing:   deps.Timing,
		logger:   deps.Logger,
		baseURL:  strings.TrimRight(deps.BaseURL, "/"),
	}
}

// ActivationLink builds the emailed activation URL.
func (s *AccountService) ActivationLink(account *models.Account, token string) string {
	return fmt.Sprintf("%s/accounts/activate/%s/%s", s.baseURL, auth.EncodeIdentity(account.ID), token)
}

// ResetLink builds the emailed password reset URL.
func (s *AccountService) ResetLink(token string) string {
	return fmt.Sprintf("%s/accounts/reset/%s", s.baseURL, token)
}

// Register creates an unverified account and emails its activation link.
// Bad input and duplicates come back as *models.ValidationError; a
// duplicate additionally matches models.ErrConflict.
func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.Email = normalizeEmail(req.Email)
	verr := validateStruct(req)

	email := req.Email
	username, err := normalizeUsername(req.Username)
	if err != nil && req.Username != "" {
		verr.Add("username", err.Error())
	}

	if req.Password != "" {
		if err := pkgauth.ValidatePassword(req.Password, emailLocalPart(email), username); err != nil {
			var perr *pkgauth.PasswordValidationError
			if errors.As(err, &perr) {
				for _, msg := range perr.Errors {
					verr.Add("password", "password "+msg)
				}
			} else {
				verr.Add("password", err.Error())
			}
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}

	if err := s.checkAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account, err := s.accounts.Create(ctx, &models.Account{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			return nil, duplicateError(conflict.Field, err)
		}
		s.logger.Error("failed to create account",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.runHooks(ctx, account)

	s.sendActivation(ctx, account, false)

	s.audit.LogAccountAction(ctx, logger.AuditEvent{
		EventType: logger.EventRegistered,
		AccountID: account.ID,
		Success:   true,
	})

	return &RegisterResult{Account: account}, nil
}

// checkAvailable reports taken email and username up front so both show in
// one response. The unique constraints still decide races.
func (s *AccountService) checkAvailable(ctx context.Context, email, username string) error {
	verr := &models.ValidationError{Cause: models.ErrConflict}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		verr.Add("email", "an account with this email already exists")
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
		verr.Add("username", "a user with that username already exists")
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username availability", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func duplicateError(field string, cause error) *models.ValidationError {
	verr := &models.ValidationError{Cause: cause}
	switch field {
	case "username":
		verr.Add("username", "a user with that username already exists")
	default:
		verr.Add("email", "an account with this email already exists")
	}
	return verr
}

func (s *AccountService) runHooks(ctx context.Context, account *models.Account) {
	for _, hook := range s.hooks {
		if err := hook.AfterCreate(ctx, account); err != nil {
			s.logger.Error("post-create hook failed",
				slog.String("hook", hook.Name()),
				slog.String("account_id", account.ID),
				slog.Any("error", err))
		}
	}
}

// sendActivation mints a token for the account's current state and emails
// the link. Failures are logged only.
func (s *AccountService) sendActivation(ctx context.Context, account *models.Account, resend bool) {
	token, err := s.codec.Mint(account)
	if err != nil {
		s.logger.Error("failed to mint activation token",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return
	}

	link := s.ActivationLink(account, token)
	msg := notify.ActivationMessage(account.Email, link)
	if resend {
		msg = notify.ResendActivationMessage(account.Email, link)
	}

	if err := s.sink.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send activation email",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}
}

// Activate verifies an activation link and marks the account active. Every
// failure, including an unknown account, is models.ErrInvalidLink.
func (s *AccountService) Activate(ctx context.Context, uidb64, token string) (*models.Account, error) {
	accountID, err := auth.DecodeIdentity(uidb64)
	if err != nil {
		s.activationFailed(ctx, "", "malformed_identity")
		return nil, models.ErrInvalidLink
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.activationFailed(ctx, "", "unknown_account")
			return nil, models.ErrInvalidLink
		}
		s.logger.Error("failed to load account for activation", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !s.codec.Verify(account, token) {
		s.activationFailed(ctx, account.ID, "token_rejected")
		return nil, models.ErrInvalidLink
	}

	activated, err := s.accounts.MarkActive(ctx, account.ID)
	if err != nil {
		s.logger.Error("failed to activate account",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.LogAccountAction(ctx, logger.AuditEvent{
		EventType: logger.EventActivated,
		AccountID: activated.ID,
		Success:   true,
	})

	return activated, nil
}

func (s *AccountService) activationFailed(ctx context.Context, accountID, reason string) {
	s.audit.LogAccountAction(ctx, logger.AuditEvent{
		EventType:     logger.EventActivationFailed,
		AccountID:     accountID,
		Success:       false,
		FailureReason: reason,
	})
}

// Login checks credentials. A wrong email and a wrong password both yield
// models.ErrInvalidCredentials; a correct password on an unverified account
// yields models.ErrAccountInactive.
func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*models.Account, error) {
	if verr := validateStruct(req); verr.HasErrors() {
		return nil, verr
	}

	start := time.Now()
	email := normalizeEmail(req.Email)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to load account for login", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.loginFailed(ctx, start, "", email, "unknown_email")
		return nil, models.ErrInvalidCredentials
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, req.Password); err != nil {
		s.loginFailed(ctx, start, account.ID, email, "invalid_password")
		return nil, models.ErrInvalidCredentials
	}

	if !account.Active {
		s.loginFailed(ctx, start, account.ID, email, "account_inactive")
		return nil, models.ErrAccountInactive
	}

	if err := s.accounts.TouchLastLogin(ctx, account.ID); err != nil {
		s.logger.Warn("failed to record last login",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	} else {
		now := time.Now()
		account.LastLoginAt = &now
	}

	s.audit.LogAuthAttempt(ctx, logger.AuditEvent{
		EventType: logger.EventLoginSuccess,
		AccountID: account.ID,
		Success:   true,
	})

	return account, nil
}

func (s *AccountService) loginFailed(ctx context.Context, start time.Time, accountID, email, reason string) {
	s.audit.LogAuthAttempt(ctx, logger.AuditEvent{
		EventType:     logger.EventLoginFailed,
		AccountID:     accountID,
		Success:       false,
		FailureReason: reason,
		Metadata:      map[string]string{"email": logger.SanitizedEmail(email)},
	})
	s.timing.WaitFrom(start, false)
}

// Logout records the end of a session. Session storage is owned by the
// HTTP layer; no account state changes.
func (s *AccountService) Logout(ctx context.Context, accountID string) {
	s.audit.LogAuthAttempt(ctx, logger.AuditEvent{
		EventType: logger.EventLogout,
		AccountID: accountID,
		Success:   true,
	})
}

// ResendActivation emails a fresh activation link to an unverified account.
func (s *AccountService) ResendActivation(ctx context.Context, email string) (ResendOutcome, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, models.ErrNotFound
		}
		s.logger.Error("failed to load account for resend", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	if account.Active {
		return ResendAlreadyActive, nil
	}

	s.sendActivation(ctx, account, true)

	s.audit.LogAccountAction(ctx, logger.AuditEvent{
		EventType: logger.EventActivationResent,
		AccountID: account.ID,
		Success:   true,
	})

	return ResendSent, nil
}

// RequestPasswordReset issues and emails a reset link if the address belongs
// to an account. The result is identical either way, and internal failures
// are logged rather than returned.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (*Acknowledgement, error) {
	start := time.Now()
	ack := resetAcknowledgement

	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to load account for password reset", slog.Any("error", err))
		}
		s.timing.WaitFrom(start, false)
		return &ack, nil
	}

	issued, err := s.ledger.Issue(ctx, account, s.ledger.TTL())
	if err != nil {
		s.logger.Error("failed to issue reset token",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		s.timing.WaitFrom(start, false)
		return &ack, nil
	}

	msg := notify.PasswordResetMessage(account.Email, s.ResetLink(issued.Value), s.ledger.TTL())
	if err := s.sink.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send password reset email",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
	}

	s.audit.LogPasswordChange(ctx, logger.AuditEvent{
		EventType: logger.EventResetRequested,
		AccountID: account.ID,
		Success:   true,
	})

	s.timing.WaitFrom(start, false)
	return &ack, nil
}

// ConsumePasswordReset spends a reset token and sets the new password. The
// token delete and the credential update commit together, so a token changes
// the password at most once and a failed update leaves it usable.
func (s *AccountService) ConsumePasswordReset(ctx context.Context, req ConsumeResetRequest) error {
	verr := validateStruct(req)

	record, err := s.ledger.Lookup(ctx, req.Token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.resetRejected(ctx, "", "unknown_token")
			return models.ErrNotFound
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if s.ledger.IsExpired(record) {
		s.resetRejected(ctx, record.AccountID, "expired")
		return models.ErrResetTokenExpired
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load account for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if req.NewPassword != "" {
		if err := pkgauth.ValidatePassword(req.NewPassword, emailLocalPart(account.Email), account.Username); err != nil {
			var perr *pkgauth.PasswordValidationError
			if errors.As(err, &perr) {
				for _, msg := range perr.Errors {
					verr.Add("new_password", "password "+msg)
				}
			} else {
				verr.Add("new_password", err.Error())
			}
		}
	}
	if verr.HasErrors() {
		return verr
	}

	hash, err := pkgauth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.ledger.Redeem(ctx, record, hash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.resetRejected(ctx, record.AccountID, "already_consumed")
			return models.ErrNotFound
		}
		s.logger.Error("failed to redeem reset token",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.LogPasswordChange(ctx, logger.AuditEvent{
		EventType: logger.EventResetConsumed,
		AccountID: account.ID,
		Success:   true,
	})

	return nil
}

func (s *AccountService) resetRejected(ctx context.Context, accountID, reason string) {
	s.audit.LogPasswordChange(ctx, logger.AuditEvent{
		EventType:     logger.EventResetRejected,
		AccountID:     accountID,
		Success:       false,
		FailureReason: reason,
	})
}

// GetProfile returns the public profile for username.
func (s *AccountService) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	profile, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load profile", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return profile, nil
}

// GetOwnProfile returns the profile of the signed-in account.
func (s *AccountService) GetOwnProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	profile, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load profile",
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return profile, nil
}

type UpdateBioRequest struct {
	Bio string `json:"bio" validate:"max=500"`
}

// UpdateBio replaces the bio of the signed-in account.
func (s *AccountService) UpdateBio(ctx context.Context, accountID string, req UpdateBioRequest) (*models.Profile, error) {
	req.Bio = strings.TrimSpace(req.Bio)
	if verr := validateStruct(req); verr.HasErrors() {
		return nil, verr
	}

	profile, err := s.profiles.UpsertBio(ctx, accountID, req.Bio)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update bio",
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return profile, nil
}
