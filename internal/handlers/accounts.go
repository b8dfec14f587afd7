package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/accounts/internal/models"
	"github.com/BradenHooton/accounts/internal/services"
	"github.com/BradenHooton/accounts/internal/session"
	pkghttp "github.com/BradenHooton/accounts/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AccountServiceInterface defines the account lifecycle operations
type AccountServiceInterface interface {
	Register(ctx context.Context, req services.RegisterRequest) (*services.RegisterResult, error)
	Activate(ctx context.Context, uidb64, token string) (*models.Account, error)
	Login(ctx context.Context, req services.LoginRequest) (*models.Account, error)
	Logout(ctx context.Context, accountID string)
	ResendActivation(ctx context.Context, email string) (services.ResendOutcome, error)
	RequestPasswordReset(ctx context.Context, email string) (*services.Acknowledgement, error)
	ConsumePasswordReset(ctx context.Context, req services.ConsumeResetRequest) error
	GetProfile(ctx context.Context, username string) (*models.Profile, error)
	GetOwnProfile(ctx context.Context, accountID string) (*models.Profile, error)
	UpdateBio(ctx context.Context, accountID string, req services.UpdateBioRequest) (*models.Profile, error)
}

// SessionStore establishes and tears down login sessions
type SessionStore interface {
	Create(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID string) (*session.Session, error)
	Load(ctx context.Context, r *http.Request) (*session.Session, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// AccountHandler serves the /accounts endpoints
type AccountHandler struct {
	service  AccountServiceInterface
	sessions SessionStore
	logger   *slog.Logger
}

func NewAccountHandler(service AccountServiceInterface, sessions SessionStore, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		service:  service,
		sessions: sessions,
		logger:   logger,
	}
}

// EmailRequest is the body of resend-activation and password-reset requests
type EmailRequest struct {
	Email string `json:"email"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterResponse struct {
	Message   string `json:"message"`
	AccountID string `json:"account_id"`
}

type AccountResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		Email:       a.Email,
		Username:    a.Username,
		Active:      a.Active,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
	}
}

// Register handles POST /accounts/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message:   "Account created. Check your email to activate your account.",
		AccountID: result.Account.ID,
	})
}

// Activate handles GET /accounts/activate/{uidb64}/{token}
func (h *AccountHandler) Activate(w http.ResponseWriter, r *http.Request) {
	uidb64 := chi.URLParam(r, "uidb64")
	token := chi.URLParam(r, "token")

	account, err := h.service.Activate(r.Context(), uidb64, token)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, struct {
		Message string          `json:"message"`
		Account AccountResponse `json:"account"`
	}{
		Message: "Your account has been activated.",
		Account: newAccountResponse(account),
	})
}

// Login handles POST /accounts/login. Success sets the session cookie.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	account, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if _, err := h.sessions.Create(r.Context(), w, r, account.ID); err != nil {
		h.logger.Error("failed to create session",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newAccountResponse(account))
}

// Logout handles POST /accounts/logout. It succeeds with or without a session.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, err := h.sessions.Load(r.Context(), r); err == nil {
		h.service.Logout(r.Context(), sess.AccountID)
	}

	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		h.logger.Error("failed to destroy session", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResendActivation handles POST /accounts/resend-activation
func (h *AccountHandler) ResendActivation(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Email == "" {
		pkghttp.WriteBadRequest(w, "Email is required")
		return
	}

	outcome, err := h.service.ResendActivation(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if outcome == services.ResendAlreadyActive {
		pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "This account is already active."})
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{Message: "Activation link resent. Check your email."})
}

// RequestPasswordReset handles POST /accounts/password-reset. The response
// never reveals whether the address is registered.
func (h *AccountHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Email == "" {
		pkghttp.WriteBadRequest(w, "Email is required")
		return
	}

	ack, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, ack)
}

// ConsumePasswordReset handles POST /accounts/reset/{token}
func (h *AccountHandler) ConsumePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req services.ConsumeResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	req.Token = chi.URLParam(r, "token")

	if err := h.service.ConsumePasswordReset(r.Context(), req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Your password has been changed. You can now log in."})
}
