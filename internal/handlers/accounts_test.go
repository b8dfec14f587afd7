package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BradenHooton/accounts/internal/handlers"
	"github.com/BradenHooton/accounts/internal/models"
	"github.com/BradenHooton/accounts/internal/services"
	"github.com/BradenHooton/accounts/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAccountHandler(svc *handlers.MockAccountService, sessions *handlers.MockSessionStore) *handlers.AccountHandler {
	if sessions == nil {
		sessions = &handlers.MockSessionStore{}
	}
	return handlers.NewAccountHandler(svc, sessions, testLogger())
}

func TestRegister_Success(t *testing.T) {
	var got services.RegisterRequest
	svc := &handlers.MockAccountService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.RegisterResult, error) {
			got = req
			return &services.RegisterResult{Account: &models.Account{ID: "acc-1", Email: req.Email}}, nil
		},
	}

	handler := newAccountHandler(svc, nil)
	req := handlers.NewTestRequest(t, "POST", "/accounts/register", map[string]string{
		"email":            "alice@example.com",
		"username":         "alice",
		"password":         "correct horse battery",
		"password_confirm": "correct horse battery",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp handlers.RegisterResponse
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "acc-1", resp.AccountID)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "correct horse battery", got.PasswordConfirm)
}

func TestRegister_ValidationErrorsListAllFields(t *testing.T) {
	svc := &handlers.MockAccountService{
		RegisterFunc: func(ctx context.Context, req services.RegisterRequest) (*services.RegisterResult, error) {
			verr := models.NewValidationError()
			verr.Add("email", "An account with this email already exists")
			verr.Add("username", "This username is already taken")
			verr.Cause = models.ErrConflict
			return nil, verr
		},
	}

	handler := newAccountHandler(svc, nil)
	req := handlers.NewTestRequest(t, "POST", "/accounts/register", map[string]string{
		"email":            "alice@example.com",
		"username":         "alice",
		"password":         "pw",
		"password_confirm": "pw",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "email", resp.Fields[0].Field)
	assert.Equal(t, "username", resp.Fields[1].Field)
}

func TestRegister_RejectsUnknownFields(t *testing.T) {
	handler := newAccountHandler(&handlers.MockAccountService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/accounts/register", map[string]interface{}{
		"email":  "alice@example.com",
		"active": true,
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestRegister_MalformedBody(t *testing.T) {
	handler := newAccountHandler(&handlers.MockAccountService{}, nil)
	req := httptest.NewRequest("POST", "/accounts/register", strings.NewReader("{not json"))

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestActivate(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "valid link", wantStatus: http.StatusOK},
		{name: "invalid link", err: models.ErrInvalidLink, wantStatus: http.StatusBadRequest, wantCode: "invalid_link"},
		{name: "store failure", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUID, gotToken string
			svc := &handlers.MockAccountService{
				ActivateFunc: func(ctx context.Context, uidb64, token string) (*models.Account, error) {
					gotUID, gotToken = uidb64, token
					if tt.err != nil {
						return nil, tt.err
					}
					return &models.Account{ID: "acc-1", Username: "alice", Active: true}, nil
				},
			}

			handler := newAccountHandler(svc, nil)
			req := handlers.NewTestRequest(t, "GET", "/accounts/activate/dWlk/tok", nil)
			req = handlers.WithURLParams(req, map[string]string{"uidb64": "dWlk", "token": "tok"})

			w := httptest.NewRecorder()
			handler.Activate(w, req)

			assert.Equal(t, "dWlk", gotUID)
			assert.Equal(t, "tok", gotToken)
			if tt.wantCode != "" {
				handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
				return
			}
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), `"active":true`)
		})
	}
}

func TestLogin_SuccessCreatesSession(t *testing.T) {
	svc := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*models.Account, error) {
			return &models.Account{ID: "acc-1", Email: req.Email, Username: "alice", Active: true}, nil
		},
	}
	var sessionFor string
	sessions := &handlers.MockSessionStore{
		CreateFunc: func(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID string) (*session.Session, error) {
			sessionFor = accountID
			http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "s-1"})
			return &session.Session{ID: "s-1", AccountID: accountID}, nil
		},
	}

	handler := newAccountHandler(svc, sessions)
	req := handlers.NewTestRequest(t, "POST", "/accounts/login", services.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.AccountResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "acc-1", resp.ID)
	assert.Equal(t, "acc-1", sessionFor)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "session_id=s-1")
	assert.NotContains(t, w.Body.String(), "password")
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrong credentials", models.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"inactive account", models.ErrAccountInactive, http.StatusForbidden, "account_inactive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockAccountService{
				LoginFunc: func(ctx context.Context, req services.LoginRequest) (*models.Account, error) {
					return nil, tt.err
				},
			}
			created := false
			sessions := &handlers.MockSessionStore{
				CreateFunc: func(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID string) (*session.Session, error) {
					created = true
					return nil, nil
				},
			}

			handler := newAccountHandler(svc, sessions)
			req := handlers.NewTestRequest(t, "POST", "/accounts/login", services.LoginRequest{
				Email:    "alice@example.com",
				Password: "nope",
			})

			w := httptest.NewRecorder()
			handler.Login(w, req)

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			assert.False(t, created, "no session may be created on failure")
		})
	}
}

func TestLogin_SessionStoreFailure(t *testing.T) {
	svc := &handlers.MockAccountService{
		LoginFunc: func(ctx context.Context, req services.LoginRequest) (*models.Account, error) {
			return &models.Account{ID: "acc-1", Active: true}, nil
		},
	}
	sessions := &handlers.MockSessionStore{
		CreateFunc: func(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID string) (*session.Session, error) {
			return nil, errors.New("redis down")
		},
	}

	handler := newAccountHandler(svc, sessions)
	req := handlers.NewTestRequest(t, "POST", "/accounts/login", services.LoginRequest{Email: "a@example.com", Password: "pw"})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error")
}

func TestLogout(t *testing.T) {
	t.Run("with session", func(t *testing.T) {
		var loggedOut string
		destroyed := false
		svc := &handlers.MockAccountService{
			LogoutFunc: func(ctx context.Context, accountID string) { loggedOut = accountID },
		}
		sessions := &handlers.MockSessionStore{
			LoadFunc: func(ctx context.Context, r *http.Request) (*session.Session, error) {
				return &session.Session{ID: "s-1", AccountID: "acc-1"}, nil
			},
			DestroyFunc: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				destroyed = true
				return nil
			},
		}

		handler := newAccountHandler(svc, sessions)
		w := httptest.NewRecorder()
		handler.Logout(w, handlers.NewTestRequest(t, "POST", "/accounts/logout", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "acc-1", loggedOut)
		assert.True(t, destroyed)
	})

	t.Run("without session", func(t *testing.T) {
		called := false
		svc := &handlers.MockAccountService{
			LogoutFunc: func(ctx context.Context, accountID string) { called = true },
		}

		handler := newAccountHandler(svc, nil)
		w := httptest.NewRecorder()
		handler.Logout(w, handlers.NewTestRequest(t, "POST", "/accounts/logout", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, called)
	})
}

func TestResendActivation(t *testing.T) {
	tests := []struct {
		name       string
		outcome    services.ResendOutcome
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "sent", outcome: services.ResendSent, wantStatus: http.StatusAccepted},
		{name: "already active", outcome: services.ResendAlreadyActive, wantStatus: http.StatusOK},
		{name: "unknown email", err: models.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockAccountService{
				ResendActivationFunc: func(ctx context.Context, email string) (services.ResendOutcome, error) {
					return tt.outcome, tt.err
				},
			}

			handler := newAccountHandler(svc, nil)
			req := handlers.NewTestRequest(t, "POST", "/accounts/resend-activation", handlers.EmailRequest{Email: "alice@example.com"})

			w := httptest.NewRecorder()
			handler.ResendActivation(w, req)

			if tt.wantCode != "" {
				handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
				return
			}
			var resp handlers.MessageResponse
			handlers.AssertJSONResponse(t, w, tt.wantStatus, &resp)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestResendActivation_MissingEmail(t *testing.T) {
	handler := newAccountHandler(&handlers.MockAccountService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/accounts/resend-activation", handlers.EmailRequest{})

	w := httptest.NewRecorder()
	handler.ResendActivation(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestRequestPasswordReset_AcknowledgementIsUniform(t *testing.T) {
	ack := &services.Acknowledgement{Message: "If an account exists for that address, a reset link is on its way."}
	svc := &handlers.MockAccountService{
		RequestPasswordResetFunc: func(ctx context.Context, email string) (*services.Acknowledgement, error) {
			return ack, nil
		},
	}
	handler := newAccountHandler(svc, nil)

	bodies := make([]string, 0, 2)
	for _, email := range []string{"alice@example.com", "nobody@example.com"} {
		req := handlers.NewTestRequest(t, "POST", "/accounts/password-reset", handlers.EmailRequest{Email: email})
		w := httptest.NewRecorder()
		handler.RequestPasswordReset(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		bodies = append(bodies, w.Body.String())
	}

	assert.Equal(t, bodies[0], bodies[1])
}

func TestConsumePasswordReset(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "unknown token", err: models.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "expired token", err: models.ErrResetTokenExpired, wantStatus: http.StatusGone, wantCode: "expired"},
		{
			name:       "weak password",
			err:        models.NewValidationError(models.FieldError{Field: "new_password", Message: "too short"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got services.ConsumeResetRequest
			svc := &handlers.MockAccountService{
				ConsumePasswordResetFunc: func(ctx context.Context, req services.ConsumeResetRequest) error {
					got = req
					return tt.err
				},
			}

			handler := newAccountHandler(svc, nil)
			req := handlers.NewTestRequest(t, "POST", "/accounts/reset/tok-123", map[string]string{
				"new_password":         "a much better passphrase",
				"new_password_confirm": "a much better passphrase",
			})
			req = handlers.WithURLParams(req, map[string]string{"token": "tok-123"})

			w := httptest.NewRecorder()
			handler.ConsumePasswordReset(w, req)

			assert.Equal(t, "tok-123", got.Token)
			assert.Equal(t, "a much better passphrase", got.NewPassword)
			if tt.wantCode != "" {
				handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
				return
			}
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestConsumePasswordReset_TokenOnlyFromPath(t *testing.T) {
	handler := newAccountHandler(&handlers.MockAccountService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/accounts/reset/tok-123", map[string]string{
		"token":        "smuggled",
		"new_password": "pw",
	})
	req = handlers.WithURLParams(req, map[string]string{"token": "tok-123"})

	w := httptest.NewRecorder()
	handler.ConsumePasswordReset(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}
