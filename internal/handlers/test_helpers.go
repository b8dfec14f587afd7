package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/accounts/internal/models"
	"github.com/BradenHooton/accounts/internal/services"
	"github.com/BradenHooton/accounts/internal/session"
	pkghttp "github.com/BradenHooton/accounts/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithURLParams attaches chi route parameters to the request
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// WithSessionContext attaches a session for accountID, as RequireSession would
func WithSessionContext(req *http.Request, accountID string) *http.Request {
	sess := &session.Session{ID: "test-session", AccountID: accountID, CreatedAt: time.Now()}
	return req.WithContext(session.WithSession(req.Context(), sess))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	RegisterFunc             func(ctx context.Context, req services.RegisterRequest) (*services.RegisterResult, error)
	ActivateFunc             func(ctx context.Context, uidb64, token string) (*models.Account, error)
	LoginFunc                func(ctx context.Context, req services.LoginRequest) (*models.Account, error)
	LogoutFunc               func(ctx context.Context, accountID string)
	ResendActivationFunc     func(ctx context.Context, email string) (services.ResendOutcome, error)
	RequestPasswordResetFunc func(ctx context.Context, email string) (*services.Acknowledgement, error)
	ConsumePasswordResetFunc func(ctx context.Context, req services.ConsumeResetRequest) error
	GetProfileFunc           func(ctx context.Context, username string) (*models.Profile, error)
	GetOwnProfileFunc        func(ctx context.Context, accountID string) (*models.Profile, error)
	UpdateBioFunc            func(ctx context.Context, accountID string, req services.UpdateBioRequest) (*models.Profile, error)
}

func (m *MockAccountService) Register(ctx context.Context, req services.RegisterRequest) (*services.RegisterResult, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.RegisterFunc(ctx, req)
}

func (m *MockAccountService) Activate(ctx context.Context, uidb64, token string) (*models.Account, error) {
	if m.ActivateFunc == nil {
		return nil, models.ErrInvalidLink
	}
	return m.ActivateFunc(ctx, uidb64, token)
}

func (m *MockAccountService) Login(ctx context.Context, req services.LoginRequest) (*models.Account, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, req)
}

func (m *MockAccountService) Logout(ctx context.Context, accountID string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, accountID)
	}
}

func (m *MockAccountService) ResendActivation(ctx context.Context, email string) (services.ResendOutcome, error) {
	if m.ResendActivationFunc == nil {
		return 0, models.ErrNotFound
	}
	return m.ResendActivationFunc(ctx, email)
}

func (m *MockAccountService) RequestPasswordReset(ctx context.Context, email string) (*services.Acknowledgement, error) {
	if m.RequestPasswordResetFunc == nil {
		return &services.Acknowledgement{Message: "ok"}, nil
	}
	return m.RequestPasswordResetFunc(ctx, email)
}

func (m *MockAccountService) ConsumePasswordReset(ctx context.Context, req services.ConsumeResetRequest) error {
	if m.ConsumePasswordResetFunc == nil {
		return models.ErrNotFound
	}
	return m.ConsumePasswordResetFunc(ctx, req)
}

func (m *MockAccountService) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	if m.GetProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetProfileFunc(ctx, username)
}

func (m *MockAccountService) GetOwnProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	if m.GetOwnProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetOwnProfileFunc(ctx, accountID)
}

func (m *MockAccountService) UpdateBio(ctx context.Context, accountID string, req services.UpdateBioRequest) (*models.Profile, error) {
	if m.UpdateBioFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateBioFunc(ctx, accountID, req)
}

// MockSessionStore implements SessionStore for testing
type MockSessionStore struct {
	CreateFunc  func(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID string) (*session.Session, error)
	LoadFunc    func(ctx context.Context, r *http.Request) (*session.Session, error)
	DestroyFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

func (m *MockSessionStore) Create(ctx context.Context, w http.ResponseWriter, r *http.Request, accountID string) (*session.Session, error) {
	if m.CreateFunc == nil {
		return &session.Session{ID: "test-session", AccountID: accountID, CreatedAt: time.Now()}, nil
	}
	return m.CreateFunc(ctx, w, r, accountID)
}

func (m *MockSessionStore) Load(ctx context.Context, r *http.Request) (*session.Session, error) {
	if m.LoadFunc == nil {
		return nil, session.ErrNoSession
	}
	return m.LoadFunc(ctx, r)
}

func (m *MockSessionStore) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if m.DestroyFunc == nil {
		return nil
	}
	return m.DestroyFunc(ctx, w, r)
}
