//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/accounts/internal/auth"
	"github.com/BradenHooton/accounts/internal/handlers"
	middlewareCustom "github.com/BradenHooton/accounts/internal/middleware"
	"github.com/BradenHooton/accounts/internal/routes"
	"github.com/BradenHooton/accounts/internal/services"
	"github.com/BradenHooton/accounts/internal/session"
	pkghttp "github.com/BradenHooton/accounts/pkg/http"
	pkglogger "github.com/BradenHooton/accounts/pkg/logger"
)

const testSecret = "integration-test-secret-key-0123456789"

// TestApp is the full HTTP stack backed by the test database and an
// in-process Redis.
type TestApp struct {
	Server *httptest.Server
	Client *http.Client
	Mail   *services.MockSink
	Ledger *services.ResetTokenLedger
}

// NewTestApp wires repositories, service, sessions and routes the way the
// API binary does.
func NewTestApp(t *testing.T, db *TestDB) *TestApp {
	t.Helper()

	logger := discardLogger()
	repos := InitializeRepositories(db.DB)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	sessions := session.NewManager(redisClient, "accounts_session", time.Hour, false)
	mail := &services.MockSink{}
	ledger := services.NewResetTokenLedger(repos.ResetTokens, time.Hour, false)

	app := &TestApp{Mail: mail, Ledger: ledger}

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.ClientIP(pkghttp.NewIPConfig(nil)))
	router.Use(chiMiddleware.Recoverer)

	app.Server = httptest.NewServer(router)
	t.Cleanup(app.Server.Close)

	// The base URL is only known once the server is listening
	svc := services.NewAccountService(services.AccountServiceDeps{
		Accounts: repos.Accounts,
		Profiles: repos.Profiles,
		Ledger:   ledger,
		Codec:    auth.NewActivationTokenCodec(testSecret, 72*time.Hour),
		Sink:     mail,
		Hooks:    []services.PostCreateHook{services.NewProfileHook(repos.Profiles)},
		Audit:    pkglogger.NewAuditLogger(logger),
		Logger:   logger,
		BaseURL:  app.Server.URL,
	})

	routes.RegisterRoutes(router,
		handlers.NewAccountHandler(svc, sessions, logger),
		handlers.NewProfileHandler(svc, logger),
		handlers.NewHealthHandler(handlers.PingerFunc(db.DB.HealthCheck), sessions, logger),
		sessions,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: 1000},
		logger,
	)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	app.Client = &http.Client{Jar: jar, Timeout: 10 * time.Second}

	return app
}

// Do sends a JSON request and decodes the JSON response into out when non-nil.
func (a *TestApp) Do(t *testing.T, method, path string, body, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req, err := http.NewRequestWithContext(context.Background(), method, a.Server.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// LastMailTo returns the newest captured message addressed to email.
func (a *TestApp) LastMailTo(t *testing.T, email string) string {
	t.Helper()

	sent := a.Mail.Messages()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].To == email {
			return sent[i].Body
		}
	}
	t.Fatalf("no mail sent to %s", email)
	return ""
}
