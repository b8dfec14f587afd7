//go:build integration

package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/accounts/internal/handlers"
	"github.com/BradenHooton/accounts/internal/services"
	pkghttp "github.com/BradenHooton/accounts/pkg/http"
)

func registerAndActivate(t *testing.T, app *TestApp, email, username, password string) {
	t.Helper()

	status := app.Do(t, "POST", "/accounts/register", map[string]string{
		"email":            email,
		"username":         username,
		"password":         password,
		"password_confirm": password,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	link := ExtractLink(app.LastMailTo(t, email))
	require.NotEmpty(t, link)
	require.Equal(t, http.StatusOK, app.Do(t, "GET", LinkPath(link), nil, nil))
}

func TestFlow_RegisterActivateLogin(t *testing.T) {
	app := NewTestApp(t, freshDB(t))
	email, username, password := TestUser("flow")

	var reg handlers.RegisterResponse
	status := app.Do(t, "POST", "/accounts/register", map[string]string{
		"email":            email,
		"username":         username,
		"password":         password,
		"password_confirm": password,
	}, &reg)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, reg.AccountID)

	// Inactive accounts cannot sign in
	var errResp pkghttp.ErrorResponse
	status = app.Do(t, "POST", "/accounts/login", services.LoginRequest{Email: email, Password: password}, &errResp)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "account_inactive", errResp.Error)

	activation := LinkPath(ExtractLink(app.LastMailTo(t, email)))
	require.True(t, strings.HasPrefix(activation, "/accounts/activate/"))
	require.Equal(t, http.StatusOK, app.Do(t, "GET", activation, nil, nil))

	// Activation changes the fingerprint, so the link is single use
	assert.Equal(t, http.StatusBadRequest, app.Do(t, "GET", activation, nil, nil))

	var account handlers.AccountResponse
	status = app.Do(t, "POST", "/accounts/login", services.LoginRequest{Email: strings.ToUpper(email), Password: password}, &account)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, reg.AccountID, account.ID)

	var me handlers.ProfileResponse
	require.Equal(t, http.StatusOK, app.Do(t, "GET", "/accounts/me", nil, &me))
	assert.Equal(t, username, me.Username)

	require.Equal(t, http.StatusOK, app.Do(t, "PUT", "/accounts/me/profile", services.UpdateBioRequest{Bio: "hi there"}, nil))

	var public handlers.ProfileResponse
	require.Equal(t, http.StatusOK, app.Do(t, "GET", "/profiles/"+username, nil, &public))
	assert.Equal(t, "hi there", public.Bio)

	require.Equal(t, http.StatusNoContent, app.Do(t, "POST", "/accounts/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, app.Do(t, "GET", "/accounts/me", nil, nil))
}

func TestFlow_DuplicateRegistrationReportsBothFields(t *testing.T) {
	app := NewTestApp(t, freshDB(t))
	email, username, password := TestUser("dup")
	registerAndActivate(t, app, email, username, password)

	var errResp pkghttp.ErrorResponse
	status := app.Do(t, "POST", "/accounts/register", map[string]string{
		"email":            strings.ToUpper(email),
		"username":         username,
		"password":         password,
		"password_confirm": password,
	}, &errResp)

	assert.Equal(t, http.StatusBadRequest, status)
	fields := make([]string, 0, len(errResp.Fields))
	for _, f := range errResp.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"email", "username"}, fields)
}

func TestFlow_PasswordReset(t *testing.T) {
	db := freshDB(t)
	app := NewTestApp(t, db)
	email, username, password := TestUser("reset")
	registerAndActivate(t, app, email, username, password)

	var known, unknown services.Acknowledgement
	require.Equal(t, http.StatusAccepted, app.Do(t, "POST", "/accounts/password-reset", handlers.EmailRequest{Email: email}, &known))
	require.Equal(t, http.StatusAccepted, app.Do(t, "POST", "/accounts/password-reset", handlers.EmailRequest{Email: "ghost@example.com"}, &unknown))
	assert.Equal(t, known, unknown)

	resetPath := LinkPath(ExtractLink(app.LastMailTo(t, email)))
	require.True(t, strings.HasPrefix(resetPath, "/accounts/reset/"))

	newPassword := "An-Entirely-New-Passphrase-7"
	body := map[string]string{"new_password": newPassword, "new_password_confirm": newPassword}

	require.Equal(t, http.StatusOK, app.Do(t, "POST", resetPath, body, nil))

	// Single use
	var errResp pkghttp.ErrorResponse
	assert.Equal(t, http.StatusNotFound, app.Do(t, "POST", resetPath, body, &errResp))
	assert.Equal(t, "not_found", errResp.Error)

	assert.Equal(t, http.StatusUnauthorized, app.Do(t, "POST", "/accounts/login", services.LoginRequest{Email: email, Password: password}, nil))
	assert.Equal(t, http.StatusOK, app.Do(t, "POST", "/accounts/login", services.LoginRequest{Email: email, Password: newPassword}, nil))
}

func TestFlow_ExpiredResetLinkIsGone(t *testing.T) {
	db := freshDB(t)
	app := NewTestApp(t, db)
	email, username, password := TestUser("expired")
	registerAndActivate(t, app, email, username, password)

	require.Equal(t, http.StatusAccepted, app.Do(t, "POST", "/accounts/password-reset", handlers.EmailRequest{Email: email}, nil))
	resetPath := LinkPath(ExtractLink(app.LastMailTo(t, email)))
	token := strings.TrimPrefix(resetPath, "/accounts/reset/")
	require.NoError(t, db.ExpireResetToken(context.Background(), services.HashResetToken(token)))

	newPassword := "An-Entirely-New-Passphrase-7"
	var errResp pkghttp.ErrorResponse
	status := app.Do(t, "POST", resetPath, map[string]string{"new_password": newPassword, "new_password_confirm": newPassword}, &errResp)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "expired", errResp.Error)

	n, err := app.Ledger.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFlow_ResendActivation(t *testing.T) {
	app := NewTestApp(t, freshDB(t))
	email, username, password := TestUser("resend")

	require.Equal(t, http.StatusCreated, app.Do(t, "POST", "/accounts/register", map[string]string{
		"email":            email,
		"username":         username,
		"password":         password,
		"password_confirm": password,
	}, nil))

	assert.Equal(t, http.StatusAccepted, app.Do(t, "POST", "/accounts/resend-activation", handlers.EmailRequest{Email: email}, nil))
	sent := app.Mail.Messages()
	require.NotEmpty(t, sent)
	assert.Equal(t, "Resend of activation link", sent[len(sent)-1].Subject)

	require.Equal(t, http.StatusOK, app.Do(t, "GET", LinkPath(ExtractLink(app.LastMailTo(t, email))), nil, nil))
	assert.Equal(t, http.StatusOK, app.Do(t, "POST", "/accounts/resend-activation", handlers.EmailRequest{Email: email}, nil))
	assert.Equal(t, http.StatusNotFound, app.Do(t, "POST", "/accounts/resend-activation", handlers.EmailRequest{Email: "ghost@example.com"}, nil))
}

func TestFlow_Health(t *testing.T) {
	app := NewTestApp(t, freshDB(t))

	var resp handlers.HealthResponse
	require.Equal(t, http.StatusOK, app.Do(t, "GET", "/health", nil, &resp))
	assert.Equal(t, "healthy", resp.Status)
}
