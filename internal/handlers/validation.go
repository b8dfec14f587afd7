package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/accounts/internal/models"
	pkghttp "github.com/BradenHooton/accounts/pkg/http"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: unexpected trailing data")
	}
	return nil
}

func toFieldErrors(fields []models.FieldError) []pkghttp.FieldError {
	out := make([]pkghttp.FieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, pkghttp.FieldError{Field: f.Field, Message: f.Message})
	}
	return out
}

// writeServiceError maps lifecycle errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		message := "Validation failed"
		if errors.Is(err, models.ErrConflict) {
			message = "An account with these details already exists"
		}
		pkghttp.WriteValidationError(w, message, toFieldErrors(verr.Fields))
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, models.ErrAccountInactive):
		pkghttp.WriteForbidden(w, "account_inactive", "Account is not activated. Check your email for the activation link")
	case errors.Is(err, models.ErrInvalidLink):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_link", "Invalid activation link")
	case errors.Is(err, models.ErrResetTokenExpired):
		pkghttp.WriteGone(w, "expired", "This password reset link has expired")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteError(w, http.StatusConflict, "conflict", "Resource already exists")
	default:
		logger.Error("unhandled service error", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
