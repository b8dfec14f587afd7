package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/accounts/internal/models"
	"github.com/BradenHooton/accounts/internal/services"
	"github.com/BradenHooton/accounts/internal/session"
	pkghttp "github.com/BradenHooton/accounts/pkg/http"
	"github.com/go-chi/chi/v5"
)

type ProfileResponse struct {
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newProfileResponse(p *models.Profile) ProfileResponse {
	return ProfileResponse{
		Username:  p.Username,
		Bio:       p.Bio,
		UpdatedAt: p.UpdatedAt,
	}
}

// ProfileHandler serves public profile pages
type ProfileHandler struct {
	service AccountServiceInterface
	logger  *slog.Logger
}

func NewProfileHandler(service AccountServiceInterface, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, logger: logger}
}

// GetProfile handles GET /profiles/{username}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		pkghttp.WriteBadRequest(w, "Username is required")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), username)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newProfileResponse(profile))
}

// Me handles GET /accounts/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	profile, err := h.service.GetOwnProfile(r.Context(), sess.AccountID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newProfileResponse(profile))
}

// UpdateProfile handles PUT /accounts/me/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	var req services.UpdateBioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	profile, err := h.service.UpdateBio(r.Context(), sess.AccountID, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, newProfileResponse(profile))
}
