package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/pkg/httputil"
	"github.com/utafrali/mobilebackend/pkg/middleware"
	"github.com/utafrali/mobilebackend/pkg/pagination"
)

// UserHandler handles HTTP requests for the caller's own profile and
// account.
type UserHandler struct {
	service AccountService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc AccountService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// UpdateProfileRequest is the JSON request body for updating the profile.
// Omitted fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Gender    *int16  `json:"gender"`
	Image     *string `json:"image" validate:"omitempty,url,max=500"`
	CountryID *int    `json:"country_id" validate:"omitempty,gt=0"`
}

// GetProfile handles GET /api/v1/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// UpdateProfile handles POST /api/v1/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	update := domain.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Image:     req.Image,
		CountryID: req.CountryID,
	}
	if req.Gender != nil {
		g := domain.Gender(*req.Gender)
		update.Gender = &g
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// DeleteAccount handles DELETE /api/v1/account
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LoginHistory handles GET /api/v1/login-history
func (h *UserHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	page := pagination.FromRequest(r)
	attempts, total, err := h.service.ListLoginHistory(r.Context(), userID, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(attempts, total, page))
}

// Countries handles GET /api/v1/countries
func (h *UserHandler) Countries(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	countries, total, err := h.service.ListCountries(r.Context(), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(countries, total, page))
}
