package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/service"
	"github.com/utafrali/mobilebackend/pkg/httputil"
	"github.com/utafrali/mobilebackend/pkg/middleware"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service AccountService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SignupRequest is the JSON request body for account creation.
type SignupRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	Mobile          string `json:"mobile" validate:"required,min=6,max=20"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	Gender          int16  `json:"gender"`
	CountryID       *int   `json:"country_id" validate:"omitempty,gt=0"`
	IsClient        bool   `json:"is_client"`
}

// LoginRequest is the JSON request body for login. Identifier is a mobile
// number or an email address.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// IdentifierRequest names an account for the code-issuing endpoints.
type IdentifierRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

// CodeRequest carries a one-time code for an account.
type CodeRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

// ConfirmResetRequest is the JSON request body for completing a password reset.
type ConfirmResetRequest struct {
	Identifier      string `json:"identifier" validate:"required"`
	Code            string `json:"code" validate:"required,len=6,numeric"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// ChangePasswordRequest is the JSON request body for changing a password.
type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// --- Response types ---

// LoginResponse is returned by a successful login. Token is omitted until the
// account is verified.
type LoginResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	Token      string `json:"token,omitempty"`
	IsVerified bool   `json:"is_verified"`
	IsApproved bool   `json:"is_approved"`
	IsClient   bool   `json:"is_client"`
}

// CheckCodeResponse reports whether a code can still be redeemed.
type CheckCodeResponse struct {
	Valid bool `json:"valid"`
}

// --- Handlers ---

// Signup handles POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.Signup(r.Context(), service.SignupInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Mobile:          req.Mobile,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Gender:          domain.Gender(req.Gender),
		CountryID:       req.CountryID,
		IsClient:        req.IsClient,
		IPAddress:       middleware.ClientIP(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: user})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		IPAddress:  middleware.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: LoginResponse{
		ID:         result.User.ID,
		Email:      result.User.Email,
		Mobile:     result.User.Mobile,
		Token:      result.Token,
		IsVerified: result.User.IsVerified,
		IsApproved: result.User.IsApproved,
		IsClient:   result.User.IsClient,
	}})
}

// CheckCode handles POST /api/v1/auth/otp/check
func (h *AuthHandler) CheckCode(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	valid, err := h.service.CheckCode(r.Context(), req.Identifier, req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: CheckCodeResponse{Valid: valid}})
}

// VerifyAccount handles POST /api/v1/auth/account/verify
func (h *AuthHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.service.VerifyAccount(r.Context(), req.Identifier, req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// ResendVerification handles POST /api/v1/auth/verification/resend
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req IdentifierRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Identifier, middleware.ClientIP(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: messageResponse{Message: "a new verification code has been sent"},
	})
}

// ForgetPassword handles POST /api/v1/auth/forget-password
func (h *AuthHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req IdentifierRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Identifier, middleware.ClientIP(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: messageResponse{Message: "a password reset code has been sent"},
	})
}

// ConfirmForgetPassword handles POST /api/v1/auth/forget-password/confirm
func (h *AuthHandler) ConfirmForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.service.ConfirmPasswordReset(r.Context(), service.ConfirmResetInput{
		Identifier:      req.Identifier,
		Code:            req.Code,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: messageResponse{Message: "password has been reset successfully"},
	})
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		writeUnauthenticated(w)
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), userID, service.ChangePasswordInput{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: messageResponse{Message: "password changed, please log in again"},
	})
}

func writeUnauthenticated(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "user not authenticated"},
	})
}
