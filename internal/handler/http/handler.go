package http

import (
	"context"
	"net/http"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/gateway"
	"github.com/utafrali/mobilebackend/internal/service"
	"github.com/utafrali/mobilebackend/pkg/httputil"
	"github.com/utafrali/mobilebackend/pkg/pagination"
	"github.com/utafrali/mobilebackend/pkg/validator"
)

// AccountService is the account API used by the auth and profile handlers.
// *service.AuthService satisfies it.
type AccountService interface {
	Signup(ctx context.Context, input service.SignupInput) (*domain.User, error)
	Login(ctx context.Context, input service.LoginInput) (*service.LoginResult, error)
	ChangePassword(ctx context.Context, userID string, input service.ChangePasswordInput) error
	RequestPasswordReset(ctx context.Context, identifier, sourceIP string) error
	ConfirmPasswordReset(ctx context.Context, input service.ConfirmResetInput) error
	VerifyAccount(ctx context.Context, identifier, code string) (*domain.User, error)
	ResendVerification(ctx context.Context, identifier, sourceIP string) error
	CheckCode(ctx context.Context, identifier, code string) (bool, error)

	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error)
	DeleteAccount(ctx context.Context, userID string) error
	ListLoginHistory(ctx context.Context, userID string, page pagination.Params) ([]domain.LoginAttempt, int, error)
	ListCountries(ctx context.Context, page pagination.Params) ([]domain.Country, int, error)
}

// PaymentService is the payment API used by the payment handlers.
// *service.PaymentReconciler satisfies it.
type PaymentService interface {
	Create(ctx context.Context, input service.CreatePaymentInput) (*domain.Payment, error)
	Reconcile(ctx context.Context, method domain.PaymentMethod, c gateway.Confirmation) (*service.ReconcileResult, error)
	GetByUID(ctx context.Context, uid string) (*domain.Payment, error)
}

// messageResponse is the body of endpoints that only acknowledge.
type messageResponse struct {
	Message string `json:"message"`
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// On failure it writes the 400 response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !httputil.DecodeJSON(w, r, dst, maxBodyBytes) {
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteError(w, r, err, nil)
		return false
	}
	return true
}
