package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/service"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

const remoteIP = "192.0.2.1"

func signupBody() map[string]any {
	return map[string]any{
		"first_name":       "Ann",
		"last_name":        "Lee",
		"email":            "ann@example.com",
		"mobile":           "0123456789",
		"password":         "Secret123!",
		"confirm_password": "Secret123!",
		"gender":           1,
	}
}

// --- Signup ---

func TestSignup_Created(t *testing.T) {
	s := newTestServer(nil)
	s.accounts.On("Signup", mock.Anything, mock.MatchedBy(func(in service.SignupInput) bool {
		return in.Mobile == "0123456789" && in.Gender == domain.GenderFemale && in.IPAddress == remoteIP
	})).Return(&domain.User{ID: "user-1", Mobile: "0123456789"}, nil)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/signup", signupBody(), false)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var user domain.User
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &user))
	assert.Equal(t, "user-1", user.ID)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestSignup_RequestValidation(t *testing.T) {
	s := newTestServer(nil)
	body := signupBody()
	delete(body, "mobile")
	body["email"] = "not-an-email"

	rr := s.do(t, http.MethodPost, "/api/v1/auth/signup", body, false)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "mobile")
	assert.Contains(t, env.Error.Fields, "email")
	s.accounts.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
}

func TestSignup_ServiceValidationFields(t *testing.T) {
	s := newTestServer(nil)
	verr := apperrors.Validation("password", "must contain at least one digit", "must be at least 8 characters")
	verr.Add("email", "user with this email already exists")
	s.accounts.On("Signup", mock.Anything, mock.Anything).Return(nil, verr)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/signup", signupBody(), false)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Len(t, env.Error.Fields["password"], 2)
	assert.Equal(t, []string{"user with this email already exists"}, env.Error.Fields["email"])
}

func TestSignup_MalformedJSON(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_INPUT", decodeEnvelope(t, rr).Error.Code)
}

func TestSignup_UnsupportedMediaType(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

// --- Login ---

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		result     *service.LoginResult
		err        error
		wantStatus int
		wantToken  bool
		wantCode   string
	}{
		{
			name: "verified account gets token",
			result: &service.LoginResult{
				User:  &domain.User{ID: "user-1", Mobile: "0123456789", IsVerified: true, IsApproved: true},
				Token: "jwt",
			},
			wantStatus: http.StatusOK,
			wantToken:  true,
		},
		{
			name:       "unverified account gets no token",
			result:     &service.LoginResult{User: &domain.User{ID: "user-1"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			err:        apperrors.InvalidCredentials(),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "disabled",
			err:        apperrors.AccountDisabled(),
			wantStatus: http.StatusForbidden,
			wantCode:   "ACCOUNT_DISABLED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(nil)
			s.accounts.On("Login", mock.Anything, mock.MatchedBy(func(in service.LoginInput) bool {
				return in.Identifier == "0123456789" && in.IPAddress == remoteIP
			})).Return(tt.result, tt.err)

			rr := s.do(t, http.MethodPost, "/api/v1/auth/login",
				map[string]string{"identifier": "0123456789", "password": "Secret123!"}, false)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			env := decodeEnvelope(t, rr)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, env.Error.Code)
				return
			}
			var resp LoginResponse
			require.NoError(t, json.Unmarshal(env.Data, &resp))
			assert.Equal(t, "user-1", resp.ID)
			assert.Equal(t, tt.wantToken, strings.Contains(string(env.Data), `"token"`))
		})
	}
}

func TestLogin_UnknownIdentifierMatchesWrongPassword(t *testing.T) {
	unknown := apperrors.InvalidCredentials()
	unknown.Err = apperrors.ErrNotFound

	bodies := make([]string, 0, 2)
	for _, err := range []error{unknown, apperrors.InvalidCredentials()} {
		s := newTestServer(nil)
		s.accounts.On("Login", mock.Anything, mock.Anything).Return(nil, err)

		rr := s.do(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"identifier": "who", "password": "x"}, false)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		bodies = append(bodies, rr.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
}

func TestLogin_RateLimited(t *testing.T) {
	s := newTestServer(stubLimiter{allow: false})

	rr := s.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"identifier": "0123456789", "password": "x"}, false)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
	s.accounts.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestSignup_NotRateLimited(t *testing.T) {
	s := newTestServer(stubLimiter{allow: false})
	s.accounts.On("Signup", mock.Anything, mock.Anything).Return(&domain.User{ID: "user-1"}, nil)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/signup", signupBody(), false)

	assert.Equal(t, http.StatusCreated, rr.Code)
}

// --- Codes ---

func TestCheckCode(t *testing.T) {
	s := newTestServer(nil)
	s.accounts.On("CheckCode", mock.Anything, "0123456789", "123456").Return(true, nil)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/otp/check",
		map[string]string{"identifier": "0123456789", "code": "123456"}, false)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"valid":true}`, string(decodeEnvelope(t, rr).Data))
}

func TestCheckCode_MalformedCode(t *testing.T) {
	s := newTestServer(nil)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/otp/check",
		map[string]string{"identifier": "0123456789", "code": "12ab"}, false)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeEnvelope(t, rr).Error.Fields, "code")
}

func TestVerifyAccount_InvalidCode(t *testing.T) {
	s := newTestServer(nil)
	s.accounts.On("VerifyAccount", mock.Anything, "0123456789", "123456").Return(nil, apperrors.InvalidCode())

	rr := s.do(t, http.MethodPost, "/api/v1/auth/account/verify",
		map[string]string{"identifier": "0123456789", "code": "123456"}, false)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_CODE", decodeEnvelope(t, rr).Error.Code)
}

func TestResendVerification(t *testing.T) {
	s := newTestServer(stubLimiter{allow: true})
	s.accounts.On("ResendVerification", mock.Anything, "0123456789", remoteIP).Return(nil)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/verification/resend",
		map[string]string{"identifier": "0123456789"}, false)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "4", rr.Header().Get("X-RateLimit-Remaining"))
}

func TestForgetPassword_UnknownIdentifier(t *testing.T) {
	s := newTestServer(nil)
	s.accounts.On("RequestPasswordReset", mock.Anything, "ghost", remoteIP).Return(&apperrors.AppError{
		Code:    "NOT_FOUND",
		Message: "no account matches the given identifier",
		Status:  http.StatusBadRequest,
		Err:     apperrors.ErrNotFound,
	})

	rr := s.do(t, http.MethodPost, "/api/v1/auth/forget-password",
		map[string]string{"identifier": "ghost"}, false)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, rr).Error.Code)
}

func TestConfirmForgetPassword(t *testing.T) {
	s := newTestServer(nil)
	s.accounts.On("ConfirmPasswordReset", mock.Anything, service.ConfirmResetInput{
		Identifier:      "0123456789",
		Code:            "654321",
		Password:        "Brandnew9",
		ConfirmPassword: "Brandnew9",
	}).Return(nil)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/forget-password/confirm", map[string]string{
		"identifier":       "0123456789",
		"code":             "654321",
		"password":         "Brandnew9",
		"confirm_password": "Brandnew9",
	}, false)

	assert.Equal(t, http.StatusOK, rr.Code)
	s.accounts.AssertExpectations(t)
}

var redeemRoutes = []struct {
	path string
	body map[string]string
}{
	{"/api/v1/auth/forget-password/confirm", map[string]string{
		"identifier": "0123456789", "code": "654321", "password": "Brandnew9", "confirm_password": "Brandnew9",
	}},
	{"/api/v1/auth/account/verify", map[string]string{"identifier": "0123456789", "code": "654321"}},
	{"/api/v1/auth/otp/check", map[string]string{"identifier": "0123456789", "code": "654321"}},
}

func TestRedeemCode_RateLimited(t *testing.T) {
	for _, rt := range redeemRoutes {
		t.Run(rt.path, func(t *testing.T) {
			s := newTestServer(stubLimiter{allow: false})

			rr := s.do(t, http.MethodPost, rt.path, rt.body, false)

			assert.Equal(t, http.StatusTooManyRequests, rr.Code)
			assert.Equal(t, "TOO_MANY_REQUESTS", decodeEnvelope(t, rr).Error.Code)
			assert.Empty(t, s.accounts.Calls)
		})
	}
}

// keyLimiter records every key and denies the ones containing deny.
type keyLimiter struct {
	deny string
	keys []string
}

func (l *keyLimiter) Allow(_ context.Context, key string) (bool, int64, time.Duration, error) {
	l.keys = append(l.keys, key)
	if l.deny != "" && strings.Contains(key, l.deny) {
		return false, 0, time.Minute, nil
	}
	return true, 1, 0, nil
}

func TestRedeemCode_SharesIdentifierBudgetAcrossAddresses(t *testing.T) {
	limiter := &keyLimiter{}
	s := newTestServer(limiter)
	s.accounts.On("CheckCode", mock.Anything, " 0123456789 ", "654321").Return(false, nil)

	for _, addr := range []string{"198.51.100.1:1000", "198.51.100.2:1000"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/otp/check",
			strings.NewReader(`{"identifier":" 0123456789 ","code":"654321"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	assert.Equal(t, []string{
		"rl:ip:198.51.100.1:route:POST /api/v1/auth/otp/check",
		"rl:redeem:id:0123456789",
		"rl:ip:198.51.100.2:route:POST /api/v1/auth/otp/check",
		"rl:redeem:id:0123456789",
	}, limiter.keys)
	s.accounts.AssertExpectations(t)
}

func TestRedeemCode_IdentifierBudgetExhausted(t *testing.T) {
	for _, rt := range redeemRoutes {
		t.Run(rt.path, func(t *testing.T) {
			s := newTestServer(&keyLimiter{deny: "redeem:id:0123456789"})

			rr := s.do(t, http.MethodPost, rt.path, rt.body, false)

			assert.Equal(t, http.StatusTooManyRequests, rr.Code)
			assert.Empty(t, s.accounts.Calls)
		})
	}
}

func TestLogin_IdentifierBudgetIsSeparateFromRedeem(t *testing.T) {
	limiter := &keyLimiter{deny: "redeem:"}
	s := newTestServer(limiter)
	s.accounts.On("Login", mock.Anything, mock.Anything).Return(nil, apperrors.InvalidCredentials())

	rr := s.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"identifier": "Ann@Example.com", "password": "x"}, false)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, limiter.keys, "rl:login:id:ann@example.com")
}

// --- Change password ---

func TestChangePassword_RequiresAuth(t *testing.T) {
	s := newTestServer(nil)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"old_password": "a", "new_password": "b", "confirm_password": "b",
	}, false)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(nil)
	s.accounts.On("ChangePassword", mock.Anything, "user-1", service.ChangePasswordInput{
		OldPassword: "Secret123!", NewPassword: "NewSecret1", ConfirmPassword: "NewSecret1",
	}).Return(nil)

	rr := s.do(t, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"old_password": "Secret123!", "new_password": "NewSecret1", "confirm_password": "NewSecret1",
	}, true)

	assert.Equal(t, http.StatusOK, rr.Code)
	s.accounts.AssertExpectations(t)
}

func TestChangePassword_ConfirmMismatch(t *testing.T) {
	s := newTestServer(nil)
	s.accounts.On("ChangePassword", mock.Anything, "user-1", mock.Anything).
		Return(apperrors.Validation("confirm_password", "passwords do not match"))

	rr := s.do(t, http.MethodPost, "/api/v1/auth/change-password", map[string]string{
		"old_password": "Secret123!", "new_password": "NewSecret1", "confirm_password": "Other1",
	}, true)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{"passwords do not match"}, decodeEnvelope(t, rr).Error.Fields["confirm_password"])
}
