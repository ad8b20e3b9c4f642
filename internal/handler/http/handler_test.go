package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/gateway"
	"github.com/utafrali/mobilebackend/internal/service"
	"github.com/utafrali/mobilebackend/pkg/health"
	"github.com/utafrali/mobilebackend/pkg/middleware"
	"github.com/utafrali/mobilebackend/pkg/pagination"
)

// ============================================================================
// Mock Services
// ============================================================================

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) Signup(ctx context.Context, input service.SignupInput) (*domain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAccountService) Login(ctx context.Context, input service.LoginInput) (*service.LoginResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

func (m *mockAccountService) ChangePassword(ctx context.Context, userID string, input service.ChangePasswordInput) error {
	return m.Called(ctx, userID, input).Error(0)
}

func (m *mockAccountService) RequestPasswordReset(ctx context.Context, identifier, sourceIP string) error {
	return m.Called(ctx, identifier, sourceIP).Error(0)
}

func (m *mockAccountService) ConfirmPasswordReset(ctx context.Context, input service.ConfirmResetInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *mockAccountService) VerifyAccount(ctx context.Context, identifier, code string) (*domain.User, error) {
	args := m.Called(ctx, identifier, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAccountService) ResendVerification(ctx context.Context, identifier, sourceIP string) error {
	return m.Called(ctx, identifier, sourceIP).Error(0)
}

func (m *mockAccountService) CheckCode(ctx context.Context, identifier, code string) (bool, error) {
	args := m.Called(ctx, identifier, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAccountService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, userID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockAccountService) DeleteAccount(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockAccountService) ListLoginHistory(ctx context.Context, userID string, page pagination.Params) ([]domain.LoginAttempt, int, error) {
	args := m.Called(ctx, userID, page)
	return args.Get(0).([]domain.LoginAttempt), args.Int(1), args.Error(2)
}

func (m *mockAccountService) ListCountries(ctx context.Context, page pagination.Params) ([]domain.Country, int, error) {
	args := m.Called(ctx, page)
	return args.Get(0).([]domain.Country), args.Int(1), args.Error(2)
}

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) Create(ctx context.Context, input service.CreatePaymentInput) (*domain.Payment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *mockPaymentService) Reconcile(ctx context.Context, method domain.PaymentMethod, c gateway.Confirmation) (*service.ReconcileResult, error) {
	args := m.Called(ctx, method, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReconcileResult), args.Error(1)
}

func (m *mockPaymentService) GetByUID(ctx context.Context, uid string) (*domain.Payment, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

// stubLimiter allows or denies every request.
type stubLimiter struct {
	allow bool
	err   error
}

func (l stubLimiter) Allow(_ context.Context, _ string) (bool, int64, time.Duration, error) {
	if l.allow {
		return true, 4, 0, l.err
	}
	return false, 0, 30 * time.Second, l.err
}

// ============================================================================
// Test Helpers
// ============================================================================

const testToken = "valid-token"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testTokenValidator(_ context.Context, token string) (*middleware.Claims, error) {
	if token != testToken {
		return nil, errors.New("invalid token")
	}
	return &middleware.Claims{UserID: "user-1", TokenID: "tok-1"}, nil
}

type testServer struct {
	accounts *mockAccountService
	payments *mockPaymentService
	handler  http.Handler
}

func newTestServer(limiter middleware.Limiter) *testServer {
	s := &testServer{
		accounts: new(mockAccountService),
		payments: new(mockPaymentService),
	}
	cfg := RouterConfig{
		CORS:      middleware.DefaultCORSConfig(),
		RateLimit: middleware.DefaultRateLimitConfig(),
		Limiter:   limiter,
	}
	s.handler = NewRouter(s.accounts, s.payments, testTokenValidator, health.NewHandler(), cfg, testLogger())
	return s
}

func (s *testServer) do(t *testing.T, method, target string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string              `json:"code"`
		Message   string              `json:"message"`
		Fields    map[string][]string `json:"fields"`
		RequestID string              `json:"request_id"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}
