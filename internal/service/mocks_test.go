package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/gateway"
	"github.com/utafrali/mobilebackend/internal/notify"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserRepository) SetVerified(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Login Attempt Repository ---

type mockLoginAttemptRepository struct {
	mock.Mock
}

func (m *mockLoginAttemptRepository) Create(ctx context.Context, attempt *domain.LoginAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *mockLoginAttemptRepository) MarkSucceeded(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockLoginAttemptRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.LoginAttempt, int, error) {
	args := m.Called(ctx, userID, offset, limit)
	return args.Get(0).([]domain.LoginAttempt), args.Int(1), args.Error(2)
}

// --- Mock Country Repository ---

type mockCountryRepository struct {
	mock.Mock
}

func (m *mockCountryRepository) List(ctx context.Context, offset, limit int) ([]domain.Country, int, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]domain.Country), args.Int(1), args.Error(2)
}

func (m *mockCountryRepository) Exists(ctx context.Context, id int) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// --- Mock Payment Repository ---

type mockPaymentRepository struct {
	mock.Mock
}

func (m *mockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockPaymentRepository) GetByUID(ctx context.Context, uid string) (*domain.Payment, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *mockPaymentRepository) GetByBillID(ctx context.Context, billID string) (*domain.Payment, error) {
	args := m.Called(ctx, billID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *mockPaymentRepository) AttachBill(ctx context.Context, id, billID, checkoutURL string) error {
	args := m.Called(ctx, id, billID, checkoutURL)
	return args.Error(0)
}

func (m *mockPaymentRepository) TransitionFromPending(ctx context.Context, billID string, status domain.PaymentStatus) (*domain.Payment, error) {
	args := m.Called(ctx, billID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

// --- Mock Events ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockEvents) PublishUserVerified(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockEvents) PublishUserPasswordChanged(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockEvents) PublishUserDeleted(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockEvents) PublishPaymentSucceeded(ctx context.Context, payment *domain.Payment) error {
	return m.Called(ctx, payment).Error(0)
}

func (m *mockEvents) PublishPaymentFailed(ctx context.Context, payment *domain.Payment) error {
	return m.Called(ctx, payment).Error(0)
}

// --- Mock Gateway ---

type mockGateway struct {
	mock.Mock
	method domain.PaymentMethod
}

func (m *mockGateway) Method() domain.PaymentMethod {
	return m.method
}

func (m *mockGateway) CreateBill(ctx context.Context, req gateway.BillRequest) (*gateway.Bill, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Bill), args.Error(1)
}

func (m *mockGateway) Verify(ctx context.Context, c gateway.Confirmation) (*gateway.Verified, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Verified), args.Error(1)
}

// --- Fakes ---

// recordingNotifier keeps every queued notification.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notify.Notification
}

func (n *recordingNotifier) Enqueue(_ context.Context, msg *notify.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return true
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, msg := range n.sent {
		out = append(out, msg.Kind)
	}
	return out
}

// fakeCodes is an in-memory confirmation ledger with the same redemption
// rules as the PostgreSQL one.
type fakeCodes struct {
	mu    sync.Mutex
	codes []*domain.ConfirmationCode
}

func (f *fakeCodes) Create(_ context.Context, c *domain.ConfirmationCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.codes = append(f.codes, &cp)
	return nil
}

func (f *fakeCodes) ExistsUnused(_ context.Context, userID, code string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.codes {
		if c.UserID == userID && c.Code == code && c.Redeemable(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCodes) Consume(_ context.Context, userID, code string, now time.Time) (*domain.ConfirmationCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.codes {
		if c.UserID == userID && c.Code == code && c.Redeemable(now) {
			c.IsUsed = true
			usedAt := now
			c.UsedAt = &usedAt
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeCodes) RevokeUnused(_ context.Context, userID string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, c := range f.codes {
		if c.UserID == userID && !c.IsUsed {
			c.IsUsed = true
			usedAt := now
			c.UsedAt = &usedAt
			n++
		}
	}
	return n, nil
}

func (f *fakeCodes) unused(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.codes {
		if c.UserID == userID && !c.IsUsed {
			out = append(out, c.Code)
		}
	}
	return out
}

// fakeSessions is an in-memory session store.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.SessionToken
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]domain.SessionToken)}
}

func (f *fakeSessions) Replace(_ context.Context, userID, tokenID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[userID] = domain.SessionToken{UserID: userID, TokenID: tokenID, CreatedAt: now}
	return nil
}

func (f *fakeSessions) Get(_ context.Context, userID string) (*domain.SessionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessions) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, userID)
	return nil
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func hashForTest(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

// fixedCodes returns a generator that yields codes in order and then
// repeats the last one.
func fixedCodes(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}
