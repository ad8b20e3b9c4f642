package repository

import (
	"context"
	"time"

	"github.com/utafrali/mobilebackend/internal/domain"
)

// UserRepository is the identity store.
type UserRepository interface {
	// Create inserts a new user. A duplicate email or mobile returns an
	// AlreadyExists error naming the field.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByIdentifier retrieves a user by mobile number or email address.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)

	// UpdateProfile applies the non-nil fields of update and returns the
	// updated user.
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetVerified marks the account verified.
	SetVerified(ctx context.Context, id string) error

	// Delete removes the user. Codes, session tokens and login history are
	// removed by cascade.
	Delete(ctx context.Context, id string) error
}

// ConfirmationRepository is the ledger of issued one-time codes.
type ConfirmationRepository interface {
	// Create stores a newly issued code.
	Create(ctx context.Context, code *domain.ConfirmationCode) error

	// ExistsUnused reports whether the user holds an unused, unexpired code
	// with the given value at now.
	ExistsUnused(ctx context.Context, userID, code string, now time.Time) (bool, error)

	// Consume marks a matching unused, unexpired code as used and returns it.
	// Only one of several concurrent callers can succeed; the others get
	// ErrNotFound.
	Consume(ctx context.Context, userID, code string, now time.Time) (*domain.ConfirmationCode, error)

	// RevokeUnused marks every unused code of the user as used and returns
	// how many were revoked.
	RevokeUnused(ctx context.Context, userID string, now time.Time) (int64, error)
}

// SessionTokenRepository holds the single live session per user.
type SessionTokenRepository interface {
	// Replace stores tokenID as the user's only session, replacing any
	// previous one in a single statement.
	Replace(ctx context.Context, userID, tokenID string, now time.Time) error

	// Get returns the user's current session.
	Get(ctx context.Context, userID string) (*domain.SessionToken, error)

	// Delete removes the user's session. Deleting a missing session is not
	// an error.
	Delete(ctx context.Context, userID string) error
}

// LoginAttemptRepository is the append-only login audit log.
type LoginAttemptRepository interface {
	// Create records an attempt before the credential check.
	Create(ctx context.Context, attempt *domain.LoginAttempt) error

	// MarkSucceeded flags a recorded attempt as successful.
	MarkSucceeded(ctx context.Context, id string) error

	// ListByUser returns the user's attempts, newest first, and the total
	// count.
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.LoginAttempt, int, error)
}

// CountryRepository reads the country list.
type CountryRepository interface {
	List(ctx context.Context, offset, limit int) ([]domain.Country, int, error)
	Exists(ctx context.Context, id int) (bool, error)
}

// PaymentRepository stores payment intents.
type PaymentRepository interface {
	// Create inserts a new pending payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByUID retrieves a payment by its public identifier.
	GetByUID(ctx context.Context, uid string) (*domain.Payment, error)

	// GetByBillID retrieves a payment by the gateway bill identifier.
	GetByBillID(ctx context.Context, billID string) (*domain.Payment, error)

	// AttachBill stores the gateway bill identifier and checkout URL.
	AttachBill(ctx context.Context, id, billID, checkoutURL string) error

	// TransitionFromPending moves the payment with billID from pending to
	// status. It returns the updated payment, or ErrNotFound when no pending
	// payment has that bill identifier.
	TransitionFromPending(ctx context.Context, billID string, status domain.PaymentStatus) (*domain.Payment, error)
}
