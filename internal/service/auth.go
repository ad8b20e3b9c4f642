package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/notify"
	"github.com/utafrali/mobilebackend/internal/repository"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
	"github.com/utafrali/mobilebackend/pkg/pagination"
)

// AuthService implements the account lifecycle: signup, login, verification
// and password management.
type AuthService struct {
	users     repository.UserRepository
	attempts  repository.LoginAttemptRepository
	countries repository.CountryRepository
	otp       *OTPEngine
	tokens    *TokenIssuer
	events    UserEvents
	notifier  Notifier
	messages  notify.Messages
	logger    *slog.Logger

	hashCost int
	now      func() time.Time

	placeholderOnce sync.Once
	placeholderHash string
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	attempts repository.LoginAttemptRepository,
	countries repository.CountryRepository,
	otp *OTPEngine,
	tokens *TokenIssuer,
	events UserEvents,
	notifier Notifier,
	messages notify.Messages,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		attempts:  attempts,
		countries: countries,
		otp:       otp,
		tokens:    tokens,
		events:    events,
		notifier:  notifier,
		messages:  messages,
		logger:    logger,
		hashCost:  bcryptCost,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// comparePlaceholder spends one bcrypt comparison at the service cost so an
// unknown identifier takes as long as a wrong password.
func (s *AuthService) comparePlaceholder(password string) {
	s.placeholderOnce.Do(func() {
		s.placeholderHash, _ = hashPassword("placeholder-"+uuid.NewString(), s.hashCost)
	})
	passwordMatches(s.placeholderHash, password)
}

// --- Input/Output types ---

// SignupInput holds the parameters for creating an account.
type SignupInput struct {
	FirstName       string
	LastName        string
	Email           string
	Mobile          string
	Password        string
	ConfirmPassword string
	Gender          domain.Gender
	CountryID       *int
	IsClient        bool
	IPAddress       string
}

// LoginInput holds the parameters for a login attempt.
type LoginInput struct {
	Identifier string
	Password   string
	IPAddress  string
	UserAgent  string
}

// LoginResult is a successful login. Token is empty for unverified
// accounts, which must complete verification first.
type LoginResult struct {
	User  *domain.User
	Token string
}

// ChangePasswordInput holds the parameters for changing a password.
type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// ConfirmResetInput holds the parameters for completing a password reset.
type ConfirmResetInput struct {
	Identifier      string
	Code            string
	Password        string
	ConfirmPassword string
}

// unknownIdentifier is returned for public endpoints that look a user up by
// identifier. It carries ErrNotFound but reads the same for every identifier.
func unknownIdentifier() *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "NOT_FOUND",
		Message: "no account matches the given identifier",
		Status:  http.StatusBadRequest,
		Err:     apperrors.ErrNotFound,
	}
}

// unknownLogin reads exactly like InvalidCredentials but still carries
// ErrNotFound for callers that need to tell the cases apart.
func unknownLogin() *apperrors.AppError {
	err := apperrors.InvalidCredentials()
	err.Err = apperrors.ErrNotFound
	return err
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, unknownIdentifier()
		}
		return nil, fmt.Errorf("get user by identifier: %w", err)
	}
	return user, nil
}

// --- Signup & login ---

// Signup creates an unverified account and sends it a verification code.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*domain.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Mobile = strings.TrimSpace(input.Mobile)

	verr := &apperrors.ValidationError{}
	if input.Password != input.ConfirmPassword {
		verr.Add("confirm_password", "passwords do not match")
	}
	checkPassword(verr, "password", input.Password, input.Email, input.Mobile)
	if !input.Gender.Valid() {
		verr.Add("gender", "must be one of: 0, 1, 2")
	}
	if err := s.checkCountry(ctx, verr, input.CountryID); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, verr, "email", input.Email); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, verr, "mobile", input.Mobile); err != nil {
		return nil, err
	}
	if verr.HasErrors() {
		return nil, verr
	}

	hash, err := hashPassword(input.Password, s.hashCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        input.Email,
		Mobile:       input.Mobile,
		PasswordHash: hash,
		Gender:       input.Gender,
		CountryID:    input.CountryID,
		Wallet:       decimal.Zero,
		IsActive:     true,
		IsClient:     input.IsClient,
		Timestamps:   domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent signup took the identifier after checkUnique.
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperrors.ErrAlreadyExists) && appErr.Field != "" {
			return nil, apperrors.Validation(appErr.Field, fmt.Sprintf("user with this %s already exists", appErr.Field))
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.Bool("is_client", user.IsClient),
	)

	if err := s.sendCode(ctx, user, input.IPAddress, s.messages.VerificationCode); err != nil {
		s.logger.ErrorContext(ctx, "failed to issue signup verification code",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	if user.Email != "" {
		s.notifier.Enqueue(ctx, s.messages.Welcome(user.ID, user.Email, user.FullName()))
	}
	s.publish(ctx, "user.registered", user, s.events.PublishUserRegistered)

	return user, nil
}

func (s *AuthService) checkUnique(ctx context.Context, verr *apperrors.ValidationError, field, value string) error {
	if value == "" {
		return nil
	}
	_, err := s.users.GetByIdentifier(ctx, value)
	switch {
	case err == nil:
		verr.Add(field, fmt.Sprintf("user with this %s already exists", field))
		return nil
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check %s uniqueness: %w", field, err)
	}
}

func (s *AuthService) checkCountry(ctx context.Context, verr *apperrors.ValidationError, id *int) error {
	if id == nil {
		return nil
	}
	ok, err := s.countries.Exists(ctx, *id)
	if err != nil {
		return fmt.Errorf("check country: %w", err)
	}
	if !ok {
		verr.Add("country_id", "unknown country")
	}
	return nil
}

// Login checks credentials. The attempt is recorded before the password is
// compared. Unverified accounts log in without a token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(input.Identifier))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			loginAttemptsTotal.WithLabelValues("unknown_identifier").Inc()
			s.comparePlaceholder(input.Password)
			return nil, unknownLogin()
		}
		return nil, fmt.Errorf("get user for login: %w", err)
	}

	attempt := &domain.LoginAttempt{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: s.now(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record login attempt: %w", err)
	}

	if !user.IsActive {
		loginAttemptsTotal.WithLabelValues("disabled").Inc()
		return nil, apperrors.AccountDisabled()
	}

	if !passwordMatches(user.PasswordHash, input.Password) {
		loginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		s.logger.InfoContext(ctx, "login failed",
			slog.String("user_id", user.ID),
			slog.String("ip_address", input.IPAddress),
		)
		return nil, apperrors.InvalidCredentials()
	}

	if err := s.attempts.MarkSucceeded(ctx, attempt.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark login attempt successful",
			slog.String("attempt_id", attempt.ID),
			slog.String("error", err.Error()),
		)
	}
	loginAttemptsTotal.WithLabelValues("success").Inc()

	result := &LoginResult{User: user}
	if user.IsVerified {
		token, err := s.tokens.Regenerate(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("issue session token: %w", err)
		}
		result.Token = token
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("is_verified", user.IsVerified),
		slog.Bool("is_approved", user.IsApproved),
	)

	return result, nil
}

// --- Passwords ---

// ChangePassword replaces the password of an authenticated user. A confirm
// mismatch is reported before the old password is checked.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, input ChangePasswordInput) error {
	if input.NewPassword != input.ConfirmPassword {
		return apperrors.Validation("confirm_password", "passwords do not match")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for password change: %w", err)
	}

	if !passwordMatches(user.PasswordHash, input.OldPassword) {
		return apperrors.InvalidCredentials()
	}

	verr := &apperrors.ValidationError{}
	checkPassword(verr, "new_password", input.NewPassword, user.Email, user.Mobile)
	if verr.HasErrors() {
		return verr
	}

	if err := s.setPassword(ctx, user, input.NewPassword); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", user.ID))
	return nil
}

// RequestPasswordReset sends a reset code to the account's mobile. Delivery
// happens in the background and never affects the result.
func (s *AuthService) RequestPasswordReset(ctx context.Context, identifier, sourceIP string) error {
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return err
	}

	if err := s.sendCode(ctx, user, sourceIP, s.messages.PasswordResetCode); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset requested", slog.String("user_id", user.ID))
	return nil
}

// ConfirmPasswordReset redeems a reset code and sets the new password. The
// code is consumed before the password changes, so a failed update never
// leaves the code reusable and an invalid code never changes the password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, input ConfirmResetInput) error {
	verr := &apperrors.ValidationError{}
	if input.Password != input.ConfirmPassword {
		verr.Add("confirm_password", "passwords do not match")
	}

	user, err := s.lookup(ctx, input.Identifier)
	if err != nil {
		return err
	}

	checkPassword(verr, "password", input.Password, user.Email, user.Mobile)
	if verr.HasErrors() {
		return verr
	}

	hash, err := hashPassword(input.Password, s.hashCost)
	if err != nil {
		return err
	}

	if _, err := s.otp.Consume(ctx, user.ID, input.Code); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidCode()
		}
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.afterPasswordChange(ctx, user)

	s.logger.InfoContext(ctx, "password reset completed", slog.String("user_id", user.ID))
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, user *domain.User, password string) error {
	hash, err := hashPassword(password, s.hashCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.afterPasswordChange(ctx, user)
	return nil
}

// afterPasswordChange ends the current session and announces the change.
func (s *AuthService) afterPasswordChange(ctx context.Context, user *domain.User) {
	if err := s.tokens.Revoke(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke session after password change",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	s.publish(ctx, "user.password_changed", user, s.events.PublishUserPasswordChanged)
}

// --- Verification ---

// VerifyAccount redeems a verification code and marks the account verified.
// Client accounts additionally need admin approval for privileged actions.
func (s *AuthService) VerifyAccount(ctx context.Context, identifier, code string) (*domain.User, error) {
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if _, err := s.otp.Consume(ctx, user.ID, code); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidCode()
		}
		return nil, err
	}

	if err := s.users.SetVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("mark user verified: %w", err)
	}
	user.IsVerified = true

	s.publish(ctx, "user.verified", user, s.events.PublishUserVerified)
	s.logger.InfoContext(ctx, "account verified",
		slog.String("user_id", user.ID),
		slog.Bool("needs_approval", user.NeedsApproval()),
	)
	return user, nil
}

// ResendVerification sends another verification code. Earlier codes stay
// valid.
func (s *AuthService) ResendVerification(ctx context.Context, identifier, sourceIP string) error {
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return apperrors.AccountDisabled()
	}
	return s.sendCode(ctx, user, sourceIP, s.messages.VerificationCode)
}

// CheckCode reports whether code is currently redeemable for the account
// without consuming it.
func (s *AuthService) CheckCode(ctx context.Context, identifier, code string) (bool, error) {
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return false, err
	}
	return s.otp.Validate(ctx, user.ID, code)
}

// sendCode issues a code and queues it for delivery by SMS.
func (s *AuthService) sendCode(ctx context.Context, user *domain.User, sourceIP string,
	message func(userID, mobile, code string) *notify.Notification,
) error {
	code, err := s.otp.Issue(ctx, user.ID, sourceIP)
	if err != nil {
		return fmt.Errorf("issue confirmation code: %w", err)
	}
	s.notifier.Enqueue(ctx, message(user.ID, user.Mobile, code.Code))
	return nil
}

// --- Profile ---

// GetProfile returns the user's own profile.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the given profile changes.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	verr := &apperrors.ValidationError{}
	if update.FirstName != nil && strings.TrimSpace(*update.FirstName) == "" {
		verr.Add("first_name", "must not be empty")
	}
	if update.LastName != nil && strings.TrimSpace(*update.LastName) == "" {
		verr.Add("last_name", "must not be empty")
	}
	if update.Gender != nil && !update.Gender.Valid() {
		verr.Add("gender", "must be one of: 0, 1, 2")
	}
	if err := s.checkCountry(ctx, verr, update.CountryID); err != nil {
		return nil, err
	}
	if verr.HasErrors() {
		return nil, verr
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.InfoContext(ctx, "user profile updated", slog.String("user_id", user.ID))
	return user, nil
}

// DeleteAccount removes the account with its codes, session and login
// history.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for deletion: %w", err)
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if user.Email != "" {
		s.notifier.Enqueue(ctx, s.messages.AccountDeactivated(user.ID, user.Email, user.FullName()))
	}
	s.publish(ctx, "user.deleted", user, s.events.PublishUserDeleted)

	s.logger.InfoContext(ctx, "account deleted", slog.String("user_id", user.ID))
	return nil
}

// ListLoginHistory returns a page of the user's login attempts.
func (s *AuthService) ListLoginHistory(ctx context.Context, userID string, page pagination.Params) ([]domain.LoginAttempt, int, error) {
	attempts, total, err := s.attempts.ListByUser(ctx, userID, page.Offset(), page.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list login history: %w", err)
	}
	return attempts, total, nil
}

// ListCountries returns a page of selectable countries.
func (s *AuthService) ListCountries(ctx context.Context, page pagination.Params) ([]domain.Country, int, error) {
	countries, total, err := s.countries.List(ctx, page.Offset(), page.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list countries: %w", err)
	}
	return countries, total, nil
}

// publish sends a user event. Failures are logged and never fail the call.
func (s *AuthService) publish(ctx context.Context, name string, user *domain.User,
	fn func(context.Context, *domain.User) error,
) {
	if err := fn(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish "+name+" event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}
