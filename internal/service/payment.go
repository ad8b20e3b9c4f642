package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/gateway"
	"github.com/utafrali/mobilebackend/internal/repository"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// Reconciliation results, also used as metric labels.
const (
	ReconcileApplied     = "applied"
	ReconcileDuplicate   = "duplicate"
	ReconcileUnpaid      = "unpaid"
	ReconcileIgnored     = "ignored"
	ReconcileUnknownBill = "unknown_bill"
	ReconcileAuthFailed  = "auth_failed"
	ReconcileError       = "error"
)

// maxPaymentAmount is the largest value the numeric(12,2) amount column holds.
var maxPaymentAmount = decimal.RequireFromString("9999999999.99")

// PaymentReconciler creates pending payments with a gateway and settles them
// from the gateway's asynchronous confirmations.
type PaymentReconciler struct {
	payments repository.PaymentRepository
	gateways gateway.Registry
	events   PaymentEvents
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewPaymentReconciler creates a reconciler. Bill creation is abandoned after
// timeout.
func NewPaymentReconciler(
	payments repository.PaymentRepository,
	gateways gateway.Registry,
	events PaymentEvents,
	timeout time.Duration,
	logger *slog.Logger,
) *PaymentReconciler {
	return &PaymentReconciler{
		payments: payments,
		gateways: gateways,
		events:   events,
		logger:   logger,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePaymentInput holds the parameters for creating a payment.
type CreatePaymentInput struct {
	Amount      decimal.Decimal
	Method      domain.PaymentMethod
	IPAddress   string
	Email       string
	Name        string
	Description string
}

// ReconcileResult describes what a confirmation did. Payment is nil only for
// ignored provider events.
type ReconcileResult struct {
	Payment *domain.Payment
	Outcome string
}

// Create stores a pending payment and registers a bill with its gateway. A
// gateway failure is not an error: the payment is returned pending with no
// checkout URL. Cash payments are settled manually and skip the gateway.
func (r *PaymentReconciler) Create(ctx context.Context, input CreatePaymentInput) (*domain.Payment, error) {
	verr := &apperrors.ValidationError{}
	switch {
	case !input.Amount.IsPositive():
		verr.Add("amount", "must be greater than 0")
	case input.Amount.GreaterThan(maxPaymentAmount):
		verr.Add("amount", "must be at most "+maxPaymentAmount.String())
	case !input.Amount.Equal(input.Amount.Truncate(2)):
		verr.Add("amount", "must have at most 2 decimal places")
	}
	if !domain.IsValidPaymentMethod(string(input.Method)) {
		verr.Add("method", "must be one of: billplz, paypal, cash")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	now := r.now()
	payment := &domain.Payment{
		ID:          uuid.New().String(),
		UID:         uuid.New().String(),
		Amount:      input.Amount,
		IPAddress:   input.IPAddress,
		Status:      domain.PaymentStatusPending,
		Method:      input.Method,
		Email:       input.Email,
		Name:        input.Name,
		Description: input.Description,
		Timestamps:  domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := r.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	r.logger.InfoContext(ctx, "payment created",
		slog.String("payment_uid", payment.UID),
		slog.String("method", string(payment.Method)),
		slog.String("amount", payment.Amount.String()),
	)

	if payment.Method == domain.PaymentMethodCash {
		return payment, nil
	}

	bill, err := r.createBill(ctx, payment)
	if err != nil {
		r.logger.WarnContext(ctx, "payment left pending without checkout url",
			slog.String("payment_uid", payment.UID),
			slog.String("method", string(payment.Method)),
			slog.String("error", err.Error()),
		)
		return payment, nil
	}

	payment.BillID = &bill.ID
	payment.CheckoutURL = &bill.URL
	return payment, nil
}

func (r *PaymentReconciler) createBill(ctx context.Context, payment *domain.Payment) (*gateway.Bill, error) {
	gw, err := r.gateways.Get(payment.Method)
	if err != nil {
		return nil, err
	}

	billCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	bill, err := gw.CreateBill(billCtx, gateway.BillRequest{
		PaymentUID:  payment.UID,
		Amount:      payment.Amount,
		Email:       payment.Email,
		Name:        payment.Name,
		Description: payment.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}

	if err := r.payments.AttachBill(ctx, payment.ID, bill.ID, bill.URL); err != nil {
		return nil, fmt.Errorf("attach bill: %w", err)
	}
	return bill, nil
}

// Reconcile verifies a gateway confirmation and applies it. Only a pending
// payment transitions; repeating a confirmation returns the payment as it
// is without side effects.
func (r *PaymentReconciler) Reconcile(ctx context.Context, method domain.PaymentMethod, c gateway.Confirmation) (*ReconcileResult, error) {
	gw, err := r.gateways.Get(method)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	label := string(method)

	verified, err := gw.Verify(ctx, c)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthenticationFailed) {
			paymentReconciliationsTotal.WithLabelValues(label, ReconcileAuthFailed).Inc()
			r.logger.WarnContext(ctx, "payment confirmation failed authenticity check, possible spoofing",
				slog.String("gateway", label),
				slog.String("source", c.Source),
			)
			return nil, err
		}
		paymentReconciliationsTotal.WithLabelValues(label, ReconcileError).Inc()
		return nil, fmt.Errorf("verify %s confirmation: %w", label, err)
	}

	if verified.Ignored {
		paymentReconciliationsTotal.WithLabelValues(label, ReconcileIgnored).Inc()
		return &ReconcileResult{Outcome: ReconcileIgnored}, nil
	}

	if verified.Status == domain.PaymentStatusPending {
		payment, err := r.getByBill(ctx, label, verified.BillID)
		if err != nil {
			return nil, err
		}
		paymentReconciliationsTotal.WithLabelValues(label, ReconcileUnpaid).Inc()
		return &ReconcileResult{Payment: payment, Outcome: ReconcileUnpaid}, nil
	}

	payment, err := r.payments.TransitionFromPending(ctx, verified.BillID, verified.Status)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			paymentReconciliationsTotal.WithLabelValues(label, ReconcileError).Inc()
			return nil, fmt.Errorf("transition payment: %w", err)
		}
		existing, err := r.getByBill(ctx, label, verified.BillID)
		if err != nil {
			return nil, err
		}
		paymentReconciliationsTotal.WithLabelValues(label, ReconcileDuplicate).Inc()
		r.logger.InfoContext(ctx, "payment already settled, confirmation ignored",
			slog.String("payment_uid", existing.UID),
			slog.String("status", string(existing.Status)),
		)
		return &ReconcileResult{Payment: existing, Outcome: ReconcileDuplicate}, nil
	}

	paymentReconciliationsTotal.WithLabelValues(label, ReconcileApplied).Inc()
	r.logger.InfoContext(ctx, "payment settled",
		slog.String("payment_uid", payment.UID),
		slog.String("gateway", label),
		slog.String("source", c.Source),
		slog.String("status", string(payment.Status)),
	)
	r.publish(ctx, payment)

	return &ReconcileResult{Payment: payment, Outcome: ReconcileApplied}, nil
}

// getByBill loads the payment a verified confirmation refers to. An unknown
// bill is logged as a replay or spam signal.
func (r *PaymentReconciler) getByBill(ctx context.Context, label, billID string) (*domain.Payment, error) {
	payment, err := r.payments.GetByBillID(ctx, billID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			paymentReconciliationsTotal.WithLabelValues(label, ReconcileUnknownBill).Inc()
			r.logger.WarnContext(ctx, "confirmation for unknown bill, possible replay",
				slog.String("gateway", label),
				slog.String("bill_id", billID),
			)
			return nil, apperrors.ErrNotFound
		}
		paymentReconciliationsTotal.WithLabelValues(label, ReconcileError).Inc()
		return nil, fmt.Errorf("get payment by bill: %w", err)
	}
	return payment, nil
}

func (r *PaymentReconciler) publish(ctx context.Context, payment *domain.Payment) {
	var err error
	switch payment.Status {
	case domain.PaymentStatusSuccess:
		err = r.events.PublishPaymentSucceeded(ctx, payment)
	case domain.PaymentStatusFailed, domain.PaymentStatusCancelled:
		err = r.events.PublishPaymentFailed(ctx, payment)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to publish payment event",
			slog.String("payment_uid", payment.UID),
			slog.String("error", err.Error()),
		)
	}
}

// GetByUID returns a payment by its public identifier.
func (r *PaymentReconciler) GetByUID(ctx context.Context, uid string) (*domain.Payment, error) {
	payment, err := r.payments.GetByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}
