package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/pkg/database"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

const paymentColumns = `id, uid, amount::text, ip_address, status, method, bill_id, checkout_url,
		email, name, description, created_at, updated_at`

// PaymentRepository implements repository.PaymentRepository using PostgreSQL.
type PaymentRepository struct {
	db database.DBTX
}

// NewPaymentRepository creates a new PostgreSQL-backed payment repository.
func NewPaymentRepository(db database.DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment into the database.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) (err error) {
	query := `
		INSERT INTO payments (id, uid, amount, ip_address, status, method, bill_id, checkout_url,
			email, name, description, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	ctx, end := database.TraceQuery(ctx, "CreatePayment", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.UID,
		p.Amount.String(),
		p.IPAddress,
		string(p.Status),
		string(p.Method),
		p.BillID,
		p.CheckoutURL,
		p.Email,
		p.Name,
		p.Description,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByUID retrieves a payment by its public identifier.
func (r *PaymentRepository) GetByUID(ctx context.Context, uid string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE uid = $1`
	return r.scanPayment(ctx, "GetPaymentByUID", query, uid)
}

// GetByBillID retrieves a payment by the gateway bill identifier.
func (r *PaymentRepository) GetByBillID(ctx context.Context, billID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE bill_id = $1`
	return r.scanPayment(ctx, "GetPaymentByBillID", query, billID)
}

// AttachBill records the gateway bill on a payment that has none yet.
func (r *PaymentRepository) AttachBill(ctx context.Context, id, billID, checkoutURL string) (err error) {
	query := `
		UPDATE payments SET bill_id = $2, checkout_url = $3, updated_at = $4
		WHERE id = $1 AND bill_id IS NULL`

	ctx, end := database.TraceQuery(ctx, "AttachPaymentBill", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id, billID, checkoutURL, time.Now().UTC())
	if err != nil {
		if _, ok := uniqueViolationOn(err); ok {
			return apperrors.AlreadyExists("payment", "bill_id", billID)
		}
		return fmt.Errorf("attach payment bill: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("payment", id)
	}
	return nil
}

// TransitionFromPending is a compare-and-set on status: only a row still
// pending is updated, so a redelivered confirmation cannot apply twice.
func (r *PaymentRepository) TransitionFromPending(ctx context.Context, billID string, status domain.PaymentStatus) (*domain.Payment, error) {
	query := `
		UPDATE payments SET status = $2, updated_at = $3
		WHERE bill_id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns

	return r.scanPayment(ctx, "TransitionPayment", query, billID, string(status), time.Now().UTC())
}

func (r *PaymentRepository) scanPayment(ctx context.Context, operation, query string, args ...any) (_ *domain.Payment, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	var (
		p              domain.Payment
		amount         string
		status, method string
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.UID,
		&amount,
		&p.IPAddress,
		&status,
		&method,
		&p.BillID,
		&p.CheckoutURL,
		&p.Email,
		&p.Name,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	p.Status = domain.PaymentStatus(status)
	p.Method = domain.PaymentMethod(method)
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse payment amount: %w", err)
	}
	return &p, nil
}
