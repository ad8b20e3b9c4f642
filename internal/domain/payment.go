package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

// PaymentMethod selects the gateway that settles a payment.
type PaymentMethod string

const (
	PaymentMethodBillplz PaymentMethod = "billplz"
	PaymentMethodPaypal  PaymentMethod = "paypal"
	PaymentMethodCash    PaymentMethod = "cash"
)

// ValidPaymentMethods returns all accepted payment methods.
func ValidPaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodBillplz, PaymentMethodPaypal, PaymentMethodCash}
}

// IsValidPaymentMethod checks whether m is an accepted payment method.
func IsValidPaymentMethod(m string) bool {
	return slices.Contains(ValidPaymentMethods(), PaymentMethod(m))
}

// Payment is one payment or donation intent.
type Payment struct {
	ID          string          `json:"-"`
	UID         string          `json:"uid"`
	Amount      decimal.Decimal `json:"amount"`
	IPAddress   string          `json:"-"`
	Status      PaymentStatus   `json:"status"`
	Method      PaymentMethod   `json:"method"`
	BillID      *string         `json:"bill_id,omitempty"`
	CheckoutURL *string         `json:"checkout_url"`
	Email       string          `json:"email,omitempty"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Timestamps
}
