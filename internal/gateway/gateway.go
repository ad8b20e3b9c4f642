// Package gateway integrates the external payment providers that settle
// payments asynchronously.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/utafrali/mobilebackend/internal/domain"
)

// Confirmation sources.
const (
	SourceRedirect = "redirect"
	SourceCallback = "callback"
	SourceWebhook  = "webhook"
)

// BillRequest holds the parameters for creating a bill with a provider.
type BillRequest struct {
	PaymentUID  string
	Amount      decimal.Decimal
	Email       string
	Name        string
	Description string
}

// Bill is the provider's reference to a created checkout.
type Bill struct {
	ID  string
	URL string
}

// Confirmation is an inbound redirect, callback or webhook as received.
type Confirmation struct {
	Source  string
	Params  url.Values
	Headers http.Header
	Body    []byte
}

// Verified is the outcome of an authentic confirmation. Status is pending
// when the confirmation must not move the payment, and Ignored is set for
// provider events this service does not act on.
type Verified struct {
	BillID  string
	Status  domain.PaymentStatus
	Ignored bool
}

// Gateway defines the interface for payment provider integrations.
type Gateway interface {
	// Method returns the payment method this gateway settles.
	Method() domain.PaymentMethod

	// CreateBill registers a checkout with the provider.
	CreateBill(ctx context.Context, req BillRequest) (*Bill, error)

	// Verify checks the authenticity of a confirmation and extracts its
	// outcome. Forged confirmations fail with an AuthenticationFailed error.
	Verify(ctx context.Context, c Confirmation) (*Verified, error)
}

// Registry looks gateways up by payment method.
type Registry map[domain.PaymentMethod]Gateway

// NewRegistry indexes gateways by their method.
func NewRegistry(gateways ...Gateway) Registry {
	r := make(Registry, len(gateways))
	for _, g := range gateways {
		r[g.Method()] = g
	}
	return r
}

// Get returns the gateway for method.
func (r Registry) Get(method domain.PaymentMethod) (Gateway, error) {
	g, ok := r[method]
	if !ok {
		return nil, fmt.Errorf("no gateway configured for payment method %q", method)
	}
	return g, nil
}
