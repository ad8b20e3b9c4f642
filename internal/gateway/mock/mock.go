// Package mock provides a payment gateway for development without provider
// credentials.
package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/gateway"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// Gateway issues local checkout URLs and accepts confirmations signed with a
// fixed shared token.
type Gateway struct {
	method  domain.PaymentMethod
	baseURL string
	token   string
}

// New creates a mock gateway standing in for method. Confirmations must carry
// token in their "signature" parameter.
func New(method domain.PaymentMethod, baseURL, token string) *Gateway {
	return &Gateway{method: method, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

// Method returns the payment method this gateway stands in for.
func (g *Gateway) Method() domain.PaymentMethod {
	return g.method
}

// CreateBill returns a bill with a generated id and a local checkout URL.
func (g *Gateway) CreateBill(_ context.Context, req gateway.BillRequest) (*gateway.Bill, error) {
	id := "mock_bill_" + uuid.New().String()
	return &gateway.Bill{
		ID:  id,
		URL: fmt.Sprintf("%s/mock-checkout/%s?uid=%s", g.baseURL, id, req.PaymentUID),
	}, nil
}

// Verify accepts confirmations whose "signature" parameter equals the token.
// "paid=true" settles the bill and anything else fails it.
func (g *Gateway) Verify(_ context.Context, c gateway.Confirmation) (*gateway.Verified, error) {
	if c.Params.Get("signature") != g.token {
		return nil, apperrors.AuthenticationFailed("invalid mock signature")
	}
	v := &gateway.Verified{BillID: c.Params.Get("bill_id"), Status: domain.PaymentStatusFailed}
	if c.Params.Get("paid") == "true" {
		v.Status = domain.PaymentStatusSuccess
	}
	return v, nil
}
