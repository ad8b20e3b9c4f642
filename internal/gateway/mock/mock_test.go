package mock

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/mobilebackend/internal/domain"
	"github.com/utafrali/mobilebackend/internal/gateway"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

func TestGateway(t *testing.T) {
	g := New(domain.PaymentMethodBillplz, "http://localhost:8080/", "tok")
	assert.Equal(t, domain.PaymentMethodBillplz, g.Method())

	bill, err := g.CreateBill(context.Background(), gateway.BillRequest{PaymentUID: "uid-1", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bill.ID, "mock_bill_"))
	assert.True(t, strings.HasPrefix(bill.URL, "http://localhost:8080/mock-checkout/"+bill.ID))

	v, err := g.Verify(context.Background(), gateway.Confirmation{Params: url.Values{
		"signature": {"tok"}, "bill_id": {bill.ID}, "paid": {"true"},
	}})
	require.NoError(t, err)
	assert.Equal(t, &gateway.Verified{BillID: bill.ID, Status: domain.PaymentStatusSuccess}, v)

	v, err = g.Verify(context.Background(), gateway.Confirmation{Params: url.Values{
		"signature": {"tok"}, "bill_id": {bill.ID},
	}})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, v.Status)

	_, err = g.Verify(context.Background(), gateway.Confirmation{Params: url.Values{"signature": {"nope"}}})
	assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
}
