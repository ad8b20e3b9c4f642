package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/utafrali/mobilebackend/internal/domain"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
	"github.com/utafrali/mobilebackend/pkg/httpclient"
)

// BillplzConfig holds the BillPlz account settings.
type BillplzConfig struct {
	BaseURL      string
	APIKey       string
	CollectionID string
	SignatureKey string
	CallbackURL  string
	RedirectURL  string
}

// Parameters BillPlz signs on the browser redirect, mapped to the key used
// in the signature source string.
var billplzRedirectFields = map[string]string{
	"billplz[id]":                 "billplzid",
	"billplz[paid]":               "billplzpaid",
	"billplz[paid_at]":            "billplzpaid_at",
	"billplz[transaction_id]":     "billplztransaction_id",
	"billplz[transaction_status]": "billplztransaction_status",
}

// Parameters BillPlz signs on the server callback.
var billplzCallbackFields = map[string]string{
	"id":                 "id",
	"collection_id":      "collection_id",
	"paid":               "paid",
	"state":              "state",
	"amount":             "amount",
	"paid_amount":        "paid_amount",
	"due_at":             "due_at",
	"email":              "email",
	"mobile":             "mobile",
	"name":               "name",
	"url":                "url",
	"paid_at":            "paid_at",
	"transaction_id":     "transaction_id",
	"transaction_status": "transaction_status",
}

const (
	billplzRedirectSignature = "billplz[x_signature]"
	billplzCallbackSignature = "x_signature"
)

// Billplz creates bills with the BillPlz v3 API and verifies its signed
// redirects and callbacks.
type Billplz struct {
	cfg    BillplzConfig
	client httpclient.Doer
}

// NewBillplz creates a BillPlz gateway.
func NewBillplz(cfg BillplzConfig, client httpclient.Doer) *Billplz {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Billplz{cfg: cfg, client: client}
}

// Method returns the BillPlz payment method.
func (b *Billplz) Method() domain.PaymentMethod {
	return domain.PaymentMethodBillplz
}

type billplzBill struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateBill creates a bill whose amount is sent in cents.
func (b *Billplz) CreateBill(ctx context.Context, req BillRequest) (*Bill, error) {
	form := url.Values{}
	form.Set("collection_id", b.cfg.CollectionID)
	form.Set("email", req.Email)
	form.Set("name", req.Name)
	form.Set("amount", req.Amount.Shift(2).Round(0).String())
	form.Set("callback_url", b.cfg.CallbackURL)
	form.Set("redirect_url", b.cfg.RedirectURL)
	form.Set("description", req.Description)
	form.Set("reference_1_label", "uid")
	form.Set("reference_1", req.PaymentUID)

	httpReq, err := httpclient.NewFormRequest(ctx, b.cfg.BaseURL+"/api/v3/bills", form, nil)
	if err != nil {
		return nil, apperrors.Gateway("billplz", err)
	}
	httpReq.SetBasicAuth(b.cfg.APIKey, "")

	resp, err := b.client.Do(ctx, httpReq)
	if err != nil {
		return nil, apperrors.Gateway("billplz", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "billplz")
	}
	defer func() { _ = resp.Body.Close() }()

	var bill billplzBill
	if err := json.NewDecoder(resp.Body).Decode(&bill); err != nil {
		return nil, apperrors.Gateway("billplz", fmt.Errorf("decode bill: %w", err))
	}
	if bill.ID == "" || bill.URL == "" {
		return nil, apperrors.Gateway("billplz", fmt.Errorf("bill response missing id or url"))
	}
	return &Bill{ID: bill.ID, URL: bill.URL}, nil
}

// Verify checks the x_signature of a redirect or callback. An unpaid
// callback fails the payment; an unpaid redirect leaves it pending.
func (b *Billplz) Verify(_ context.Context, c Confirmation) (*Verified, error) {
	var fields map[string]string
	var sigParam, idParam, paidParam string
	switch c.Source {
	case SourceRedirect:
		fields, sigParam, idParam, paidParam = billplzRedirectFields, billplzRedirectSignature, "billplz[id]", "billplz[paid]"
	case SourceCallback:
		fields, sigParam, idParam, paidParam = billplzCallbackFields, billplzCallbackSignature, "id", "paid"
	default:
		return nil, fmt.Errorf("billplz does not accept %s confirmations", c.Source)
	}

	if b.cfg.SignatureKey == "" {
		return nil, apperrors.AuthenticationFailed("billplz signature key not configured")
	}
	signature := c.Params.Get(sigParam)
	if signature == "" {
		return nil, apperrors.AuthenticationFailed("missing billplz signature")
	}
	expected := SignBillplz(b.cfg.SignatureKey, c.Params, fields)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, apperrors.AuthenticationFailed("invalid billplz signature")
	}

	billID := c.Params.Get(idParam)
	if billID == "" {
		return nil, apperrors.InvalidInput("missing billplz bill id")
	}

	v := &Verified{BillID: billID, Status: domain.PaymentStatusPending}
	switch {
	case c.Params.Get(paidParam) == "true":
		v.Status = domain.PaymentStatusSuccess
	case c.Source == SourceCallback:
		v.Status = domain.PaymentStatusFailed
	}
	return v, nil
}

// SignBillplz computes the BillPlz X-Signature over the declared fields
// present in params: each "key+value" piece is sorted, joined with "|" and
// signed with HMAC-SHA256.
func SignBillplz(key string, params url.Values, fields map[string]string) string {
	pieces := make([]string, 0, len(fields))
	for param, canonical := range fields {
		values, ok := params[param]
		if !ok || len(values) == 0 {
			continue
		}
		pieces = append(pieces, canonical+values[0])
	}
	sort.Strings(pieces)

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(strings.Join(pieces, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// BillplzRedirectFields returns a copy of the redirect signature mapping.
func BillplzRedirectFields() map[string]string {
	return maps.Clone(billplzRedirectFields)
}

// BillplzCallbackFields returns a copy of the callback signature mapping.
func BillplzCallbackFields() map[string]string {
	return maps.Clone(billplzCallbackFields)
}
