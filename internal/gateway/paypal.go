package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/mobilebackend/internal/domain"
	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
	"github.com/utafrali/mobilebackend/pkg/httpclient"
)

// PaypalConfig holds the PayPal REST app settings.
type PaypalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	Currency     string
	ReturnURL    string
	CancelURL    string
}

// PayPal webhook transmission headers.
const (
	headerAuthAlgo         = "PAYPAL-AUTH-ALGO"
	headerCertURL          = "PAYPAL-CERT-URL"
	headerTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	headerTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	headerTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

// EventOrderApproved is the webhook event that settles a payment.
const EventOrderApproved = "CHECKOUT.ORDER.APPROVED"

// Paypal creates checkout orders and verifies webhooks through the PayPal
// REST API.
type Paypal struct {
	cfg    PaypalConfig
	client httpclient.Doer
	now    func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewPaypal creates a PayPal gateway.
func NewPaypal(cfg PaypalConfig, client httpclient.Doer) *Paypal {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Paypal{cfg: cfg, client: client, now: time.Now}
}

// Method returns the PayPal payment method.
func (p *Paypal) Method() domain.PaymentMethod {
	return domain.PaymentMethodPaypal
}

type paypalToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a cached client_credentials token, refreshing it a minute
// before it expires.
func (p *Paypal) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && p.now().Before(p.expiresAt) {
		return p.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := httpclient.NewFormRequest(ctx, p.cfg.BaseURL+"/v1/oauth2/token", form, http.Header{
		"Accept": []string{"application/json"},
	})
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", httpclient.ParseResponseError(resp, "paypal")
	}
	defer func() { _ = resp.Body.Close() }()

	var tok paypalToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("paypal returned an empty access token")
	}

	p.accessToken = tok.AccessToken
	p.expiresAt = p.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return p.accessToken, nil
}

func (p *Paypal) postJSON(ctx context.Context, path string, body any, out any) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return httpclient.ParseResponseError(resp, "paypal")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id"`
	Description string       `json:"description,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

type paypalApplicationContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type paypalOrderRequest struct {
	Intent             string                   `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit     `json:"purchase_units"`
	ApplicationContext paypalApplicationContext `json:"application_context"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrder struct {
	ID    string       `json:"id"`
	Links []paypalLink `json:"links"`
}

// CreateBill creates a CAPTURE order; the approve link is the checkout URL.
func (p *Paypal) CreateBill(ctx context.Context, req BillRequest) (*Bill, error) {
	body := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.PaymentUID,
			Description: req.Description,
			Amount: paypalAmount{
				CurrencyCode: p.cfg.Currency,
				Value:        req.Amount.StringFixed(2),
			},
		}},
		ApplicationContext: paypalApplicationContext{
			ReturnURL: p.cfg.ReturnURL,
			CancelURL: p.cfg.CancelURL,
		},
	}

	var order paypalOrder
	if err := p.postJSON(ctx, "/v2/checkout/orders", body, &order); err != nil {
		return nil, apperrors.Gateway("paypal", err)
	}

	for _, link := range order.Links {
		if link.Rel == "approve" && order.ID != "" {
			return &Bill{ID: order.ID, URL: link.Href}, nil
		}
	}
	return nil, apperrors.Gateway("paypal", fmt.Errorf("order %q has no approve link", order.ID))
}

type paypalWebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID string `json:"id"`
	} `json:"resource"`
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type paypalVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// Verify asks PayPal to verify the webhook transmission signature, then
// maps CHECKOUT.ORDER.APPROVED to success. Other event types are ignored.
func (p *Paypal) Verify(ctx context.Context, c Confirmation) (*Verified, error) {
	if c.Source != SourceWebhook {
		return nil, fmt.Errorf("paypal does not accept %s confirmations", c.Source)
	}

	verifyReq := paypalVerifyRequest{
		AuthAlgo:         c.Headers.Get(headerAuthAlgo),
		CertURL:          c.Headers.Get(headerCertURL),
		TransmissionID:   c.Headers.Get(headerTransmissionID),
		TransmissionSig:  c.Headers.Get(headerTransmissionSig),
		TransmissionTime: c.Headers.Get(headerTransmissionTime),
		WebhookID:        p.cfg.WebhookID,
		WebhookEvent:     json.RawMessage(c.Body),
	}
	if verifyReq.TransmissionID == "" || verifyReq.TransmissionSig == "" || verifyReq.CertURL == "" {
		return nil, apperrors.AuthenticationFailed("missing paypal transmission headers")
	}

	var event paypalWebhookEvent
	if err := json.Unmarshal(c.Body, &event); err != nil {
		return nil, apperrors.InvalidInput("malformed paypal webhook body")
	}

	var result paypalVerifyResponse
	if err := p.postJSON(ctx, "/v1/notifications/verify-webhook-signature", verifyReq, &result); err != nil {
		return nil, apperrors.Gateway("paypal", err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return nil, apperrors.AuthenticationFailed("invalid paypal webhook signature")
	}

	if event.EventType != EventOrderApproved {
		return &Verified{BillID: event.Resource.ID, Status: domain.PaymentStatusPending, Ignored: true}, nil
	}
	if event.Resource.ID == "" {
		return nil, apperrors.InvalidInput("paypal webhook missing resource id")
	}
	return &Verified{BillID: event.Resource.ID, Status: domain.PaymentStatusSuccess}, nil
}
