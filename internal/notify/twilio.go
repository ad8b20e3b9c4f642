package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/mobilebackend/pkg/httpclient"
)

// DefaultTwilioBaseURL is the production Twilio REST endpoint.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig holds the Twilio account credentials.
type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
}

// Enabled reports whether enough credentials are present to send SMS.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// TwilioSender delivers SMS through the Twilio Messages API.
type TwilioSender struct {
	cfg    TwilioConfig
	client httpclient.Doer
}

// NewTwilioSender creates an SMS sender. client is usually a
// *httpclient.Breaker.
func NewTwilioSender(cfg TwilioConfig, client httpclient.Doer) *TwilioSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &TwilioSender{cfg: cfg, client: client}
}

// Name returns the name of this sender.
func (s *TwilioSender) Name() string {
	return "twilio"
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// Send posts the notification body as an SMS to n.Recipient.
func (s *TwilioSender) Send(ctx context.Context, n *Notification) error {
	form := url.Values{}
	form.Set("To", n.Recipient)
	form.Set("From", s.cfg.From)
	form.Set("Body", n.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.cfg.BaseURL, url.PathEscape(s.cfg.AccountSID))
	req, err := httpclient.NewFormRequest(ctx, endpoint, form, nil)
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, "twilio")
	}
	defer func() { _ = resp.Body.Close() }()

	var msg twilioMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return fmt.Errorf("decode twilio response: %w", err)
	}
	if msg.SID == "" {
		return fmt.Errorf("twilio response missing message sid")
	}
	return nil
}
