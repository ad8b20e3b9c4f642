// Package notify delivers one-time codes and account emails asynchronously.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Channel constants.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Kind constants name the message being delivered.
const (
	KindVerificationCode   = "verification_code"
	KindPasswordResetCode  = "password_reset_code"
	KindWelcome            = "welcome"
	KindAccountDeactivated = "account_deactivated"
)

// Notification is one message to deliver on one channel.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Channel   string            `json:"channel"`
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject,omitempty"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// New creates a notification with a generated ID.
func New(userID, channel, kind, recipient string) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Channel:   channel,
		Kind:      kind,
		Recipient: recipient,
		Data:      make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
}
