package domain

import "time"

// ConfirmationCode is one issued one-time code. Once IsUsed is set it never
// validates again.
type ConfirmationCode struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Code      string     `json:"-"`
	IPAddress string     `json:"ip_address"`
	IsUsed    bool       `json:"is_used"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Redeemable reports whether the code can still be consumed at now.
func (c *ConfirmationCode) Redeemable(now time.Time) bool {
	if c.IsUsed {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// SessionToken is the single live session of a user. The signed bearer
// token carries TokenID; a token whose id differs from the stored one has
// been rotated out.
type SessionToken struct {
	UserID    string    `json:"user_id"`
	TokenID   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
