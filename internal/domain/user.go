package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Gender is stored as a small integer.
type Gender int16

const (
	GenderMale Gender = iota
	GenderFemale
	GenderOther
)

// Valid reports whether g is a known gender value.
func (g Gender) Valid() bool {
	return g >= GenderMale && g <= GenderOther
}

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	case GenderOther:
		return "other"
	default:
		return "unknown"
	}
}

// User represents a registered account.
type User struct {
	ID           string          `json:"id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Email        string          `json:"email"`
	Mobile       string          `json:"mobile"`
	PasswordHash string          `json:"-"`
	Image        string          `json:"image,omitempty"`
	Gender       Gender          `json:"gender"`
	CountryID    *int            `json:"country_id,omitempty"`
	Wallet       decimal.Decimal `json:"wallet"`
	IsVerified   bool            `json:"is_verified"`
	IsApproved   bool            `json:"is_approved"`
	IsActive     bool            `json:"is_active"`
	IsClient     bool            `json:"is_client"`
	Timestamps
}

// NeedsApproval reports whether the account is a client account still
// waiting for admin approval. Such accounts may log in but privileged actions
// must check both flags.
func (u *User) NeedsApproval() bool {
	return u.IsClient && !u.IsApproved
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Gender    *Gender
	Image     *string
	CountryID *int
}

// Country is a selectable country for the profile.
type Country struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ISOCode   string `json:"iso_code"`
	PhoneCode string `json:"phone_code"`
}

// LoginAttempt is an append-only audit record of one login attempt.
type LoginAttempt struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}
