package service

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/utafrali/mobilebackend/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// PasswordViolations returns every password rule that password breaks. The
// password may not equal any of identifiers (the account email or mobile).
func PasswordViolations(password string, identifiers ...string) []string {
	var violations []string

	if len([]rune(password)) < minPasswordLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	allDigits := password != ""
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
	}
	if !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain at least one digit")
	}
	if allDigits {
		violations = append(violations, "must not be entirely numeric")
	}

	for _, id := range identifiers {
		if id != "" && strings.EqualFold(password, id) {
			violations = append(violations, "must not match your email or mobile")
			break
		}
	}

	return violations
}

// checkPassword adds the policy violations of password to verr under field.
func checkPassword(verr *apperrors.ValidationError, field, password string, identifiers ...string) {
	if v := PasswordViolations(password, identifiers...); len(v) > 0 {
		verr.Add(field, v...)
	}
}

func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
