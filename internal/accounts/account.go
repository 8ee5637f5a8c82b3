package accounts

import (
	"strings"
	"time"
)

// Account is a registered Gmail address.
type Account struct {
	Email    string    `json:"email"`
	AddedAt  time.Time `json:"added_at"`
	TokenRef string    `json:"token_ref"`
}

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

// NormalizeEmail trims and lower-cases an email address and checks that it has
// a non-empty local part and domain.
func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	local, domain, ok := strings.Cut(normalized, "@")
	if !ok || len(normalized) > MaxEmailLength || local == "" || domain == "" || strings.Contains(domain, "@") || strings.ContainsAny(normalized, " \t\r\n/\\") {
		return "", &InvalidEmailError{Email: email}
	}
	return normalized, nil
}
