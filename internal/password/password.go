// Package password generates account passwords and points users at the
// Google password change page.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

// Character classes used by DefaultPolicy.
const (
	Lowercase = "abcdefghijklmnopqrstuvwxyz"
	Uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits    = "0123456789"
	Symbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// DefaultLength is the length of generated passwords when none is configured.
const DefaultLength = 16

// Class is a set of characters with a minimum number of occurrences.
type Class struct {
	Name  string
	Chars string
	Min   int
}

// Policy describes which characters a password is drawn from. Every
// character is drawn from the union of all classes.
type Policy struct {
	Classes []Class
}

// DefaultPolicy requires one lowercase letter, one uppercase letter, one digit
// and one symbol.
func DefaultPolicy() Policy {
	return Policy{Classes: []Class{
		{Name: "lowercase", Chars: Lowercase, Min: 1},
		{Name: "uppercase", Chars: Uppercase, Min: 1},
		{Name: "digit", Chars: Digits, Min: 1},
		{Name: "symbol", Chars: Symbols, Min: 1},
	}}
}

// InvalidPolicyError is returned when no password of the requested length can
// satisfy the policy.
type InvalidPolicyError struct {
	Length int
	Reason string
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("invalid password policy for length %d: %s", e.Length, e.Reason)
}

// Validate checks that a password of length can satisfy p.
func (p Policy) Validate(length int) error {
	if length <= 0 {
		return &InvalidPolicyError{Length: length, Reason: "length must be positive"}
	}
	if len(p.Classes) == 0 {
		return &InvalidPolicyError{Length: length, Reason: "no character classes"}
	}

	total := 0
	alphabet := 0
	for _, c := range p.Classes {
		if c.Min < 0 {
			return &InvalidPolicyError{Length: length, Reason: fmt.Sprintf("class %q has negative minimum %d", c.Name, c.Min)}
		}
		if c.Chars == "" && c.Min > 0 {
			return &InvalidPolicyError{Length: length, Reason: fmt.Sprintf("class %q is empty but requires %d characters", c.Name, c.Min)}
		}
		total += c.Min
		alphabet += len(c.Chars)
	}
	if alphabet == 0 {
		return &InvalidPolicyError{Length: length, Reason: "all character classes are empty"}
	}
	if length < total {
		return &InvalidPolicyError{Length: length, Reason: fmt.Sprintf("length is shorter than the %d required characters", total)}
	}
	return nil
}

// Generate returns a random password of length characters that satisfies p.
// Characters come from crypto/rand and the result is shuffled uniformly, so
// the required characters do not sit at fixed positions.
func Generate(length int, p Policy) (string, error) {
	if err := p.Validate(length); err != nil {
		return "", err
	}

	var all strings.Builder
	out := make([]byte, 0, length)
	for _, c := range p.Classes {
		all.WriteString(c.Chars)
		for i := 0; i < c.Min; i++ {
			ch, err := pick(c.Chars)
			if err != nil {
				return "", err
			}
			out = append(out, ch)
		}
	}

	alphabet := all.String()
	for len(out) < length {
		ch, err := pick(alphabet)
		if err != nil {
			return "", err
		}
		out = append(out, ch)
	}

	// Fisher-Yates
	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}

	return string(out), nil
}

func pick(chars string) (byte, error) {
	i, err := randInt(len(chars))
	if err != nil {
		return 0, err
	}
	return chars[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random number: %w", err)
	}
	return int(v.Int64()), nil
}

// ChangePasswordURL returns the Google password change page for email.
func ChangePasswordURL(email string) string {
	q := url.Values{}
	q.Set("authuser", email)
	return "https://myaccount.google.com/signinoptions/password?" + q.Encode()
}
