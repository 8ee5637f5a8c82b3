package google

import (
	"fmt"
	"strings"
)

// Authorization failure reasons that do not come from the token endpoint.
const (
	ReasonTimeout          = "timeout"
	ReasonCancelled        = "cancelled"
	ReasonMissingCode      = "missing_code"
	ReasonIdentityMismatch = "identity_mismatch"
	ReasonNoRefreshToken   = "no_refresh_token"
)

// NoCredentialsFoundError is returned when no OAuth client file can be found.
type NoCredentialsFoundError struct {
	Dir      string
	Patterns []string
}

func (e *NoCredentialsFoundError) Error() string {
	return fmt.Sprintf("no OAuth client credentials found in %s (looked for %s); download a Desktop app OAuth client from Google Cloud Console > APIs & Services > Credentials",
		e.Dir, strings.Join(e.Patterns, ", "))
}

// AuthorizationError is returned when an authorization or a refresh fails.
// Reason carries the OAuth error code (e.g. "access_denied", "invalid_grant")
// or one of the Reason constants.
type AuthorizationError struct {
	Email  string
	Reason string
	Err    error
}

func (e *AuthorizationError) Error() string {
	msg := "authorization failed"
	if e.Email != "" {
		msg += " for " + e.Email
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// NeedsReauthorization reports whether the account must run the browser flow again.
func (e *AuthorizationError) NeedsReauthorization() bool {
	return e.Reason == "invalid_grant" || e.Reason == ReasonNoRefreshToken
}
