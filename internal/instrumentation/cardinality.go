package instrumentation

import "strings"

// Cardinality helpers for metric labels. Full email addresses are never used
// as label values; at most the domain is.

// ExtractUserDomain extracts the domain part from an email address.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Operation names used in metrics and spans.
const (
	OperationList      = "list"
	OperationAdd       = "add"
	OperationRemove    = "remove"
	OperationSend      = "send"
	OperationAuthorize = "authorize"
	OperationRefresh   = "refresh"
	OperationUpdate    = "update_token"
	OperationCheck     = "check"
	OperationPassword  = "change_password"
)
