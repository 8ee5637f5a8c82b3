package accounts

import (
	"errors"
	"fmt"
)

// Kinds of missing things reported by NotFoundError.
const (
	KindAccount   = "account"
	KindTokenFile = "token file"
)

// Operations that can leave the stores inconsistent.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// Store sides named by InconsistentStateError.
const (
	SideRegistry  = "registry"
	SideTokenFile = "token file"
)

// ErrInvalidToken is returned when a nil or empty token is stored.
var ErrInvalidToken = errors.New("token must carry an access or refresh token")

// NotFoundError is returned when an account or its token file does not exist.
type NotFoundError struct {
	Email string
	Kind  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Email)
}

// DuplicateAccountError is returned when adding an email that is already registered.
type DuplicateAccountError struct {
	Email string
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("account already registered: %s", e.Email)
}

// InvalidEmailError is returned for values that cannot be used as an account key.
type InvalidEmailError struct {
	Email string
}

func (e *InvalidEmailError) Error() string {
	return fmt.Sprintf("invalid email address %q", e.Email)
}

// CorruptTokenError is returned when a token file exists but cannot be used.
type CorruptTokenError struct {
	Email string
	Path  string
	Err   error
}

func (e *CorruptTokenError) Error() string {
	return fmt.Sprintf("corrupt token file %s for %s: %v", e.Path, e.Email, e.Err)
}

func (e *CorruptTokenError) Unwrap() error {
	return e.Err
}

// InconsistentStateError reports that an operation changed one store but not
// the other. Succeeded names the side that was written; the paths allow manual
// reconciliation.
type InconsistentStateError struct {
	Email        string
	Op           string
	Succeeded    string
	RegistryPath string
	TokenPath    string
	Err          error
}

func (e *InconsistentStateError) Error() string {
	switch e.Op {
	case OpAdd:
		return fmt.Sprintf("inconsistent state for %s after %s: token file %s was written but registry %s was not updated and the token file could not be rolled back (%v); delete the token file manually",
			e.Email, e.Op, e.TokenPath, e.RegistryPath, e.Err)
	case OpRemove:
		return fmt.Sprintf("inconsistent state for %s after %s: registry %s was updated but token file %s could not be deleted (%v); delete the token file manually",
			e.Email, e.Op, e.RegistryPath, e.TokenPath, e.Err)
	default:
		return fmt.Sprintf("inconsistent state for %s after %s: only the %s side succeeded: %v", e.Email, e.Op, e.Succeeded, e.Err)
	}
}

func (e *InconsistentStateError) Unwrap() error {
	return e.Err
}
