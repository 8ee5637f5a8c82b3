package google

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultCredentialPatterns are evaluated in order. Exact names come first, the
// client_secret_*.json glob matches the file name Google Cloud Console offers
// for download.
var DefaultCredentialPatterns = []string{
	"credentials.json",
	"client_secret.json",
	"client_secrets.json",
	"client_secret_*.json",
}

// CredentialLocator finds the OAuth client file.
type CredentialLocator struct {
	dir      string
	file     string
	patterns []string
}

// NewCredentialLocator returns a locator scanning dir. A non-empty file skips
// scanning and is used as is.
func NewCredentialLocator(dir, file string) *CredentialLocator {
	if dir == "" {
		dir = "."
	}
	return &CredentialLocator{
		dir:      dir,
		file:     file,
		patterns: DefaultCredentialPatterns,
	}
}

// Find returns the first file matching the patterns. Matches of one pattern
// are taken in lexicographic order, so the result is reproducible.
func (l *CredentialLocator) Find() (string, error) {
	if l.file != "" {
		info, err := os.Stat(l.file)
		if err != nil || info.IsDir() {
			return "", &NoCredentialsFoundError{Dir: filepath.Dir(l.file), Patterns: []string{filepath.Base(l.file)}}
		}
		return l.file, nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &NoCredentialsFoundError{Dir: l.dir, Patterns: l.patterns}
		}
		return "", fmt.Errorf("failed to scan %s for credentials: %w", l.dir, err)
	}

	// os.ReadDir sorts entries by file name
	for _, pattern := range l.patterns {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ok, err := filepath.Match(pattern, entry.Name())
			if err != nil {
				return "", fmt.Errorf("invalid credentials pattern %q: %w", pattern, err)
			}
			if ok {
				return filepath.Join(l.dir, entry.Name()), nil
			}
		}
	}

	return "", &NoCredentialsFoundError{Dir: l.dir, Patterns: l.patterns}
}
