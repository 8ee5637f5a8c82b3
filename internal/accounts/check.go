package accounts

import (
	"errors"
)

// CheckReport lists the ways the registry and the token files disagree.
type CheckReport struct {
	// MissingTokens are registered accounts without a token file.
	MissingTokens []Account
	// CorruptTokens are registered accounts whose token file cannot be decoded.
	CorruptTokens []Account
	// OrphanTokens are token files without a registry entry.
	OrphanTokens []TokenFile
}

// Consistent reports whether every registry entry has a token file and vice versa.
func (c *CheckReport) Consistent() bool {
	return len(c.MissingTokens) == 0 && len(c.OrphanTokens) == 0
}

// Check compares the registry document with the token files on disk. It never
// modifies either store.
func (r *Registry) Check() (*CheckReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	files, err := r.tokens.Files()
	if err != nil {
		return nil, err
	}

	report := &CheckReport{}
	registered := make(map[string]struct{}, len(doc.Accounts))
	for _, account := range doc.Accounts {
		registered[r.tokens.Path(account.Email)] = struct{}{}

		_, err := r.tokens.Load(account.Email)
		var notFound *NotFoundError
		var corrupt *CorruptTokenError
		switch {
		case err == nil:
		case errors.As(err, &notFound):
			report.MissingTokens = append(report.MissingTokens, account)
		case errors.As(err, &corrupt):
			report.CorruptTokens = append(report.CorruptTokens, account)
		default:
			return nil, err
		}
	}

	for _, file := range files {
		if _, ok := registered[file.Path]; !ok {
			report.OrphanTokens = append(report.OrphanTokens, file)
		}
	}

	return report, nil
}
