package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxfleet/internal/logging"
)

// RegistryFileName is the name of the registry document inside the store directory.
const RegistryFileName = "accounts.json"

const documentVersion = 1

// document is the serialized registry.
type document struct {
	Version  int       `json:"version"`
	Accounts []Account `json:"accounts"`
}

func (d *document) index(email string) int {
	return slices.IndexFunc(d.Accounts, func(a Account) bool { return a.Email == email })
}

// Registry maps account emails to their metadata and owns the registry
// document. Every mutation is a full read-modify-write of the document.
type Registry struct {
	mu     sync.Mutex
	path   string
	tokens TokenStorage
	logger *slog.Logger
	now    func() time.Time
	write  func(path string, data []byte, perm os.FileMode) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithTokenStorage replaces the default TokenStore.
func WithTokenStorage(tokens TokenStorage) Option {
	return func(r *Registry) {
		r.tokens = tokens
	}
}

// WithLogger sets the logger used for registry events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used for AddedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry opens the registry stored in dir. Nothing is read until the
// first operation; a missing document is an empty registry.
func NewRegistry(dir string, opts ...Option) *Registry {
	r := &Registry{
		path:   filepath.Join(dir, RegistryFileName),
		tokens: NewTokenStore(dir),
		logger: slog.Default(),
		now:    time.Now,
		write:  writeFileAtomic,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithService(r.logger, "registry")
	return r
}

// Path returns the registry document path.
func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) load() (*document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{Version: documentVersion}, nil
		}
		return nil, fmt.Errorf("failed to read registry %s: %w", r.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", r.path, err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("registry %s has unsupported version %d", r.path, doc.Version)
	}
	doc.Version = documentVersion
	return &doc, nil
}

func (r *Registry) save(doc *document) error {
	if doc.Accounts == nil {
		doc.Accounts = []Account{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	return r.write(r.path, data, 0o600)
}

// List returns all registered accounts in insertion order.
func (r *Registry) List() ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return slices.Clone(doc.Accounts), nil
}

// Get returns the account registered under email.
func (r *Registry) Get(email string) (Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Account{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.get(email)
}

func (r *Registry) get(email string) (Account, error) {
	doc, err := r.load()
	if err != nil {
		return Account{}, err
	}
	idx := doc.index(email)
	if idx < 0 {
		return Account{}, &NotFoundError{Email: email, Kind: KindAccount}
	}
	return doc.Accounts[idx], nil
}

// Lookup resolves a selector that is either a 1-based position in List order
// or an email address.
func (r *Registry) Lookup(selector string) (Account, error) {
	selector = strings.TrimSpace(selector)
	n, err := strconv.Atoi(selector)
	if err != nil {
		return r.Get(selector)
	}

	accounts, err := r.List()
	if err != nil {
		return Account{}, err
	}
	if n < 1 || n > len(accounts) {
		return Account{}, &NotFoundError{Email: fmt.Sprintf("#%d (choose 1-%d)", n, len(accounts)), Kind: KindAccount}
	}
	return accounts[n-1], nil
}

// Add registers email with its token. The token file is written before the
// registry document; if the document cannot be written the token file is
// rolled back.
func (r *Registry) Add(email string, token *oauth2.Token) (Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Account{}, err
	}
	if token == nil {
		return Account{}, ErrInvalidToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	logger := logging.WithAccount(logging.WithOperation(r.logger, "registry.add"), email)

	doc, err := r.load()
	if err != nil {
		return Account{}, err
	}
	if doc.index(email) >= 0 {
		return Account{}, &DuplicateAccountError{Email: email}
	}

	tokenPath := r.tokens.Path(email)
	if err := r.tokens.Save(email, token); err != nil {
		return Account{}, fmt.Errorf("failed to save token for %s: %w", email, err)
	}

	account := Account{
		Email:    email,
		AddedAt:  r.now().UTC().Truncate(time.Second),
		TokenRef: filepath.Base(tokenPath),
	}
	doc.Accounts = append(doc.Accounts, account)

	if err := r.save(doc); err != nil {
		if delErr := r.tokens.Delete(email); delErr != nil {
			inconsistent := &InconsistentStateError{
				Email:        email,
				Op:           OpAdd,
				Succeeded:    SideTokenFile,
				RegistryPath: r.path,
				TokenPath:    tokenPath,
				Err:          errors.Join(err, delErr),
			}
			logger.Error("registry and token store diverged",
				logging.Account(email),
				logging.Path(tokenPath),
				slog.String("registry_path", r.path),
				logging.Err(inconsistent.Err))
			return Account{}, inconsistent
		}
		return Account{}, fmt.Errorf("failed to update registry: %w", err)
	}

	logger.Info("account registered", logging.Status(logging.StatusSuccess))
	return account, nil
}

// Remove unregisters email and deletes its token file. The registry document
// is rewritten first; a token file that cannot be deleted afterwards yields an
// *InconsistentStateError.
func (r *Registry) Remove(email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	logger := logging.WithAccount(logging.WithOperation(r.logger, "registry.remove"), email)

	doc, err := r.load()
	if err != nil {
		return err
	}
	idx := doc.index(email)
	if idx < 0 {
		return &NotFoundError{Email: email, Kind: KindAccount}
	}

	doc.Accounts = slices.Delete(doc.Accounts, idx, idx+1)
	if err := r.save(doc); err != nil {
		return fmt.Errorf("failed to update registry: %w", err)
	}

	tokenPath := r.tokens.Path(email)
	if err := r.tokens.Delete(email); err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			logger.Warn("token file was already missing", logging.Path(tokenPath))
			return nil
		}
		inconsistent := &InconsistentStateError{
			Email:        email,
			Op:           OpRemove,
			Succeeded:    SideRegistry,
			RegistryPath: r.path,
			TokenPath:    tokenPath,
			Err:          err,
		}
		logger.Error("registry and token store diverged",
			logging.Account(email),
			logging.Path(tokenPath),
			slog.String("registry_path", r.path),
			logging.Err(err))
		return inconsistent
	}

	logger.Info("account removed", logging.Status(logging.StatusSuccess))
	return nil
}

// Token loads the token of a registered account.
func (r *Registry) Token(email string) (*oauth2.Token, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.get(email); err != nil {
		return nil, err
	}
	return r.tokens.Load(email)
}

// UpdateToken replaces the token of a registered account, typically after a refresh.
func (r *Registry) UpdateToken(email string, token *oauth2.Token) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.get(email); err != nil {
		return err
	}
	if err := r.tokens.Save(email, token); err != nil {
		return fmt.Errorf("failed to save token for %s: %w", email, err)
	}
	return nil
}
