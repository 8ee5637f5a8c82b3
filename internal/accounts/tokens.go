package accounts

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	tokenFileSuffix = ".token.json"

	// hashedNamePrefix marks names derived from a digest of the email. '-' is
	// outside the base32hex alphabet, so both forms never collide.
	hashedNamePrefix = "h-"

	// maxEncodedNameLen keeps a token file name plus the temporary name used
	// by atomic writes below the 255 byte NAME_MAX of common file systems.
	maxEncodedNameLen = 160
)

// fileNameEncoding maps emails to [0-9a-v]. It is injective and stays
// collision-free on case-insensitive file systems.
var fileNameEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// storedToken is the on-disk token file format.
type storedToken struct {
	Email   string        `json:"email"`
	Token   *oauth2.Token `json:"token"`
	SavedAt time.Time     `json:"saved_at"`
}

// TokenFile is a token file found on disk.
type TokenFile struct {
	Email string
	Path  string
}

// TokenStorage is the token persistence Registry depends on.
type TokenStorage interface {
	Save(email string, token *oauth2.Token) error
	Load(email string) (*oauth2.Token, error)
	Delete(email string) error
	Path(email string) string
	Files() ([]TokenFile, error)
}

// TokenStore keeps one JSON token file per account email in a directory.
type TokenStore struct {
	dir string
	now func() time.Time
}

// NewTokenStore creates a token store rooted at dir. The directory is created
// on first write.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir, now: time.Now}
}

// Dir returns the directory holding the token files.
func (s *TokenStore) Dir() string {
	return s.dir
}

// TokenFileName returns the deterministic file name for an already normalized
// email. Emails too long to encode within file name limits get a SHA-256 based
// name; the owner is then only known from the file content.
func TokenFileName(email string) string {
	encoded := strings.ToLower(fileNameEncoding.EncodeToString([]byte(email)))
	if len(encoded) > maxEncodedNameLen {
		sum := sha256.Sum256([]byte(email))
		return hashedNamePrefix + hex.EncodeToString(sum[:]) + tokenFileSuffix
	}
	return encoded + tokenFileSuffix
}

func isHashedFileName(name string) bool {
	digest, found := strings.CutSuffix(name, tokenFileSuffix)
	if !found {
		return false
	}
	digest, found = strings.CutPrefix(digest, hashedNamePrefix)
	if !found || len(digest) != 2*sha256.Size {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}

// emailFromFileName reverses TokenFileName for encoded names. ok is false for
// foreign files and hashed names.
func emailFromFileName(name string) (string, bool) {
	encoded, found := strings.CutSuffix(name, tokenFileSuffix)
	if !found || encoded == "" {
		return "", false
	}
	raw, err := fileNameEncoding.DecodeString(strings.ToUpper(encoded))
	if err != nil {
		return "", false
	}
	email, err := NormalizeEmail(string(raw))
	if err != nil || email != string(raw) || TokenFileName(email) != name {
		return "", false
	}
	return email, true
}

// emailFromContent returns the owner recorded in a hashed token file, or ""
// when the file is unreadable or does not belong under its name.
func emailFromContent(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return ""
	}
	email, err := NormalizeEmail(st.Email)
	if err != nil || TokenFileName(email) != filepath.Base(path) {
		return ""
	}
	return email
}

// Path returns the token file path for email.
func (s *TokenStore) Path(email string) string {
	if normalized, err := NormalizeEmail(email); err == nil {
		email = normalized
	}
	return filepath.Join(s.dir, TokenFileName(email))
}

// Save writes token for email, replacing any previous token.
func (s *TokenStore) Save(email string, token *oauth2.Token) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return ErrInvalidToken
	}

	data, err := json.MarshalIndent(storedToken{
		Email:   email,
		Token:   token,
		SavedAt: s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token for %s: %w", email, err)
	}

	return writeFileAtomic(s.Path(email), data, 0o600)
}

// Load reads the token for email. A missing file is a *NotFoundError, an
// unreadable one a *CorruptTokenError.
func (s *TokenStore) Load(email string) (*oauth2.Token, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	path := s.Path(email)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Email: email, Kind: KindTokenFile}
		}
		return nil, fmt.Errorf("failed to read token file %s: %w", path, err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &CorruptTokenError{Email: email, Path: path, Err: err}
	}
	if st.Token == nil || (st.Token.AccessToken == "" && st.Token.RefreshToken == "") {
		return nil, &CorruptTokenError{Email: email, Path: path, Err: ErrInvalidToken}
	}
	if st.Email != email {
		return nil, &CorruptTokenError{Email: email, Path: path, Err: fmt.Errorf("file belongs to %q", st.Email)}
	}

	return st.Token, nil
}

// Delete removes the token file for email. It is not idempotent: a missing file
// is reported as a *NotFoundError.
func (s *TokenStore) Delete(email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	path := s.Path(email)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &NotFoundError{Email: email, Kind: KindTokenFile}
		}
		return fmt.Errorf("failed to delete token file %s: %w", path, err)
	}
	return nil
}

// Files lists the token files in the store directory, sorted by email.
// Files whose names do not decode to an email are ignored. A hashed file whose
// owner cannot be read back is listed with an empty Email.
func (s *TokenStore) Files() ([]TokenFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token directory %s: %w", s.dir, err)
	}

	var files []TokenFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if isHashedFileName(entry.Name()) {
			files = append(files, TokenFile{Email: emailFromContent(path), Path: path})
			continue
		}
		email, ok := emailFromFileName(entry.Name())
		if !ok {
			continue
		}
		files = append(files, TokenFile{Email: email, Path: path})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Email != files[j].Email {
			return files[i].Email < files[j].Email
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}
