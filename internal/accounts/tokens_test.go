package accounts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testToken(access string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: "refresh-" + access,
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTokenFileName(t *testing.T) {
	a := TokenFileName("a.b@gmail.com")
	b := TokenFileName("ab@gmail.com")
	c := TokenFileName("a_b@gmail.com")

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
	assert.Equal(t, a, TokenFileName("a.b@gmail.com"), "name must be deterministic")

	for _, name := range []string{a, b, c} {
		assert.True(t, strings.HasSuffix(name, tokenFileSuffix))
		encoded := strings.TrimSuffix(name, tokenFileSuffix)
		assert.Regexp(t, `^[0-9a-v]+$`, encoded)
	}
}

func TestEmailFromFileName(t *testing.T) {
	email, ok := emailFromFileName(TokenFileName("jane@example.com"))
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", email)

	for _, name := range []string{"accounts.json", ".token.json", "zzzz.token.json", "notes.txt"} {
		_, ok := emailFromFileName(name)
		assert.False(t, ok, name)
	}
}

func longEmail(localLen int) string {
	return strings.Repeat("x", localLen) + "@example.com"
}

func TestTokenFileNameLongEmail(t *testing.T) {
	email := longEmail(200)
	name := TokenFileName(email)

	assert.True(t, strings.HasPrefix(name, hashedNamePrefix))
	assert.Less(t, len("."+name+".tmp-1234567890"), 255)
	assert.True(t, isHashedFileName(name))
	assert.NotEqual(t, name, TokenFileName(longEmail(201)))

	_, ok := emailFromFileName(name)
	assert.False(t, ok)

	// the longest encoded name still leaves room for the temporary file
	short := TokenFileName(longEmail(100 - len("@example.com")))
	assert.False(t, strings.HasPrefix(short, hashedNamePrefix))
	assert.Less(t, len("."+short+".tmp-1234567890"), 255)
}

func TestTokenStore_LongEmail(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir)
	email := longEmail(230)

	require.NoError(t, store.Save(email, testToken("long")))

	got, err := store.Load(email)
	require.NoError(t, err)
	assert.Equal(t, "long", got.AccessToken)

	require.NoError(t, store.Save("amy@example.com", testToken("a")))
	files, err := store.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "amy@example.com", files[0].Email)
	assert.Equal(t, email, files[1].Email)
	assert.Equal(t, filepath.Join(dir, TokenFileName(email)), files[1].Path)

	require.NoError(t, store.Delete(email))
	files, err = store.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestTokenStore_FilesUnreadableHashedName(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir)
	email := longEmail(230)
	require.NoError(t, os.WriteFile(store.Path(email), []byte("garbage"), 0o600))

	// a hashed file copied under another account's name has no owner either
	other := longEmail(231)
	require.NoError(t, store.Save(other, testToken("o")))
	data, err := os.ReadFile(store.Path(other))
	require.NoError(t, err)
	require.NoError(t, os.Remove(store.Path(other)))
	misplaced := filepath.Join(dir, TokenFileName(longEmail(232)))
	require.NoError(t, os.WriteFile(misplaced, data, 0o600))

	files, err := store.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.Empty(t, f.Email, f.Path)
	}
}

func TestTokenStore_SaveLoad(t *testing.T) {
	store := NewTokenStore(t.TempDir())

	require.NoError(t, store.Save("Jane@Example.com ", testToken("abc")))

	got, err := store.Load("jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.AccessToken)
	assert.Equal(t, "refresh-abc", got.RefreshToken)

	info, err := os.Stat(store.Path("jane@example.com"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestTokenStore_SaveRejectsEmptyToken(t *testing.T) {
	store := NewTokenStore(t.TempDir())

	assert.ErrorIs(t, store.Save("jane@example.com", nil), ErrInvalidToken)
	assert.ErrorIs(t, store.Save("jane@example.com", &oauth2.Token{}), ErrInvalidToken)
}

func TestTokenStore_LoadMissing(t *testing.T) {
	store := NewTokenStore(t.TempDir())

	_, err := store.Load("jane@example.com")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, KindTokenFile, notFound.Kind)
}

func TestTokenStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "\x80\x03cgoogle.oauth2.credentials"},
		{"no token", `{"email":"jane@example.com"}`},
		{"empty token", `{"email":"jane@example.com","token":{}}`},
		{"other email", `{"email":"bob@example.com","token":{"access_token":"x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewTokenStore(t.TempDir())
			path := store.Path("jane@example.com")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := store.Load("jane@example.com")
			var corrupt *CorruptTokenError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, path, corrupt.Path)

			var notFound *NotFoundError
			assert.False(t, errors.As(err, &notFound))
		})
	}
}

func TestTokenStore_DeleteIsNotIdempotent(t *testing.T) {
	store := NewTokenStore(t.TempDir())
	require.NoError(t, store.Save("jane@example.com", testToken("abc")))

	require.NoError(t, store.Delete("jane@example.com"))

	err := store.Delete("jane@example.com")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "jane@example.com", notFound.Email)
}

func TestTokenStore_Files(t *testing.T) {
	dir := t.TempDir()
	store := NewTokenStore(dir)

	require.NoError(t, store.Save("zed@example.com", testToken("z")))
	require.NoError(t, store.Save("amy@example.com", testToken("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RegistryFileName), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0o600))

	files, err := store.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "amy@example.com", files[0].Email)
	assert.Equal(t, store.Path("amy@example.com"), files[0].Path)
	assert.Equal(t, "zed@example.com", files[1].Email)
}

func TestTokenStore_FilesMissingDir(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "absent"))

	files, err := store.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"a@gmail.com", "a@gmail.com", false},
		{"  A.B@GMail.com\n", "a.b@gmail.com", false},
		{"", "", true},
		{"nobody", "", true},
		{"@gmail.com", "", true},
		{"a@", "", true},
		{"a@b@c", "", true},
		{"a b@gmail.com", "", true},
		{"../x@gmail.com", "", true},
		{longEmail(MaxEmailLength - len("@example.com")), longEmail(MaxEmailLength - len("@example.com")), false},
		{longEmail(MaxEmailLength - len("@example.com") + 1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if tt.wantErr {
				var invalid *InvalidEmailError
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
