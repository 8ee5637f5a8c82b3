package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxfleet/internal/browser"
	"github.com/teemow/inboxfleet/internal/logging"
)

// tokenEndpoint is a fake Google token endpoint.
type tokenEndpoint struct {
	mu        sync.Mutex
	verifiers []string
}

func (e *tokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		e.mu.Lock()
		e.verifiers = append(e.verifiers, r.PostForm.Get("code_verifier"))
		e.mu.Unlock()
		if r.PostForm.Get("code") != "good" {
			writeOAuthError(w, "invalid_grant")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "refresh-1" {
			writeOAuthError(w, "invalid_grant")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	default:
		writeOAuthError(w, "unsupported_grant_type")
	}
}

func writeOAuthError(w http.ResponseWriter, code string) {
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": "rejected by test endpoint",
	})
}

func writeCredentials(t *testing.T, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	data := fmt.Sprintf(`{"installed":{"client_id":"client-id","client_secret":"client-secret","auth_uri":"https://accounts.example.com/o/oauth2/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func newTestSession(t *testing.T, opts ...SessionOption) (*LoopbackSession, *tokenEndpoint, string) {
	t.Helper()
	endpoint := &tokenEndpoint{}
	srv := httptest.NewServer(endpoint)
	t.Cleanup(srv.Close)

	base := []SessionOption{
		WithOutput(&bytes.Buffer{}),
		WithSessionLogger(logging.Discard()),
		WithTimeout(5 * time.Second),
		WithIdentify(func(context.Context, *oauth2.Config, *oauth2.Token) (string, error) {
			return "alice@example.com", nil
		}),
	}
	return NewLoopbackSession(append(base, opts...)...), endpoint, writeCredentials(t, srv.URL+"/token")
}

// callbackOpener simulates the browser: it follows the redirect with the
// given query parameters. A "state" of "" echoes the real state.
func callbackOpener(t *testing.T, params map[string]string, seen *string) browser.Opener {
	return browser.OpenerFunc(func(authURL string) error {
		if seen != nil {
			*seen = authURL
		}
		u, err := url.Parse(authURL)
		require.NoError(t, err)

		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		if _, ok := params["state"]; !ok {
			q.Set("state", u.Query().Get("state"))
		}

		resp, err := http.Get(u.Query().Get("redirect_uri") + "?" + q.Encode())
		if err != nil {
			return err
		}
		return resp.Body.Close()
	})
}

func TestAuthorize(t *testing.T) {
	var authURL string
	s, endpoint, creds := newTestSession(t, WithBrowser(callbackOpener(t, map[string]string{"code": "good"}, &authURL)))

	token, err := s.Authorize(context.Background(), creds, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "alice@example.com", q.Get("login_hint"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Contains(t, q.Get("redirect_uri"), "http://127.0.0.1:")

	require.Len(t, endpoint.verifiers, 1)
	assert.NotEmpty(t, endpoint.verifiers[0])
}

func TestAuthorizeFailures(t *testing.T) {
	tests := []struct {
		name       string
		params     map[string]string
		identity   string
		wantReason string
	}{
		{"consent denied", map[string]string{"error": "access_denied"}, "alice@example.com", "access_denied"},
		{"missing code", map[string]string{}, "alice@example.com", ReasonMissingCode},
		{"rejected code", map[string]string{"code": "bad"}, "alice@example.com", "invalid_grant"},
		{"other account signed in", map[string]string{"code": "good"}, "mallory@example.com", ReasonIdentityMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := tt.identity
			s, _, creds := newTestSession(t,
				WithBrowser(callbackOpener(t, tt.params, nil)),
				WithIdentify(func(context.Context, *oauth2.Config, *oauth2.Token) (string, error) {
					return identity, nil
				}),
			)

			token, err := s.Authorize(context.Background(), creds, "alice@example.com")
			assert.Nil(t, token)

			var authErr *AuthorizationError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.wantReason, authErr.Reason)
			assert.Equal(t, "alice@example.com", authErr.Email)
		})
	}
}

func TestAuthorizeIgnoresForgedCallback(t *testing.T) {
	var forgedStatus []int
	genuine := callbackOpener(t, map[string]string{"code": "good"}, nil)
	opener := browser.OpenerFunc(func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		callback := u.Query().Get("redirect_uri")
		for _, query := range []string{"code=evil&state=forged", "code=evil", "error=access_denied"} {
			resp, err := http.Get(callback + "?" + query)
			require.NoError(t, err)
			forgedStatus = append(forgedStatus, resp.StatusCode)
			require.NoError(t, resp.Body.Close())
		}
		return genuine.Open(authURL)
	})
	s, endpoint, creds := newTestSession(t, WithBrowser(opener))

	token, err := s.Authorize(context.Background(), creds, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "access-1", token.AccessToken)
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest}, forgedStatus)
	assert.Len(t, endpoint.verifiers, 1, "only the genuine code is exchanged")
}

func TestAuthorizeForgedCallbackOnlyTimesOut(t *testing.T) {
	s, _, creds := newTestSession(t,
		WithTimeout(200*time.Millisecond),
		WithBrowser(callbackOpener(t, map[string]string{"code": "good", "state": "forged"}, nil)),
	)

	_, err := s.Authorize(context.Background(), creds, "alice@example.com")

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonTimeout, authErr.Reason)
}

func TestAuthorizeIdentityCaseInsensitive(t *testing.T) {
	s, _, creds := newTestSession(t,
		WithBrowser(callbackOpener(t, map[string]string{"code": "good"}, nil)),
		WithIdentify(func(context.Context, *oauth2.Config, *oauth2.Token) (string, error) {
			return "Alice@Example.com", nil
		}),
	)

	_, err := s.Authorize(context.Background(), creds, "alice@example.com")
	assert.NoError(t, err)
}

func TestAuthorizeTimeout(t *testing.T) {
	out := &bytes.Buffer{}
	s, _, creds := newTestSession(t, WithTimeout(50*time.Millisecond), WithOutput(out))

	_, err := s.Authorize(context.Background(), creds, "alice@example.com")

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonTimeout, authErr.Reason)
	assert.Contains(t, out.String(), "https://accounts.example.com/o/oauth2/auth")
}

func TestAuthorizeCancelled(t *testing.T) {
	s, _, creds := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Authorize(ctx, creds, "alice@example.com")

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonCancelled, authErr.Reason)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthorizeBrowserFailureFallsBackToURL(t *testing.T) {
	out := &bytes.Buffer{}
	s, _, creds := newTestSession(t,
		WithOutput(out),
		WithTimeout(50*time.Millisecond),
		WithBrowser(browser.OpenerFunc(func(string) error { return errors.New("no display") })),
	)

	_, err := s.Authorize(context.Background(), creds, "alice@example.com")
	require.Error(t, err)
	assert.Contains(t, out.String(), "open the URL manually")
}

func TestRefresh(t *testing.T) {
	s, _, creds := newTestSession(t)

	old := &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}
	fresh, err := s.Refresh(context.Background(), creds, old)
	require.NoError(t, err)
	assert.Equal(t, "access-2", fresh.AccessToken)
	assert.Equal(t, "refresh-1", fresh.RefreshToken)
	assert.True(t, fresh.Expiry.After(time.Now()))
	assert.Equal(t, "access-1", old.AccessToken)
}

func TestRefreshRevoked(t *testing.T) {
	s, _, creds := newTestSession(t)

	_, err := s.Refresh(context.Background(), creds, &oauth2.Token{RefreshToken: "revoked"})

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid_grant", authErr.Reason)
	assert.True(t, authErr.NeedsReauthorization())
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	s, _, creds := newTestSession(t)

	_, err := s.Refresh(context.Background(), creds, &oauth2.Token{AccessToken: "x"})

	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ReasonNoRefreshToken, authErr.Reason)
	assert.True(t, authErr.NeedsReauthorization())
}

func TestConfig(t *testing.T) {
	s, _, creds := newTestSession(t)

	conf, err := s.Config(creds)
	require.NoError(t, err)
	assert.Equal(t, "client-id", conf.ClientID)
	assert.Equal(t, DefaultOAuthScopes, conf.Scopes)

	again, err := s.Config(creds)
	require.NoError(t, err)
	assert.Same(t, conf, again)

	_, err = s.Config(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"web":`), 0o600))
	_, err = s.Config(bad)
	assert.Error(t, err)
}

func TestAuthorizationErrorMessage(t *testing.T) {
	err := &AuthorizationError{Email: "a@example.com", Reason: "access_denied", Err: errors.New("user said no")}
	assert.Equal(t, "authorization failed for a@example.com (access_denied): user said no", err.Error())
	assert.False(t, err.NeedsReauthorization())
}
