package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/teemow/inboxfleet/internal/browser"
	"github.com/teemow/inboxfleet/internal/logging"
)

// DefaultAuthTimeout bounds how long Authorize waits for the browser callback.
const DefaultAuthTimeout = 3 * time.Minute

// AuthSession authorizes accounts and refreshes their tokens.
type AuthSession interface {
	// Authorize runs the interactive flow for email using the OAuth client in
	// credentialsPath. It blocks until the user finishes, ctx is done or the
	// session timeout passes.
	Authorize(ctx context.Context, credentialsPath, email string) (*oauth2.Token, error)

	// Refresh exchanges the refresh token for a new access token.
	Refresh(ctx context.Context, credentialsPath string, token *oauth2.Token) (*oauth2.Token, error)
}

// IdentifyFunc returns the email address a token was issued for.
type IdentifyFunc func(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (string, error)

// LoopbackSession implements AuthSession with a loopback redirect URI.
type LoopbackSession struct {
	timeout     time.Duration
	openBrowser bool
	opener      browser.Opener
	identify    IdentifyFunc
	out         io.Writer
	logger      *slog.Logger

	mu      sync.Mutex
	configs map[string]*oauth2.Config
}

// SessionOption configures a LoopbackSession.
type SessionOption func(*LoopbackSession)

// WithTimeout sets how long Authorize waits for the browser callback.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *LoopbackSession) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBrowser sets the function used to open the authorization URL. A nil
// opener only prints the URL.
func WithBrowser(opener browser.Opener) SessionOption {
	return func(s *LoopbackSession) {
		s.opener = opener
		s.openBrowser = opener != nil
	}
}

// WithIdentify replaces the userinfo lookup. A nil function disables the
// identity check.
func WithIdentify(identify IdentifyFunc) SessionOption {
	return func(s *LoopbackSession) {
		s.identify = identify
	}
}

// WithOutput sets where user instructions are printed.
func WithOutput(w io.Writer) SessionOption {
	return func(s *LoopbackSession) {
		s.out = w
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *LoopbackSession) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewLoopbackSession creates a session. By default it only prints the
// authorization URL and verifies the identity through the userinfo API.
func NewLoopbackSession(opts ...SessionOption) *LoopbackSession {
	s := &LoopbackSession{
		timeout:  DefaultAuthTimeout,
		identify: UserinfoEmail,
		out:      os.Stdout,
		logger:   slog.Default(),
		configs:  make(map[string]*oauth2.Config),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithService(s.logger, "oauth")
	return s
}

// Config loads the OAuth client in credentialsPath. Parsed configs are cached
// per path.
func (s *LoopbackSession) Config(credentialsPath string) (*oauth2.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conf, ok := s.configs[credentialsPath]; ok {
		return conf, nil
	}

	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OAuth client file %s: %w", credentialsPath, err)
	}
	conf, err := google.ConfigFromJSON(data, DefaultOAuthScopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid OAuth client file %s: %w", credentialsPath, err)
	}

	s.configs[credentialsPath] = conf
	return conf, nil
}

type callbackResult struct {
	code string
	err  *AuthorizationError
}

// Authorize implements AuthSession.
func (s *LoopbackSession) Authorize(ctx context.Context, credentialsPath, email string) (*oauth2.Token, error) {
	base, err := s.Config(credentialsPath)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for OAuth callback: %w", err)
	}
	defer ln.Close()

	conf := *base
	conf.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	state, err := randomString(24)
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	deliver := func(r callbackResult) {
		select {
		case results <- r:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		// A request without our state is not the authorization redirect;
		// it is rejected and the flow keeps waiting for the real one.
		if q.Get("state") != state {
			s.logger.Warn("ignoring OAuth callback with unexpected state", slog.String("remote_addr", r.RemoteAddr))
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if oauthErr := q.Get("error"); oauthErr != "" {
			_, _ = io.WriteString(w, "Authorization was not granted. You can close this tab.")
			deliver(callbackResult{err: &AuthorizationError{Email: email, Reason: oauthErr, Err: errors.New(q.Get("error_description"))}})
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			deliver(callbackResult{err: &AuthorizationError{Email: email, Reason: ReasonMissingCode, Err: errors.New("callback carried no authorization code")}})
			return
		}
		_, _ = io.WriteString(w, "inboxfleet authorization complete. You can close this tab.")
		deliver(callbackResult{code: code})
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("login_hint", email),
		oauth2.S256ChallengeOption(verifier),
	)

	fmt.Fprintf(s.out, "Open this URL to authorize %s:\n%s\n", email, authURL)
	if s.openBrowser {
		if err := s.opener.Open(authURL); err != nil {
			s.logger.Warn("could not open browser", logging.Err(err))
			fmt.Fprintln(s.out, "Could not open a browser automatically; open the URL manually.")
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var code string
	select {
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}
		code = r.code
	case <-waitCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, &AuthorizationError{Email: email, Reason: ReasonCancelled, Err: ctx.Err()}
		}
		return nil, &AuthorizationError{Email: email, Reason: ReasonTimeout, Err: fmt.Errorf("no browser callback within %s", s.timeout)}
	}

	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, &AuthorizationError{Email: email, Reason: retrieveReason(err), Err: err}
	}
	if token.RefreshToken == "" {
		s.logger.Warn("no refresh token returned; revoke the app's access in the Google account and add it again",
			logging.UserHash(email))
	}

	if s.identify != nil {
		got, err := s.identify(ctx, &conf, token)
		if err != nil {
			return nil, &AuthorizationError{Email: email, Reason: ReasonIdentityMismatch, Err: fmt.Errorf("could not verify signed-in account: %w", err)}
		}
		if !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(email)) {
			return nil, &AuthorizationError{Email: email, Reason: ReasonIdentityMismatch, Err: fmt.Errorf("signed in as %s", got)}
		}
	}

	s.logger.Info("account authorized",
		logging.UserHash(email),
		slog.String("refresh_token", logging.SanitizeToken(token.RefreshToken)))
	return token, nil
}

// Refresh implements AuthSession. The refresh is forced even if the access
// token has not expired yet.
func (s *LoopbackSession) Refresh(ctx context.Context, credentialsPath string, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, &AuthorizationError{Reason: ReasonNoRefreshToken, Err: errors.New("token has no refresh token")}
	}

	conf, err := s.Config(credentialsPath)
	if err != nil {
		return nil, err
	}

	expired := *token
	expired.Expiry = time.Unix(1, 0)
	fresh, err := conf.TokenSource(ctx, &expired).Token()
	if err != nil {
		s.logger.Debug("token refresh rejected",
			slog.String("refresh_token", logging.SanitizeToken(token.RefreshToken)),
			logging.Err(err))
		return nil, &AuthorizationError{Reason: retrieveReason(err), Err: err}
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	return fresh, nil
}

// UserinfoEmail asks the OAuth2 userinfo API which account token belongs to.
func UserinfoEmail(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (string, error) {
	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, token)))
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	return info.Email, nil
}

func retrieveReason(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		return re.ErrorCode
	}
	return ""
}

func randomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
