package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/inboxfleet/internal/logging"
)

// ReasonTransport is the SendError reason for failures that never got an API
// response.
const ReasonTransport = "transport"

// MailSender sends the test message for one account.
type MailSender interface {
	SendTestEmail(ctx context.Context, token *oauth2.Token, from, to string) error
}

// SendError is returned when Gmail does not accept a message.
type SendError struct {
	Account string
	Reason  string
	Err     error
}

func (e *SendError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("failed to send from %s (%s): %v", e.Account, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to send from %s: %v", e.Account, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Sender sends messages through the Gmail API.
type Sender struct {
	clientOpts []option.ClientOption
	now        func() time.Time
	logger     *slog.Logger
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithClientOptions adds options for the Gmail service, e.g. an endpoint.
func WithClientOptions(opts ...option.ClientOption) SenderOption {
	return func(s *Sender) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// WithClock sets the clock used for the message timestamp.
func WithClock(now func() time.Time) SenderOption {
	return func(s *Sender) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SenderOption {
	return func(s *Sender) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSender creates a Gmail sender.
func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithService(s.logger, "gmail")
	return s
}

// TestMessage returns the subject and body of the test email.
func TestMessage(from string, at time.Time) (subject, body string) {
	subject = "Test Email from " + from
	body = fmt.Sprintf("This is a test email sent from %s by inboxfleet.\r\n\r\nSent at: %s\r\n",
		from, at.UTC().Format("2006-01-02 15:04:05 MST"))
	return subject, body
}

// headerValue strips line breaks so a value cannot end the header block or
// add headers.
var headerValue = strings.NewReplacer("\r", "", "\n", "")

// BuildMessage renders an RFC 2822 plain text message. Line breaks in from,
// to and subject are removed.
func BuildMessage(from, to, subject, body string) string {
	var b strings.Builder
	from, to, subject = headerValue.Replace(from), headerValue.Replace(to), headerValue.Replace(subject)

	b.WriteString("From: ")
	b.WriteString(from)
	b.WriteString("\r\n")

	b.WriteString("To: ")
	b.WriteString(to)
	b.WriteString("\r\n")

	// Subject may carry non-ASCII characters
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(subject))
	b.WriteString("\r\n")

	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return b.String()
}

// SendTestEmail implements MailSender. token is used as is; refreshing it is
// the caller's job.
func (s *Sender) SendTestEmail(ctx context.Context, token *oauth2.Token, from, to string) error {
	if token == nil {
		return &SendError{Account: from, Err: errors.New("no token")}
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(token)),
	}, s.clientOpts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return &SendError{Account: from, Reason: ReasonTransport, Err: fmt.Errorf("failed to create Gmail service: %w", err)}
	}

	subject, body := TestMessage(from, s.now())
	raw := base64.URLEncoding.EncodeToString([]byte(BuildMessage(from, to, subject, body)))

	sent, err := svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return &SendError{Account: from, Reason: errorReason(err), Err: err}
	}

	s.logger.Debug("test email sent", logging.UserHash(from), slog.String("message_id", sent.Id))
	return nil
}

// errorReason extracts the Google API error reason, falling back to the HTTP
// status text.
func errorReason(err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, item := range apiErr.Errors {
			if item.Reason != "" {
				return item.Reason
			}
		}
		if text := http.StatusText(apiErr.Code); text != "" {
			return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
		}
		return fmt.Sprintf("http_%d", apiErr.Code)
	}
	return ReasonTransport
}

// encodeRFC2047 encodes a header value when it contains non-ASCII characters.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
