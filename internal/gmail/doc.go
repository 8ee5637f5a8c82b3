// Package gmail sends mail through the Gmail API.
//
// The Sender builds a plain text RFC 2822 message with an RFC 2047 encoded
// subject and submits it with users.messages.send on behalf of the account
// the OAuth token belongs to. Failures are returned as *SendError carrying
// the Google API error reason, so callers can report them per account.
//
// Example usage:
//
//	sender := gmail.NewSender(gmail.WithLogger(logger))
//	if err := sender.SendTestEmail(ctx, token, "me@gmail.com", "you@example.com"); err != nil {
//	    var sendErr *gmail.SendError
//	    if errors.As(err, &sendErr) {
//	        log.Printf("rejected: %s", sendErr.Reason)
//	    }
//	}
package gmail
