package google

import (
	gmail "google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
)

// DefaultOAuthScopes are the scopes requested for every account.
//
// The scopes provide access to:
//   - Gmail: send only
//   - OpenID Connect: the account email, used to verify who signed in
var DefaultOAuthScopes = []string{
	oauth2api.OpenIDScope,
	oauth2api.UserinfoEmailScope,
	gmail.GmailSendScope,
}
