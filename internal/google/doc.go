// Package google authorizes Gmail accounts with Google's OAuth2 endpoints.
//
// CredentialLocator finds the OAuth client file ("Desktop app" credentials
// downloaded from Google Cloud Console) in a directory. AuthSession runs the
// interactive authorization and refreshes tokens. LoopbackSession implements it
// with a loopback redirect on 127.0.0.1, PKCE and a state check, then confirms
// through the userinfo API that the user signed in with the expected account.
package google
