// Package accounts persists registered Gmail accounts and their OAuth tokens.
//
// Two stores live side by side in one directory:
//
//   - accounts.json, the registry document owned by Registry. It maps each
//     account email to its metadata and is rewritten in full on every mutation.
//   - one <encoded-email>.token.json file per account, owned by TokenStore.
//
// An account exists in the registry if and only if its token file exists.
// Registry keeps the two in step on Add and Remove and reports any failure that
// leaves them apart as an *InconsistentStateError instead of repairing it.
// Check lists divergences that already exist on disk.
//
// Emails are normalized (trimmed, lower-cased) before they are used as keys.
package accounts
