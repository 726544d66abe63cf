// Package login drives the OAuth flows against the Anaconda identity
// service and stores the resulting API key in the keyring.
//
// The default flow discovers the identity service's endpoints, opens the
// browser at the authorization URL with a PKCE challenge, captures the
// callback on a loopback listener, exchanges the authorization code for
// tokens, validates the ID token and the access-token hash, and finally
// trades the access token for a long-lived API key:
//
//	result, err := login.Login(ctx, login.Options{Domain: "anaconda.cloud"})
//
// Logins are idempotent while stored credentials remain valid; set
// Options.Force to run the flow regardless. Options.Basic switches to the
// deprecated username/password grant for environments without a browser.
package login
