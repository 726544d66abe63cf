// Package auth stores Anaconda.cloud credentials in the OS keyring.
//
// Credentials live under the keyring service "Anaconda Cloud" (macOS
// Keychain, Windows Credential Manager, Linux Secret Service) via
// github.com/99designs/keyring, one entry per API domain. Each entry is a
// base64-encoded JSON TokenInfo payload, interoperable with other
// Anaconda.cloud clients that share the same service entry. On headless
// Linux (no DBus session) storage falls back to an encrypted file keyring
// under the user config directory.
//
// The ANACONDA_CLOUD_API_KEY environment variable takes precedence over the
// keyring for CI/CD environments and scripts where keyring access may not be
// available; env-provided credentials are read-only.
//
// Example usage:
//
//	// Store credentials after login
//	if err := auth.Save(auth.TokenInfo{Domain: "anaconda.cloud", APIKey: key}); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Retrieve the API key for requests
//	info, err := auth.Load("anaconda.cloud")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	key, err := info.GetAccessToken()
//
//	// Remove credentials on logout
//	if err := auth.Delete("anaconda.cloud"); err != nil {
//	    log.Fatal(err)
//	}
package auth
