package login

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// RFC 7636 unreserved characters allowed in a code verifier.
const codeVerifierCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._~"

// codeVerifierLength is the verifier size in characters. The RFC allows
// 43-128; we always issue the maximum.
const codeVerifierLength = 128

// generateCodeVerifier returns a cryptographically random PKCE code verifier.
func generateCodeVerifier() (string, error) {
	max := big.NewInt(int64(len(codeVerifierCharset)))
	b := make([]byte, codeVerifierLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		b[i] = codeVerifierCharset[n.Int64()]
	}
	return string(b), nil
}

// codeChallenge derives the S256 challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func codeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
