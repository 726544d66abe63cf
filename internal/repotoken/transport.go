// Package repotoken injects conda repository tokens into channel requests.
//
// Repository tokens are installed per domain with `anc token install` and
// stored alongside the API key in the keyring. The transport resolves the
// token for each URL from the org segment of the channel path and sends it
// as `Authorization: token {value}`.
package repotoken

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/salmonumbrella/anaconda-cli/internal/auth"
	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

// channelPrefix is stripped from channel paths before reading the org name.
const channelPrefix = "/repo/"

// Transport is an http.RoundTripper that authenticates conda channel
// requests with stored repository tokens.
type Transport struct {
	// Base performs the actual request. nil means http.DefaultTransport.
	Base http.RoundTripper

	mu    sync.RWMutex
	cache map[string]string
}

// NewTransport wraps base with repository token injection.
func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, cache: make(map[string]string)}
}

// RoundTrip implements http.RoundTripper. The request is cloned before the
// Authorization header is set. A 403 answer means the server rejected the
// token, which surfaces as an InvalidTokenError rather than a response.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.token(req.URL)
	if err != nil {
		return nil, err
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "token "+token)

	resp, err := t.base().RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusForbidden {
		_ = resp.Body.Close()
		return nil, clierrors.WrapUserError(
			&clierrors.InvalidTokenError{Message: fmt.Sprintf("repository token for %s was rejected", strings.ToLower(req.URL.Host))},
			"repository access denied",
			"Run 'anc token install' to replace the token")
	}

	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// token resolves the repository token for a URL, consulting the cache first.
func (t *Transport) token(u *url.URL) (string, error) {
	key := u.Host + u.Path

	t.mu.RLock()
	cached, ok := t.cache[key]
	t.mu.RUnlock()
	if ok {
		return cached, nil
	}

	token, err := resolveToken(u)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	if t.cache == nil {
		t.cache = make(map[string]string)
	}
	t.cache[key] = token
	t.mu.Unlock()

	return token, nil
}

// resolveToken loads the stored credentials for the URL's host and picks the
// token matching the channel's org, falling back to the first stored token.
// Channel paths look like /repo/{org}/{subdir}/repodata.json; anything
// outside /repo/ has no org segment.
func resolveToken(u *url.URL) (string, error) {
	domain := strings.ToLower(u.Host)

	info, err := auth.Load(domain)
	if err != nil {
		if clierrors.IsTokenNotFound(err) {
			return "", notInstalled(domain, err)
		}
		return "", err
	}

	token, err := info.GetRepoToken(orgFromPath(u.Path))
	if err != nil {
		if clierrors.IsTokenNotFound(err) {
			return "", notInstalled(domain, err)
		}
		return "", err
	}
	return token, nil
}

// orgFromPath extracts the candidate org name from a channel path. A path
// that does not start with /repo/ keeps its leading slash, so the first
// segment is empty and the account-wide token applies.
func orgFromPath(path string) string {
	path = strings.TrimPrefix(path, channelPrefix)
	org, _, _ := strings.Cut(path, "/")
	return org
}

func notInstalled(domain string, err error) error {
	return clierrors.WrapUserError(err,
		fmt.Sprintf("no repository token installed for %s", domain),
		"Run 'anc token install' to set one up")
}
