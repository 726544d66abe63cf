package login

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

// apiKeyScopes are granted to keys created at login.
var apiKeyScopes = []string{"cloud:read", "cloud:write"}

type apiKeyRequest struct {
	Scopes []string `json:"scopes"`
	Tags   []string `json:"tags"`
}

type apiKeyResponse struct {
	APIKey string `json:"api_key"`
}

// clientTag labels API keys created by this client.
func clientTag(version string) string {
	if version == "" {
		return "anaconda-cli"
	}
	return "anaconda-cli/v" + version
}

// requestAPIKey trades a short-lived access token for a long-lived API key.
// The endpoint answers 201 on success.
func requestAPIKey(ctx context.Context, opts *Options, accessToken string) (string, error) {
	body, err := json.Marshal(apiKeyRequest{
		Scopes: apiKeyScopes,
		Tags:   []string{clientTag(opts.ClientVersion)},
	})
	if err != nil {
		return "", err
	}

	endpoint := opts.apiBase() + "/api/iam/api-keys"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if opts.AAUToken != "" {
		req.Header.Set("X-AAU-CLIENT", opts.AAUToken)
	}

	resp, err := opts.httpClient().Do(req)
	if err != nil {
		return "", clierrors.WrapContext(http.MethodPost, endpoint, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return "", &clierrors.AuthenticationError{
			Message: fmt.Sprintf("Error retrieving an API key (HTTP %d)", resp.StatusCode),
		}
	}

	var payload apiKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &clierrors.AuthenticationError{Message: "malformed API key response", Err: err}
	}
	if payload.APIKey == "" {
		return "", &clierrors.AuthenticationError{Message: "API key response carried no key"}
	}
	return payload.APIKey, nil
}

// RefreshAccessToken redeems a refresh token for a new access token.
func RefreshAccessToken(ctx context.Context, refreshToken string, opts Options) (*oauth2.Token, error) {
	opts.applyDefaults()
	ctx = oidc.ClientContext(ctx, opts.httpClient())

	provider, _, err := discover(ctx, &opts)
	if err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID: opts.ClientID,
		Endpoint: publicClientEndpoint(provider),
		Scopes:   loginScopes,
	}
	token, err := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, wrapRetrieveError(err)
	}
	return token, nil
}

// passwordGrant performs the resource-owner password flow. The grant is
// deprecated server-side and kept only for automation that cannot open a
// browser.
func passwordGrant(ctx context.Context, provider *oidc.Provider, opts *Options) (*oauth2.Token, error) {
	fmt.Fprintln(opts.Output, "Password login is deprecated; prefer the browser flow.")

	username, password, err := promptCredentials(opts.Input, opts.Output)
	if err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID: opts.ClientID,
		Endpoint: publicClientEndpoint(provider),
		Scopes:   loginScopes,
	}
	token, err := oauthCfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return nil, wrapRetrieveError(err)
	}
	return token, nil
}

// promptCredentials reads a username and password from in. The password is
// read without echo when in is a terminal.
func promptCredentials(in io.Reader, out io.Writer) (string, string, error) {
	reader := bufio.NewReader(in)

	fmt.Fprint(out, "Username: ")
	username, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", clierrors.NewUserError("cannot read username",
			"Run 'anc login' without --basic to use the browser flow")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return "", "", clierrors.NewUserError("username is required",
			"Run 'anc login' without --basic to use the browser flow")
	}

	fmt.Fprint(out, "Password: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", "", clierrors.NewUserError("cannot read password",
				"Run 'anc login' without --basic to use the browser flow")
		}
		return username, string(raw), nil
	}

	password, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", clierrors.NewUserError("cannot read password",
			"Run 'anc login' without --basic to use the browser flow")
	}
	return username, strings.TrimSpace(password), nil
}
