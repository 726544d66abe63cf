package login

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/salmonumbrella/anaconda-cli/internal/auth"
	"github.com/salmonumbrella/anaconda-cli/internal/config"
	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

// loginScopes are requested during the browser flow. offline_access asks the
// identity service for a refresh token.
var loginScopes = []string{oidc.ScopeOpenID, "email", "profile", "offline_access"}

// Options configure a login flow. The zero value logs in to the default
// domain with the default client registration.
type Options struct {
	// Domain is the API domain credentials are stored under.
	Domain string
	// AuthDomain is the identity service host. Defaults to id.{Domain}.
	AuthDomain string
	// ClientID is the OAuth client registration.
	ClientID string
	// RedirectURI receives the browser callback; its port is bound locally.
	RedirectURI string
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// AAUToken is forwarded to the API key endpoint for usage attribution.
	AAUToken string
	// ClientVersion tags created API keys with the client release.
	ClientVersion string
	// Basic prompts for a username and password instead of opening the
	// browser. The password grant is deprecated server-side.
	Basic bool
	// Force runs the flow even when stored credentials are still valid.
	Force bool

	// OpenBrowser opens the authorization URL. Defaults to the system
	// browser.
	OpenBrowser func(url string) error
	// Input and Output drive the password prompt and progress messages.
	// They default to stdin and stderr.
	Input  io.Reader
	Output io.Writer

	issuerOverride  string
	apiBaseOverride string
}

func (o *Options) applyDefaults() {
	if o.Domain == "" {
		o.Domain = config.DefaultDomain
	}
	if o.AuthDomain == "" {
		o.AuthDomain = "id." + o.Domain
	}
	if o.ClientID == "" {
		o.ClientID = config.DefaultClientID
	}
	if o.RedirectURI == "" {
		o.RedirectURI = config.DefaultRedirectURI
	}
	if o.OpenBrowser == nil {
		o.OpenBrowser = openBrowser
	}
	if o.Input == nil {
		o.Input = os.Stdin
	}
	if o.Output == nil {
		o.Output = os.Stderr
	}
}

// issuer is the OIDC issuer URL used for discovery.
func (o *Options) issuer() string {
	if o.issuerOverride != "" {
		return o.issuerOverride
	}
	return "https://" + o.AuthDomain
}

// apiBase is the API origin used for the key exchange.
func (o *Options) apiBase() string {
	if o.apiBaseOverride != "" {
		return o.apiBaseOverride
	}
	return "https://" + o.Domain
}

func (o *Options) httpClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if o.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// providerClaims are discovery-document fields beyond the token endpoints.
type providerClaims struct {
	JWKSURI     string   `json:"jwks_uri"`
	SigningAlgs []string `json:"id_token_signing_alg_values_supported"`
}

// publicClientEndpoint forces client credentials into the request body. The
// client registration is public, so there is no secret for basic auth.
func publicClientEndpoint(provider *oidc.Provider) oauth2.Endpoint {
	endpoint := provider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return endpoint
}

func discover(ctx context.Context, opts *Options) (*oidc.Provider, *providerClaims, error) {
	provider, err := oidc.NewProvider(ctx, opts.issuer())
	if err != nil {
		return nil, nil, &clierrors.AuthenticationError{
			Message: fmt.Sprintf("cannot reach the identity service at %s", opts.issuer()),
			Err:     err,
		}
	}

	var claims providerClaims
	if err := provider.Claims(&claims); err != nil {
		return nil, nil, &clierrors.AuthenticationError{
			Message: "identity service discovery document is malformed",
			Err:     err,
		}
	}
	return provider, &claims, nil
}

// Result describes a completed login.
type Result struct {
	// Domain the credentials were stored under.
	Domain string
	// Reused is true when valid credentials already existed and Force was
	// not set, in which case no flow ran.
	Reused bool
}

// Login obtains an API key for the domain and stores it in the keyring. The
// default flow opens the browser, captures the OAuth callback on a loopback
// listener, exchanges the authorization code with PKCE, validates the
// returned tokens, and trades the access token for a long-lived API key.
// Valid stored credentials short-circuit the flow unless Force is set.
func Login(ctx context.Context, opts Options) (*Result, error) {
	opts.applyDefaults()

	if !opts.Force && hasValidKey(opts.Domain) {
		slog.Debug("stored credentials still valid, skipping login", "domain", opts.Domain)
		return &Result{Domain: opts.Domain, Reused: true}, nil
	}

	ctx = oidc.ClientContext(ctx, opts.httpClient())

	provider, claims, err := discover(ctx, &opts)
	if err != nil {
		return nil, err
	}

	var token *oauth2.Token
	if opts.Basic {
		token, err = passwordGrant(ctx, provider, &opts)
	} else {
		token, err = authorizeFlow(ctx, provider, &opts)
	}
	if err != nil {
		return nil, err
	}

	if err := validateTokens(ctx, provider, claims, &opts, token); err != nil {
		return nil, err
	}

	apiKey, err := requestAPIKey(ctx, &opts, token.AccessToken)
	if err != nil {
		return nil, err
	}

	if err := auth.Save(auth.TokenInfo{Domain: opts.Domain, APIKey: apiKey}); err != nil {
		return nil, err
	}

	slog.Debug("login complete", "domain", opts.Domain)
	return &Result{Domain: opts.Domain}, nil
}

// authorizeFlow runs the authorization-code grant with PKCE: bind the
// loopback listener, send the browser to the authorization URL, wait for the
// redirect, and exchange the code for tokens.
func authorizeFlow(ctx context.Context, provider *oidc.Provider, opts *Options) (*oauth2.Token, error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, err
	}
	state := uuid.NewString()

	capture, err := startCapture(opts.RedirectURI, state)
	if err != nil {
		return nil, err
	}
	defer capture.close()

	oauthCfg := &oauth2.Config{
		ClientID:    opts.ClientID,
		Endpoint:    publicClientEndpoint(provider),
		RedirectURL: capture.redirectURL(),
		Scopes:      loginScopes,
	}

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	fmt.Fprintln(opts.Output, "Opening your browser to continue the login...")
	if err := opts.OpenBrowser(authURL); err != nil {
		fmt.Fprintf(opts.Output, "Could not open a browser. Visit this URL to continue:\n\n  %s\n\n", authURL)
	}

	code, err := capture.wait(ctx)
	if err != nil {
		return nil, err
	}

	token, err := oauthCfg.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier))
	if err != nil {
		return nil, wrapRetrieveError(err)
	}
	return token, nil
}

// wrapRetrieveError surfaces the identity service's error code and
// description when a token-endpoint call fails.
func wrapRetrieveError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		code := rerr.ErrorCode
		if code == "" && rerr.Response != nil {
			code = fmt.Sprintf("HTTP %d", rerr.Response.StatusCode)
		}
		return &clierrors.AuthenticationError{
			Message: fmt.Sprintf("Error getting JWT: %s - %s", code, rerr.ErrorDescription),
		}
	}
	return &clierrors.AuthenticationError{Message: "Error getting JWT", Err: err}
}

// hasValidKey reports whether unexpired credentials are stored for domain.
func hasValidKey(domain string) bool {
	info, err := auth.Load(domain)
	if err != nil {
		return false
	}
	key, err := info.GetAccessToken()
	return err == nil && key != ""
}

// IsLoggedIn reports whether unexpired credentials exist for the domain.
func IsLoggedIn(domain string) bool {
	if domain == "" {
		domain = config.DefaultDomain
	}
	return hasValidKey(domain)
}

// Logout removes stored credentials for the domain. Missing credentials are
// not an error.
func Logout(domain string) error {
	if domain == "" {
		domain = config.DefaultDomain
	}
	if err := auth.Delete(domain); err != nil && !clierrors.IsTokenNotFound(err) {
		return err
	}
	return nil
}
