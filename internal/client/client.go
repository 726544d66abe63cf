package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/salmonumbrella/anaconda-cli/internal/auth"
	"github.com/salmonumbrella/anaconda-cli/internal/config"
	"github.com/salmonumbrella/anaconda-cli/internal/debug"
	ctxerrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

const (
	userAgentProduct     = "anaconda-cli"
	defaultClientVersion = "dev"
	defaultUserAgent     = userAgentProduct + "/" + defaultClientVersion
	defaultTimeout       = 30 * time.Second
	maxRetries           = 3
	baseDelay            = 1 * time.Second

	// Circuit breaker defaults
	defaultCircuitBreakerThreshold       = 5
	defaultCircuitBreakerRecoveryTimeout = 30 * time.Second
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open - too many consecutive API failures")

// circuitBreaker implements a circuit breaker pattern to prevent hammering a failing API
type circuitBreaker struct {
	mu              sync.Mutex
	failures        int
	lastFailure     time.Time
	open            bool
	threshold       int
	recoveryTimeout time.Duration
	enabled         bool
}

// recordSuccess clears the failure counter and closes the circuit
func (cb *circuitBreaker) recordSuccess() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasOpen := cb.open
	cb.failures = 0
	cb.open = false

	if wasOpen {
		slog.Info("circuit breaker recovered", "component", "circuit_breaker")
	}
}

// recordFailure increments the failure counter and opens circuit if threshold reached
// Returns true if the circuit just opened
func (cb *circuitBreaker) recordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= cb.threshold && !cb.open {
		cb.open = true
		slog.Warn("circuit breaker opened", "component", "circuit_breaker", "failures", cb.failures)
		return true
	}

	return false
}

// isOpen checks if the circuit is currently open
// Auto-recovers if recovery timeout has passed
func (cb *circuitBreaker) isOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return false
	}

	// Check if recovery timeout has passed
	if time.Since(cb.lastFailure) > cb.recoveryTimeout {
		cb.open = false
		cb.failures = 0
		slog.Debug("circuit breaker half-open, attempting recovery", "component", "circuit_breaker")
		return false
	}

	return true
}

// Client is an authenticated Anaconda API client.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	domain       string
	apiKey       string
	userAgent    string
	apiVersion   string
	aauToken     string
	extraHeaders map[string]string
	maxRetries   int
	authDisabled bool

	circuitBreaker *circuitBreaker
	rateLimiter    *RateLimitTracker

	accountMu sync.Mutex
	account   *Account

	versionWarn sync.Once
	avatarBase  string
}

// settings collects option values before they are resolved against config.
type settings struct {
	domain        string
	baseURL       string
	apiKey        string
	userAgent     string
	clientVersion string
	apiVersion    string
	extraHeaders  map[string]string
	sslVerify     *bool
	httpClient    *http.Client
	timeout       time.Duration
	maxRetries    *int
	breaker       bool
	breakerN      int
	breakerWait   time.Duration
	debugOut      io.Writer
	config        *config.Config
	authDisabled  bool
}

// Option configures New.
type Option func(*settings)

// WithDomain targets an API domain, e.g. anaconda.cloud. Mutually exclusive
// with WithBaseURL.
func WithDomain(domain string) Option {
	return func(s *settings) { s.domain = domain }
}

// WithBaseURL targets a full API origin, for deployments not reachable as
// https://{domain}. Mutually exclusive with WithDomain.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) { s.baseURL = baseURL }
}

// WithAPIKey pins the bearer credential instead of reading the keyring.
func WithAPIKey(key string) Option {
	return func(s *settings) { s.apiKey = key }
}

// WithAuthDisabled suppresses the default Authorization header. Raw requests
// use it for anonymous calls and when the caller supplies its own credential.
func WithAuthDisabled() Option {
	return func(s *settings) { s.authDisabled = true }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.userAgent = ua }
}

// WithClientVersion sets the release that appears in the default User-Agent,
// anaconda-cli/{version}. Ignored when WithUserAgent is set.
func WithClientVersion(v string) Option {
	return func(s *settings) { s.clientVersion = v }
}

// WithAPIVersion sets the Api-Version request header and enables the
// Min-Api-Version staleness warning.
func WithAPIVersion(v string) Option {
	return func(s *settings) { s.apiVersion = v }
}

// WithExtraHeaders adds headers to every request. They never override
// headers the client sets itself.
func WithExtraHeaders(headers map[string]string) Option {
	return func(s *settings) { s.extraHeaders = headers }
}

// WithSSLVerify toggles TLS certificate verification.
func WithSSLVerify(verify bool) Option {
	return func(s *settings) { s.sslVerify = &verify }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) { s.httpClient = client }
}

// WithTimeout bounds each request round trip. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithMaxRetries sets the maximum number of retries for transient errors.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.maxRetries = &n }
}

// WithCircuitBreaker enables the circuit breaker with a failure threshold
// and recovery timeout.
func WithCircuitBreaker(threshold int, recoveryTimeout time.Duration) Option {
	return func(s *settings) {
		s.breaker = true
		s.breakerN = threshold
		s.breakerWait = recoveryTimeout
	}
}

// WithDebugOutput logs HTTP requests and responses to w.
func WithDebugOutput(w io.Writer) Option {
	return func(s *settings) { s.debugOut = w }
}

// WithConfig supplies an already-loaded config instead of reading it from
// disk and the environment.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.config = cfg }
}

// New builds a client. Unset options fall back to the loaded config, then to
// the compiled-in defaults.
func New(opts ...Option) (*Client, error) {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}

	if s.domain != "" && s.baseURL != "" {
		return nil, &ctxerrors.ValidationError{
			Field:   "domain",
			Message: "only one of WithDomain and WithBaseURL may be set",
		}
	}

	cfg := s.config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	domain := s.domain
	if domain == "" {
		domain = cfg.GetDomain()
	}
	baseURL := s.baseURL
	if baseURL == "" {
		baseURL = "https://" + domain
	}
	baseURL = strings.TrimRight(baseURL, "/")

	apiKey := s.apiKey
	if apiKey == "" {
		apiKey = cfg.APIKey
	}

	userAgent := s.userAgent
	if userAgent == "" {
		version := s.clientVersion
		if version == "" {
			version = defaultClientVersion
		}
		userAgent = userAgentProduct + "/" + version
	}

	extra := make(map[string]string, len(cfg.ExtraHeaders)+len(s.extraHeaders))
	for k, v := range cfg.ExtraHeaders {
		extra[k] = v
	}
	for k, v := range s.extraHeaders {
		extra[k] = v
	}

	sslVerify := cfg.GetSSLVerify()
	if s.sslVerify != nil {
		sslVerify = *s.sslVerify
	}

	timeout := s.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := s.httpClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !sslVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		httpClient = &http.Client{Transport: transport, Timeout: timeout}
	} else if s.timeout > 0 {
		httpClient.Timeout = s.timeout
	}
	if s.debugOut != nil {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		httpClient.Transport = debug.NewDebugTransport(base, s.debugOut)
	}

	retries := maxRetries
	if s.maxRetries != nil {
		retries = *s.maxRetries
	}

	breaker := &circuitBreaker{
		threshold:       defaultCircuitBreakerThreshold,
		recoveryTimeout: defaultCircuitBreakerRecoveryTimeout,
	}
	if s.breaker {
		breaker.enabled = true
		if s.breakerN > 0 {
			breaker.threshold = s.breakerN
		}
		if s.breakerWait > 0 {
			breaker.recoveryTimeout = s.breakerWait
		}
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		domain:         domain,
		apiKey:         apiKey,
		userAgent:      userAgent,
		apiVersion:     s.apiVersion,
		aauToken:       cfg.AAUToken,
		extraHeaders:   extra,
		maxRetries:     retries,
		authDisabled:   s.authDisabled,
		circuitBreaker: breaker,
		rateLimiter:    NewRateLimitTracker(),
		avatarBase:     defaultAvatarBase,
	}, nil
}

// WithDebug enables debug logging of HTTP traffic to stderr.
func (c *Client) WithDebug() *Client {
	baseTransport := c.httpClient.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	c.httpClient.Transport = debug.NewDebugTransport(baseTransport, os.Stderr)
	return c
}

// Domain returns the API domain credentials are resolved against.
func (c *Client) Domain() string {
	return c.domain
}

// authorization resolves the bearer header for a request: the pinned API key
// when set, else the stored credentials for the domain. Missing credentials
// mean an anonymous request; expired ones are an error.
func (c *Client) authorization() (string, error) {
	if c.authDisabled {
		return "", nil
	}
	if c.apiKey != "" {
		return "Bearer " + c.apiKey, nil
	}

	info, err := auth.Load(c.domain)
	if err != nil {
		if ctxerrors.IsTokenNotFound(err) {
			return "", nil
		}
		return "", err
	}
	key, err := info.GetAccessToken()
	if err != nil {
		if ctxerrors.IsTokenNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return "Bearer " + key, nil
}

// buildURL joins a request path against the base URL. Absolute URLs pass
// through untouched.
func buildURL(baseURL, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return baseURL + path
}

// doRequest performs an HTTP request with retry logic for rate limits and transient errors
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := buildURL(c.baseURL, path)

	// Check if circuit breaker is open
	if c.circuitBreaker.isOpen() {
		return nil, ctxerrors.WrapContext(method, url, 0, ErrCircuitOpen)
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			delay := c.calculateRetryDelay(attempt, lastErr)

			// Log retry with rate limit info if applicable
			if apiErr, ok := lastErr.(*APIError); ok && apiErr.StatusCode == http.StatusTooManyRequests {
				slog.Debug("rate limited, waiting before retry",
					"method", method,
					"path", path,
					"attempt", attempt,
					"delay", delay.String(),
					"retry_after", apiErr.RetryAfter.String())
			} else {
				slog.Debug("retrying request",
					"method", method,
					"path", path,
					"attempt", attempt,
					"delay", delay.String())
			}

			select {
			case <-ctx.Done():
				return nil, ctxerrors.WrapContext(method, url, 0, ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := c.doRequestOnce(ctx, method, url, body)
		if err != nil {
			lastErr = err

			// Check if error is retryable
			if apiErr, ok := err.(*APIError); ok {
				if isRetryable(apiErr.StatusCode) {
					continue
				}
			}

			// Non-retryable error, return immediately
			return nil, ctxerrors.WrapContext(method, url, getStatusCode(err), err)
		}

		// Success - record it to reset circuit breaker
		c.circuitBreaker.recordSuccess()
		return resp, nil
	}

	// All retries exhausted - record as a single failure for circuit breaker
	if apiErr, ok := lastErr.(*APIError); ok && apiErr.StatusCode >= 500 {
		c.circuitBreaker.recordFailure()
	}

	return nil, ctxerrors.WrapContext(method, url, getStatusCode(lastErr), lastErr)
}

// doRequestOnce performs a single HTTP request attempt with proper headers and error handling
func (c *Client) doRequestOnce(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	contentType := ""
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
		contentType = "application/json"
	}

	return c.doRequestOnceWithReader(ctx, method, url, reqBody, contentType, nil)
}

// doRequestOnceWithReader performs a single HTTP request attempt with a raw reader body.
// It applies shared auth/version headers and decodes API errors consistently.
func (c *Client) doRequestOnceWithReader(ctx context.Context, method, requestURL string, body io.Reader, contentType string, extraHeaders http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	authHeader, err := c.authorization()
	if err != nil {
		return nil, err
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiVersion != "" {
		req.Header.Set("Api-Version", c.apiVersion)
	}
	if c.aauToken != "" {
		req.Header.Set("X-AAU-CLIENT", c.aauToken)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, values := range extraHeaders {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	// Configured extra headers fill gaps only.
	for key, value := range c.extraHeaders {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	authSent := req.Header.Get("Authorization") != ""

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	// Update rate limit tracker with response headers
	c.rateLimiter.Update(resp)
	c.warnIfAPIVersionStale(resp)

	// Check for error responses
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		return nil, c.errorFromResponse(resp, authSent)
	}

	return resp, nil
}

// errorFromResponse maps an error response to the matching error type. 401
// and 403 answers turn into login guidance: an anonymous request needs a
// login, a rejected credential needs a new one. Everything else surfaces as
// an APIError.
func (c *Client) errorFromResponse(resp *http.Response, authSent bool) error {
	var errResp ErrorResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&errResp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if !authSent {
			return ctxerrors.NewLoginRequiredError(resp.StatusCode)
		}
		if decodeErr == nil && errResp.Detail.Code == "auth_required" {
			return ctxerrors.NewInvalidAuthError(resp.StatusCode)
		}
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	if decodeErr == nil {
		apiErr.Code = errResp.Detail.Code
		apiErr.Message = errResp.Detail.Message
	}
	return apiErr
}

// warnIfAPIVersionStale compares the server's Min-Api-Version header against
// the client's pinned version and warns once when the client is older.
// Either side failing to parse skips the check.
func (c *Client) warnIfAPIVersionStale(resp *http.Response) {
	minRaw := resp.Header.Get("Min-Api-Version")
	if minRaw == "" || c.apiVersion == "" {
		return
	}
	if clientBelowMinVersion(c.apiVersion, minRaw) {
		c.versionWarn.Do(func() {
			slog.Warn("client API version is below the server minimum, update the client",
				"api_version", c.apiVersion,
				"min_api_version", minRaw)
		})
	}
}

// calculateRetryDelay calculates the delay before the next retry attempt
func (c *Client) calculateRetryDelay(attempt int, lastErr error) time.Duration {
	// Check if the error has a Retry-After header
	if apiErr, ok := lastErr.(*APIError); ok && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}

	// Exponential backoff: 1s, 2s, 4s
	delay := baseDelay * time.Duration(1<<(attempt-1))

	// Add jitter (0-25% of delay)
	jitter := time.Duration(rand.Int63n(int64(delay / 4)))
	delay += jitter

	return delay
}

// isRetryable returns true if the HTTP status code indicates a retryable error
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// parseRetryAfter parses the Retry-After header value
// Returns the duration to wait, or 0 if not parseable
func parseRetryAfter(retryAfter string) time.Duration {
	if retryAfter == "" {
		return 0
	}

	// Try parsing as seconds (integer)
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(retryAfter); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return 0
}

// getStatusCode extracts the HTTP status code from an error when it carries one
func getStatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var loginErr *ctxerrors.LoginRequiredError
	if errors.As(err, &loginErr) {
		return loginErr.StatusCode
	}
	return 0
}

// Do performs a request and decodes the JSON response into result when
// result is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, result interface{}) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body, result interface{}) error {
	return c.Do(ctx, http.MethodPut, path, body, result)
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body, result interface{}) error {
	return c.Do(ctx, http.MethodPatch, path, body, result)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, result interface{}) error {
	return c.Do(ctx, http.MethodDelete, path, nil, result)
}

// GetRateLimitInfo returns the current rate limit information
// Returns nil if no API requests have been made yet
func (c *Client) GetRateLimitInfo() *RateLimitInfo {
	return c.rateLimiter.Get()
}
