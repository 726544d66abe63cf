package errors

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents an input validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// UserError represents an error caused by user input or configuration.
// Suggestion can provide a concrete fix for the user.
type UserError struct {
	Message    string
	Suggestion string
	Err        error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a UserError with a message and optional suggestion.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{Message: message, Suggestion: suggestion}
}

// WrapUserError wraps an underlying error with a user-facing message and suggestion.
func WrapUserError(err error, message, suggestion string) *UserError {
	return &UserError{Message: message, Suggestion: suggestion, Err: err}
}

// AuthenticationError represents a failure during the login flow itself:
// the authorization-code exchange, a rejected grant, or the API-key request.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "authentication failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NewAuthenticationError creates an AuthenticationError with a message.
func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{Message: message}
}

// LoginRequiredError indicates an API request was rejected because the
// caller has no usable credentials.
type LoginRequiredError struct {
	StatusCode int
	Message    string
	Suggestion string
}

func (e *LoginRequiredError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// NewLoginRequiredError builds the error for an unauthenticated request.
func NewLoginRequiredError(statusCode int) *LoginRequiredError {
	return &LoginRequiredError{
		StatusCode: statusCode,
		Message:    "You must login before using this API endpoint",
		Suggestion: "Run 'anc login' or provide an api_key to your client",
	}
}

// NewInvalidAuthError builds the error for a request whose credentials were
// present but rejected.
func NewInvalidAuthError(statusCode int) *LoginRequiredError {
	return &LoginRequiredError{
		StatusCode: statusCode,
		Message:    "the provided API key or login token is invalid",
		Suggestion: "Run 'anc login' again or update the api_key provided to your client",
	}
}

// TokenNotFoundError indicates no credentials are stored for a domain.
type TokenNotFoundError struct {
	Domain string
	Err    error
}

func (e *TokenNotFoundError) Error() string {
	if e.Domain != "" {
		return fmt.Sprintf("no token found for %s", e.Domain)
	}
	return "no token found"
}

func (e *TokenNotFoundError) Unwrap() error {
	return e.Err
}

// TokenExpiredError indicates the stored API key's exp claim has passed.
type TokenExpiredError struct {
	Domain    string
	ExpiredAt time.Time
}

func (e *TokenExpiredError) Error() string {
	if !e.ExpiredAt.IsZero() {
		return fmt.Sprintf("token for %s expired at %s", e.Domain, e.ExpiredAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("token for %s has expired", e.Domain)
}

// InvalidTokenError indicates a token failed signature or claim validation.
type InvalidTokenError struct {
	Message string
	Err     error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InvalidTokenError) Unwrap() error {
	return e.Err
}

// RateLimitError represents a 429 response
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
}

// AuthError represents authentication failures
type AuthError struct {
	Reason     string
	Suggestion string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication error: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// AuthRequiredError wraps an error with authentication required message and suggestion.
func AuthRequiredError(err error) error {
	return &AuthError{
		Reason:     "authentication required",
		Suggestion: "Run 'anc login' to sign in",
		Err:        err,
	}
}

// CircuitBreakerError indicates the circuit is open
type CircuitBreakerError struct{}

func (e *CircuitBreakerError) Error() string {
	return "service temporarily unavailable (circuit breaker open)"
}

// Type checkers
func IsRateLimitError(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsAuthenticationError(err error) bool {
	var e *AuthenticationError
	return errors.As(err, &e)
}

func IsLoginRequired(err error) bool {
	var e *LoginRequiredError
	return errors.As(err, &e)
}

func IsTokenNotFound(err error) bool {
	var e *TokenNotFoundError
	return errors.As(err, &e)
}

func IsTokenExpired(err error) bool {
	var e *TokenExpiredError
	return errors.As(err, &e)
}

func IsInvalidToken(err error) bool {
	var e *InvalidTokenError
	return errors.As(err, &e)
}

func IsCircuitBreakerError(err error) bool {
	var e *CircuitBreakerError
	return errors.As(err, &e)
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsUserError(err error) bool {
	var e *UserError
	return errors.As(err, &e)
}

// UserSuggestion returns a suggestion string if err carries one.
func UserSuggestion(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Suggestion
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Suggestion
	}
	var le *LoginRequiredError
	if errors.As(err, &le) {
		return le.Suggestion
	}
	return ""
}

// ContextualError wraps an error with HTTP request context for debugging.
type ContextualError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

// WrapContext wraps an error with HTTP request context.
// StatusCode can be 0 if the request never completed.
// Returns nil if err is nil.
func WrapContext(method, url string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &ContextualError{
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

func (e *ContextualError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (%d): %s", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *ContextualError) Unwrap() error {
	return e.Err
}

// IsContextualError checks if an error is a ContextualError.
func IsContextualError(err error) bool {
	var ce *ContextualError
	return errors.As(err, &ce)
}
