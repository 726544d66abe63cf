package cmd

import (
	"context"
	"time"

	"github.com/salmonumbrella/anaconda-cli/internal/config"
)

type (
	domainKey        struct{}
	errorFormatKey   struct{}
	configKey        struct{}
	timeoutKey       struct{}
	clientVersionKey struct{}
)

// WithDomain stores the effective API domain in the context
func WithDomain(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, domainKey{}, domain)
}

// DomainFromContext retrieves the effective API domain from the context
func DomainFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(domainKey{}).(string); ok {
		return v
	}
	return ""
}

// WithErrorFormat stores the error format in the context.
func WithErrorFormat(ctx context.Context, format string) context.Context {
	return context.WithValue(ctx, errorFormatKey{}, format)
}

// ErrorFormatFromContext retrieves the error format from context.
func ErrorFormatFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(errorFormatKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTimeout stores the per-request timeout in the context.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, d)
}

// TimeoutFromContext retrieves the per-request timeout (0 = default).
func TimeoutFromContext(ctx context.Context) time.Duration {
	if v, ok := ctx.Value(timeoutKey{}).(time.Duration); ok {
		return v
	}
	return 0
}

// WithClientVersion stores the build version in the context so API clients
// can report it in their User-Agent.
func WithClientVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, clientVersionKey{}, version)
}

// ClientVersionFromContext retrieves the build version from the context.
func ClientVersionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientVersionKey{}).(string); ok {
		return v
	}
	return ""
}

// WithConfig stores loaded CLI config in context for downstream helpers.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFromContext retrieves CLI config from context.
func ConfigFromContext(ctx context.Context) *config.Config {
	if v, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return v
	}
	return nil
}
