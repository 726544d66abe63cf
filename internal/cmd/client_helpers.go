package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/salmonumbrella/anaconda-cli/internal/client"
	"github.com/salmonumbrella/anaconda-cli/internal/debug"
)

// apiBaseURLEnvVar lets tests and proxies override the API origin without
// touching the domain-based credential lookup.
const apiBaseURLEnvVar = "ANACONDA_CLOUD_API_BASE_URL"

func clientFromContext(ctx context.Context, extra ...client.Option) (*client.Client, error) {
	opts := []client.Option{}
	if cfg := ConfigFromContext(ctx); cfg != nil {
		opts = append(opts, client.WithConfig(cfg))
	}
	if baseURL := strings.TrimSpace(os.Getenv(apiBaseURLEnvVar)); baseURL != "" {
		opts = append(opts, client.WithBaseURL(baseURL))
	} else if domain := DomainFromContext(ctx); domain != "" {
		opts = append(opts, client.WithDomain(domain))
	}
	if d := TimeoutFromContext(ctx); d > 0 {
		opts = append(opts, client.WithTimeout(d))
	}
	if v := ClientVersionFromContext(ctx); v != "" {
		opts = append(opts, client.WithClientVersion(v))
	}
	if debug.IsDebug(ctx) {
		opts = append(opts, client.WithDebugOutput(stderrFromContext(ctx)))
	}
	opts = append(opts, extra...)
	return client.New(opts...)
}
