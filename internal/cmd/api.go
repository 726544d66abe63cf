package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/anaconda-cli/internal/client"
	"github.com/salmonumbrella/anaconda-cli/internal/cmdutil"
	"github.com/salmonumbrella/anaconda-cli/internal/output"
	"github.com/salmonumbrella/anaconda-cli/internal/validate"
)

func newAPICmd() *cobra.Command {
	var bodyJSON string
	var bodyFile string
	var raw bool
	var includeHeaders bool
	var headers []string
	var noAuth bool

	cmd := &cobra.Command{
		Use:   "api <method> <path>",
		Short: "Make a raw API request",
		Long: `Make a raw Anaconda Cloud API request (useful for new endpoints and debugging).

The stored credential for the active domain is attached automatically;
--no-auth or an explicit Authorization header suppresses it.

Examples:
  anc api GET /api/account
  anc api GET /api/iam/api-keys
  anc api POST /api/iam/api-keys --body '{"name":"ci","scopes":["cloud:read"]}'
  anc api POST /api/iam/api-keys --body @payload.json
  anc api GET /api/catalogs --no-auth
  anc api GET /api/account --header "Authorization: Bearer <token>"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := validate.HTTPMethod("method", method); err != nil {
				return err
			}
			path := strings.TrimSpace(args[1])

			bodyStr, err := cmdutil.ResolveJSONInput(bodyJSON, bodyFile)
			if err != nil {
				return err
			}

			bodyStr = cmdutil.NormalizeJSONInput(bodyStr)
			var bodyBytes []byte
			if bodyStr != "" {
				if !json.Valid([]byte(bodyStr)) {
					return fmt.Errorf("invalid JSON body")
				}
				bodyBytes = []byte(bodyStr)
			}

			customHeaders, err := parseHeaderFlags(headers)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var clientOpts []client.Option
			if noAuth || hasAuthorizationHeader(customHeaders) {
				clientOpts = append(clientOpts, client.WithAuthDisabled())
			}

			c, err := clientFromContext(ctx, clientOpts...)
			if err != nil {
				return err
			}

			resp, err := c.DoRawRequest(ctx, method, path, bodyBytes, customHeaders)
			if err != nil {
				return err
			}

			return renderAPIResponse(ctx, resp, raw, includeHeaders)
		},
	}

	cmd.Flags().StringVar(&bodyJSON, "body", "", "JSON request body (or @file, @-, or - for stdin)")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read JSON body from file ('-' for stdin)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Output only the response body")
	cmd.Flags().BoolVar(&includeHeaders, "include-headers", false, "Include response headers in output")
	cmd.Flags().StringArrayVar(&headers, "header", nil, "Custom header (repeatable, format: 'Key: Value')")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "Disable default Authorization header (also disabled when Authorization header is provided)")

	_ = cmd.Flags().MarkHidden("body-file") // prefer @file style, keep as fallback

	cmd.AddCommand(newAPIStatusCmd())
	return cmd
}

func newAPIStatusCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show API rate limit status",
		Long: `Show the current Anaconda Cloud API rate limit status.

By default, shows cached rate limit info from the most recent API call.
Use --refresh to make a fresh API call and get updated rate limit info.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := clientFromContext(ctx)
			if err != nil {
				return err
			}

			if refresh {
				// Any authenticated endpoint refreshes the tracker.
				if _, err := c.Account(ctx); err != nil {
					return fmt.Errorf("failed to fetch API status: %w", err)
				}
			}

			info := c.GetRateLimitInfo()
			format := output.FormatFromContext(ctx)
			if info == nil {
				if format == output.FormatJSON || format == output.FormatYAML {
					return printerForContext(ctx).Print(ctx, map[string]interface{}{
						"available": false,
						"message":   "No rate limit information available. Make an API call first, or use --refresh to fetch fresh data.",
					})
				}
				out := stdoutFromContext(ctx)
				_, _ = fmt.Fprintln(out, "No rate limit information available.")
				_, _ = fmt.Fprintln(out, "Make an API call first, or use --refresh to fetch fresh data.")
				return nil
			}

			data := map[string]interface{}{
				"available":  true,
				"remaining":  info.Remaining,
				"limit":      info.Limit,
				"request_id": info.RequestID,
			}

			if !info.ResetAt.IsZero() {
				data["reset_at"] = info.ResetAt.Format(time.RFC3339)
				remaining := time.Until(info.ResetAt)
				if remaining > 0 {
					data["resets_in_seconds"] = int(remaining.Seconds())
				}
			}

			if format == output.FormatJSON || format == output.FormatYAML {
				return printerForContext(ctx).Print(ctx, data)
			}

			out := stdoutFromContext(ctx)
			_, _ = fmt.Fprintln(out, "Rate Limit Status")
			_, _ = fmt.Fprintln(out, "─────────────────")
			_, _ = fmt.Fprintf(out, "Remaining:  %d / %d requests\n", info.Remaining, info.Limit)

			if !info.ResetAt.IsZero() {
				remaining := time.Until(info.ResetAt)
				if remaining > 0 {
					_, _ = fmt.Fprintf(out, "Resets in:  %s\n", remaining.Round(time.Second))
				} else {
					_, _ = fmt.Fprintln(out, "Reset:      Already reset")
				}
			}

			if info.RequestID != "" {
				_, _ = fmt.Fprintf(out, "Request ID: %s\n", info.RequestID)
			}

			if info.Limit > 0 {
				pct := float64(info.Remaining) / float64(info.Limit) * 100
				if pct < 10 && !output.QuietFromContext(ctx) {
					_, _ = fmt.Fprintf(out, "\nWarning: Rate limit is low (%.1f%% remaining)\n", pct)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Make fresh API call to get updated rate limit info")

	return cmd
}

func renderAPIResponse(ctx context.Context, resp *client.RawResponse, raw bool, includeHeaders bool) error {
	if resp == nil {
		return fmt.Errorf("no response returned")
	}

	bodyPayload, isJSON := decodeJSONBody(resp.Body)
	if raw {
		if isJSON {
			printer := printerForContext(ctx)
			return printer.Print(ctx, bodyPayload)
		}
		_, _ = fmt.Fprintln(stdoutFromContext(ctx), string(resp.Body))
		return nil
	}

	envelope := buildAPIEnvelope(resp, bodyPayload, includeHeaders)
	printer := printerForContext(ctx)
	return printer.Print(ctx, envelope)
}

func buildAPIEnvelope(resp *client.RawResponse, body interface{}, includeHeaders bool) map[string]interface{} {
	envelope := map[string]interface{}{
		"status":     resp.StatusCode,
		"request_id": resp.Headers.Get("X-Request-Id"),
		"body":       body,
	}

	if includeHeaders {
		envelope["headers"] = flattenHeaders(resp.Headers)
	}

	return envelope
}

func decodeJSONBody(body []byte) (interface{}, bool) {
	if len(body) == 0 {
		return nil, true
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, true
	}

	if !json.Valid(trimmed) {
		return string(body), false
	}

	var payload interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return string(body), false
	}

	return payload, true
}

func parseHeaderFlags(values []string) (http.Header, error) {
	headers := http.Header{}
	for _, raw := range values {
		parts := strings.SplitN(raw, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid header %q (expected 'Key: Value')", raw)
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if key == "" {
			return nil, fmt.Errorf("invalid header %q (missing key)", raw)
		}
		headers.Add(key, val)
	}
	return headers, nil
}

func hasAuthorizationHeader(headers http.Header) bool {
	if headers == nil {
		return false
	}
	_, ok := headers[http.CanonicalHeaderKey("Authorization")]
	return ok
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := map[string]string{}
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		flat[key] = strings.Join(values, ", ")
	}
	return flat
}
