package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	ctxerrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

// RawResponse represents a low-level API response.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// DoRawRequest performs an arbitrary API request and returns the response
// verbatim. It drives the `anc api` escape hatch.
func (c *Client) DoRawRequest(ctx context.Context, method, path string, body []byte, headers http.Header) (*RawResponse, error) {
	url := buildURL(c.baseURL, path)

	if c.circuitBreaker.isOpen() {
		return nil, ctxerrors.WrapContext(method, url, 0, ErrCircuitOpen)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateRetryDelay(attempt, lastErr)
			if apiErr, ok := lastErr.(*APIError); ok && apiErr.StatusCode == http.StatusTooManyRequests {
				slog.Debug("rate limited, waiting before retry", "method", method, "url", url, "attempt", attempt, "delay", delay.String(), "retry_after", apiErr.RetryAfter.String())
			} else {
				slog.Debug("retrying request", "method", method, "url", url, "attempt", attempt, "delay", delay.String())
			}

			select {
			case <-ctx.Done():
				return nil, ctxerrors.WrapContext(method, url, 0, ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := c.doRawRequestOnce(ctx, method, url, body, headers)
		if err != nil {
			lastErr = err
			if apiErr, ok := err.(*APIError); ok {
				if isRetryable(apiErr.StatusCode) {
					continue
				}
			}
			return nil, ctxerrors.WrapContext(method, url, getStatusCode(err), err)
		}

		c.circuitBreaker.recordSuccess()
		return resp, nil
	}

	if apiErr, ok := lastErr.(*APIError); ok && apiErr.StatusCode >= 500 {
		c.circuitBreaker.recordFailure()
	}

	return nil, ctxerrors.WrapContext(method, url, getStatusCode(lastErr), lastErr)
}

func (c *Client) doRawRequestOnce(ctx context.Context, method, url string, body []byte, headers http.Header) (*RawResponse, error) {
	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	contentType := ""
	if len(body) > 0 && headers.Get("Content-Type") == "" {
		contentType = "application/json"
	}

	resp, err := c.doRequestOnceWithReader(ctx, method, url, reqBody, contentType, headers)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       data,
	}, nil
}
