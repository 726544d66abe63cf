// Package client implements the authenticated Anaconda API client.
//
// A client resolves its bearer credential per request: an explicitly pinned
// API key wins, otherwise the keyring entry for the client's domain is used,
// and with neither the request goes out anonymously. Transient failures
// (429, 5xx) are retried with exponential backoff honoring Retry-After, an
// optional circuit breaker guards against hammering a failing API, and rate
// limit headers are tracked across requests.
//
//	c, err := client.New(client.WithDomain("anaconda.cloud"))
//	if err != nil { ... }
//	account, err := c.Account(ctx)
package client
