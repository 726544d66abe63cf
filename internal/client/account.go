package client

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAvatarBase = "https://gravatar.com/avatar/"

// AccountUser is the user block of the account payload.
type AccountUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Account is the authenticated user's account.
type Account struct {
	User    AccountUser            `json:"user"`
	Profile map[string]interface{} `json:"profile,omitempty"`
}

// Account fetches the authenticated user's account, caching it for the
// lifetime of the client.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	c.accountMu.Lock()
	defer c.accountMu.Unlock()

	if c.account != nil {
		return c.account, nil
	}

	var account Account
	if err := c.Get(ctx, "/api/account", &account); err != nil {
		return nil, err
	}
	c.account = &account
	return c.account, nil
}

// Name returns the account holder's full name, falling back to the email
// address when no name is set.
func (c *Client) Name(ctx context.Context) (string, error) {
	account, err := c.Account(ctx)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(account.User.FirstName + " " + account.User.LastName)
	if name == "" {
		return c.Email(ctx)
	}
	return name, nil
}

// Email returns the account's email address.
func (c *Client) Email(ctx context.Context) (string, error) {
	account, err := c.Account(ctx)
	if err != nil {
		return "", err
	}
	if account.User.Email == "" {
		return "", fmt.Errorf("account has no email address")
	}
	return account.User.Email, nil
}

// Avatar fetches the account's gravatar image. Accounts without one return
// nil bytes, not an error.
func (c *Client) Avatar(ctx context.Context) ([]byte, error) {
	email, err := c.Email(ctx)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	avatarURL := fmt.Sprintf("%s%x.png?size=120&d=404", c.avatarBase, sum)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return nil, err
	}

	// Gravatar is a third-party service; no credentials attached.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching avatar: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching avatar: HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// APIKey is a provisioned API key. The secret itself is only returned at
// creation time.
type APIKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// CreatedAPIKey is the answer to a key creation request.
type CreatedAPIKey struct {
	ID        string    `json:"id"`
	APIKey    string    `json:"api_key"`
	Scopes    []string  `json:"scopes,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type apiKeyList struct {
	Items []APIKey `json:"items"`
}

type apiKeyCreate struct {
	Scopes []string `json:"scopes"`
	Tags   []string `json:"tags"`
}

// APIKeys lists the account's provisioned API keys.
func (c *Client) APIKeys(ctx context.Context) ([]APIKey, error) {
	var list apiKeyList
	if err := c.Get(ctx, "/api/iam/api-keys", &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// CreateAPIKey provisions a new API key with the given scopes and tags. The
// endpoint answers 201 on success.
func (c *Client) CreateAPIKey(ctx context.Context, scopes, tags []string) (*CreatedAPIKey, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/iam/api-keys", apiKeyCreate{Scopes: scopes, Tags: tags})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("expected 201 Created from the key endpoint, got %d", resp.StatusCode)
	}

	var created CreatedAPIKey
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &created, nil
}
