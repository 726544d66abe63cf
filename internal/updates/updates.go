// Package updates fetches the "what's new" feed.
//
// The feed endpoint selects announcements for a user based on a small
// anonymous state blob the client posts. The server can hand back state of
// its own, which the caller persists and echoes on the next fetch.
package updates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// State is the server-managed slice of client state. It must not carry any
// personally identifying information.
type State struct {
	CloudLoginPopupState int   `json:"cloud_login_popup_state,omitempty"`
	CloudLoginPopupTS    int64 `json:"cloud_login_popup_ts,omitempty"`
}

// ClientState describes the current user for update selection.
type ClientState struct {
	Accounts         []string `json:"accounts"`
	NavigatorVersion string   `json:"navigator_version"`
	State            State    `json:"state"`
}

// Update is a single feed entry.
type Update struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Selection is the server's answer: the updates to show and, optionally,
// replacement state to persist.
type Selection struct {
	State   *State   `json:"state,omitempty"`
	Updates []Update `json:"updates"`
}

// HTTPDoer abstracts an HTTP client for testability.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches the feed from a configured endpoint.
type Client struct {
	httpClient HTTPDoer
	url        string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a feed client for the given endpoint URL.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		url:        url,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch posts the client state and decodes the selected updates.
func (c *Client) Fetch(ctx context.Context, state ClientState) (*Selection, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client state: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching updates feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("updates feed answered status %d", resp.StatusCode)
	}

	var selection Selection
	if err := json.NewDecoder(resp.Body).Decode(&selection); err != nil {
		return nil, fmt.Errorf("failed to decode updates feed: %w", err)
	}
	return &selection, nil
}

// FilterSeen drops updates the user has already been shown and recomputes
// the seen set. An ID stays seen only while the feed still carries it, so
// entries that leave the feed are forgotten. The new seen set is sorted.
func FilterSeen(all []Update, seen []string) (unseen []Update, newSeen []string) {
	seenSet := make(map[string]struct{}, len(seen))
	for _, id := range seen {
		seenSet[id] = struct{}{}
	}

	kept := make(map[string]struct{})
	for _, update := range all {
		if _, ok := seenSet[update.ID]; ok {
			kept[update.ID] = struct{}{}
		} else {
			unseen = append(unseen, update)
		}
	}

	newSeen = make([]string, 0, len(kept))
	for id := range kept {
		newSeen = append(newSeen, id)
	}
	sort.Strings(newSeen)
	return unseen, newSeen
}
