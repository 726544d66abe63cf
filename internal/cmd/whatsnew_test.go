package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/salmonumbrella/anaconda-cli/internal/config"
	"github.com/salmonumbrella/anaconda-cli/internal/updates"
)

// setupFeedTest starts a feed endpoint serving the updates in *feed and
// points the config file at it. Tests mutate *feed between runs to
// simulate the feed changing.
func setupFeedTest(t *testing.T, feed *[]updates.Update) *httptest.Server {
	t.Helper()

	setupCmdMockKeyring(t)
	neutralizeAuthEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(updates.Selection{Updates: *feed})
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("updates_url: "+srv.URL+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	setupTempConfig(t, path)
	return srv
}

type feedListing struct {
	Items []updates.Update `json:"items"`
}

func TestWhatsNew(t *testing.T) {
	feed := []updates.Update{
		{ID: "u1", Title: "Conda 25.1 released", URL: "https://anaconda.com/blog/u1"},
		{ID: "u2", Title: "New cloud notebooks", URL: "https://anaconda.com/blog/u2"},
	}
	setupFeedTest(t, &feed)

	stdout, stderr, err := runRootCmd(t, "whats-new", "-o", "json")
	if err != nil {
		t.Fatalf("whats-new: %v\nstderr: %s", err, stderr)
	}

	var listing feedListing
	if err := json.Unmarshal([]byte(stdout), &listing); err != nil {
		t.Fatalf("output is not JSON: %v\noutput: %s", err, stdout)
	}
	if len(listing.Items) != 2 {
		t.Fatalf("items = %#v, want both announcements", listing.Items)
	}
	if listing.Items[0].ID != "u1" || listing.Items[1].Title != "New cloud notebooks" {
		t.Errorf("items = %#v", listing.Items)
	}
}

func TestWhatsNew_SendsClientState(t *testing.T) {
	setupCmdMockKeyring(t)
	neutralizeAuthEnv(t)

	var gotState updates.ClientState
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotState); err != nil {
			t.Errorf("decode client state: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":[]}`))
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("updates_url: "+srv.URL+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	setupTempConfig(t, path)

	var out, errBuf bytes.Buffer
	app := &App{Stdout: &out, Stderr: &errBuf, Version: "9.9.9"}
	root := app.RootCommand()
	root.SetArgs([]string{"whats-new", "-o", "json"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("whats-new: %v\nstderr: %s", err, errBuf.String())
	}

	if gotState.NavigatorVersion != "9.9.9" {
		t.Errorf("navigator_version = %q, want 9.9.9", gotState.NavigatorVersion)
	}
	if gotState.Accounts == nil {
		t.Error("accounts should be an empty list, not null")
	}
}

func TestWhatsNew_MarkSeenThenUnseenOnly(t *testing.T) {
	feed := []updates.Update{{ID: "u1", Title: "First"}}
	setupFeedTest(t, &feed)

	if _, stderr, err := runRootCmd(t, "whats-new", "--mark-seen", "-o", "json"); err != nil {
		t.Fatalf("whats-new --mark-seen: %v\nstderr: %s", err, stderr)
	}

	cfg, err := config.LoadFile()
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(cfg.WhatsNew.Seen) != 1 || cfg.WhatsNew.Seen[0] != "u1" {
		t.Fatalf("seen = %v, want [u1]", cfg.WhatsNew.Seen)
	}

	// A new entry appears; only it should be listed.
	feed = []updates.Update{{ID: "u1", Title: "First"}, {ID: "u2", Title: "Second"}}

	stdout, stderr, err := runRootCmd(t, "whats-new", "--unseen-only", "-o", "json")
	if err != nil {
		t.Fatalf("whats-new --unseen-only: %v\nstderr: %s", err, stderr)
	}

	var listing feedListing
	if err := json.Unmarshal([]byte(stdout), &listing); err != nil {
		t.Fatalf("output is not JSON: %v\noutput: %s", err, stdout)
	}
	if len(listing.Items) != 1 || listing.Items[0].ID != "u2" {
		t.Errorf("items = %#v, want only the unseen entry", listing.Items)
	}
}

func TestWhatsNew_MarkSeenSortsIDs(t *testing.T) {
	feed := []updates.Update{{ID: "zz"}, {ID: "aa"}, {ID: "mm"}}
	setupFeedTest(t, &feed)

	if _, stderr, err := runRootCmd(t, "whats-new", "--mark-seen", "-o", "json"); err != nil {
		t.Fatalf("whats-new --mark-seen: %v\nstderr: %s", err, stderr)
	}

	cfg, err := config.LoadFile()
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	want := []string{"aa", "mm", "zz"}
	if len(cfg.WhatsNew.Seen) != len(want) {
		t.Fatalf("seen = %v, want %v", cfg.WhatsNew.Seen, want)
	}
	for i, id := range want {
		if cfg.WhatsNew.Seen[i] != id {
			t.Errorf("seen[%d] = %q, want %q", i, cfg.WhatsNew.Seen[i], id)
		}
	}
}

func TestWhatsNew_ForgetsDepartedIDs(t *testing.T) {
	feed := []updates.Update{{ID: "u1", Title: "First"}}
	setupFeedTest(t, &feed)

	if _, stderr, err := runRootCmd(t, "whats-new", "--mark-seen", "-o", "json"); err != nil {
		t.Fatalf("whats-new --mark-seen: %v\nstderr: %s", err, stderr)
	}

	// u1 leaves the feed; its seen record should be pruned.
	feed = []updates.Update{{ID: "u2", Title: "Second"}}

	if _, stderr, err := runRootCmd(t, "whats-new", "-o", "json"); err != nil {
		t.Fatalf("whats-new: %v\nstderr: %s", err, stderr)
	}

	cfg, err := config.LoadFile()
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(cfg.WhatsNew.Seen) != 0 {
		t.Errorf("seen = %v, want empty after u1 left the feed", cfg.WhatsNew.Seen)
	}
}

func TestWhatsNew_FeedError(t *testing.T) {
	setupCmdMockKeyring(t)
	neutralizeAuthEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("updates_url: "+srv.URL+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	setupTempConfig(t, path)

	_, _, err := runRootCmd(t, "whats-new")
	if err == nil {
		t.Fatal("expected error for failing feed")
	}
	if !strings.Contains(err.Error(), "failed to fetch announcements") {
		t.Errorf("error = %q", err.Error())
	}
}
