package auth

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

// setupMockKeyring configures tests to use an empty mock keyring
func setupMockKeyring() (*MockKeyring, func()) {
	mock := NewMockKeyringProvider()
	originalProvider := defaultProvider

	SetProviderFunc(func() (KeyringProvider, error) {
		return mock, nil
	})

	// Return cleanup function
	return mock, func() {
		defaultProvider = originalProvider
	}
}

// setupNoKeyring configures tests to simulate environments where keyring is unavailable
func setupNoKeyring() func() {
	originalProvider := defaultProvider

	// Set provider to always return error (simulating CI/container environment)
	SetProviderFunc(func() (KeyringProvider, error) {
		return nil, fmt.Errorf("keyring not available")
	})

	// Return cleanup function
	return func() {
		defaultProvider = originalProvider
	}
}

// signedTestKey builds a signed JWT with the given expiry and issue times.
// The signature is never verified by this package, only the claims are read.
func signedTestKey(t *testing.T, issuedAt, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "user-1"}
	if !issuedAt.IsZero() {
		claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("failed to sign test key: %v", err)
	}
	return token
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	_, cleanup := setupMockKeyring()
	defer cleanup()
	_ = os.Unsetenv(EnvVarName)

	info := TokenInfo{
		Domain: "anaconda.cloud",
		APIKey: "key-abc123",
		RepoTokens: []RepoToken{
			{OrgName: "my-org", Token: "repo-tok-1"},
			{Token: "repo-tok-default"},
		},
		Version: 2,
	}

	if err := Save(info); err != nil {
		t.Fatalf("failed to save token info: %v", err)
	}

	loaded, err := Load("anaconda.cloud")
	if err != nil {
		t.Fatalf("failed to load token info: %v", err)
	}

	if loaded.APIKey != info.APIKey {
		t.Errorf("expected api key %q, got %q", info.APIKey, loaded.APIKey)
	}
	if len(loaded.RepoTokens) != 2 {
		t.Fatalf("expected 2 repo tokens, got %d", len(loaded.RepoTokens))
	}
	if loaded.RepoTokens[0].OrgName != "my-org" {
		t.Errorf("expected org 'my-org', got %q", loaded.RepoTokens[0].OrgName)
	}
	if loaded.Version != 2 {
		t.Errorf("expected version 2, got %d", loaded.Version)
	}
}

func TestSave_NoDomain(t *testing.T) {
	_, cleanup := setupMockKeyring()
	defer cleanup()

	err := Save(TokenInfo{APIKey: "key"})
	if err == nil {
		t.Error("expected error when saving token info without a domain, got nil")
	}
}

func TestSave_Base64JSONPayload(t *testing.T) {
	mock, cleanup := setupMockKeyring()
	defer cleanup()

	if err := Save(TokenInfo{Domain: "anaconda.cloud", APIKey: "key-1"}); err != nil {
		t.Fatalf("failed to save token info: %v", err)
	}

	item, err := mock.Get("anaconda.cloud")
	if err != nil {
		t.Fatalf("expected keyring entry for domain, got error: %v", err)
	}

	// The raw payload is base64, not JSON — other clients of the shared
	// service entry decode it the same way.
	if strings.HasPrefix(string(item.Data), "{") {
		t.Errorf("expected base64 payload, got raw JSON: %s", item.Data)
	}
	decoded, err := decodeTokenInfo(item.Data)
	if err != nil {
		t.Fatalf("stored payload does not decode: %v", err)
	}
	if decoded.APIKey != "key-1" {
		t.Errorf("expected api key 'key-1', got %q", decoded.APIKey)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	cleanup := setupNoKeyring()
	defer cleanup()

	expectedKey := "secret_env_key_12345"
	_ = os.Setenv(EnvVarName, expectedKey)
	defer func() { _ = os.Unsetenv(EnvVarName) }()

	info, err := Load("anaconda.cloud")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if info.APIKey != expectedKey {
		t.Errorf("expected api key %q, got %q", expectedKey, info.APIKey)
	}
	if info.Domain != "anaconda.cloud" {
		t.Errorf("expected domain to be filled in, got %q", info.Domain)
	}
}

func TestLoad_EnvTakesPrecedenceOverKeyring(t *testing.T) {
	mock, cleanup := setupMockKeyring()
	defer cleanup()

	mock.SetTokenInfo(TokenInfo{Domain: "anaconda.cloud", APIKey: "keyring-key"})

	_ = os.Setenv(EnvVarName, "env-key")
	defer func() { _ = os.Unsetenv(EnvVarName) }()

	info, err := Load("anaconda.cloud")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if info.APIKey != "env-key" {
		t.Errorf("env var should take precedence: expected 'env-key', got %q", info.APIKey)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, cleanup := setupMockKeyring()
	defer cleanup()
	_ = os.Unsetenv(EnvVarName)

	_, err := Load("anaconda.cloud")
	if err == nil {
		t.Fatal("expected error when no token stored, got nil")
	}
	if !clierrors.IsTokenNotFound(err) {
		t.Errorf("expected TokenNotFoundError, got %T: %v", err, err)
	}
}

func TestLoad_CorruptedPayload(t *testing.T) {
	mock, cleanup := setupMockKeyring()
	defer cleanup()
	_ = os.Unsetenv(EnvVarName)

	mock.SetRawItem("anaconda.cloud", []byte("not base64 json {{{"))

	_, err := Load("anaconda.cloud")
	if err == nil {
		t.Fatal("expected error for corrupted payload, got nil")
	}
	if !clierrors.IsTokenNotFound(err) {
		t.Errorf("expected TokenNotFoundError, got %T: %v", err, err)
	}
}

func TestLoad_NoKeyringAccess(t *testing.T) {
	cleanup := setupNoKeyring()
	defer cleanup()
	_ = os.Unsetenv(EnvVarName)

	_, err := Load("anaconda.cloud")
	if !clierrors.IsTokenNotFound(err) {
		t.Errorf("expected TokenNotFoundError when keyring unavailable, got %T: %v", err, err)
	}
}

func TestDelete(t *testing.T) {
	mock, cleanup := setupMockKeyring()
	defer cleanup()

	mock.SetTokenInfo(TokenInfo{Domain: "anaconda.cloud", APIKey: "key"})

	if err := Delete("anaconda.cloud"); err != nil {
		t.Fatalf("failed to delete token info: %v", err)
	}

	if _, err := mock.Get("anaconda.cloud"); err == nil {
		t.Error("expected entry to be removed from keyring")
	}
}

func TestDelete_NotFound(t *testing.T) {
	_, cleanup := setupMockKeyring()
	defer cleanup()

	err := Delete("anaconda.cloud")
	if err == nil {
		t.Fatal("expected error when deleting missing entry, got nil")
	}
	if !clierrors.IsTokenNotFound(err) {
		t.Errorf("expected TokenNotFoundError, got %T: %v", err, err)
	}
}

func TestListDomains(t *testing.T) {
	mock, cleanup := setupMockKeyring()
	defer cleanup()

	mock.SetTokenInfo(TokenInfo{Domain: "anaconda.cloud", APIKey: "key-1"})
	mock.SetTokenInfo(TokenInfo{Domain: "staging.anaconda.cloud", APIKey: "key-2"})
	// Entries from other tools under the same service are skipped.
	mock.SetRawItem("unrelated-entry", []byte("opaque"))

	domains, err := ListDomains()
	if err != nil {
		t.Fatalf("failed to list domains: %v", err)
	}

	if len(domains) != 2 {
		t.Fatalf("expected 2 domains, got %d: %v", len(domains), domains)
	}
	if domains[0] != "anaconda.cloud" || domains[1] != "staging.anaconda.cloud" {
		t.Errorf("unexpected domains: %v", domains)
	}
}

func TestGetAccessToken(t *testing.T) {
	validKey := signedTestKey(t, time.Now(), time.Now().Add(time.Hour))
	expiredKey := signedTestKey(t, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))

	tests := []struct {
		name        string
		info        TokenInfo
		wantKey     string
		wantErrType func(error) bool
	}{
		{
			name:    "valid key",
			info:    TokenInfo{Domain: "anaconda.cloud", APIKey: validKey},
			wantKey: validKey,
		},
		{
			name:        "empty key",
			info:        TokenInfo{Domain: "anaconda.cloud"},
			wantErrType: clierrors.IsTokenNotFound,
		},
		{
			name:        "expired key",
			info:        TokenInfo{Domain: "anaconda.cloud", APIKey: expiredKey},
			wantErrType: clierrors.IsTokenExpired,
		},
		{
			name:        "undecodable key treated as expired",
			info:        TokenInfo{Domain: "anaconda.cloud", APIKey: "not-a-jwt"},
			wantErrType: clierrors.IsTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := tt.info.GetAccessToken()
			if tt.wantErrType != nil {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !tt.wantErrType(err) {
					t.Errorf("unexpected error type %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("expected key %q, got %q", tt.wantKey, key)
			}
		})
	}
}

func TestExpired(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		expired bool
	}{
		{"future expiry", signedTestKey(t, time.Time{}, time.Now().Add(time.Hour)), false},
		{"past expiry", signedTestKey(t, time.Time{}, time.Now().Add(-time.Minute)), true},
		{"no expiry claim", signedTestKey(t, time.Now(), time.Time{}), true},
		{"not a jwt", "garbage", true},
		{"empty key", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := TokenInfo{Domain: "anaconda.cloud", APIKey: tt.key}
			if got := info.Expired(); got != tt.expired {
				t.Errorf("Expired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestExpiringSoon(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"expires in an hour", signedTestKey(t, time.Time{}, time.Now().Add(time.Hour)), true},
		{"expires in thirty days", signedTestKey(t, time.Time{}, time.Now().Add(30*24*time.Hour)), false},
		{"not a jwt", "garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := TokenInfo{APIKey: tt.key}
			if got := info.ExpiringSoon(); got != tt.want {
				t.Errorf("ExpiringSoon() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIssuedAt(t *testing.T) {
	issued := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	info := TokenInfo{APIKey: signedTestKey(t, issued, time.Now().Add(time.Hour))}

	got, ok := info.IssuedAt()
	if !ok {
		t.Fatal("expected iat claim to be present")
	}
	if !got.Equal(issued) {
		t.Errorf("expected issued at %v, got %v", issued, got)
	}

	noIat := TokenInfo{APIKey: signedTestKey(t, time.Time{}, time.Now().Add(time.Hour))}
	if _, ok := noIat.IssuedAt(); ok {
		t.Error("expected ok=false when iat claim absent")
	}
}

func TestGetRepoToken(t *testing.T) {
	info := TokenInfo{
		Domain: "anaconda.cloud",
		RepoTokens: []RepoToken{
			{OrgName: "org-a", Token: "tok-a"},
			{Token: "tok-default"},
			{OrgName: "org-b", Token: "tok-b"},
		},
	}

	tests := []struct {
		name    string
		org     string
		want    string
		wantErr bool
	}{
		{"org match", "org-b", "tok-b", false},
		{"unknown org falls back to first stored token", "org-x", "tok-a", false},
		{"empty org uses account-wide", "", "tok-default", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := info.GetRepoToken(tt.org)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected token %q, got %q", tt.want, got)
			}
		})
	}

	// A lone org-scoped token still serves other channels.
	orgOnly := TokenInfo{RepoTokens: []RepoToken{{OrgName: "org-a", Token: "tok-a"}}}
	if got, err := orgOnly.GetRepoToken("other-org"); err != nil || got != "tok-a" {
		t.Errorf("expected first stored token fallback tok-a, got %q, err %v", got, err)
	}

	empty := TokenInfo{}
	if _, err := empty.GetRepoToken("org-a"); !clierrors.IsTokenNotFound(err) {
		t.Errorf("expected TokenNotFoundError with no tokens stored, got %v", err)
	}
}

func TestSetRepoToken(t *testing.T) {
	var info TokenInfo

	info.SetRepoToken("org-a", "tok-1")
	info.SetRepoToken("org-a", "tok-2") // replaces
	info.SetRepoToken("", "tok-default")

	if len(info.RepoTokens) != 2 {
		t.Fatalf("expected 2 repo tokens, got %d", len(info.RepoTokens))
	}
	if info.RepoTokens[0].Token != "tok-2" {
		t.Errorf("expected upsert to replace token, got %q", info.RepoTokens[0].Token)
	}
}

func TestRemoveRepoToken(t *testing.T) {
	info := TokenInfo{RepoTokens: []RepoToken{
		{OrgName: "org-a", Token: "tok-a"},
		{Token: "tok-default"},
	}}

	if !info.RemoveRepoToken("org-a") {
		t.Error("expected removal of existing org token to report true")
	}
	if info.RemoveRepoToken("org-a") {
		t.Error("expected second removal to report false")
	}
	if len(info.RepoTokens) != 1 || info.RepoTokens[0].Token != "tok-default" {
		t.Errorf("unexpected remaining tokens: %v", info.RepoTokens)
	}
}

func TestShouldForceFileBackend(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		dbusAddr string
		want     bool
	}{
		{"linux headless", "linux", "", true},
		{"linux whitespace addr", "linux", "   ", true},
		{"linux with session", "linux", "unix:path=/run/user/1000/bus", false},
		{"darwin", "darwin", "", false},
		{"windows", "windows", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldForceFileBackend(tt.goos, tt.dbusAddr); got != tt.want {
				t.Errorf("shouldForceFileBackend(%q, %q) = %v, want %v", tt.goos, tt.dbusAddr, got, tt.want)
			}
		})
	}
}

func TestFormatTokenAge(t *testing.T) {
	tests := []struct {
		name     string
		daysAgo  int
		contains string
	}{
		{"zero time", -1, ""},
		{"today", 0, "issued today"},
		{"one day ago", 1, "1 day ago"},
		{"45 days ago", 45, "45 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var issuedAt time.Time
			if tt.daysAgo >= 0 {
				issuedAt = time.Now().Add(-time.Duration(tt.daysAgo) * 24 * time.Hour)
			}

			formatted := FormatTokenAge(issuedAt)
			if tt.contains == "" {
				if formatted != "" {
					t.Errorf("expected empty string, got %q", formatted)
				}
			} else if !strings.Contains(formatted, tt.contains) {
				t.Errorf("expected formatted age to contain %q, got %q", tt.contains, formatted)
			}
		})
	}
}
