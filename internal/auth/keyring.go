package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v4"

	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

const (
	// ServiceName is the keyring service entry shared with other
	// Anaconda.cloud clients. Keys under it are base64(JSON) TokenInfo
	// payloads keyed by API domain, so credentials written by one client
	// are readable by the others.
	ServiceName = "Anaconda Cloud"
	// EnvVarName is the environment variable override for the API key.
	EnvVarName = "ANACONDA_CLOUD_API_KEY"
	// KeyringPasswordEnvVarName sets the file keyring passphrase for non-interactive setups.
	KeyringPasswordEnvVarName = "ANACONDA_KEYRING_PASSWORD"
	// DBUSSessionAddressEnvVarName is used to detect Linux headless mode.
	DBUSSessionAddressEnvVarName = "DBUS_SESSION_BUS_ADDRESS"
	// ExpiryWarningWindow is how close to expiry a key gets before whoami warns.
	ExpiryWarningWindow = 7 * 24 * time.Hour

	fileKeyringDirName = "anaconda-cli"
)

// RepoToken is a conda repository access token. An empty OrgName marks an
// account-wide token usable for the default channels.
type RepoToken struct {
	OrgName string `json:"org_name,omitempty"`
	Token   string `json:"token"`
}

// TokenInfo is everything stored in the keyring for one API domain.
// The Username field is legacy and only round-tripped for compatibility
// with payloads written by older clients.
type TokenInfo struct {
	Domain     string      `json:"domain"`
	APIKey     string      `json:"api_key,omitempty"`
	Username   string      `json:"username,omitempty"`
	RepoTokens []RepoToken `json:"repo_tokens,omitempty"`
	Version    int         `json:"version,omitempty"`
}

// KeyringProvider defines an interface for keyring operations
type KeyringProvider interface {
	Get(key string) (keyring.Item, error)
	Set(item keyring.Item) error
	Remove(key string) error
	Keys() ([]string, error)
}

// osKeyring wraps the actual OS keyring implementation
type osKeyring struct {
	ring keyring.Keyring
}

func keyringFileDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}

	configDir = strings.TrimSpace(configDir)
	if configDir == "" {
		return string(os.PathSeparator) + filepath.Join(fileKeyringDirName, "keyring")
	}
	return filepath.Join(configDir, fileKeyringDirName, "keyring")
}

func keyringFilePassword() string {
	if password := strings.TrimSpace(os.Getenv(KeyringPasswordEnvVarName)); password != "" {
		return password
	}
	return ServiceName
}

func shouldForceFileBackend(goos string, dbusAddr string) bool {
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

// newOSKeyring creates a new OS keyring provider
func newOSKeyring() (KeyringProvider, error) {
	fileDir := keyringFileDir()
	cfg := keyring.Config{
		ServiceName: ServiceName,
		// macOS Keychain settings
		KeychainTrustApplication:       true,
		KeychainSynchronizable:         false,
		KeychainAccessibleWhenUnlocked: true,
		// File-based fallback (for environments without GUI keyring)
		FileDir:          fileDir,
		FilePasswordFunc: func(_ string) (string, error) { return keyringFilePassword(), nil },
	}

	if shouldForceFileBackend(runtime.GOOS, os.Getenv(DBUSSessionAddressEnvVarName)) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &osKeyring{ring: ring}, nil
}

func (k *osKeyring) Get(key string) (keyring.Item, error) {
	return k.ring.Get(key)
}

func (k *osKeyring) Set(item keyring.Item) error {
	return k.ring.Set(item)
}

func (k *osKeyring) Remove(key string) error {
	return k.ring.Remove(key)
}

func (k *osKeyring) Keys() ([]string, error) {
	return k.ring.Keys()
}

// defaultProvider is the keyring provider used by the package
// Can be overridden for testing using SetProviderFunc (in testing.go)
var defaultProvider func() (KeyringProvider, error) = newOSKeyring

func encodeTokenInfo(info TokenInfo) ([]byte, error) {
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token info: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return []byte(encoded), nil
}

func decodeTokenInfo(payload []byte) (TokenInfo, error) {
	var info TokenInfo
	data, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		return info, fmt.Errorf("failed to decode token info: %w", err)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("failed to unmarshal token info: %w", err)
	}
	return info, nil
}

// Save stores the TokenInfo in the system keyring under its domain.
func Save(info TokenInfo) error {
	if info.Domain == "" {
		return fmt.Errorf("token info has no domain")
	}

	provider, err := defaultProvider()
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	payload, err := encodeTokenInfo(info)
	if err != nil {
		return err
	}

	err = provider.Set(keyring.Item{
		Key:   info.Domain,
		Label: ServiceName + " credentials for " + info.Domain,
		Data:  payload,
	})
	if err != nil {
		return fmt.Errorf("failed to store token info in keyring: %w", err)
	}

	return nil
}

// Load retrieves the TokenInfo for a domain.
// The ANACONDA_CLOUD_API_KEY environment variable takes precedence over the
// keyring — this avoids blocking keychain prompts in CI, tests, and headless
// environments — and yields a synthetic TokenInfo that Save and Delete never
// touch. A missing or unreadable keyring entry is a TokenNotFoundError.
func Load(domain string) (TokenInfo, error) {
	if key := os.Getenv(EnvVarName); key != "" {
		return TokenInfo{Domain: domain, APIKey: key}, nil
	}
	return LoadStored(domain)
}

// LoadStored retrieves the keyring TokenInfo for a domain, ignoring the
// environment override. Mutation flows use it so a session key never
// shadows or clobbers stored repo tokens.
func LoadStored(domain string) (TokenInfo, error) {
	provider, err := defaultProvider()
	if err != nil {
		return TokenInfo{}, &clierrors.TokenNotFoundError{Domain: domain, Err: err}
	}

	item, err := provider.Get(domain)
	if err != nil {
		return TokenInfo{}, &clierrors.TokenNotFoundError{Domain: domain, Err: err}
	}

	info, err := decodeTokenInfo(item.Data)
	if err != nil {
		return TokenInfo{}, &clierrors.TokenNotFoundError{Domain: domain, Err: err}
	}
	if info.Domain == "" {
		info.Domain = domain
	}

	return info, nil
}

// Delete removes the stored TokenInfo for a domain.
// A missing entry is a TokenNotFoundError; callers that want idempotent
// logout semantics swallow it.
func Delete(domain string) error {
	provider, err := defaultProvider()
	if err != nil {
		return &clierrors.TokenNotFoundError{Domain: domain, Err: err}
	}

	err = provider.Remove(domain)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return &clierrors.TokenNotFoundError{Domain: domain, Err: err}
		}
		return fmt.Errorf("failed to delete token info from keyring: %w", err)
	}

	return nil
}

// ListDomains returns the domains that currently hold stored credentials,
// sorted. Keyring entries that do not decode as TokenInfo are skipped.
func ListDomains() ([]string, error) {
	provider, err := defaultProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	keys, err := provider.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keyring entries: %w", err)
	}

	var domains []string
	for _, key := range keys {
		item, err := provider.Get(key)
		if err != nil {
			continue
		}
		if _, err := decodeTokenInfo(item.Data); err != nil {
			continue
		}
		domains = append(domains, key)
	}
	sort.Strings(domains)

	return domains, nil
}

// GetAccessToken returns the stored API key.
// An empty key is a TokenNotFoundError, an expired one a TokenExpiredError.
func (t TokenInfo) GetAccessToken() (string, error) {
	if t.APIKey == "" {
		return "", &clierrors.TokenNotFoundError{Domain: t.Domain}
	}
	if t.Expired() {
		exp, _ := t.ExpiresAt()
		return "", &clierrors.TokenExpiredError{Domain: t.Domain, ExpiredAt: exp}
	}
	return t.APIKey, nil
}

// ExpiresAt returns the exp claim of the API key. The JWT is decoded without
// signature verification; ok is false when the key does not decode or
// carries no expiry.
func (t TokenInfo) ExpiresAt() (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(t.APIKey, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IssuedAt returns the iat claim of the API key, decoded without signature
// verification. ok is false when the key does not decode or carries no
// issue time.
func (t TokenInfo) IssuedAt() (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(t.APIKey, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.IssuedAt == nil {
		return time.Time{}, false
	}
	return claims.IssuedAt.Time, true
}

// Expired reports whether the API key's exp claim has passed.
// Keys that cannot be decoded are treated as expired.
func (t TokenInfo) Expired() bool {
	exp, ok := t.ExpiresAt()
	if !ok {
		return true
	}
	return time.Now().After(exp)
}

// ExpiringSoon reports whether the API key expires within ExpiryWarningWindow.
func (t TokenInfo) ExpiringSoon() bool {
	exp, ok := t.ExpiresAt()
	if !ok {
		return false
	}
	return time.Until(exp) < ExpiryWarningWindow
}

// GetRepoToken returns the repo token for an organization. When no token is
// installed for that org it falls back to the first stored token regardless
// of its org, so a user holding a single org-scoped token can still reach
// the default channels.
func (t TokenInfo) GetRepoToken(org string) (string, error) {
	for _, rt := range t.RepoTokens {
		if rt.OrgName == org {
			return rt.Token, nil
		}
	}
	if len(t.RepoTokens) > 0 {
		return t.RepoTokens[0].Token, nil
	}
	return "", &clierrors.TokenNotFoundError{Domain: t.Domain}
}

// SetRepoToken inserts or replaces the repo token for an organization.
func (t *TokenInfo) SetRepoToken(org, token string) {
	for i := range t.RepoTokens {
		if t.RepoTokens[i].OrgName == org {
			t.RepoTokens[i].Token = token
			return
		}
	}
	t.RepoTokens = append(t.RepoTokens, RepoToken{OrgName: org, Token: token})
}

// RemoveRepoToken deletes the repo token for an organization.
// Reports whether a token was removed.
func (t *TokenInfo) RemoveRepoToken(org string) bool {
	for i := range t.RepoTokens {
		if t.RepoTokens[i].OrgName == org {
			t.RepoTokens = append(t.RepoTokens[:i], t.RepoTokens[i+1:]...)
			return true
		}
	}
	return false
}

// TokenAgeDays calculates the age of a key in days from its issue time.
// Returns 0 if issuedAt is zero (age unknown).
func TokenAgeDays(issuedAt time.Time) int {
	if issuedAt.IsZero() {
		return 0
	}
	return int(time.Since(issuedAt).Hours() / 24)
}

// FormatTokenAge formats the key issue time and age in a human-readable way.
// Returns empty string if issuedAt is zero (age unknown).
func FormatTokenAge(issuedAt time.Time) string {
	if issuedAt.IsZero() {
		return ""
	}
	age := TokenAgeDays(issuedAt)
	dateStr := issuedAt.Format("2006-01-02")
	switch age {
	case 0:
		return fmt.Sprintf("issued today (%s)", dateStr)
	case 1:
		return fmt.Sprintf("1 day ago (issued %s)", dateStr)
	default:
		return fmt.Sprintf("%d days ago (issued %s)", age, dateStr)
	}
}
