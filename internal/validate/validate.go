package validate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// uuidRegex matches UUIDs with or without dashes
var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}$`)

// UUID validates that the value is a valid UUID (with or without dashes).
// API key and user identifiers are UUIDs in the format
// xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx or xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx.
func UUID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}
	if !uuidRegex.MatchString(value) {
		return fmt.Errorf("%s: must be a valid UUID, got %q", field, value)
	}
	return nil
}

// domainRegex matches bare hostnames like "anaconda.com" or
// "nucleus.latest.anacondaconnect.com".
var domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// Domain validates that the value is a bare domain name without a scheme,
// port, or path. Use cmdutil.NormalizeDomain first to accept pasted URLs.
func Domain(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}
	if strings.Contains(value, "://") {
		return fmt.Errorf("%s: must be a bare domain without a scheme, got %q", field, value)
	}
	if strings.ContainsAny(value, "/:") {
		return fmt.Errorf("%s: must be a bare domain without a port or path, got %q", field, value)
	}
	if !domainRegex.MatchString(strings.ToLower(value)) {
		return fmt.Errorf("%s: must be a valid domain name, got %q", field, value)
	}
	return nil
}

// orgNameRegex matches organization names as the repo API accepts them.
var orgNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// OrgName validates that the value is a valid organization name
// (lowercase alphanumeric, dashes, and underscores).
func OrgName(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}
	if !orgNameRegex.MatchString(value) {
		return fmt.Errorf("%s: must be lowercase alphanumeric with dashes or underscores, got %q", field, value)
	}
	return nil
}

// HTTPMethod validates that the value is a supported HTTP method.
func HTTPMethod(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}
	switch strings.ToUpper(value) {
	case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE":
		return nil
	}
	return fmt.Errorf("%s: must be one of GET, HEAD, POST, PUT, PATCH, DELETE, got %q", field, value)
}

// NonEmpty validates that a required string field is not empty.
func NonEmpty(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}
	return nil
}

// JSONObject validates that the data is valid JSON and is an object (not array, string, etc.).
func JSONObject(field, data string) error {
	if data == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return fmt.Errorf("%s: must be valid JSON object, got error: %v", field, err)
	}

	return nil
}

// Date validates that the dateStr is in ISO 8601 date format (YYYY-MM-DD).
// Also accepts full ISO 8601 datetime formats.
func Date(field, dateStr string) error {
	if dateStr == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}

	// Try parsing as date only (YYYY-MM-DD)
	if _, err := time.Parse("2006-01-02", dateStr); err == nil {
		return nil
	}

	// Try parsing as RFC3339 (ISO 8601 datetime)
	if _, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return nil
	}

	return fmt.Errorf("%s: must be a valid ISO 8601 date (YYYY-MM-DD) or datetime, got %q", field, dateStr)
}

// URL validates that the urlStr is a valid URL with a scheme and host.
func URL(field, urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("%s: cannot be empty", field)
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%s: must be a valid URL, got error: %v", field, err)
	}

	if parsedURL.Scheme == "" {
		return fmt.Errorf("%s: must have a scheme (http, https, etc.), got %q", field, urlStr)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s: must have a host, got %q", field, urlStr)
	}

	return nil
}
