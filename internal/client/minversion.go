package client

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// clientBelowMinVersion reports whether the client's pinned API version is
// older than the server's advertised minimum. Versions are date-styled
// semver with possibly zero-padded components ("2023.01.31"); components are
// de-padded before parsing. Either side failing to parse means false.
func clientBelowMinVersion(clientVersion, minVersion string) bool {
	clientV, err := semver.NewVersion(depadVersion(clientVersion))
	if err != nil {
		return false
	}
	minV, err := semver.NewVersion(depadVersion(minVersion))
	if err != nil {
		return false
	}
	return clientV.LessThan(minV)
}

// depadVersion strips leading zeros from all-digit dot components, so
// "2023.01.09" parses as the semver "2023.1.9".
func depadVersion(v string) string {
	parts := strings.Split(strings.TrimSpace(v), ".")
	for i, part := range parts {
		if !allDigits(part) {
			continue
		}
		trimmed := strings.TrimLeft(part, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		parts[i] = trimmed
	}
	return strings.Join(parts, ".")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
