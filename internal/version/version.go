// Package version compares and sorts version strings.
//
// Comparison prefers semantic versioning: when both sides parse (leniently,
// so "1.0" equals "1.0.0"), they compare as semver. When either side does
// not parse, both compare by their format-independent representation, the
// string split into alternating text and number runs with number runs
// compared numerically.
package version

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version wraps a raw version string for comparison. Parse never fails;
// unparseable strings still order deterministically.
type Version struct {
	raw   string
	sem   *semver.Version
	parts []part
}

// part is one run of the format-independent representation. Runs alternate
// text/number starting with text, so two versions always meet the same kind
// at the same index. Numeric runs keep their digits with leading zeros
// trimmed and compare by length then lexically, which is numeric order
// without overflow.
type part struct {
	text  string
	isNum bool
}

// Parse wraps a raw version string. Surrounding whitespace is trimmed.
func Parse(raw string) Version {
	trimmed := strings.TrimSpace(raw)
	v := Version{raw: trimmed, parts: splitParts(trimmed)}
	if sem, err := semver.NewVersion(trimmed); err == nil {
		v.sem = sem
	}
	return v
}

// String returns the trimmed raw version string.
func (v Version) String() string {
	return v.raw
}

// Equal reports whether two versions are the same: identical raw strings,
// or both parseable and semver-equal ("1.0" vs "1.0.0").
func (v Version) Equal(o Version) bool {
	if v.raw == o.raw {
		return true
	}
	return v.sem != nil && o.sem != nil && v.sem.Equal(o.sem)
}

// Compare orders v against o, returning -1, 0, or 1.
func (v Version) Compare(o Version) int {
	if v.sem != nil && o.sem != nil {
		return v.sem.Compare(o.sem)
	}
	return compareParts(v.parts, o.parts)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// Compare parses and orders two raw version strings.
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}

type sortConfig struct {
	descending bool
	unique     bool
}

// SortOption adjusts Sort behavior.
type SortOption func(*sortConfig)

// Descending sorts from largest to smallest.
func Descending() SortOption {
	return func(c *sortConfig) { c.descending = true }
}

// Unique drops repeated raw strings before sorting.
func Unique() SortOption {
	return func(c *sortConfig) { c.unique = true }
}

// Sort orders version strings ascending (or descending with the Descending
// option). The sort is stable, so inputs that compare equal keep their
// relative order.
func Sort(values []string, opts ...SortOption) []string {
	var cfg sortConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	raws := values
	if cfg.unique {
		seen := make(map[string]struct{}, len(values))
		raws = make([]string, 0, len(values))
		for _, raw := range values {
			if _, ok := seen[raw]; ok {
				continue
			}
			seen[raw] = struct{}{}
			raws = append(raws, raw)
		}
	}

	versions := make([]Version, len(raws))
	for i, raw := range raws {
		versions[i] = Parse(raw)
	}

	sort.SliceStable(versions, func(i, j int) bool {
		if cfg.descending {
			return versions[j].Less(versions[i])
		}
		return versions[i].Less(versions[j])
	})

	result := make([]string, len(versions))
	for i, v := range versions {
		result[i] = v.String()
	}
	return result
}

// Latest returns the highest of the given version strings, or "" when the
// input is empty.
func Latest(values []string) string {
	if len(values) == 0 {
		return ""
	}
	latest := Parse(values[0])
	for _, raw := range values[1:] {
		if v := Parse(raw); latest.Less(v) {
			latest = v
		}
	}
	return latest.String()
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func splitParts(raw string) []part {
	var parts []part
	i := 0
	for i <= len(raw) {
		j := i
		for j < len(raw) && !isDigit(raw[j]) {
			j++
		}
		parts = append(parts, part{text: raw[i:j]})
		if j >= len(raw) {
			break
		}
		k := j
		for k < len(raw) && isDigit(raw[k]) {
			k++
		}
		parts = append(parts, part{text: trimLeadingZeros(raw[j:k]), isNum: true})
		i = k
	}
	return parts
}

func trimLeadingZeros(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func (p part) compare(o part) int {
	if p.isNum && o.isNum {
		if len(p.text) != len(o.text) {
			if len(p.text) < len(o.text) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(p.text, o.text)
}

func compareParts(a, b []part) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := a[i].compare(b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
