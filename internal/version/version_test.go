package version

import (
	"reflect"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{"semver less", "1.2.3", "1.2.4", -1},
		{"semver greater", "2.0.0", "1.9.9", 1},
		{"semver equal", "1.2.3", "1.2.3", 0},
		{"short form equals full form", "1.0", "1.0.0", 0},
		{"v prefix", "v1.2.3", "1.2.3", 0},
		{"calendar versions", "2021.05", "2021.11", -1},
		{"leading zero component", "1.09", "1.10", -1},
		{"prerelease below release", "1.0.0-alpha", "1.0.0", -1},
		{"whitespace trimmed", "  1.2.3 ", "1.2.3", 0},
		{"numeric run beats lexical", "1.10.0", "1.9.0", 1},
		{"fallback numeric runs", "nightly-10", "nightly-9", 1},
		{"fallback text runs", "alpha", "beta", -1},
		{"fallback prefix sorts first", "v1.x", "v1.x.2", -1},
		{"fallback trailing suffix", "1.2.3", "1.2.3post1", -1},
		{"fallback equal", "build7", "build7", 0},
		{"empty strings equal", "", "", 0},
		{"empty before anything", "", "0.1", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			// Comparison is antisymmetric.
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"identical raw", "1.2.3", "1.2.3", true},
		{"semver equivalent forms", "1.0", "1.0.0", true},
		{"identical unparseable raw", "not-a-version", "not-a-version", true},
		{"different unparseable raw", "foo", "bar", false},
		{"parseable vs unparseable", "1.0.0", "1.0.0x", false},
		{"different versions", "1.0.0", "1.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.a).Equal(Parse(tt.b)); got != tt.want {
				t.Errorf("Parse(%q).Equal(Parse(%q)) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLess(t *testing.T) {
	if !Parse("1.0.0").Less(Parse("1.0.1")) {
		t.Error("expected 1.0.0 < 1.0.1")
	}
	if Parse("1.0.1").Less(Parse("1.0.0")) {
		t.Error("expected 1.0.1 not < 1.0.0")
	}
	if Parse("1.0").Less(Parse("1.0.0")) {
		t.Error("expected 1.0 not < 1.0.0")
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		opts   []SortOption
		want   []string
	}{
		{
			name:   "ascending",
			values: []string{"1.10.0", "1.2.0", "1.9.1"},
			want:   []string{"1.2.0", "1.9.1", "1.10.0"},
		},
		{
			name:   "descending",
			values: []string{"1.2.0", "2.0.0", "1.9.1"},
			opts:   []SortOption{Descending()},
			want:   []string{"2.0.0", "1.9.1", "1.2.0"},
		},
		{
			name:   "unique removes repeats",
			values: []string{"1.0.0", "2.0.0", "1.0.0"},
			opts:   []SortOption{Unique()},
			want:   []string{"1.0.0", "2.0.0"},
		},
		{
			name:   "stable keeps equal forms in input order",
			values: []string{"1.0.0", "1.0", "0.9"},
			want:   []string{"0.9", "1.0.0", "1.0"},
		},
		{
			name:   "mixed parseable and not",
			values: []string{"zz-top", "1.0.0", "aa"},
			want:   []string{"1.0.0", "aa", "zz-top"},
		},
		{
			name:   "empty input",
			values: nil,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sort(tt.values, tt.opts...)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sort(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	values := []string{"2.0.0", "1.0.0"}
	_ = Sort(values)
	if values[0] != "2.0.0" {
		t.Errorf("Sort mutated its input: %v", values)
	}
}

func TestLatest(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"highest wins", []string{"1.2.0", "2.1.0", "2.0.9"}, "2.1.0"},
		{"single value", []string{"0.3.1"}, "0.3.1"},
		{"empty input", nil, ""},
		{"unparseable values", []string{"build9", "build10"}, "build10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Latest(tt.values); got != tt.want {
				t.Errorf("Latest(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestSplitParts(t *testing.T) {
	tests := []struct {
		raw  string
		want []part
	}{
		{"1.2", []part{{text: ""}, {text: "1", isNum: true}, {text: "."}, {text: "2", isNum: true}, {text: ""}}},
		{"v1.x", []part{{text: "v"}, {text: "1", isNum: true}, {text: ".x"}}},
		{"007", []part{{text: ""}, {text: "7", isNum: true}, {text: ""}}},
		{"", []part{{text: ""}}},
		{"abc", []part{{text: "abc"}}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := splitParts(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitParts(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCompareDigitsWithoutOverflow(t *testing.T) {
	// Digit runs longer than an int64 still compare numerically.
	big := "99999999999999999999999999999999999999"
	bigger := "100000000000000000000000000000000000000"
	if got := Compare("r"+big, "r"+bigger); got != -1 {
		t.Errorf("expected huge digit runs to compare numerically, got %d", got)
	}
}
