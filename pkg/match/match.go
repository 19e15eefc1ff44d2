// Package match filters object keys with doublestar glob patterns and
// derives static key prefixes so scans can narrow their listings.
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with the offending pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Config configures a Filter.
type Config struct {
	// Includes are glob patterns objects must match (at least one).
	// Empty means every key is included.
	Includes []string

	// Excludes are glob patterns objects must not match (any).
	Excludes []string
}

// Filter evaluates include/exclude glob patterns against object keys.
//
// Unlike a transfer tool, a usage scan defaults to counting everything:
// a Filter with no include patterns admits every key. A Filter is safe
// for concurrent use after creation.
type Filter struct {
	includes []string
	excludes []string
	prefix   string
}

// New compiles the configured patterns into a Filter.
//
// Patterns are normalized for Windows-style backslash separators while
// preserving escape sequences for literal glob metacharacters. Returns
// a PatternError if any pattern fails to compile.
func New(cfg Config) (*Filter, error) {
	includes, err := normalizeAll(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := normalizeAll(cfg.Excludes)
	if err != nil {
		return nil, err
	}

	return &Filter{
		includes: includes,
		excludes: excludes,
		prefix:   commonPrefix(includes),
	}, nil
}

func normalizeAll(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(patterns))
	for _, raw := range patterns {
		normalized := NormalizePattern(raw)
		if !doublestar.ValidatePattern(normalized) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
		out = append(out, normalized)
	}
	return out, nil
}

// Match reports whether key passes the include/exclude patterns.
//
// Keys are matched as-is: cloud storage keys are opaque strings where
// any character is valid, so no normalization is applied on this side.
func (f *Filter) Match(key string) bool {
	if len(f.includes) > 0 {
		matched := false
		for _, inc := range f.includes {
			if matchPattern(inc, key) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, exc := range f.excludes {
		if matchPattern(exc, key) {
			return false
		}
	}

	return true
}

// Prefix returns the longest static key prefix shared by every include
// pattern, usable as a listing prefix. Empty means a full listing is
// required (no includes, or an include with no static prefix).
func (f *Filter) Prefix() string {
	return f.prefix
}

// Empty reports whether the filter has no patterns at all, meaning
// Match returns true for every key.
func (f *Filter) Empty() bool {
	return len(f.includes) == 0 && len(f.excludes) == 0
}

// commonPrefix derives the listing prefix for a set of include patterns:
// the longest common ancestor segment prefix of each pattern's static
// prefix. Any pattern without a static prefix forces a full listing.
func commonPrefix(includes []string) string {
	if len(includes) == 0 {
		return ""
	}
	common := DerivePrefix(includes[0])
	for _, p := range includes[1:] {
		prefix := DerivePrefix(p)
		common = sharedSegmentPrefix(common, prefix)
		if common == "" {
			return ""
		}
	}
	return common
}

// sharedSegmentPrefix returns the longest prefix of a and b that ends
// on a path segment boundary.
func sharedSegmentPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	shared := a[:i]
	if i < len(a) || i < len(b) {
		// Truncate to the last complete segment so "data/2024-a" and
		// "data/2024-b" yield "data/" rather than "data/2024-".
		if idx := strings.LastIndex(shared, "/"); idx >= 0 {
			shared = shared[:idx+1]
		} else {
			shared = ""
		}
	}
	return shared
}

// matchPattern matches a key against a doublestar pattern. The pattern
// was validated at construction, so errors here collapse to non-match.
func matchPattern(pattern, key string) bool {
	matched, err := doublestar.Match(pattern, key)
	if err != nil {
		return false
	}
	return matched
}
