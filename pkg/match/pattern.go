package match

import "strings"

// Glob metacharacters that can be escaped with backslash in patterns.
const globEscapable = `*?[]{}\`

// NormalizePattern converts a user-provided glob pattern to canonical form.
//
// Unescaped backslashes become forward slashes (Windows compat) while
// escaped metacharacters (\*, \?, \[, ...) are preserved so users can
// match literal glob characters in keys.
func NormalizePattern(pattern string) string {
	if pattern == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(pattern))

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\\' {
			if i+1 < len(runes) && strings.ContainsRune(globEscapable, runes[i+1]) {
				result.WriteRune('\\')
				result.WriteRune(runes[i+1])
				i++
				continue
			}
			// Unescaped backslash: treat as a path separator.
			result.WriteRune('/')
			continue
		}

		result.WriteRune(r)
	}

	return result.String()
}

// IsGlobPattern reports whether the pattern contains unescaped glob
// metacharacters. Escaped metacharacters (\*, \?, \[, \{) are literals
// and do not count.
func IsGlobPattern(pattern string) bool {
	return findFirstUnescapedMeta(pattern) != -1
}

// DerivePrefix extracts the longest static key prefix from a glob pattern.
//
// The prefix is the portion before the first unescaped metacharacter,
// truncated to the last complete path segment, with escape backslashes
// removed so it can be sent verbatim as a listing prefix.
//
//	"data/2024/**/*.parquet" → "data/2024/"
//	"*.json"                 → ""
//	"exact/path/file.txt"    → "exact/path/file.txt"
//	"data/file\*.txt"        → "data/file*.txt"
func DerivePrefix(pattern string) string {
	if pattern == "" {
		return ""
	}

	pattern = NormalizePattern(pattern)

	metaIdx := findFirstUnescapedMeta(pattern)
	if metaIdx == -1 {
		return unescapePrefix(pattern)
	}
	if metaIdx == 0 {
		return ""
	}

	prefix := pattern[:metaIdx]
	lastSlash := strings.LastIndex(prefix, "/")
	if lastSlash >= 0 {
		return unescapePrefix(prefix[:lastSlash+1])
	}
	return ""
}

// findFirstUnescapedMeta returns the index of the first unescaped glob
// metacharacter (* ? [ {) in the pattern, or -1 if none.
func findFirstUnescapedMeta(pattern string) int {
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]

		if c == '\\' && i+1 < len(pattern) {
			next := pattern[i+1]
			if next == '*' || next == '?' || next == '[' || next == '{' || next == '\\' {
				i++
				continue
			}
			continue
		}

		if c == '*' || c == '?' || c == '[' || c == '{' {
			return i
		}
	}
	return -1
}

// unescapePrefix removes escape backslashes so the pattern prefix
// becomes the literal key prefix the provider expects.
func unescapePrefix(prefix string) string {
	if !strings.ContainsRune(prefix, '\\') {
		return prefix
	}

	var result strings.Builder
	result.Grow(len(prefix))

	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '\\' && i+1 < len(prefix) && strings.ContainsRune(globEscapable, rune(prefix[i+1])) {
			result.WriteByte(prefix[i+1])
			i++
			continue
		}
		result.WriteByte(c)
	}

	return result.String()
}
