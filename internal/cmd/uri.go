package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/s3du/pkg/match"
	"github.com/3leaps/s3du/pkg/provider"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingBucket indicates the URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

// ObjectURI represents a parsed storage URI.
//
// Example URIs:
//   - s3://bucket/prefix/
//   - s3://bucket/prefix/**/*.parquet
//   - file:///var/data/
type ObjectURI struct {
	// Provider is the storage provider ("s3" or "file").
	Provider provider.ProviderType

	// Bucket is the bucket name (s3) or base directory (file).
	Bucket string

	// Key is the key prefix. May be empty for the bucket root.
	Key string

	// Pattern is set if the key portion contains glob characters.
	// When set, Key holds the static prefix before the first glob.
	Pattern string
}

// String returns the URI in canonical form.
func (u *ObjectURI) String() string {
	key := u.Key
	if u.Pattern != "" {
		key = u.Pattern
	}
	return fmt.Sprintf("%s://%s/%s", u.Provider, u.Bucket, key)
}

// IsPattern returns true if the URI contains glob pattern characters.
func (u *ObjectURI) IsPattern() bool {
	return u.Pattern != ""
}

// IsPrefix returns true if the URI names a prefix (ends with /) rather
// than a single key.
func (u *ObjectURI) IsPrefix() bool {
	return strings.HasSuffix(u.Key, "/") || u.Key == ""
}

// ParseURI parses a storage URI into its components.
//
// Supported formats:
//   - s3://bucket
//   - s3://bucket/prefix/
//   - s3://bucket/prefix/**/*.parquet
//   - file:///base/dir
//   - file:///base/dir/sub/
//
// The scheme is parsed manually rather than with url.Parse so glob
// characters like ? survive (url.Parse treats ? as a query delimiter).
func ParseURI(uri string) (*ObjectURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3://... or file://...)", ErrInvalidURI)
	}

	scheme := strings.ToLower(uri[:schemeEnd])
	remainder := uri[schemeEnd+3:]

	switch scheme {
	case "s3":
		return parseS3URI(uri, remainder)
	case "file":
		return parseFileURI(uri, remainder)
	default:
		return nil, fmt.Errorf("%w: %s (supported: s3, file)", ErrUnsupportedProvider, scheme)
	}
}

func parseS3URI(uri, remainder string) (*ObjectURI, error) {
	if remainder == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}

	var bucket, key string
	if slashIdx := strings.Index(remainder, "/"); slashIdx == -1 {
		bucket = remainder
	} else {
		bucket = remainder[:slashIdx]
		key = remainder[slashIdx+1:]
	}
	if bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}

	result := &ObjectURI{
		Provider: provider.ProviderS3,
		Bucket:   bucket,
	}
	splitKeyPattern(result, key)
	return result, nil
}

// parseFileURI maps file:///base/dir/ to bucket "/base/dir" with an
// empty key: the whole directory is the scan root. A glob suffix
// splits into a static base directory plus key pattern so filtering
// works the same as for s3 URIs.
func parseFileURI(uri, remainder string) (*ObjectURI, error) {
	if remainder == "" || remainder == "/" {
		return nil, fmt.Errorf("%w: file URI needs a directory path", ErrInvalidURI)
	}
	path := strings.TrimSuffix(remainder, "/")

	result := &ObjectURI{
		Provider: provider.ProviderFile,
		Bucket:   path,
	}
	if glob := firstGlobIndex(path); glob != -1 {
		base := path[:glob]
		slash := strings.LastIndex(base, "/")
		if slash <= 0 {
			return nil, fmt.Errorf("%w: glob pattern needs a static base directory", ErrInvalidURI)
		}
		result.Bucket = path[:slash]
		splitKeyPattern(result, path[slash+1:])
	}
	return result, nil
}

// splitKeyPattern fills Key and Pattern from the key portion of a URI
// using escape-aware glob detection from the match package.
func splitKeyPattern(u *ObjectURI, key string) {
	if match.IsGlobPattern(key) {
		u.Pattern = key
		u.Key = match.DerivePrefix(key)
		return
	}
	// No glob: unescape for the provider key (e.g. "file\*.txt" →
	// "file*.txt").
	u.Key = match.DerivePrefix(key)
}

func firstGlobIndex(s string) int {
	for i, r := range s {
		if r == '*' || r == '?' || r == '[' || r == '{' {
			return i
		}
	}
	return -1
}
