// Package file implements the lister interface over a local directory tree.
//
// Keys are slash-separated paths relative to BaseDir. The lister exists for
// offline development and tests: it paginates a sorted key list the way an
// object store would, using the last returned key as the continuation token.
package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/s3du/pkg/provider"
)

// Lister implements provider.Lister for local filesystem paths.
type Lister struct {
	baseDir string
}

// Ensure Lister implements the provider interfaces.
var (
	_ provider.Lister          = (*Lister)(nil)
	_ provider.DelimiterLister = (*Lister)(nil)
)

// Config configures a file lister.
type Config struct {
	// BaseDir is the directory whose contents are exposed as objects.
	BaseDir string
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

// New creates a file lister rooted at cfg.BaseDir.
func New(cfg Config) (*Lister, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Lister{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// Close releases resources. File listers hold none.
func (l *Lister) Close() error { return nil }

// List returns a page of files whose keys start with the prefix.
func (l *Lister) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	_ = ctx
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	keys, err := l.collectKeys(strings.TrimPrefix(opts.Prefix, "/"))
	if err != nil {
		return nil, l.wrapError("List", opts.Prefix, err)
	}

	start := continueAfter(keys, opts.ContinuationToken)
	end := start + maxKeys
	if end > len(keys) {
		end = len(keys)
	}

	objects := make([]provider.ObjectSummary, 0, end-start)
	for _, k := range keys[start:end] {
		full, err := l.fullPath(k)
		if err != nil {
			continue
		}
		st, err := os.Stat(full)
		if err != nil || st.IsDir() {
			continue
		}
		objects = append(objects, provider.ObjectSummary{Key: k, Size: st.Size(), LastModified: st.ModTime()})
	}

	res := &provider.ListResult{Objects: objects}
	if end < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = keys[end-1]
	}
	return res, nil
}

// ListWithDelimiter returns files directly under the prefix plus the
// immediate child prefixes. Common prefixes are delivered in full on the
// first page; only direct objects paginate.
func (l *Lister) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	_ = ctx
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = "/"
	}

	prefix := strings.TrimPrefix(opts.Prefix, "/")
	keys, err := l.collectKeys(prefix)
	if err != nil {
		return nil, l.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	childSet := make(map[string]struct{})
	var direct []string
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if idx := strings.Index(rest, delimiter); idx >= 0 {
			childSet[prefix+rest[:idx+len(delimiter)]] = struct{}{}
			continue
		}
		direct = append(direct, k)
	}

	start := continueAfter(direct, opts.ContinuationToken)
	end := start + maxKeys
	if end > len(direct) {
		end = len(direct)
	}

	objects := make([]provider.ObjectSummary, 0, end-start)
	for _, k := range direct[start:end] {
		full, err := l.fullPath(k)
		if err != nil {
			continue
		}
		st, err := os.Stat(full)
		if err != nil || st.IsDir() {
			continue
		}
		objects = append(objects, provider.ObjectSummary{Key: k, Size: st.Size(), LastModified: st.ModTime()})
	}

	res := &provider.ListWithDelimiterResult{Objects: objects}
	if opts.ContinuationToken == "" {
		children := make([]string, 0, len(childSet))
		for cp := range childSet {
			children = append(children, cp)
		}
		sort.Strings(children)
		res.CommonPrefixes = children
	}
	if end < len(direct) {
		res.IsTruncated = true
		res.ContinuationToken = direct[end-1]
	}
	return res, nil
}

// continueAfter returns the index of the first key strictly after the token.
func continueAfter(keys []string, token string) int {
	if token == "" {
		return 0
	}
	idx := sort.SearchStrings(keys, token)
	for idx < len(keys) && keys[idx] <= token {
		idx++
	}
	return idx
}

// fullPath resolves a key to an absolute path under baseDir, rejecting
// traversal outside the base.
func (l *Lister) fullPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	clean := filepath.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path")
	}
	return filepath.Join(l.baseDir, filepath.FromSlash(clean)), nil
}

// collectKeys walks baseDir and returns the sorted keys matching the prefix.
func (l *Lister) collectKeys(prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.baseDir, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *Lister) wrapError(op, key string, err error) error {
	wrapped := &provider.ProviderError{Op: op, Provider: provider.ProviderFile, Key: key, Err: err}
	if err == nil {
		wrapped.Err = fmt.Errorf("unknown error")
	}
	// Normalize common filesystem errors to provider sentinels.
	if os.IsNotExist(err) {
		wrapped.Err = provider.ErrNotFound
	}
	if os.IsPermission(err) {
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
