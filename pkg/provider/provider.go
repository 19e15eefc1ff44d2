// Package provider defines the page-source abstraction for object storage
// listings.
//
// A Lister yields lexicographically-ordered pages of object summaries using a
// continuation-token protocol. Authentication, retry, and rate limiting are
// the implementation's responsibility - consumers treat a Lister as a plain
// producer of an ordered, possibly very long, finite record stream.
package provider

import (
	"context"
	"time"
)

// Lister abstracts paginated object listing.
//
// Implementations should:
//   - Use SDK default credential chains (AWS default config)
//   - Return keys in ascending lexicographic order within and across pages
//   - Be safe for concurrent use
type Lister interface {
	// List returns a page of objects with the given prefix.
	// Use ContinuationToken from ListResult for subsequent pages.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Close releases any resources held by the lister.
	Close() error
}

// ListOptions configures a List operation.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	// Empty string lists all objects.
	Prefix string

	// ContinuationToken resumes listing from a previous ListResult.
	// Empty string starts from the beginning.
	ContinuationToken string

	// MaxKeys limits the number of objects returned per page.
	// Zero uses the implementation default (typically 1000).
	MaxKeys int
}

// ListResult contains one page of objects from a List operation.
type ListResult struct {
	// Objects contains the object summaries for this page.
	Objects []ObjectSummary

	// ContinuationToken is used to retrieve the next page.
	// Empty string indicates no more pages.
	ContinuationToken string

	// IsTruncated indicates whether more results are available.
	IsTruncated bool
}

// ObjectSummary is the metadata returned per listed object.
type ObjectSummary struct {
	// Key is the full object key (path) in the bucket.
	Key string

	// Size is the object size in bytes.
	Size int64

	// ETag is the entity tag, typically an MD5 hash of the object.
	ETag string

	// LastModified is when the object was last modified.
	LastModified time.Time

	// StorageClass is the provider's storage-class label for the object.
	// Empty when the provider has no tiering concept (e.g., local files).
	StorageClass string
}

// ProviderType identifies a storage backend.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"

	// ProviderFile represents a local directory tree.
	ProviderFile ProviderType = "file"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
