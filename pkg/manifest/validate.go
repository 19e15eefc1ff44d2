package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/s3du/pkg/aggregate"
)

// ErrValidationFailed indicates the manifest failed validation.
var ErrValidationFailed = errors.New("manifest validation failed")

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path locates the problematic field (e.g., "/connection/bucket").
	Path string

	// Message describes the validation failure.
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "manifest validation failed with %d errors:\n", len(e))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error type.
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Validate checks the manifest for structural and semantic errors.
//
// All issues are collected rather than failing on the first one, so a
// user fixing a manifest sees the full list at once. Returns nil when
// the manifest is valid.
func (m *Manifest) Validate() error {
	var errs ValidationErrors

	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if m.Version == "" {
		add("/version", "version is required")
	} else if m.Version != SupportedVersion {
		add("/version", "unsupported version %q (want %q)", m.Version, SupportedVersion)
	}

	switch m.Connection.Provider {
	case "":
		add("/connection/provider", "provider is required")
	case "s3", "file":
	default:
		add("/connection/provider", "unsupported provider %q (want \"s3\" or \"file\")", m.Connection.Provider)
	}
	if m.Connection.Bucket == "" {
		add("/connection/bucket", "bucket is required")
	}

	if m.Scan.Depth != nil && *m.Scan.Depth < aggregate.UnboundedDepth {
		add("/scan/depth", "depth must be non-negative or -1 for unlimited")
	}
	if m.Scan.Parallel < 0 || m.Scan.Parallel > MaxParallel {
		add("/scan/parallel", "parallel must be between 1 and %d", MaxParallel)
	}
	if m.Scan.RateLimit < 0 {
		add("/scan/rate_limit", "rate_limit must be non-negative")
	}
	if m.Scan.MaxObjects < 0 {
		add("/scan/max_objects", "max_objects must be non-negative")
	}
	if m.Scan.MaxPages < 0 {
		add("/scan/max_pages", "max_pages must be non-negative")
	}

	switch m.Output.Format {
	case "", FormatTable, FormatJSONL:
	default:
		add("/output/format", "unsupported format %q (want %q or %q)", m.Output.Format, FormatTable, FormatJSONL)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
