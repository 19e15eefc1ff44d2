// Package output renders scan results as JSONL record streams or
// human-readable tables.
//
// JSONL output is structured as typed record envelopes containing
// usage rows, errors, progress updates, and summaries. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: s3du.<type>.v<version>
const (
	// TypeUsage identifies per-prefix usage records.
	TypeUsage = "s3du.usage.v1"

	// TypeError identifies error records.
	TypeError = "s3du.error.v1"

	// TypeProgress identifies progress update records.
	TypeProgress = "s3du.progress.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "s3du.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "s3du.usage.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this scan job.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3", "file").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// UsageRecord is the data payload for a single prefix's usage totals.
//
// One usage record is emitted per reported prefix, in pre-order
// lexicographic traversal order, so downstream consumers can rebuild
// the hierarchy from the stream alone.
type UsageRecord struct {
	// Prefix is the full key prefix this row aggregates. The root
	// row carries the scan's base prefix (may be empty).
	Prefix string `json:"prefix"`

	// Depth is the prefix depth relative to the scan root (root = 0).
	Depth int `json:"depth"`

	// Bytes is the cumulative size of all objects under this prefix.
	Bytes int64 `json:"bytes"`

	// Objects is the count of objects under this prefix.
	Objects int64 `json:"objects"`

	// Oldest is the earliest last-modified timestamp under this
	// prefix. Omitted when the prefix holds no objects.
	Oldest *time.Time `json:"oldest,omitempty"`

	// Newest is the latest last-modified timestamp under this prefix.
	Newest *time.Time `json:"newest,omitempty"`

	// Tiers breaks the totals down by storage tier. Only populated
	// when tier tracking is enabled.
	Tiers map[string]TierUsage `json:"tiers,omitempty"`
}

// TierUsage is the per-tier slice of a usage row.
type TierUsage struct {
	Bytes   int64 `json:"bytes"`
	Objects int64 `json:"objects"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the entire scan,
// allowing partial results when some operations fail.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Key is the object key related to this error, if applicable.
	Key string `json:"key,omitempty"`

	// Prefix is the prefix being listed when the error occurred.
	Prefix string `json:"prefix,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeAccessDenied indicates permission failure.
	ErrCodeAccessDenied = "ACCESS_DENIED"

	// ErrCodeNotFound indicates the object or bucket was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout = "TIMEOUT"

	// ErrCodeThrottled indicates rate limiting.
	ErrCodeThrottled = "THROTTLED"

	// ErrCodeMalformed indicates an object record failed validation.
	ErrCodeMalformed = "MALFORMED_RECORD"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// ProgressRecord is the data payload for progress updates.
//
// Progress records are emitted periodically during scans to provide
// visibility into long-running listings.
type ProgressRecord struct {
	// ObjectsListed is the total number of objects seen so far.
	ObjectsListed int64 `json:"objects_listed"`

	// BytesTotal is the cumulative size of counted objects in bytes.
	BytesTotal int64 `json:"bytes_total"`

	// Pages is the number of listing pages consumed so far.
	Pages int64 `json:"pages"`

	// Prefix is the prefix currently being listed, if applicable.
	Prefix string `json:"prefix,omitempty"`
}

// SummaryRecord is the data payload for final summaries.
//
// A summary record is emitted at the end of a scan with aggregate
// statistics, after the usage records.
type SummaryRecord struct {
	// ObjectsListed is the total number of objects seen.
	ObjectsListed int64 `json:"objects_listed"`

	// ObjectsSkipped is the number of objects dropped by validation
	// or pattern filters.
	ObjectsSkipped int64 `json:"objects_skipped"`

	// BytesTotal is the cumulative size of counted objects in bytes.
	BytesTotal int64 `json:"bytes_total"`

	// Pages is the number of listing pages consumed.
	Pages int64 `json:"pages"`

	// Duration is the total scan duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// Truncated indicates the scan stopped before the listing was
	// exhausted (object or page limit reached).
	Truncated bool `json:"truncated"`

	// TruncatedReason names the limit that stopped the scan.
	TruncatedReason string `json:"truncated_reason,omitempty"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
