// Package manifest provides loading and validation of scan manifests.
//
// A scan manifest is a YAML or JSON file that configures all aspects of
// a usage scan: provider connection, scan behavior, key filtering, and
// output. Manifests let recurring scans be versioned alongside the
// infrastructure they measure instead of living in shell history.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	connection:
//	  provider: s3
//	  bucket: my-data-bucket
//	  region: us-east-1
//	scan:
//	  prefix: "data/"
//	  depth: 2
//	  tiers: true
//	output:
//	  format: jsonl
package manifest

import (
	"github.com/3leaps/s3du/pkg/aggregate"
)

// SupportedVersion is the manifest schema version this build accepts.
const SupportedVersion = "1.0"

// Manifest represents a validated scan manifest.
//
// Required fields are Version and Connection. Scan, Match, and Output
// are optional with defaults applied during loading.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Connection configures the storage provider.
	Connection ConnectionConfig `json:"connection" yaml:"connection"`

	// Scan configures scan behavior (optional).
	Scan ScanConfig `json:"scan,omitempty" yaml:"scan,omitempty"`

	// Match configures key filtering by glob patterns (optional).
	Match MatchConfig `json:"match,omitempty" yaml:"match,omitempty"`

	// Output configures output format and destination (optional).
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// ConnectionConfig configures the storage provider connection.
type ConnectionConfig struct {
	// Provider is the storage provider type: "s3" or "file".
	Provider string `json:"provider" yaml:"provider"`

	// Bucket is the bucket name (s3) or base directory (file).
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region (e.g., "us-east-1"). Optional.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint URL for S3-compatible storage.
	// Example: "https://s3.wasabisys.com"
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Profile is the AWS credential profile name. Optional.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// ScanConfig configures scan behavior.
//
// All fields are optional with defaults applied during loading.
type ScanConfig struct {
	// Prefix restricts the scan to keys under this prefix.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Depth bounds the usage tree depth. 0 reports root totals only;
	// -1 removes the limit. Default: -1.
	Depth *int `json:"depth,omitempty" yaml:"depth,omitempty"`

	// Delimiter separates key segments. Default: "/".
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`

	// Tiers enables per-storage-tier totals. Default: false.
	Tiers bool `json:"tiers,omitempty" yaml:"tiers,omitempty"`

	// RateLimit is the maximum list requests per second (0 = unlimited).
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	// MaxObjects stops the scan after this many objects (0 = unlimited).
	MaxObjects int64 `json:"max_objects,omitempty" yaml:"max_objects,omitempty"`

	// MaxPages stops the scan after this many pages (0 = unlimited).
	MaxPages int64 `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`

	// Parallel is the number of concurrent shard listers.
	// Range: 1-32. Default: 1.
	Parallel int `json:"parallel,omitempty" yaml:"parallel,omitempty"`

	// ProgressEvery controls progress record frequency: one record
	// every N listed objects. Default: 10000.
	ProgressEvery int64 `json:"progress_every,omitempty" yaml:"progress_every,omitempty"`
}

// MatchConfig configures key filtering by glob patterns.
type MatchConfig struct {
	// Includes is a list of glob patterns for keys to count.
	// Empty means every key is counted.
	Includes []string `json:"includes,omitempty" yaml:"includes,omitempty"`

	// Excludes is a list of glob patterns for keys to skip.
	Excludes []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

// OutputConfig configures output format and destination.
type OutputConfig struct {
	// Format is "table" or "jsonl". Default: "table".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Human renders byte columns in IEC units (table format only).
	Human bool `json:"human,omitempty" yaml:"human,omitempty"`

	// Destination is "stdout" or a file path. Default: "stdout".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// Output format values.
const (
	FormatTable = "table"
	FormatJSONL = "jsonl"
)

// MaxParallel caps the shard fan-out a manifest may request.
const MaxParallel = 32

// ApplyDefaults fills optional fields with their default values.
func (m *Manifest) ApplyDefaults() {
	if m.Scan.Depth == nil {
		depth := aggregate.UnboundedDepth
		m.Scan.Depth = &depth
	}
	if m.Scan.Delimiter == "" {
		m.Scan.Delimiter = aggregate.DefaultDelimiter
	}
	if m.Scan.Parallel == 0 {
		m.Scan.Parallel = 1
	}
	if m.Scan.ProgressEvery == 0 {
		m.Scan.ProgressEvery = 10000
	}
	if m.Output.Format == "" {
		m.Output.Format = FormatTable
	}
	if m.Output.Destination == "" {
		m.Output.Destination = "stdout"
	}
}
