package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr error
		want    *ObjectURI
	}{
		{
			name: "bare bucket",
			uri:  "s3://my-bucket",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
			},
		},
		{
			name: "bucket root with trailing slash",
			uri:  "s3://my-bucket/",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
			},
		},
		{
			name: "bucket with prefix",
			uri:  "s3://my-bucket/logs/2025/",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Key:      "logs/2025/",
			},
		},
		{
			name: "bucket with single key",
			uri:  "s3://my-bucket/path/to/object.txt",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Key:      "path/to/object.txt",
			},
		},
		{
			name: "bucket with glob pattern",
			uri:  "s3://my-bucket/data/2024/**/*.parquet",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Key:      "data/2024/",
				Pattern:  "data/2024/**/*.parquet",
			},
		},
		{
			name: "glob at bucket root",
			uri:  "s3://my-bucket/*.txt",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Key:      "",
				Pattern:  "*.txt",
			},
		},
		{
			name: "question mark survives parsing",
			uri:  "s3://my-bucket/data/file?.csv",
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Key:      "data/",
				Pattern:  "data/file?.csv",
			},
		},
		{
			name: "escaped star is a literal key",
			uri:  `s3://my-bucket/data/file\*.txt`,
			want: &ObjectURI{
				Provider: "s3",
				Bucket:   "my-bucket",
				Key:      "data/file*.txt",
			},
		},
		{
			name: "file directory",
			uri:  "file:///var/backups",
			want: &ObjectURI{
				Provider: "file",
				Bucket:   "/var/backups",
			},
		},
		{
			name: "file directory with trailing slash",
			uri:  "file:///var/backups/",
			want: &ObjectURI{
				Provider: "file",
				Bucket:   "/var/backups",
			},
		},
		{
			name: "file glob splits into base dir and pattern",
			uri:  "file:///var/logs/**/*.gz",
			want: &ObjectURI{
				Provider: "file",
				Bucket:   "/var/logs",
				Key:      "",
				Pattern:  "**/*.gz",
			},
		},
		{
			name:    "empty URI",
			uri:     "",
			wantErr: ErrInvalidURI,
		},
		{
			name:    "missing scheme",
			uri:     "my-bucket/path/",
			wantErr: ErrInvalidURI,
		},
		{
			name:    "unsupported scheme",
			uri:     "gs://my-bucket/path/",
			wantErr: ErrUnsupportedProvider,
		},
		{
			name:    "s3 missing bucket",
			uri:     "s3://",
			wantErr: ErrMissingBucket,
		},
		{
			name:    "s3 slash only",
			uri:     "s3:///key",
			wantErr: ErrMissingBucket,
		},
		{
			name:    "file missing path",
			uri:     "file://",
			wantErr: ErrInvalidURI,
		},
		{
			name:    "file glob without static base",
			uri:     "file:///*.gz",
			wantErr: ErrInvalidURI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectURIPredicates(t *testing.T) {
	prefix, err := ParseURI("s3://bucket/data/")
	require.NoError(t, err)
	assert.True(t, prefix.IsPrefix())
	assert.False(t, prefix.IsPattern())

	key, err := ParseURI("s3://bucket/data/report.csv")
	require.NoError(t, err)
	assert.False(t, key.IsPrefix())
	assert.False(t, key.IsPattern())

	pattern, err := ParseURI("s3://bucket/data/**/*.csv")
	require.NoError(t, err)
	assert.True(t, pattern.IsPattern())
	assert.True(t, pattern.IsPrefix(), "static prefix of a glob ends with the delimiter")

	root, err := ParseURI("s3://bucket")
	require.NoError(t, err)
	assert.True(t, root.IsPrefix())
}

func TestObjectURIString(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"s3://bucket/data/", "s3://bucket/data/"},
		{"s3://bucket/data/**/*.csv", "s3://bucket/data/**/*.csv"},
		{"s3://bucket", "s3://bucket/"},
	}
	for _, tt := range tests {
		parsed, err := ParseURI(tt.uri)
		require.NoError(t, err)
		assert.Equal(t, tt.want, parsed.String())
	}
}
