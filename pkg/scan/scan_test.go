package scan

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3du/pkg/aggregate"
	"github.com/3leaps/s3du/pkg/match"
	"github.com/3leaps/s3du/pkg/output"
	"github.com/3leaps/s3du/pkg/provider"
)

// mockLister serves a fixed object list in pages.
type mockLister struct {
	objects  []provider.ObjectSummary
	pageSize int
	calls    int
}

func (m *mockLister) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls++

	var filtered []provider.ObjectSummary
	for _, obj := range m.objects {
		if strings.HasPrefix(obj.Key, opts.Prefix) {
			filtered = append(filtered, obj)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Key < filtered[j].Key })

	start := 0
	if opts.ContinuationToken != "" {
		for i, obj := range filtered {
			if obj.Key > opts.ContinuationToken {
				start = i
				break
			}
		}
	}

	pageSize := m.pageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	page := filtered[start:end]
	result := &provider.ListResult{Objects: page}
	if end < len(filtered) {
		result.IsTruncated = true
		result.ContinuationToken = page[len(page)-1].Key
	}
	return result, nil
}

func (m *mockLister) Close() error { return nil }

// mockDelimiterLister adds shard discovery to mockLister.
type mockDelimiterLister struct {
	mockLister
}

func (m *mockDelimiterLister) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefixSet := map[string]bool{}
	var direct []provider.ObjectSummary
	for _, obj := range m.objects {
		if !strings.HasPrefix(obj.Key, opts.Prefix) {
			continue
		}
		rest := strings.TrimPrefix(obj.Key, opts.Prefix)
		if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
			prefixSet[opts.Prefix+rest[:idx+len(opts.Delimiter)]] = true
		} else {
			direct = append(direct, obj)
		}
	}

	prefixes := make([]string, 0, len(prefixSet))
	for p := range prefixSet {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	sort.Slice(direct, func(i, j int) bool { return direct[i].Key < direct[j].Key })

	return &provider.ListWithDelimiterResult{
		Objects:        direct,
		CommonPrefixes: prefixes,
	}, nil
}

func obj(key string, size int64, day int) provider.ObjectSummary {
	return provider.ObjectSummary{
		Key:          key,
		Size:         size,
		LastModified: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		StorageClass: "STANDARD",
	}
}

func siteObjects() []provider.ObjectSummary {
	return []provider.ObjectSummary{
		obj("dist/a.css", 170032, 10),
		obj("dist/b.js", 58072, 12),
		obj("index.html", 1262, 11),
	}
}

func TestNew_BadConfig(t *testing.T) {
	lister := &mockLister{}

	cfg := DefaultConfig()
	cfg.MaxDepth = -2
	_, err := New(lister, cfg)
	require.Error(t, err)

	var cerr *aggregate.ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestScanner_Run(t *testing.T) {
	lister := &mockLister{objects: siteObjects()}

	cfg := DefaultConfig()
	cfg.MaxDepth = 1
	s, err := New(lister, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.ObjectsListed)
	assert.Equal(t, int64(0), result.ObjectsSkipped)
	assert.Equal(t, int64(229366), result.BytesTotal)
	assert.Equal(t, int64(1), result.Pages)
	assert.False(t, result.Truncated)

	root := result.Tree.Root()
	assert.Equal(t, int64(229366), root.TotalBytes)
	assert.Equal(t, int64(3), root.ObjectCount)

	dist, ok := root.Child("dist")
	require.True(t, ok)
	assert.Equal(t, int64(228104), dist.TotalBytes)
	assert.Equal(t, int64(2), dist.ObjectCount)
}

func TestScanner_PrefixTrimming(t *testing.T) {
	lister := &mockLister{objects: []provider.ObjectSummary{
		obj("media/photos/cat.jpg", 100, 1),
		obj("media/photos/dog.jpg", 200, 2),
		obj("media/video.mp4", 300, 3),
		obj("other/ignored.txt", 999, 4),
	}}

	cfg := DefaultConfig()
	cfg.Prefix = "media/"
	s, err := New(lister, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.ObjectsListed)
	assert.Equal(t, int64(600), result.BytesTotal)

	// Keys are aggregated relative to the scan prefix.
	root := result.Tree.Root()
	photos, ok := root.Child("photos")
	require.True(t, ok)
	assert.Equal(t, int64(300), photos.TotalBytes)
	_, ok = root.Child("media")
	assert.False(t, ok)

	// Snapshot prefixes are reconstructed with the scan prefix.
	var prefixes []string
	for prefix := range result.Tree.Snapshot() {
		prefixes = append(prefixes, prefix)
	}
	assert.Equal(t, []string{"media/", "media/photos", "media/video.mp4"}, prefixes)
}

func TestScanner_Pagination(t *testing.T) {
	lister := &mockLister{objects: siteObjects(), pageSize: 2}

	s, err := New(lister, DefaultConfig())
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.ObjectsListed)
	assert.Equal(t, int64(2), result.Pages)
	assert.False(t, result.Truncated)
}

func TestScanner_MaxObjects(t *testing.T) {
	lister := &mockLister{objects: siteObjects(), pageSize: 2}

	cfg := DefaultConfig()
	cfg.MaxObjects = 2
	s, err := New(lister, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.ObjectsListed)
	assert.True(t, result.Truncated)
	assert.Equal(t, TruncatedMaxObjects, result.TruncatedReason)
}

func TestScanner_MaxPages(t *testing.T) {
	lister := &mockLister{objects: siteObjects(), pageSize: 1}

	cfg := DefaultConfig()
	cfg.MaxPages = 2
	s, err := New(lister, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Pages)
	assert.Equal(t, int64(2), result.ObjectsListed)
	assert.True(t, result.Truncated)
	assert.Equal(t, TruncatedMaxPages, result.TruncatedReason)
}

func TestScanner_MalformedSkipped(t *testing.T) {
	objects := siteObjects()
	objects = append(objects,
		provider.ObjectSummary{Key: "bad/negative", Size: -1, LastModified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		provider.ObjectSummary{Key: "bad/zerotime", Size: 10},
	)
	lister := &mockLister{objects: objects}

	var buf strings.Builder
	writer := output.NewJSONLWriter(&buf, "job-1", "s3")

	s, err := New(lister, DefaultConfig())
	require.NoError(t, err)
	s.WithWriter(writer)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.ObjectsListed)
	assert.Equal(t, int64(2), result.ObjectsSkipped)
	assert.Equal(t, int64(229366), result.BytesTotal)

	// Malformed entries never reach the tree.
	_, ok := result.Tree.Root().Child("bad")
	assert.False(t, ok)

	// Both skips were reported as error records.
	assert.Equal(t, 2, strings.Count(buf.String(), output.TypeError))
}

func TestScanner_Filter(t *testing.T) {
	lister := &mockLister{objects: siteObjects()}

	filter, err := match.New(match.Config{Includes: []string{"dist/**"}})
	require.NoError(t, err)

	s, err := New(lister, DefaultConfig())
	require.NoError(t, err)
	s.WithFilter(filter)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.ObjectsListed)
	assert.Equal(t, int64(1), result.ObjectsFiltered)
	assert.Equal(t, int64(228104), result.BytesTotal)
	_, ok := result.Tree.Root().Child("index.html")
	assert.False(t, ok)
}

func TestScanner_Cancellation(t *testing.T) {
	lister := &mockLister{objects: siteObjects()}

	s, err := New(lister, DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Partial result is returned on cancellation.
	require.NotNil(t, result)
	assert.NotNil(t, result.Tree)
}

// failingLister serves pages normally until failAfter calls, then
// returns the configured error.
type failingLister struct {
	mockLister
	failAfter int
	err       error
}

func (f *failingLister) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	if f.calls >= f.failAfter {
		return nil, f.err
	}
	return f.mockLister.List(ctx, opts)
}

func TestScanner_ProviderFailure(t *testing.T) {
	provErr := &provider.ProviderError{
		Op:       "List",
		Provider: provider.ProviderS3,
		Bucket:   "bucket",
		Err:      provider.ErrThrottled,
	}
	lister := &failingLister{
		mockLister: mockLister{objects: siteObjects(), pageSize: 2},
		failAfter:  1,
		err:        provErr,
	}

	cfg := DefaultConfig()
	cfg.MaxDepth = 1
	s, err := New(lister, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.ErrorIs(t, err, provider.ErrThrottled)
	var perr *provider.ProviderError
	assert.ErrorAs(t, err, &perr)

	// The first page was ingested before the failure; the partial
	// tree is returned alongside the error and stays consistent.
	require.NotNil(t, result)
	assert.Equal(t, int64(2), result.ObjectsListed)
	assert.Equal(t, int64(1), result.Pages)
	assert.Equal(t, int64(228104), result.BytesTotal)

	root := result.Tree.Root()
	assert.Equal(t, int64(228104), root.TotalBytes)
	assert.Equal(t, int64(2), root.ObjectCount)
	dist, ok := root.Child("dist")
	require.True(t, ok)
	assert.Equal(t, int64(2), dist.ObjectCount)
}

func TestScanner_Sharded(t *testing.T) {
	lister := &mockDelimiterLister{mockLister: mockLister{objects: []provider.ObjectSummary{
		obj("dist/a.css", 170032, 10),
		obj("dist/b.js", 58072, 12),
		obj("media/img.png", 500, 5),
		obj("index.html", 1262, 11),
	}}}

	cfg := DefaultConfig()
	cfg.Parallel = 4
	s, err := New(lister, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	// Sharded and sequential scans agree on totals.
	assert.Equal(t, int64(4), result.ObjectsListed)
	assert.Equal(t, int64(229866), result.BytesTotal)

	root := result.Tree.Root()
	assert.Equal(t, int64(229866), root.TotalBytes)
	assert.Equal(t, int64(4), root.ObjectCount)
	assert.Equal(t, []string{"dist", "index.html", "media"}, root.ChildLabels())

	dist, ok := root.Child("dist")
	require.True(t, ok)
	assert.Equal(t, int64(228104), dist.TotalBytes)
}

func TestScanner_ShardedFallsBackWithoutDelimiterSupport(t *testing.T) {
	lister := &mockLister{objects: siteObjects()}

	cfg := DefaultConfig()
	cfg.Parallel = 4
	s, err := New(lister, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.ObjectsListed)
	assert.Equal(t, int64(229366), result.BytesTotal)
}

func TestScanner_Progress(t *testing.T) {
	objects := make([]provider.ObjectSummary, 0, 25)
	for i := 0; i < 25; i++ {
		objects = append(objects, obj("data/"+strings.Repeat("x", i+1), 1, 1))
	}
	lister := &mockLister{objects: objects}

	var buf strings.Builder
	writer := output.NewJSONLWriter(&buf, "job-1", "s3")

	cfg := DefaultConfig()
	cfg.ProgressEvery = 10
	s, err := New(lister, cfg)
	require.NoError(t, err)
	s.WithWriter(writer)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(25), result.ObjectsListed)
	assert.Equal(t, 2, strings.Count(buf.String(), output.TypeProgress))
}
