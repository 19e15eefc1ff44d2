// Package scan drives a storage listing into a prefix usage tree.
//
// A Scanner consumes paginated object listings from a provider,
// validates each object, and folds it into an aggregate.Tree. Scans
// are bounded: object and page limits stop the listing early and mark
// the result partial rather than failing it.
package scan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/3leaps/s3du/pkg/aggregate"
	"github.com/3leaps/s3du/pkg/match"
	"github.com/3leaps/s3du/pkg/output"
	"github.com/3leaps/s3du/pkg/provider"
)

// Truncation reasons reported when a scan stops before the listing is
// exhausted.
const (
	TruncatedMaxObjects = "max-objects"
	TruncatedMaxPages   = "max-pages"
)

// Config configures scanner behavior.
type Config struct {
	// Prefix is the key prefix to scan. Empty scans the whole bucket.
	Prefix string

	// Delimiter separates key segments. Default: "/".
	Delimiter string

	// MaxDepth bounds the depth of the usage tree. Zero keeps only
	// the root totals; aggregate.UnboundedDepth keeps every level.
	MaxDepth int

	// TierBreakdown enables per-storage-tier totals on every node.
	TierBreakdown bool

	// RateLimit is the maximum list requests per second to the
	// provider. Zero means unlimited.
	RateLimit float64

	// ProgressEvery controls how often progress records are emitted:
	// one every N listed objects. Zero disables progress records.
	ProgressEvery int64

	// MaxObjects stops the scan after this many objects have been
	// listed. Zero means unlimited.
	MaxObjects int64

	// MaxPages stops the scan after this many listing pages. Zero
	// means unlimited.
	MaxPages int64

	// PageSize is the per-request page size hint passed to the
	// provider. Zero uses the provider default.
	PageSize int

	// Parallel is the number of concurrent shard listers. Values
	// above 1 discover top-level shards with a delimiter listing and
	// scan them concurrently, merging the per-shard trees. Requires
	// the provider to implement provider.DelimiterLister.
	Parallel int
}

// DefaultConfig returns the default scanner configuration.
func DefaultConfig() Config {
	return Config{
		Delimiter:     aggregate.DefaultDelimiter,
		MaxDepth:      aggregate.UnboundedDepth,
		ProgressEvery: 10000,
		Parallel:      1,
	}
}

// Result contains the usage tree and aggregate statistics from a
// completed (or cancelled) scan.
type Result struct {
	// Tree is the accumulated usage tree.
	Tree *aggregate.Tree

	// ObjectsListed is the total number of objects seen from the
	// provider, including filtered and skipped ones.
	ObjectsListed int64

	// ObjectsFiltered is the number of objects dropped by the glob
	// filter before aggregation.
	ObjectsFiltered int64

	// ObjectsSkipped is the number of objects dropped by validation
	// (malformed listing entries).
	ObjectsSkipped int64

	// BytesTotal is the cumulative size of aggregated objects.
	BytesTotal int64

	// Pages is the number of listing pages consumed.
	Pages int64

	// Duration is the total time spent scanning.
	Duration time.Duration

	// Truncated indicates the scan stopped at an object or page
	// limit before the listing was exhausted.
	Truncated bool

	// TruncatedReason names the limit that stopped the scan.
	TruncatedReason string
}

// Scanner executes a usage scan against a storage provider.
//
// Scanner is safe for single use only. Create a new Scanner for each
// scan.
type Scanner struct {
	lister provider.Lister
	filter *match.Filter
	writer output.Writer
	config Config

	limiter *rate.Limiter

	objectsListed   atomic.Int64
	objectsFiltered atomic.Int64
	objectsSkipped  atomic.Int64
	bytesTotal      atomic.Int64
	pages           atomic.Int64

	truncatedReason atomic.Value // string
}

// New creates a scanner for the given lister and configuration.
//
// Returns an aggregate.ConfigError when the tree configuration
// embedded in cfg is invalid.
func New(lister provider.Lister, cfg Config) (*Scanner, error) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = aggregate.DefaultDelimiter
	}
	if cfg.ProgressEvery < 0 {
		cfg.ProgressEvery = 0
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}

	// Validate the tree config up front so Run cannot fail late on a
	// bad depth.
	if _, err := aggregate.NewTree(cfg.treeConfig()); err != nil {
		return nil, err
	}

	s := &Scanner{
		lister: lister,
		config: cfg,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return s, nil
}

// WithFilter sets an optional key filter. Filtered objects are listed
// but not aggregated. Returns the scanner for chaining.
func (s *Scanner) WithFilter(f *match.Filter) *Scanner {
	s.filter = f
	return s
}

// WithWriter sets an optional record writer for progress and error
// records emitted during the scan. Returns the scanner for chaining.
func (s *Scanner) WithWriter(w output.Writer) *Scanner {
	s.writer = w
	return s
}

func (c Config) treeConfig() aggregate.Config {
	return aggregate.Config{
		Delimiter:     c.Delimiter,
		MaxDepth:      c.MaxDepth,
		TierBreakdown: c.TierBreakdown,
		Root:          c.Prefix,
	}
}

// Run executes the scan and returns the usage tree with statistics.
//
// Run blocks until the listing is exhausted, a limit is reached, the
// context is cancelled, or the provider fails. A provider error or
// cancellation terminates the pass, but the partial result accumulated
// so far is still returned alongside the error: every record ingested
// before the failure is reflected consistently in the tree. Malformed
// listing entries are skipped and counted, never fatal.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	tree, err := aggregate.NewTree(s.config.treeConfig())
	if err != nil {
		return nil, err
	}

	if s.config.Parallel > 1 {
		err = s.runSharded(ctx, tree)
	} else {
		err = s.listInto(ctx, tree, s.config.Prefix)
	}

	return s.buildResult(tree, time.Since(start)), err
}

func (s *Scanner) buildResult(tree *aggregate.Tree, duration time.Duration) *Result {
	reason, _ := s.truncatedReason.Load().(string)
	return &Result{
		Tree:            tree,
		ObjectsListed:   s.objectsListed.Load(),
		ObjectsFiltered: s.objectsFiltered.Load(),
		ObjectsSkipped:  s.objectsSkipped.Load(),
		BytesTotal:      s.bytesTotal.Load(),
		Pages:           s.pages.Load(),
		Duration:        duration,
		Truncated:       reason != "",
		TruncatedReason: reason,
	}
}

// listInto pages through objects under prefix and folds them into tree.
func (s *Scanner) listInto(ctx context.Context, tree *aggregate.Tree, prefix string) error {
	var continuationToken string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.limitReached() {
			return nil
		}
		if err := s.waitForRateLimit(ctx); err != nil {
			return err
		}

		result, err := s.lister.List(ctx, provider.ListOptions{
			Prefix:            prefix,
			ContinuationToken: continuationToken,
			MaxKeys:           s.config.PageSize,
		})
		if err != nil {
			return err
		}
		s.pages.Add(1)

		for _, obj := range result.Objects {
			if err := ctx.Err(); err != nil {
				return err
			}

			listed := s.objectsListed.Add(1)
			s.maybeProgress(ctx, listed, prefix)

			if s.filter != nil && !s.filter.Match(obj.Key) {
				s.objectsFiltered.Add(1)
				continue
			}

			if err := s.ingest(ctx, tree, obj); err != nil {
				return err
			}

			if s.config.MaxObjects > 0 && listed >= s.config.MaxObjects {
				s.markTruncated(TruncatedMaxObjects)
				return nil
			}
		}

		if !result.IsTruncated || result.ContinuationToken == "" {
			return nil
		}
		if s.config.MaxPages > 0 && s.pages.Load() >= s.config.MaxPages {
			s.markTruncated(TruncatedMaxPages)
			return nil
		}
		continuationToken = result.ContinuationToken
	}
}

// ingest validates and folds one object into the tree. Malformed
// entries are skipped and reported, never fatal.
func (s *Scanner) ingest(ctx context.Context, tree *aggregate.Tree, obj provider.ObjectSummary) error {
	rec := aggregate.Record{
		Key:          strings.TrimPrefix(obj.Key, s.config.Prefix),
		Size:         obj.Size,
		LastModified: obj.LastModified,
		StorageClass: obj.StorageClass,
	}

	err := tree.Ingest(rec)
	if err == nil {
		s.bytesTotal.Add(obj.Size)
		return nil
	}

	var malformed *aggregate.MalformedRecordError
	if errors.As(err, &malformed) {
		s.objectsSkipped.Add(1)
		s.writeErrorRecord(ctx, output.ErrCodeMalformed, malformed.Reason, obj.Key)
		return nil
	}
	return err
}

// runSharded discovers top-level shards with a delimiter listing and
// scans them concurrently. Objects directly under the scan prefix are
// aggregated during discovery; per-shard trees are merged into tree.
func (s *Scanner) runSharded(ctx context.Context, tree *aggregate.Tree) error {
	dl, ok := s.lister.(provider.DelimiterLister)
	if !ok {
		// Provider cannot enumerate shards: fall back to a single
		// sequential listing.
		return s.listInto(ctx, tree, s.config.Prefix)
	}

	shards, err := s.discoverShards(ctx, dl, tree)
	if err != nil {
		return err
	}
	if len(shards) == 0 {
		return nil
	}

	shardCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, s.config.Parallel)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for _, shard := range shards {
		select {
		case <-shardCtx.Done():
		case sem <- struct{}{}:
		}
		if shardCtx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(prefix string) {
			defer wg.Done()
			defer func() { <-sem }()

			shardTree, err := aggregate.NewTree(s.config.treeConfig())
			if err != nil {
				fail(err)
				return
			}
			if err := s.listInto(shardCtx, shardTree, prefix); err != nil {
				fail(err)
				return
			}

			mu.Lock()
			err = tree.Merge(shardTree)
			mu.Unlock()
			if err != nil {
				fail(err)
			}
		}(shard)
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// discoverShards lists the scan prefix with the delimiter, folding
// direct objects into tree and returning the common prefixes to fan
// out over.
func (s *Scanner) discoverShards(ctx context.Context, dl provider.DelimiterLister, tree *aggregate.Tree) ([]string, error) {
	var shards []string
	var continuationToken string

	for {
		if err := ctx.Err(); err != nil {
			return shards, err
		}
		if err := s.waitForRateLimit(ctx); err != nil {
			return shards, err
		}

		result, err := dl.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
			Prefix:            s.config.Prefix,
			Delimiter:         s.config.Delimiter,
			ContinuationToken: continuationToken,
			MaxKeys:           s.config.PageSize,
		})
		if err != nil {
			return shards, err
		}
		s.pages.Add(1)

		for _, obj := range result.Objects {
			listed := s.objectsListed.Add(1)
			s.maybeProgress(ctx, listed, s.config.Prefix)

			if s.filter != nil && !s.filter.Match(obj.Key) {
				s.objectsFiltered.Add(1)
				continue
			}
			if err := s.ingest(ctx, tree, obj); err != nil {
				return shards, err
			}
		}

		shards = append(shards, result.CommonPrefixes...)

		if !result.IsTruncated || result.ContinuationToken == "" {
			return shards, nil
		}
		continuationToken = result.ContinuationToken
	}
}

// limitReached reports whether a limit already stopped the scan. Used
// by concurrent shard listers so one shard hitting a limit halts the
// others at the next page boundary.
func (s *Scanner) limitReached() bool {
	reason, _ := s.truncatedReason.Load().(string)
	return reason != ""
}

func (s *Scanner) markTruncated(reason string) {
	// Keep the first reason when shards race.
	s.truncatedReason.CompareAndSwap(nil, reason)
}

func (s *Scanner) maybeProgress(ctx context.Context, listed int64, prefix string) {
	if s.writer == nil || s.config.ProgressEvery <= 0 {
		return
	}
	if listed%s.config.ProgressEvery != 0 {
		return
	}
	_ = s.writer.WriteProgress(ctx, &output.ProgressRecord{
		ObjectsListed: listed,
		BytesTotal:    s.bytesTotal.Load(),
		Pages:         s.pages.Load(),
		Prefix:        prefix,
	})
}

func (s *Scanner) writeErrorRecord(ctx context.Context, code, message, key string) {
	if s.writer == nil {
		return
	}
	// Best effort: a failed error record never fails the scan.
	_ = s.writer.WriteError(ctx, &output.ErrorRecord{
		Code:    code,
		Message: message,
		Key:     key,
		Prefix:  s.config.Prefix,
	})
}

func (s *Scanner) waitForRateLimit(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}
