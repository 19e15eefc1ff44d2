package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3du/internal/observability"
	"github.com/3leaps/s3du/pkg/aggregate"
	"github.com/3leaps/s3du/pkg/manifest"
	"github.com/3leaps/s3du/pkg/match"
	"github.com/3leaps/s3du/pkg/output"
	"github.com/3leaps/s3du/pkg/provider"
	"github.com/3leaps/s3du/pkg/provider/file"
	"github.com/3leaps/s3du/pkg/provider/s3"
	"github.com/3leaps/s3du/pkg/scan"
)

var duCmd = &cobra.Command{
	Use:   "du [uri]",
	Short: "Report storage usage by prefix",
	Long: `Report cumulative storage usage for a bucket or prefix.

The listing is streamed through a depth-bounded prefix tree: memory
scales with the number of reported prefixes, not the number of objects.
Results include cumulative bytes, object counts, and modification time
ranges per prefix; --tiers adds a storage-tier breakdown.

Examples:
  s3du du s3://bucket/
  s3du du s3://bucket/data/ --depth 2 --human
  s3du du s3://bucket/logs/ --include "**/*.gz" --tiers
  s3du du s3://bucket/ --parallel 8 --output jsonl
  s3du du file:///var/backups/ --depth 1
  s3du du --job scan.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDu,
}

var (
	duJobPath   string
	duRegion    string
	duProfile   string
	duEndpoint  string
	duDepth     int
	duDelimiter string
	duTiers     bool
	duHuman     bool

	duOutput      string
	duDestination string

	duMaxObjects    int64
	duMaxPages      int64
	duRateLimit     float64
	duTimeout       time.Duration
	duParallel      int
	duIncludes      []string
	duExcludes      []string
	duProgressEvery int64
	duQuiet         bool
)

func init() {
	rootCmd.AddCommand(duCmd)

	duCmd.Flags().StringVarP(&duJobPath, "job", "j", "", "Path to scan manifest (alternative to URI)")
	duCmd.Flags().StringVarP(&duRegion, "region", "r", "", "AWS region")
	duCmd.Flags().StringVarP(&duProfile, "profile", "p", "", "AWS profile")
	duCmd.Flags().StringVar(&duEndpoint, "endpoint", "", "Custom S3 endpoint")
	duCmd.Flags().IntVarP(&duDepth, "depth", "d", aggregate.UnboundedDepth, "Max prefix depth to report (0=totals only, -1=unlimited)")
	duCmd.Flags().StringVar(&duDelimiter, "delimiter", aggregate.DefaultDelimiter, "Key segment delimiter")
	duCmd.Flags().BoolVar(&duTiers, "tiers", false, "Break totals down by storage tier")
	duCmd.Flags().BoolVarP(&duHuman, "human", "H", false, "Human-readable sizes (table output)")
	duCmd.Flags().StringVarP(&duOutput, "output", "o", manifest.FormatTable, "Output format (table|jsonl)")
	duCmd.Flags().StringVar(&duDestination, "dest", "", "Output destination (default stdout; path to write a file)")
	duCmd.Flags().Int64Var(&duMaxObjects, "max-objects", 0, "Stop after listing this many objects (0=unlimited)")
	duCmd.Flags().Int64Var(&duMaxPages, "max-pages", 0, "Stop after this many listing pages (0=unlimited)")
	duCmd.Flags().Float64Var(&duRateLimit, "rate-limit", 0, "Max list requests per second (0=unlimited)")
	duCmd.Flags().DurationVar(&duTimeout, "timeout", 0, "Scan timeout (0=none)")
	duCmd.Flags().IntVar(&duParallel, "parallel", 1, "Concurrent shard listers (>1 fans out over top-level prefixes)")
	duCmd.Flags().StringArrayVar(&duIncludes, "include", nil, "Include glob pattern (repeatable)")
	duCmd.Flags().StringArrayVar(&duExcludes, "exclude", nil, "Exclude glob pattern (repeatable)")
	duCmd.Flags().Int64Var(&duProgressEvery, "progress-every", 10000, "Emit a progress record every N objects (jsonl; 0=disable)")
	duCmd.Flags().BoolVarP(&duQuiet, "quiet", "q", false, "Suppress progress records")
}

// duJob is the fully resolved scan job, from flags or a manifest.
type duJob struct {
	providerType provider.ProviderType
	bucket       string
	prefix       string
	region       string
	profile      string
	endpoint     string

	scanCfg  scan.Config
	matchCfg match.Config

	format      string
	human       bool
	destination string
}

func runDu(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	job, err := resolveDuJob(cmd, args)
	if err != nil {
		return err
	}

	if !cmd.Flags().Changed("timeout") && settings != nil && settings.Scan.Timeout > 0 {
		duTimeout = settings.Scan.Timeout
	}
	if duTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duTimeout)
		defer cancel()
	}

	lister, err := createLister(ctx, job)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return exitError(exitServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = lister.Close() }()

	var filter *match.Filter
	if len(job.matchCfg.Includes) > 0 || len(job.matchCfg.Excludes) > 0 {
		filter, err = match.New(job.matchCfg)
		if err != nil {
			observability.CLILogger.Error("Invalid patterns", zap.Error(err))
			return exitError(exitInvalidArgument, "Invalid match patterns", err)
		}
	}

	jobID := uuid.New().String()
	writer, cleanup, err := createDuWriter(job, jobID)
	if err != nil {
		observability.CLILogger.Error("Failed to create writer", zap.Error(err))
		return exitError(exitFileWriteError, "Failed to create output", err)
	}
	defer cleanup()

	scanner, err := scan.New(lister, job.scanCfg)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid scan configuration", err)
	}
	scanner.WithWriter(writer)
	if filter != nil {
		scanner.WithFilter(filter)
	}

	observability.CLILogger.Info("Starting scan",
		zap.String("job_id", jobID),
		zap.String("provider", string(job.providerType)),
		zap.String("bucket", job.bucket),
		zap.String("prefix", job.prefix),
		zap.Int("depth", job.scanCfg.MaxDepth),
		zap.Int("parallel", job.scanCfg.Parallel))

	result, err := scanner.Run(ctx)
	if err != nil {
		if result != nil {
			// Render whatever accumulated before the failure, then
			// exit nonzero so callers know the report is incomplete.
			// Rendering uses a fresh context: the scan context may
			// already be cancelled and the writer would refuse it.
			observability.CLILogger.Warn("Scan stopped early, reporting partial results",
				zap.String("job_id", jobID),
				zap.Int64("objects_listed", result.ObjectsListed))
			if renderErr := renderResult(context.Background(), writer, result); renderErr != nil {
				observability.CLILogger.Error("Failed to render partial results", zap.Error(renderErr))
			}
		}
		if ctx.Err() != nil {
			return exitError(exitInterrupted, "Scan cancelled", err)
		}
		observability.CLILogger.Error("Scan failed",
			zap.String("job_id", jobID),
			zap.Error(err))
		return exitError(exitServiceUnavailable, "Scan failed", err)
	}

	if err := renderResult(context.Background(), writer, result); err != nil {
		return exitError(exitFileWriteError, "Failed to write results", err)
	}

	observability.CLILogger.Info("Scan completed",
		zap.String("job_id", jobID),
		zap.Int64("objects_listed", result.ObjectsListed),
		zap.Int64("objects_skipped", result.ObjectsSkipped),
		zap.Int64("bytes_total", result.BytesTotal),
		zap.Int64("pages", result.Pages),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("duration", result.Duration))

	return nil
}

// resolveDuJob builds the scan job from a manifest or command flags.
// Flags changed on the command line override manifest values.
func resolveDuJob(cmd *cobra.Command, args []string) (*duJob, error) {
	if duJobPath == "" && len(args) == 0 {
		return nil, exitError(exitInvalidArgument, "Missing target",
			errors.New("provide a storage URI or --job manifest"))
	}

	var job *duJob
	if duJobPath != "" {
		m, err := manifest.Load(duJobPath)
		if err != nil {
			observability.CLILogger.Error("Failed to load manifest",
				zap.String("path", duJobPath),
				zap.Error(err))
			return nil, exitError(exitInvalidArgument, "Invalid manifest", err)
		}
		job = jobFromManifest(m)
	} else {
		j, err := jobFromURI(args[0])
		if err != nil {
			return nil, err
		}
		job = j
	}

	applyFlagOverrides(cmd, job)
	job.scanCfg.Prefix = job.prefix
	return job, nil
}

func jobFromManifest(m *manifest.Manifest) *duJob {
	return &duJob{
		providerType: provider.ProviderType(m.Connection.Provider),
		bucket:       m.Connection.Bucket,
		prefix:       m.Scan.Prefix,
		region:       m.Connection.Region,
		profile:      m.Connection.Profile,
		endpoint:     m.Connection.Endpoint,
		scanCfg: scan.Config{
			Delimiter:     m.Scan.Delimiter,
			MaxDepth:      *m.Scan.Depth,
			TierBreakdown: m.Scan.Tiers,
			RateLimit:     m.Scan.RateLimit,
			ProgressEvery: m.Scan.ProgressEvery,
			MaxObjects:    m.Scan.MaxObjects,
			MaxPages:      m.Scan.MaxPages,
			Parallel:      m.Scan.Parallel,
		},
		matchCfg: match.Config{
			Includes: m.Match.Includes,
			Excludes: m.Match.Excludes,
		},
		format:      m.Output.Format,
		human:       m.Output.Human,
		destination: m.Output.Destination,
	}
}

func jobFromURI(uri string) (*duJob, error) {
	parsed, err := ParseURI(uri)
	if err != nil {
		observability.CLILogger.Error("Invalid URI", zap.String("uri", uri), zap.Error(err))
		return nil, exitError(exitInvalidArgument, "Invalid URI", err)
	}
	if !parsed.IsPattern() && !parsed.IsPrefix() && parsed.Provider == provider.ProviderS3 {
		return nil, exitError(exitInvalidArgument, "du requires a prefix URI",
			errors.New("append '/' to treat the URI as a prefix"))
	}

	cfg := scan.DefaultConfig()
	if settings != nil {
		cfg.MaxDepth = settings.Scan.Depth
		cfg.Delimiter = settings.Scan.Delimiter
		cfg.TierBreakdown = settings.Scan.Tiers
		cfg.RateLimit = settings.Scan.RateLimit
		cfg.MaxObjects = settings.Scan.MaxObjects
		cfg.MaxPages = settings.Scan.MaxPages
		cfg.Parallel = settings.Scan.Parallel
		cfg.ProgressEvery = settings.Scan.ProgressEvery
	}

	job := &duJob{
		providerType: parsed.Provider,
		bucket:       parsed.Bucket,
		prefix:       parsed.Key,
		scanCfg:      cfg,
		format:       manifest.FormatTable,
	}
	if settings != nil {
		job.region = settings.AWS.Region
		job.profile = settings.AWS.Profile
		job.endpoint = settings.AWS.Endpoint
	}
	// A glob URI lists from its static prefix and filters full keys
	// against the pattern.
	if parsed.IsPattern() {
		job.matchCfg.Includes = append(job.matchCfg.Includes, parsed.Pattern)
	}
	return job, nil
}

// applyFlagOverrides folds explicitly set command flags into the job.
func applyFlagOverrides(cmd *cobra.Command, job *duJob) {
	flags := cmd.Flags()

	if flags.Changed("region") {
		job.region = duRegion
	}
	if flags.Changed("profile") {
		job.profile = duProfile
	}
	if flags.Changed("endpoint") {
		job.endpoint = duEndpoint
	}
	if flags.Changed("depth") {
		job.scanCfg.MaxDepth = duDepth
	}
	if flags.Changed("delimiter") {
		job.scanCfg.Delimiter = duDelimiter
	}
	if flags.Changed("tiers") {
		job.scanCfg.TierBreakdown = duTiers
	}
	if flags.Changed("max-objects") {
		job.scanCfg.MaxObjects = duMaxObjects
	}
	if flags.Changed("max-pages") {
		job.scanCfg.MaxPages = duMaxPages
	}
	if flags.Changed("rate-limit") {
		job.scanCfg.RateLimit = duRateLimit
	}
	if flags.Changed("parallel") {
		job.scanCfg.Parallel = duParallel
	}
	if flags.Changed("progress-every") {
		job.scanCfg.ProgressEvery = duProgressEvery
	}
	if duQuiet {
		job.scanCfg.ProgressEvery = 0
	}
	if flags.Changed("include") {
		job.matchCfg.Includes = duIncludes
	}
	if flags.Changed("exclude") {
		job.matchCfg.Excludes = duExcludes
	}
	if flags.Changed("output") {
		job.format = duOutput
	}
	if flags.Changed("human") {
		job.human = duHuman
	}
	if flags.Changed("dest") {
		job.destination = duDestination
	}
}

// createLister builds the provider lister for the job.
func createLister(ctx context.Context, job *duJob) (provider.Lister, error) {
	switch job.providerType {
	case provider.ProviderS3:
		return s3.New(ctx, s3.Config{
			Bucket:   job.bucket,
			Region:   job.region,
			Profile:  job.profile,
			Endpoint: job.endpoint,
			// S3-compatible services (MinIO, moto, Wasabi) need
			// path-style addressing.
			ForcePathStyle: job.endpoint != "",
		})
	case provider.ProviderFile:
		return file.New(file.Config{BaseDir: job.bucket})
	default:
		return nil, fmt.Errorf("unsupported provider: %s", job.providerType)
	}
}

// createDuWriter builds the output writer for the job.
// Returns the writer, a cleanup function, and any error.
func createDuWriter(job *duJob, jobID string) (output.Writer, func(), error) {
	var sink io.Writer = os.Stdout
	closeSink := func() {}

	dest := job.destination
	if dest != "" && dest != "stdout" {
		path := strings.TrimPrefix(dest, "file:")
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		sink = f
		closeSink = func() { _ = f.Close() }
	}

	switch job.format {
	case manifest.FormatJSONL:
		w := output.NewJSONLWriter(sink, jobID, string(job.providerType))
		return w, func() { _ = w.Close(); closeSink() }, nil
	case manifest.FormatTable, "":
		w := output.NewTableWriter(sink, output.TableOptions{
			HumanSizes: job.human,
			ShowTiers:  job.scanCfg.TierBreakdown,
		})
		return w, func() { _ = w.Close(); closeSink() }, nil
	default:
		closeSink()
		return nil, nil, fmt.Errorf("unsupported output format: %s", job.format)
	}
}

// renderResult streams the usage tree and summary through the writer.
func renderResult(ctx context.Context, writer output.Writer, result *scan.Result) error {
	for prefix, node := range result.Tree.Snapshot() {
		rec := usageRecord(prefix, node)
		if err := writer.WriteUsage(ctx, rec); err != nil {
			return err
		}
	}

	return writer.WriteSummary(ctx, &output.SummaryRecord{
		ObjectsListed:   result.ObjectsListed,
		ObjectsSkipped:  result.ObjectsSkipped + result.ObjectsFiltered,
		BytesTotal:      result.BytesTotal,
		Pages:           result.Pages,
		Duration:        result.Duration,
		DurationHuman:   result.Duration.Round(time.Millisecond).String(),
		Truncated:       result.Truncated,
		TruncatedReason: result.TruncatedReason,
	})
}

// usageRecord converts a tree node into its output row.
func usageRecord(prefix string, node *aggregate.Node) *output.UsageRecord {
	rec := &output.UsageRecord{
		Prefix:  prefix,
		Depth:   node.Depth,
		Bytes:   node.TotalBytes,
		Objects: node.ObjectCount,
	}
	if !node.Oldest.IsZero() {
		oldest := node.Oldest
		rec.Oldest = &oldest
	}
	if !node.Newest.IsZero() {
		newest := node.Newest
		rec.Newest = &newest
	}
	if len(node.Tiers) > 0 {
		rec.Tiers = make(map[string]output.TierUsage, len(node.Tiers))
		for tr, totals := range node.Tiers {
			rec.Tiers[string(tr)] = output.TierUsage{
				Bytes:   totals.Bytes,
				Objects: totals.Objects,
			}
		}
	}
	return rec
}
