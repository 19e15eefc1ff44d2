// Package cmd implements the s3du command line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/3leaps/s3du/internal/config"
	"github.com/3leaps/s3du/internal/observability"
)

// versionInfo holds build-time version metadata injected via ldflags.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
// Called from main before Execute.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// settings is resolved in PersistentPreRunE and read by commands.
	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "s3du",
	Short: "Disk usage for object storage",
	Long: `s3du reports storage usage for S3 buckets and prefixes the way du
does for filesystems: cumulative bytes, object counts, and modification
time ranges per prefix, aggregated in a single streaming pass.

Examples:
  s3du du s3://my-bucket/
  s3du du s3://my-bucket/data/ --depth 2 --human
  s3du du s3://my-bucket/ --tiers --output jsonl
  s3du du --job scan.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initRuntime(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./s3du.yaml, $HOME/.config/s3du/s3du.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console|json)")
}

// initRuntime resolves configuration and initializes logging. Flag
// values override config file and environment values.
func initRuntime(cmd *cobra.Command) error {
	v := viper.New()
	config.SetDefaults(v)
	if err := config.Bind(v, cfgFile); err != nil {
		return exitError(exitInvalidArgument, "Invalid configuration", err)
	}

	if cmd.Flags().Changed("log-level") {
		v.Set("logging.level", logLevel)
	}
	if cmd.Flags().Changed("log-format") {
		v.Set("logging.format", logFormat)
	}

	s, err := config.Load(v)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid configuration", err)
	}
	settings = s

	observability.InitCLILogger(s.Logging.Level, s.Logging.Format == "json")
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	defer observability.Sync()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return exitCode(err)
	}
	return 0
}
