// Package config loads CLI settings from config files and environment
// variables via viper.
//
// Precedence, highest first: command flags, S3DU_* environment
// variables, the config file, built-in defaults. Nested keys map to
// environment variables with underscores: logging.level becomes
// S3DU_LOGGING_LEVEL.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/s3du/pkg/aggregate"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "S3DU"

// Settings is the fully resolved CLI configuration.
type Settings struct {
	Logging LoggingSettings `mapstructure:"logging"`
	Scan    ScanSettings    `mapstructure:"scan"`
	AWS     AWSSettings     `mapstructure:"aws"`
}

// LoggingSettings configures the CLI logger.
type LoggingSettings struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "console" or "json".
	Format string `mapstructure:"format"`
}

// ScanSettings carries default scan behavior, overridable per command.
type ScanSettings struct {
	Depth         int           `mapstructure:"depth"`
	Delimiter     string        `mapstructure:"delimiter"`
	Tiers         bool          `mapstructure:"tiers"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	MaxObjects    int64         `mapstructure:"max_objects"`
	MaxPages      int64         `mapstructure:"max_pages"`
	Parallel      int           `mapstructure:"parallel"`
	ProgressEvery int64         `mapstructure:"progress_every"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// AWSSettings carries default AWS connection parameters.
type AWSSettings struct {
	Region   string `mapstructure:"region"`
	Profile  string `mapstructure:"profile"`
	Endpoint string `mapstructure:"endpoint"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("scan.depth", aggregate.UnboundedDepth)
	v.SetDefault("scan.delimiter", aggregate.DefaultDelimiter)
	v.SetDefault("scan.tiers", false)
	v.SetDefault("scan.rate_limit", 0.0)
	v.SetDefault("scan.max_objects", 0)
	v.SetDefault("scan.max_pages", 0)
	v.SetDefault("scan.parallel", 1)
	v.SetDefault("scan.progress_every", 10000)
	v.SetDefault("scan.timeout", "0s")
}

// Bind wires environment variable overrides and the optional config
// file onto v. When cfgFile is empty, the standard locations are
// searched: the working directory, then $HOME/.config/s3du. A missing
// config file is not an error; an unreadable or malformed one is.
func Bind(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("s3du")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/s3du")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load resolves the final settings from v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	err := v.Unmarshal(&s, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &s, nil
}
