package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sdejongh/toolbelt/pkg/compare"
	"github.com/sdejongh/toolbelt/pkg/logging"
	"github.com/sdejongh/toolbelt/pkg/models"
	"github.com/sdejongh/toolbelt/pkg/ratelimit"
)

// Config represents the application configuration
type Config struct {
	Dedup       DedupConfig       `yaml:"dedup"`
	Performance PerformanceConfig `yaml:"performance"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
	HTML2Text   HTML2TextConfig   `yaml:"html2text"`
}

// DedupConfig holds settings of the dedup command
type DedupConfig struct {
	Method             string   `yaml:"method"`
	Workers            int      `yaml:"workers"`
	LargeFileThreshold int64    `yaml:"large_file_threshold"`
	SampleSize         int64    `yaml:"sample_size"`
	ProblemLimit       int      `yaml:"problem_limit"`
	Exclude            []string `yaml:"exclude"`
}

// PerformanceConfig holds I/O settings
type PerformanceConfig struct {
	BufferSize     int    `yaml:"buffer_size"`
	BandwidthLimit string `yaml:"bandwidth_limit"` // e.g. "10M", empty = unlimited
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bar on terminals
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"` // "json" or "text"
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	File       string `yaml:"file"`   // Log file path (empty = no log)
	MaxSize    int    `yaml:"max_size"`    // Megabytes before rotation
	MaxBackups int    `yaml:"max_backups"` // Rotated files kept
	MaxAge     int    `yaml:"max_age"`     // Days rotated files are kept (0 = forever)
	Compress   bool   `yaml:"compress"`    // Gzip rotated files
}

// HTML2TextConfig holds settings of the html2text command
type HTML2TextConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// Default returns the default configuration
func Default() *Config {
	opts := compare.DefaultOptions()
	return &Config{
		Dedup: DedupConfig{
			Method:             compare.MethodSampled,
			Workers:            8,
			LargeFileThreshold: opts.LargeFileThreshold,
			SampleSize:         opts.SampleSize,
			ProblemLimit:       models.DefaultProblemLimit,
			Exclude:            []string{},
		},
		Performance: PerformanceConfig{
			BufferSize: opts.BufferSize,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Format:     "text",
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
		},
		HTML2Text: HTML2TextConfig{
			Timeout:   15 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; toolbelt-html2text/1.0)",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains(compare.Methods, c.Dedup.Method) {
		return &models.ValidationError{
			Field:   "dedup.method",
			Message: "must be one of " + strings.Join(compare.Methods, ", "),
		}
	}

	if c.Dedup.Workers < 1 {
		return &models.ValidationError{
			Field:   "dedup.workers",
			Message: "must be at least 1",
		}
	}

	if c.Dedup.ProblemLimit < 0 {
		return &models.ValidationError{
			Field:   "dedup.problem_limit",
			Message: "must not be negative",
		}
	}

	if err := c.ComparatorOptions().Validate(); err != nil {
		return err
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if _, err := ratelimit.ParseBandwidth(c.Performance.BandwidthLimit); err != nil {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: err.Error(),
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	if c.Logging.MaxSize < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAge < 0 {
		return &models.ValidationError{
			Field:   "logging.max_size",
			Message: "rotation limits must not be negative",
		}
	}

	if c.HTML2Text.Timeout <= 0 {
		return &models.ValidationError{
			Field:   "html2text.timeout",
			Message: "must be positive",
		}
	}

	return nil
}

// ComparatorOptions returns the comparator settings without a limiter
func (c *Config) ComparatorOptions() compare.Options {
	return compare.Options{
		LargeFileThreshold: c.Dedup.LargeFileThreshold,
		SampleSize:         c.Dedup.SampleSize,
		BufferSize:         c.Performance.BufferSize,
	}
}

// Limiter returns the shared read limiter, nil when unlimited
func (c *Config) Limiter() (*ratelimit.Limiter, error) {
	bps, err := ratelimit.ParseBandwidth(c.Performance.BandwidthLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid bandwidth limit: %w", err)
	}
	return ratelimit.NewLimiter(bps), nil
}

// NewLogger opens the configured log file, or returns a NullLogger when
// logging is disabled
func (c *Config) NewLogger() (logging.Logger, error) {
	if !c.Logging.Enabled || c.Logging.File == "" {
		return logging.NewNullLogger(), nil
	}
	logger, err := logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       c.Logging.File,
		Format:     logging.Format(c.Logging.Format),
		Level:      logging.ParseLevel(c.Logging.Level),
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
		Compress:   c.Logging.Compress,
	})
	if err != nil {
		return nil, err
	}
	return logger, nil
}
