package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sdejongh/toolbelt/pkg/compare"
	"github.com/sdejongh/toolbelt/pkg/config"
	"github.com/sdejongh/toolbelt/pkg/dedup"
	"github.com/sdejongh/toolbelt/pkg/logging"
	"github.com/sdejongh/toolbelt/pkg/output"
	"github.com/sdejongh/toolbelt/pkg/storage"
	"github.com/spf13/cobra"
)

// DedupFlags holds dedup command flags
type DedupFlags struct {
	Delete         bool
	Workers        int
	Method         string
	Exclude        []string
	Output         string
	ProblemsReport string
	ReportFormat   string
	Bandwidth      string
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

var dedupFlags DedupFlags

// NewDedupCommand creates the dedup command
func NewDedupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup OLD_DIR NEW_DIR",
		Short: "Remove files of OLD_DIR already present in NEW_DIR",
		Long: `Compare every file under OLD_DIR with the file at the same relative path
under NEW_DIR. Files with identical content are reported, and removed from
OLD_DIR with --delete. Files that differ or are missing from NEW_DIR are
always kept. NEW_DIR is never modified.

Without --delete nothing is changed (dry run).

Comparison methods:
  sampled  MD5 for files up to 10 MiB, three 64 KiB windows above (default)
  md5      MD5 of whole files
  binary   byte-by-byte`,
		Example: `  toolbelt dedup ~/backup-2019 ~/photos
  toolbelt dedup old/ new/ --delete --workers 16 --exclude '*.tmp'`,
		Args: cobra.ExactArgs(2),
		RunE: runDedup,
	}

	cmd.Flags().BoolVar(&dedupFlags.Delete, "delete", false, "delete identical files from OLD_DIR (default is a dry run)")
	cmd.Flags().IntVarP(&dedupFlags.Workers, "workers", "w", 0, "number of parallel workers (default: 8)")
	cmd.Flags().StringVarP(&dedupFlags.Method, "method", "m", "", "comparison method: "+strings.Join(compare.Methods, ", "))
	cmd.Flags().StringSliceVar(&dedupFlags.Exclude, "exclude", []string{}, "glob patterns of OLD_DIR files to skip")
	cmd.Flags().StringVarP(&dedupFlags.Output, "output", "o", "", "output format: human, json")
	cmd.Flags().StringVar(&dedupFlags.ProblemsReport, "problems-report", "", "write kept files to a report file")
	cmd.Flags().StringVar(&dedupFlags.ReportFormat, "report-format", output.ReportHuman, "problems report format: "+strings.Join(output.ReportFormats, ", "))
	cmd.Flags().StringVarP(&dedupFlags.Bandwidth, "bandwidth", "b", "", "read bandwidth limit (e.g., \"10M\", \"1G\")")

	// Logging flags
	cmd.Flags().StringVar(&dedupFlags.LogFile, "log-file", "", "write logs to file (enables logging)")
	cmd.Flags().StringVar(&dedupFlags.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&dedupFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	return cmd
}

func runDedup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	oldDir, newDir, err := validateDedupArgs(args[0], args[1])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDedupFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	source, err := storage.NewLocal(oldDir)
	if err != nil {
		return fmt.Errorf("failed to open old directory: %w", err)
	}
	defer source.Close()

	reference, err := storage.NewLocal(newDir)
	if err != nil {
		return fmt.Errorf("failed to open new directory: %w", err)
	}
	defer reference.Close()

	limiter, err := cfg.Limiter()
	if err != nil {
		return err
	}
	opts := cfg.ComparatorOptions()
	opts.Limiter = limiter

	comparator, err := compare.New(cfg.Dedup.Method, opts)
	if err != nil {
		return err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	out := cmd.OutOrStdout()
	if cfg.Output.Quiet {
		out = io.Discard
	}
	formatter := output.New(cfg.Output.Format, cfg.Output.Progress && isTerminal(out))

	runner := dedup.NewRunner(source, reference, comparator, formatter, logger, dedup.Options{
		Workers:      cfg.Dedup.Workers,
		Delete:       dedupFlags.Delete,
		Exclude:      cfg.Dedup.Exclude,
		ProblemLimit: cfg.Dedup.ProblemLimit,
		Output:       out,
	})

	summary, err := runner.Run(ctx)
	if summary == nil {
		return fmt.Errorf("dedup failed: %w", err)
	}
	if err != nil {
		// interrupted: report what ran, then fail
		logger.Warn(ctx, "Run stopped before all files were processed", logging.Fields{"processed": summary.Total})
		return fmt.Errorf("dedup interrupted after %d files: %w", summary.Total, err)
	}

	if dedupFlags.ProblemsReport != "" {
		if err := output.WriteProblemsReport(summary, dedupFlags.ProblemsReport, dedupFlags.ReportFormat); err != nil {
			return fmt.Errorf("failed to write problems report: %w", err)
		}
	}

	// the exit status reflects completion, not how many files were kept
	return nil
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// applyDedupFlags overrides config values with command-line flags
func applyDedupFlags(cfg *config.Config) {
	if dedupFlags.Method != "" {
		cfg.Dedup.Method = dedupFlags.Method
	}

	if dedupFlags.Workers > 0 {
		cfg.Dedup.Workers = dedupFlags.Workers
	}

	if len(dedupFlags.Exclude) > 0 {
		cfg.Dedup.Exclude = dedupFlags.Exclude
	}

	if dedupFlags.Output != "" {
		cfg.Output.Format = dedupFlags.Output
	}

	if dedupFlags.Bandwidth != "" {
		cfg.Performance.BandwidthLimit = dedupFlags.Bandwidth
	}

	if dedupFlags.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = dedupFlags.LogFile
	}
	if dedupFlags.LogFormat != "" {
		cfg.Logging.Format = dedupFlags.LogFormat
	}
	if dedupFlags.LogLevel != "" {
		cfg.Logging.Level = dedupFlags.LogLevel
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	// Enable progress in verbose mode
	if globalFlags.Verbose {
		cfg.Output.Progress = true
	}
}
