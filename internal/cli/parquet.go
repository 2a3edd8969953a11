package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cheggaaa/pb/v3"
	"github.com/sdejongh/toolbelt/pkg/columnar"
	"github.com/sdejongh/toolbelt/pkg/output"
	"github.com/spf13/cobra"
)

// ParquetRowsFlags holds parquet-rows command flags
type ParquetRowsFlags struct {
	Verbose bool
}

var parquetRowsFlags ParquetRowsFlags

// NewParquetRowsCommand creates the parquet-rows command
func NewParquetRowsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parquet-rows PATH",
		Short: "Count rows in a Parquet file or dataset",
		Long: `Count the rows of a Parquet file, a directory of shards or a Hive-style
partitioned dataset by reading only the file footers. Files and directories
whose names start with "_" or "." are ignored.`,
		Example: `  toolbelt parquet-rows ./data.parquet
  toolbelt parquet-rows ~/datasets/events/ -v`,
		Args: cobra.ExactArgs(1),
		RunE: runParquetRows,
	}

	cmd.Flags().BoolVarP(&parquetRowsFlags.Verbose, "verbose", "v", false, "show a per-file breakdown")

	return cmd
}

func runParquetRows(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := columnar.CountRows(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}

	w := cmd.OutOrStdout()
	if parquetRowsFlags.Verbose {
		rows := make([][]string, 0, len(result.Files))
		for _, f := range result.Files {
			rows = append(rows, []string{f.Path, strconv.Itoa(f.RowGroups), strconv.FormatInt(f.Rows, 10)})
		}
		fmt.Fprintln(w, output.RenderTable([]string{"File", "Row groups", "Rows"}, rows, 2, 3))
	}
	fmt.Fprintln(w, result.Rows)
	return nil
}

// Arrow2ParquetFlags holds arrow2parquet command flags
type Arrow2ParquetFlags struct {
	SourceDir       string
	OutputDir       string
	Overwrite       bool
	PreserveSubdirs bool
}

var arrow2parquetFlags Arrow2ParquetFlags

// NewArrow2ParquetCommand creates the arrow2parquet command
func NewArrow2ParquetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arrow2parquet",
		Short: "Convert Arrow IPC shards to Parquet",
		Long: `Convert every .arrow file below --source-dir to Parquet, one record batch
at a time so memory stays bounded. Both the Arrow IPC file and stream
formats are accepted.

Existing outputs are skipped unless --overwrite is given. Without
--preserve-subdirs every output is written flat into --output-dir.`,
		Example: `  toolbelt arrow2parquet --source-dir ./arrow_data --output-dir ./parquet_data
  toolbelt arrow2parquet --source-dir ./arrow_data --preserve-subdirs --overwrite`,
		Args: cobra.NoArgs,
		RunE: runArrow2Parquet,
	}

	cmd.Flags().StringVar(&arrow2parquetFlags.SourceDir, "source-dir", "", "directory containing .arrow files (required)")
	cmd.Flags().StringVar(&arrow2parquetFlags.OutputDir, "output-dir", "parq_convert", "directory to write .parquet files")
	cmd.Flags().BoolVar(&arrow2parquetFlags.Overwrite, "overwrite", false, "overwrite existing parquet files")
	cmd.Flags().BoolVar(&arrow2parquetFlags.PreserveSubdirs, "preserve-subdirs", false, "mirror the source tree inside the output directory")
	_ = cmd.MarkFlagRequired("source-dir")

	return cmd
}

func runArrow2Parquet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := columnar.ConvertOptions{
		OutputDir:       arrow2parquetFlags.OutputDir,
		Overwrite:       arrow2parquetFlags.Overwrite,
		PreserveSubdirs: arrow2parquetFlags.PreserveSubdirs,
	}
	source := arrow2parquetFlags.SourceDir

	files, err := columnar.FindArrowFiles(source)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w under %s", columnar.ErrNoArrowFiles, source)
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fmt.Fprintf(out, "Found %d .arrow files under %s\n", len(files), source)

	var bar *pb.ProgressBar
	if isTerminal(out) {
		bar = pb.New(len(files)).
			SetTemplateString(`{{string . "prefix"}} {{bar . }} {{counters . }}`).
			SetWriter(out).
			Set("prefix", "Converting files").
			Start()
	}

	summary, err := columnar.ConvertDir(ctx, source, opts, func(r columnar.ConvertResult) {
		switch {
		case r.Err != nil:
			fmt.Fprintf(errOut, "ERROR converting %s: %v\n", r.Source, r.Err)
		case r.Skipped && bar == nil:
			fmt.Fprintf(out, "Skip (exists): %s\n", r.Output)
		}
		if bar != nil {
			bar.Increment()
		}
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("conversion cancelled")
		}
		return err
	}

	fmt.Fprintf(out, "Done. Converted %d/%d files into %s\n", summary.Converted, summary.Found, opts.OutputDir)
	return nil
}
