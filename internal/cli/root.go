package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the toolbelt command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "toolbelt",
		Short: "Small file and web utilities",
		Long: `toolbelt bundles small, independent utilities:

  dedup          remove files of an old directory already present in a new one
  html2text      fetch a web page and print its readable text
  parquet-rows   count rows of a Parquet file or dataset from its footers
  arrow2parquet  convert Arrow IPC shards to Parquet
  strip-pdf      remove metadata from a PDF
  ipynb2py       convert a Jupyter notebook into a Sphinx-Gallery script`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(NewDedupCommand())
	rootCmd.AddCommand(NewHTML2TextCommand())
	rootCmd.AddCommand(NewParquetRowsCommand())
	rootCmd.AddCommand(NewArrow2ParquetCommand())
	rootCmd.AddCommand(NewStripPDFCommand())
	rootCmd.AddCommand(NewIPyNB2PyCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
