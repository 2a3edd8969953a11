package cli

import (
	"fmt"
	"strings"

	"github.com/sdejongh/toolbelt/pkg/notebook"
	"github.com/sdejongh/toolbelt/pkg/pdfmeta"
	"github.com/spf13/cobra"
)

// StripPDFFlags holds strip-pdf command flags
type StripPDFFlags struct {
	List bool
}

var stripPDFFlags StripPDFFlags

// NewStripPDFCommand creates the strip-pdf command
func NewStripPDFCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strip-pdf INPUT [OUTPUT]",
		Short: "Remove metadata from a PDF",
		Long: `Remove the document information dictionary (author, title, creator...)
and the XMP metadata stream from a PDF.

OUTPUT defaults to stripped_<INPUT> next to the input. OUTPUT may be the
input itself to strip in place. With --list the metadata is printed and
nothing is written.`,
		Example: `  toolbelt strip-pdf report.pdf
  toolbelt strip-pdf report.pdf clean.pdf
  toolbelt strip-pdf report.pdf --list`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runStripPDF,
	}

	cmd.Flags().BoolVar(&stripPDFFlags.List, "list", false, "print the metadata keys without writing anything")

	return cmd
}

func runStripPDF(cmd *cobra.Command, args []string) error {
	src := args[0]
	w := cmd.OutOrStdout()

	if stripPDFFlags.List {
		meta, err := pdfmeta.Inspect(src)
		if err != nil {
			return err
		}
		if meta.Empty() {
			fmt.Fprintf(w, "%s: no metadata\n", src)
			return nil
		}
		if len(meta.InfoKeys) > 0 {
			fmt.Fprintf(w, "Info: %s\n", strings.Join(meta.InfoKeys, ", "))
		}
		if meta.HasXMP {
			fmt.Fprintln(w, "XMP: present")
		}
		return nil
	}

	dst := pdfmeta.DefaultOutputPath(src)
	if len(args) == 2 {
		dst = args[1]
	}

	result, err := pdfmeta.Strip(src, dst)
	if err != nil {
		return fmt.Errorf("stripping metadata from %q: %w", src, err)
	}
	fmt.Fprintf(w, "Successfully stripped metadata: %s -> %s\n", result.Source, result.Output)
	return nil
}

// IPyNB2PyFlags holds ipynb2py command flags
type IPyNB2PyFlags struct {
	Output string
}

var ipynb2pyFlags IPyNB2PyFlags

// NewIPyNB2PyCommand creates the ipynb2py command
func NewIPyNB2PyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipynb2py NOTEBOOK",
		Short: "Convert a Jupyter notebook into a Sphinx-Gallery script",
		Long: `Convert a Jupyter notebook into a Sphinx-Gallery Python script.

The first cell must be markdown; it becomes the module docstring as
reStructuredText. Later markdown and raw cells become commented text blocks
and code cells are copied with IPython magics and shell escapes commented
out.`,
		Example: `  toolbelt ipynb2py demo.ipynb
  toolbelt ipynb2py demo.ipynb -o examples/plot_demo.py`,
		Args: cobra.ExactArgs(1),
		RunE: runIPyNB2Py,
	}

	cmd.Flags().StringVarP(&ipynb2pyFlags.Output, "output", "o", "", "output script (default: NOTEBOOK with a .py extension)")

	return cmd
}

func runIPyNB2Py(cmd *cobra.Command, args []string) error {
	src := args[0]
	dst := ipynb2pyFlags.Output
	if dst == "" {
		dst = notebook.DefaultOutputPath(src)
	}

	if err := notebook.ConvertFile(src, dst); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Successfully converted %s -> %s\n", src, dst)
	return nil
}
