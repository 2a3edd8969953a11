package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sdejongh/toolbelt/pkg/htmltext"
	"github.com/spf13/cobra"
)

// HTML2TextFlags holds html2text command flags
type HTML2TextFlags struct {
	Timeout int
	Raw     bool
}

var html2textFlags HTML2TextFlags

// NewHTML2TextCommand creates the html2text command
func NewHTML2TextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "html2text URL",
		Short: "Fetch a web page and print its readable text",
		Long: `Fetch a web page and convert its readable content to plain text while
keeping basic structure (paragraphs, headings, list items).
https:// is added when URL has no scheme.`,
		Example: `  toolbelt html2text example.com
  toolbelt html2text https://news.ycombinator.com --timeout 30
  toolbelt html2text wikipedia.org/wiki/Go --raw`,
		Args: cobra.ExactArgs(1),
		RunE: runHTML2Text,
	}

	cmd.Flags().IntVarP(&html2textFlags.Timeout, "timeout", "t", 0, "request timeout in seconds (default: 15)")
	cmd.Flags().BoolVar(&html2textFlags.Raw, "raw", false, "skip whitespace cleanup")

	return cmd
}

func runHTML2Text(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if html2textFlags.Timeout > 0 {
		cfg.HTML2Text.Timeout = time.Duration(html2textFlags.Timeout) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	target := htmltext.NormalizeURL(args[0])
	fetcher := htmltext.NewFetcher(cfg.HTML2Text.Timeout, cfg.HTML2Text.UserAgent)

	page, err := fetcher.Fetch(ctx, target)
	if err != nil {
		return err
	}

	text, err := htmltext.Convert(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("failed to convert HTML to text: %w", err)
	}
	if !html2textFlags.Raw {
		text = htmltext.Clean(text)
	}

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
