package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sdejongh/toolbelt/pkg/models"
	"golang.org/x/term"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	mu        sync.Mutex
	writer    io.Writer
	run       RunInfo
	termWidth int
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{}
}

// Start prints the mode banner and the two roots
func (f *HumanFormatter) Start(writer io.Writer, run RunInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	f.run = run
	f.termWidth = terminalWidth(writer)

	mode := "DRY RUN"
	if !run.DryRun {
		mode = "DELETE MODE"
	}
	fmt.Fprintf(writer, "=== %s ===\n", mode)
	fmt.Fprintf(writer, "Old: %s\n", run.SourceRoot)
	fmt.Fprintf(writer, "New: %s\n\n", run.ReferenceRoot)
	fmt.Fprintf(writer, "Scanning files...\n")
	return nil
}

// Progress reports scan and cleanup milestones; per-file outcomes are silent
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writer == nil {
		return nil
	}

	switch update.Type {
	case UpdateScanComplete:
		fmt.Fprintf(f.writer, "Found %d files\n\n", update.TotalFiles)
		if update.TotalFiles == 0 {
			fmt.Fprintf(f.writer, "No files to process.\n")
		}
	case UpdateCleanupStart:
		fmt.Fprintf(f.writer, "\nCleaning empty directories...\n")
	}
	return nil
}

// Complete prints the summary table and the problem list
func (f *HumanFormatter) Complete(summary *models.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writer == nil {
		f.writer = io.Discard
	}
	f.writeSummary(summary)
	return nil
}

func (f *HumanFormatter) writeSummary(summary *models.Summary) {
	w := f.writer
	if summary.Total == 0 {
		return
	}

	rows := [][]string{
		{"OK (identical)", strconv.Itoa(summary.OK())},
		{models.StatusDiffers.Label(), strconv.Itoa(summary.Count(models.StatusDiffers))},
		{models.StatusNotInReference.Label(), strconv.Itoa(summary.Count(models.StatusNotInReference))},
		{"ERRORS", strconv.Itoa(summary.Count(models.StatusError))},
	}
	if !summary.DryRun {
		rows = append(rows,
			[]string{"Reclaimed", FormatBytes(summary.BytesReclaimed)},
		)
	}

	fmt.Fprintf(w, "\n%s\n", RenderTable([]string{"Result", "Files"}, rows, 2))
	fmt.Fprintf(w, "Completed in %s (%d workers, %s comparison)\n",
		summary.Duration.Round(time.Millisecond), summary.Workers, summary.Method)

	if len(summary.Problems) > 0 {
		fmt.Fprintf(w, "\nProblem files (kept):\n")
		for _, p := range summary.DisplayedProblems() {
			fmt.Fprintln(w, f.truncateLine(problemLine(p)))
		}
		if hidden := summary.TruncatedProblems(); hidden > 0 {
			fmt.Fprintf(w, "  ... and %d more\n", hidden)
		}
	}

	if summary.DryRun {
		fmt.Fprintf(w, "\nDry run complete. Use --delete to remove identical files.\n")
	} else {
		fmt.Fprintf(w, "Removed %d empty directories\n", summary.DirsRemoved)
	}
}

// problemLine formats one kept file as "  [STATUS] path - error"
func problemLine(o models.Outcome) string {
	line := fmt.Sprintf("  [%s] %s", o.Status.Label(), o.RelativePath)
	if o.Error != "" {
		line += " - " + o.Error
	}
	return line
}

// truncateLine keeps a line within the terminal width
func (f *HumanFormatter) truncateLine(line string) string {
	if f.termWidth <= 3 {
		return line
	}
	runes := []rune(line)
	if len(runes) > f.termWidth {
		return string(runes[:f.termWidth-3]) + "..."
	}
	return line
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

// terminalWidth returns the width of writer when it is a terminal, 0 otherwise
func terminalWidth(writer io.Writer) int {
	file, ok := writer.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// FormatBytes formats bytes in human-readable binary units
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
