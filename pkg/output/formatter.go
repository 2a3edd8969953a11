package output

import (
	"io"

	"github.com/sdejongh/toolbelt/pkg/models"
)

// Progress update types
const (
	// UpdateScanComplete is sent once the source tree has been walked
	UpdateScanComplete = "scan_complete"
	// UpdateFileComplete is sent once per task outcome, in arrival order
	UpdateFileComplete = "file_complete"
	// UpdateCleanupStart is sent before empty directories are pruned
	UpdateCleanupStart = "cleanup_start"
)

// RunInfo describes a dedup run for the banner
type RunInfo struct {
	SourceRoot    string
	ReferenceRoot string
	DryRun        bool
	Method        string
	Workers       int
}

// ProgressUpdate represents a progress notification during a run
type ProgressUpdate struct {
	Type       string
	TotalFiles int
	Outcome    *models.Outcome
}

// Formatter defines the interface for output formatting.
// Progress may be called concurrently from several workers.
type Formatter interface {
	// Start prints the run banner
	Start(writer io.Writer, run RunInfo) error

	// Progress reports progress during the run
	Progress(update ProgressUpdate) error

	// Complete finalizes output and displays the summary
	Complete(summary *models.Summary) error

	// Name returns the formatter name
	Name() string
}

// New returns the formatter for a format name. progress selects the
// progress bar variant of the human formatter.
func New(format string, progress bool) Formatter {
	switch format {
	case "json":
		return NewJSONFormatter()
	default:
		if progress {
			return NewProgressFormatter()
		}
		return NewHumanFormatter()
	}
}
