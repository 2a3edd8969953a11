package output

import (
	"io"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/sdejongh/toolbelt/pkg/models"
)

// progressTemplate mirrors a spinner / description / bar / M-of-N layout
const progressTemplate = `{{ cycle . "⠋" "⠙" "⠹" "⠸" "⠼" "⠴" "⠦" "⠧" "⠇" "⠏" }} {{ string . "prefix" }} {{ bar . "[" "█" "█" "░" "]" }} {{ counters . }} {{ etime . }}`

// ProgressFormatter is the human formatter plus a live progress bar that
// advances once per completed task
type ProgressFormatter struct {
	*HumanFormatter

	mu     sync.Mutex
	writer io.Writer
	bar    *pb.ProgressBar
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter() *ProgressFormatter {
	return &ProgressFormatter{HumanFormatter: NewHumanFormatter()}
}

// Start prints the banner
func (f *ProgressFormatter) Start(writer io.Writer, run RunInfo) error {
	if writer == nil {
		writer = os.Stdout
	}
	f.mu.Lock()
	f.writer = writer
	f.mu.Unlock()
	return f.HumanFormatter.Start(writer, run)
}

// Progress starts the bar once the file count is known and advances it per outcome
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	switch update.Type {
	case UpdateScanComplete:
		if err := f.HumanFormatter.Progress(update); err != nil {
			return err
		}
		if update.TotalFiles > 0 {
			f.mu.Lock()
			f.bar = pb.New(update.TotalFiles).
				SetTemplateString(progressTemplate).
				SetWriter(f.writer).
				Set("prefix", "Processing files").
				Start()
			f.mu.Unlock()
		}
		return nil

	case UpdateFileComplete:
		f.mu.Lock()
		bar := f.bar
		f.mu.Unlock()
		if bar != nil {
			bar.Increment()
		}
		return nil

	case UpdateCleanupStart:
		f.finishBar()
	}

	return f.HumanFormatter.Progress(update)
}

// Complete stops the bar and prints the summary
func (f *ProgressFormatter) Complete(summary *models.Summary) error {
	f.finishBar()
	return f.HumanFormatter.Complete(summary)
}

func (f *ProgressFormatter) finishBar() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

// Current returns the number of outcomes counted by the bar, 0 once finished
func (f *ProgressFormatter) Current() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bar == nil {
		return 0
	}
	return f.bar.Current()
}
