package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sdejongh/toolbelt/pkg/models"
)

// JSONFormatter writes a single JSON document for automation and scripting
type JSONFormatter struct {
	writer io.Writer
	run    RunInfo
}

// JSONReport is the document written on completion
type JSONReport struct {
	RunID         string         `json:"run_id"`
	Status        string         `json:"status"`
	Mode          string         `json:"mode"`
	SourceRoot    string         `json:"old_dir"`
	ReferenceRoot string         `json:"new_dir"`
	Method        string         `json:"method"`
	Workers       int            `json:"workers"`
	StartTime     string         `json:"start_time"`
	Duration      string         `json:"duration"`
	DurationMs    int64          `json:"duration_ms"`
	Counts        JSONCountsData `json:"counts"`
	Cleanup       *JSONCleanup   `json:"cleanup,omitempty"`
	Problems      []JSONProblem  `json:"problems,omitempty"`
}

// JSONCountsData holds one counter per outcome kind
type JSONCountsData struct {
	Total          int `json:"total"`
	Deleted        int `json:"deleted"`
	Identical      int `json:"identical"`
	Differs        int `json:"differs"`
	NotInReference int `json:"not_in_reference"`
	Errors         int `json:"errors"`
}

// JSONCleanup reports delete-mode cleanup
type JSONCleanup struct {
	DirsRemoved    int   `json:"dirs_removed"`
	BytesReclaimed int64 `json:"bytes_reclaimed"`
}

// JSONProblem is a kept file
type JSONProblem struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Start records the run details; nothing is written until Complete
func (f *JSONFormatter) Start(writer io.Writer, run RunInfo) error {
	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	f.run = run
	return nil
}

// Progress is silent to keep the output parseable
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	return nil
}

// Complete writes the summary document
func (f *JSONFormatter) Complete(summary *models.Summary) error {
	if f.writer == nil {
		f.writer = io.Discard
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewJSONReport(summary))
}

// NewJSONReport converts a summary into its JSON document. Every problem is
// included regardless of the display limit.
func NewJSONReport(summary *models.Summary) JSONReport {
	mode := "dry_run"
	if !summary.DryRun {
		mode = "delete"
	}

	report := JSONReport{
		RunID:         summary.RunID,
		Status:        string(summary.Status),
		Mode:          mode,
		SourceRoot:    summary.SourceRoot,
		ReferenceRoot: summary.ReferenceRoot,
		Method:        summary.Method,
		Workers:       summary.Workers,
		StartTime:     summary.StartTime.Format(time.RFC3339),
		Duration:      summary.Duration.Round(time.Millisecond).String(),
		DurationMs:    summary.Duration.Milliseconds(),
		Counts: JSONCountsData{
			Total:          summary.Total,
			Deleted:        summary.Count(models.StatusDeleted),
			Identical:      summary.Count(models.StatusIdentical),
			Differs:        summary.Count(models.StatusDiffers),
			NotInReference: summary.Count(models.StatusNotInReference),
			Errors:         summary.Count(models.StatusError),
		},
	}

	if !summary.DryRun {
		report.Cleanup = &JSONCleanup{
			DirsRemoved:    summary.DirsRemoved,
			BytesReclaimed: summary.BytesReclaimed,
		}
	}

	for _, p := range summary.Problems {
		report.Problems = append(report.Problems, JSONProblem{
			Path:   p.RelativePath,
			Status: string(p.Status),
			Reason: p.Reason,
			Error:  p.Error,
		})
	}
	return report
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
