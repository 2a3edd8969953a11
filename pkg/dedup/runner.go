package dedup

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sdejongh/toolbelt/pkg/compare"
	"github.com/sdejongh/toolbelt/pkg/logging"
	"github.com/sdejongh/toolbelt/pkg/models"
	"github.com/sdejongh/toolbelt/pkg/output"
	"github.com/sdejongh/toolbelt/pkg/storage"
)

// DefaultWorkers is the default number of concurrent tasks
const DefaultWorkers = 8

// Options configures a dedup run
type Options struct {
	// Workers bounds the number of tasks in flight
	Workers int
	// Delete removes source files found identical; false is a dry run
	Delete bool
	// Exclude lists glob patterns of source files to skip
	Exclude []string
	// ProblemLimit bounds how many problems the summary displays
	ProblemLimit int
	// Output receives formatter output; nil means stdout
	Output io.Writer
}

// DefaultOptions returns a dry run with the default worker count
func DefaultOptions() Options {
	return Options{
		Workers:      DefaultWorkers,
		ProblemLimit: models.DefaultProblemLimit,
	}
}

// Runner removes files of a source tree that are duplicated at the same
// relative path in a reference tree
type Runner struct {
	source     storage.Backend
	reference  storage.Backend
	comparator compare.Comparator
	formatter  output.Formatter
	logger     logging.Logger
	opts       Options
	excluder   *Excluder

	mu      sync.Mutex
	summary *models.Summary
}

// NewRunner creates a runner; a nil logger disables logging
func NewRunner(
	source, reference storage.Backend,
	comparator compare.Comparator,
	formatter output.Formatter,
	logger logging.Logger,
	opts Options,
) *Runner {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if formatter == nil {
		formatter = output.NewJSONFormatter()
		opts.Output = io.Discard
	}

	return &Runner{
		source:     source,
		reference:  reference,
		comparator: comparator,
		formatter:  formatter,
		logger:     logger,
		opts:       opts,
		excluder:   NewExcluder(opts.Exclude),
	}
}

// Scan walks the source tree and builds one task per regular file not
// excluded. The list is fixed before any task runs.
func (r *Runner) Scan(ctx context.Context) ([]models.Task, error) {
	files, err := r.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", r.source.Root(), err)
	}

	tasks := make([]models.Task, 0, len(files))
	excluded := 0
	for _, f := range files {
		if r.excluder.Match(f.RelativePath) {
			excluded++
			continue
		}
		tasks = append(tasks, models.NewTask(f.RelativePath, f.Size, r.opts.Delete))
	}

	r.logger.Info(ctx, "Scan complete", logging.Fields{
		"root":     r.source.Root(),
		"files":    len(tasks),
		"excluded": excluded,
	})
	return tasks, nil
}

// Run scans the source tree, processes every task and returns the summary.
// A cancelled context stops dispatching new tasks; the summary then covers
// only the tasks that ran and ctx.Err() is returned with it.
func (r *Runner) Run(ctx context.Context) (*models.Summary, error) {
	summary := models.NewSummary(r.source.Root(), r.reference.Root(), !r.opts.Delete)
	summary.Method = r.comparator.Name()
	summary.Workers = r.opts.Workers
	summary.ProblemLimit = r.opts.ProblemLimit

	r.mu.Lock()
	r.summary = summary
	r.mu.Unlock()

	r.logger.Info(ctx, "Starting dedup run", logging.Fields{
		"run_id":  summary.RunID,
		"old":     summary.SourceRoot,
		"new":     summary.ReferenceRoot,
		"dry_run": summary.DryRun,
		"method":  summary.Method,
		"workers": summary.Workers,
		"globs":   len(r.excluder.Patterns()),
	})

	r.formatter.Start(r.opts.Output, output.RunInfo{
		SourceRoot:    summary.SourceRoot,
		ReferenceRoot: summary.ReferenceRoot,
		DryRun:        summary.DryRun,
		Method:        summary.Method,
		Workers:       summary.Workers,
	})

	tasks, err := r.Scan(ctx)
	if err != nil {
		r.logger.Error(ctx, "Scan failed", err, nil)
		return nil, err
	}
	r.formatter.Progress(output.ProgressUpdate{Type: output.UpdateScanComplete, TotalFiles: len(tasks)})

	_, runErr := ParallelMap(ctx, tasks, r.opts.Workers, r.runTask)
	if runErr != nil {
		r.logger.Warn(ctx, "Run interrupted", logging.Fields{"error": runErr.Error()})
	}

	// Nothing was scanned, so nothing can have been emptied
	if r.opts.Delete && runErr == nil && len(tasks) > 0 {
		r.formatter.Progress(output.ProgressUpdate{Type: output.UpdateCleanupStart})
		summary.DirsRemoved = r.source.PruneEmptyDirs(ctx)
		r.logger.Info(ctx, "Pruned empty directories", logging.Fields{"count": summary.DirsRemoved})
	}

	summary.Finish()
	r.logger.Info(ctx, "Dedup run complete", logging.Fields{
		"run_id":    summary.RunID,
		"status":    string(summary.Status),
		"total":     summary.Total,
		"deleted":   summary.Count(models.StatusDeleted),
		"identical": summary.Count(models.StatusIdentical),
		"differs":   summary.Count(models.StatusDiffers),
		"missing":   summary.Count(models.StatusNotInReference),
		"errors":    summary.Count(models.StatusError),
		"duration":  summary.Duration.String(),
	})

	r.formatter.Complete(summary)
	return summary, runErr
}

// runTask processes one task and records its outcome in arrival order
func (r *Runner) runTask(ctx context.Context, task models.Task) models.Outcome {
	start := time.Now()
	outcome := r.process(ctx, task)
	outcome.Duration = time.Since(start)

	r.logger.Debug(ctx, "Task complete", logging.Fields{
		"path":     task.RelativePath,
		"status":   string(outcome.Status),
		"duration": outcome.Duration.String(),
	})

	r.mu.Lock()
	r.summary.Record(outcome)
	r.mu.Unlock()

	r.formatter.Progress(output.ProgressUpdate{Type: output.UpdateFileComplete, Outcome: &outcome})
	return outcome
}

// process compares one file and, in delete mode, removes it when identical
func (r *Runner) process(ctx context.Context, task models.Task) models.Outcome {
	log := r.logger.WithFields(logging.Fields{"path": task.RelativePath})

	cmp, err := r.comparator.Compare(ctx, r.source, r.reference, task.RelativePath)
	if err != nil {
		log.Error(ctx, "Comparison failed", err, nil)
		return models.NewErrorOutcome(task, err)
	}

	outcome := models.Outcome{
		RelativePath: task.RelativePath,
		Reason:       cmp.Reason,
		Size:         task.Size,
	}

	switch cmp.Verdict {
	case compare.Absent:
		outcome.Status = models.StatusNotInReference
	case compare.Differs:
		outcome.Status = models.StatusDiffers
		log.Debug(ctx, "Content differs", logging.Fields{"reason": cmp.Reason})
	case compare.Identical:
		if !task.Delete {
			outcome.Status = models.StatusIdentical
			break
		}
		if err := r.source.Remove(ctx, task.RelativePath); err != nil {
			log.Error(ctx, "Failed to delete duplicate", err, nil)
			failed := models.NewErrorOutcome(task, fmt.Errorf("delete failed: %w", err))
			failed.Reason = cmp.Reason
			return failed
		}
		outcome.Status = models.StatusDeleted
		log.Info(ctx, "Deleted duplicate", logging.Fields{"size": task.Size})
	default:
		return models.NewErrorOutcome(task, fmt.Errorf("unknown verdict %q", cmp.Verdict))
	}

	return outcome
}
