package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProblemLimit is the number of problem outcomes shown in summaries
const DefaultProblemLimit = 20

// RunStatus represents the overall result of a dedup run
type RunStatus string

const (
	// RunSuccess indicates no task failed
	RunSuccess RunStatus = "success"
	// RunPartial indicates some tasks failed
	RunPartial RunStatus = "partial"
	// RunFailed indicates every task failed
	RunFailed RunStatus = "failed"
)

// Summary aggregates the outcomes of one dedup run
type Summary struct {
	// Run details
	RunID         string
	SourceRoot    string
	ReferenceRoot string
	DryRun        bool
	Method        string
	Workers       int

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Counts per outcome kind; they always sum to Total
	Counts map[Status]int
	Total  int

	// Problems holds every differs / not_in_reference / error outcome in arrival order
	Problems []Outcome

	// ProblemLimit bounds how many problems are displayed
	ProblemLimit int

	// Cleanup and space accounting (delete mode only)
	DirsRemoved    int
	BytesReclaimed int64

	Status RunStatus
}

// NewSummary creates an empty summary with a fresh run ID
func NewSummary(sourceRoot, referenceRoot string, dryRun bool) *Summary {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	return &Summary{
		RunID:         uuid.New().String(),
		SourceRoot:    sourceRoot,
		ReferenceRoot: referenceRoot,
		DryRun:        dryRun,
		StartTime:     time.Now(),
		Counts:        counts,
		ProblemLimit:  DefaultProblemLimit,
		Status:        RunSuccess,
	}
}

// Record adds one outcome to the summary. Not safe for concurrent use.
func (s *Summary) Record(o Outcome) {
	s.Counts[o.Status]++
	s.Total++
	if o.Status.IsProblem() {
		s.Problems = append(s.Problems, o)
	}
	if o.Status == StatusDeleted {
		s.BytesReclaimed += o.Size
	}
}

// Count returns the number of outcomes of the given kind
func (s *Summary) Count(status Status) int {
	return s.Counts[status]
}

// OK returns the number of files found identical, deleted or not
func (s *Summary) OK() int {
	return s.Counts[StatusDeleted] + s.Counts[StatusIdentical]
}

// DisplayedProblems returns the problems within the display limit
func (s *Summary) DisplayedProblems() []Outcome {
	if s.ProblemLimit <= 0 || len(s.Problems) <= s.ProblemLimit {
		return s.Problems
	}
	return s.Problems[:s.ProblemLimit]
}

// TruncatedProblems returns how many problems are hidden by the display limit
func (s *Summary) TruncatedProblems() int {
	return len(s.Problems) - len(s.DisplayedProblems())
}

// Finish stamps the end time and derives the run status
func (s *Summary) Finish() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	errored := s.Counts[StatusError]
	switch {
	case errored == 0:
		s.Status = RunSuccess
	case errored == s.Total:
		s.Status = RunFailed
	default:
		s.Status = RunPartial
	}
}
