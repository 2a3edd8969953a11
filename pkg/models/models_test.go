package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// ============== Task Tests ==============

func TestNewTask(t *testing.T) {
	task := NewTask(filepath.Join("dir", "file.txt"), 12, true)

	if task.RelativePath != filepath.Join("dir", "file.txt") {
		t.Errorf("RelativePath = %s", task.RelativePath)
	}
	if !task.Delete {
		t.Error("Delete should be true")
	}
	if task.Size != 12 {
		t.Errorf("Size = %d, want 12", task.Size)
	}
}

// ============== Status Tests ==============

func TestStatusIsProblem(t *testing.T) {
	tests := []struct {
		status  Status
		problem bool
		label   string
	}{
		{StatusDeleted, false, "DELETED"},
		{StatusIdentical, false, "IDENTICAL"},
		{StatusDiffers, true, "DIFFERS"},
		{StatusNotInReference, true, "NOT_IN_NEW"},
		{StatusError, true, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsProblem(); got != tt.problem {
				t.Errorf("IsProblem() = %v, want %v", got, tt.problem)
			}
			if got := tt.status.Label(); got != tt.label {
				t.Errorf("Label() = %s, want %s", got, tt.label)
			}
		})
	}
}

func TestNewErrorOutcome(t *testing.T) {
	task := NewTask("a.txt", 5, false)
	o := NewErrorOutcome(task, errors.New("permission denied"))

	if o.Status != StatusError {
		t.Errorf("Status = %s, want %s", o.Status, StatusError)
	}
	if o.Error != "permission denied" {
		t.Errorf("Error = %q, want %q", o.Error, "permission denied")
	}
	if o.RelativePath != "a.txt" {
		t.Errorf("RelativePath = %s, want a.txt", o.RelativePath)
	}
}

// ============== Summary Tests ==============

func TestSummaryRecord(t *testing.T) {
	s := NewSummary("/old", "/new", false)
	if s.RunID == "" {
		t.Error("RunID should be set")
	}

	s.Record(Outcome{Status: StatusDeleted, RelativePath: "a", Size: 10})
	s.Record(Outcome{Status: StatusIdentical, RelativePath: "b", Size: 5})
	s.Record(Outcome{Status: StatusDiffers, RelativePath: "c"})
	s.Record(Outcome{Status: StatusNotInReference, RelativePath: "d"})
	s.Record(Outcome{Status: StatusError, RelativePath: "e", Error: "boom"})

	if s.Total != 5 {
		t.Errorf("Total = %d, want 5", s.Total)
	}
	sum := 0
	for _, st := range Statuses {
		sum += s.Count(st)
	}
	if sum != s.Total {
		t.Errorf("counts sum to %d, want %d", sum, s.Total)
	}
	if s.OK() != 2 {
		t.Errorf("OK() = %d, want 2", s.OK())
	}
	if len(s.Problems) != 3 {
		t.Errorf("len(Problems) = %d, want 3", len(s.Problems))
	}
	if s.BytesReclaimed != 10 {
		t.Errorf("BytesReclaimed = %d, want 10", s.BytesReclaimed)
	}
}

func TestSummaryProblemLimit(t *testing.T) {
	s := NewSummary("/old", "/new", true)
	s.ProblemLimit = 20

	for i := 0; i < 25; i++ {
		s.Record(Outcome{Status: StatusDiffers, RelativePath: fmt.Sprintf("f%d", i)})
	}

	if got := len(s.DisplayedProblems()); got != 20 {
		t.Errorf("len(DisplayedProblems()) = %d, want 20", got)
	}
	if got := s.TruncatedProblems(); got != 5 {
		t.Errorf("TruncatedProblems() = %d, want 5", got)
	}

	s.ProblemLimit = 0
	if got := len(s.DisplayedProblems()); got != 25 {
		t.Errorf("unlimited DisplayedProblems() = %d, want 25", got)
	}
}

func TestSummaryFinishStatus(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []Status
		want     RunStatus
	}{
		{"Empty", nil, RunSuccess},
		{"NoErrors", []Status{StatusIdentical, StatusDiffers}, RunSuccess},
		{"SomeErrors", []Status{StatusIdentical, StatusError}, RunPartial},
		{"AllErrors", []Status{StatusError, StatusError}, RunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummary("/old", "/new", true)
			for _, st := range tt.outcomes {
				s.Record(Outcome{Status: st})
			}
			s.Finish()
			if s.Status != tt.want {
				t.Errorf("Status = %s, want %s", s.Status, tt.want)
			}
			if s.EndTime.Before(s.StartTime) {
				t.Error("EndTime should not be before StartTime")
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "dedup.workers", Message: "must be at least 1"}
	if err.Error() != "dedup.workers: must be at least 1" {
		t.Errorf("Error() = %q", err.Error())
	}
}
