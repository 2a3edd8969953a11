package models

import "time"

// Task is one file-pair equality check.
// A Task is built once per file found in the source tree and never modified.
type Task struct {
	// RelativePath is the path relative to both roots
	RelativePath string

	// Delete requests removal of the source file when it is identical
	Delete bool

	// Size is the source file size from the scan
	Size int64
}

// NewTask creates a comparison task for a relative path
func NewTask(relativePath string, size int64, del bool) Task {
	return Task{
		RelativePath: relativePath,
		Delete:       del,
		Size:         size,
	}
}

// Status is the kind of a comparison outcome
type Status string

const (
	// StatusDeleted indicates the file was identical and removed from the source
	StatusDeleted Status = "deleted"
	// StatusIdentical indicates the file was identical (dry run, nothing removed)
	StatusIdentical Status = "identical"
	// StatusDiffers indicates the contents differ
	StatusDiffers Status = "differs"
	// StatusNotInReference indicates the file has no counterpart in the reference tree
	StatusNotInReference Status = "not_in_reference"
	// StatusError indicates the comparison or deletion failed
	StatusError Status = "error"
)

// Statuses lists every outcome kind in reporting order
var Statuses = []Status{
	StatusDeleted,
	StatusIdentical,
	StatusDiffers,
	StatusNotInReference,
	StatusError,
}

// IsProblem reports whether the outcome leaves the source file in place
// for a reason worth showing to the user
func (s Status) IsProblem() bool {
	switch s {
	case StatusDiffers, StatusNotInReference, StatusError:
		return true
	}
	return false
}

// Label returns the short upper-case label used in summaries
func (s Status) Label() string {
	switch s {
	case StatusDeleted:
		return "DELETED"
	case StatusIdentical:
		return "IDENTICAL"
	case StatusDiffers:
		return "DIFFERS"
	case StatusNotInReference:
		return "NOT_IN_NEW"
	case StatusError:
		return "ERROR"
	default:
		return string(s)
	}
}

// Outcome is the result of processing one Task
type Outcome struct {
	Status       Status        `json:"status"`
	RelativePath string        `json:"path"`
	Error        string        `json:"error,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Size         int64         `json:"size"`
	Duration     time.Duration `json:"duration_ns"`
}

// NewErrorOutcome builds an error outcome from a failed task
func NewErrorOutcome(task Task, err error) Outcome {
	o := Outcome{
		Status:       StatusError,
		RelativePath: task.RelativePath,
		Size:         task.Size,
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}
