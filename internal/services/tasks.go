package services

import (
	"context"
	"fmt"
)

type TaskKind string

const (
	TaskProcess   TaskKind = "process"
	TaskReanalyze TaskKind = "reanalyze"
	TaskTailor    TaskKind = "tailor"
)

func (k TaskKind) Valid() bool {
	switch k {
	case TaskProcess, TaskReanalyze, TaskTailor:
		return true
	}
	return false
}

// Task is one pipeline run for one document.
type Task struct {
	Kind       TaskKind `json:"kind"`
	DocumentID string   `json:"document_id"`
	UserID     string   `json:"user_id"`
	JobID      string   `json:"job_id,omitempty"`
}

func (t Task) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
	if t.DocumentID == "" || t.UserID == "" {
		return fmt.Errorf("task requires document_id and user_id")
	}
	if t.Kind == TaskTailor && t.JobID == "" {
		return fmt.Errorf("tailor task requires job_id")
	}
	return nil
}

// TaskQueue hands tasks to the background worker pool.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}
