// Package task hosts the per-task control plane: the task entity and its
// lifecycle, the controller coordinating engine execution with human
// approval, and the registry of live tasks.
package task

import (
	"sync"
	"time"

	"github.com/viant/webpilot/internal/clock"
	"github.com/viant/webpilot/internal/idgen"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// Task is the unit of work tracked by the registry.
type Task struct {
	mu sync.RWMutex

	// ID uniquely identifies the task.
	ID string `json:"id"`
	// Instruction is the caller supplied natural-language task.
	Instruction string `json:"instruction"`

	status Status
	// failure holds the terminal failure message, when any.
	failure string

	CreatedAt time.Time `json:"createdAt"`
	updatedAt time.Time
}

// New creates a task in the created state.
func New(instruction string) *Task {
	now := clock.Now()
	return &Task{
		ID:          idgen.New(),
		Instruction: instruction,
		status:      StatusCreated,
		CreatedAt:   now,
		updatedAt:   now,
	}
}

// Status returns the current lifecycle status.
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Failure returns the terminal failure message, if the task failed.
func (t *Task) Failure() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.failure
}

// UpdatedAt returns the time of the last status transition.
func (t *Task) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// SetStatus transitions the task, refusing to leave a terminal state.  It
// reports whether the transition was applied.
func (t *Task) SetStatus(status Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return false
	}
	t.status = status
	t.updatedAt = clock.Now()
	return true
}

// Fail transitions the task to failed with the supplied message.
func (t *Task) Fail(message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return false
	}
	t.status = StatusFailed
	t.failure = message
	t.updatedAt = clock.Now()
	return true
}
