package agent

import (
	"context"
)

// Action is one atomic browser operation proposed by the engine within a
// planning step.  The payload is opaque to webpilot – it is surfaced to
// approvers as structured data and handed back to the engine verbatim.
type Action struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// Result reports the outcome of executing a single action.
type Result struct {
	// Done is set when the engine considers the whole task finished.
	Done bool
	// Error carries a terminal, action-level failure message.
	Error string
}

// IsTerminal reports whether the batch should stop early.
func (r Result) IsTerminal() bool {
	return r.Done || r.Error != ""
}

// StepRecord captures the engine view of one planning step: current page,
// latest recorded reasoning and the upcoming goal.
type StepRecord struct {
	StepNumber int         `json:"stepNumber"`
	URL        string      `json:"url,omitempty"`
	Thought    interface{} `json:"thought,omitempty"`
	NextGoal   string      `json:"nextGoal,omitempty"`
}

// Batch describes one step's proposed actions together with page metadata.
type Batch struct {
	StepNumber int
	URL        string
	NextGoal   string
	Actions    []Action
}

// Executor executes a single proposed action via the underlying browser
// primitive.
type Executor func(ctx context.Context, action Action) (Result, error)

// BatchFunc is the pluggable per-batch action-execution entry point.  The
// engine calls it with each proposed batch and the primitive executor; the
// runtime injects an implementation that gates every action on approval.
type BatchFunc func(ctx context.Context, batch Batch, exec Executor) error

// StepHook is invoked once per planning step, before the step's actions are
// proposed.  Implementations must not block.
type StepHook func(ctx context.Context, record StepRecord)

// PlanHook receives the raw output of each periodic re-planning cycle.  The
// value is either already-structured data or free text to be parsed.
type PlanHook func(ctx context.Context, raw interface{})

// Engine drives planning and execution for a single task.  Run returns when
// the task completes, the context is cancelled or the engine fails.
type Engine interface {
	Run(ctx context.Context) error

	// Pause signals the engine to stop proposing new steps; in-flight waits
	// are not interrupted.
	Pause()

	// Resume reverts a previous Pause.
	Resume()

	// History yields the latest thought/action/url per executed step.
	History() []StepRecord
}

// Options configures a new engine instance.  Hooks are passed as first-class
// arguments rather than being attached to a constructed engine afterwards.
type Options struct {
	// Task is the decorated natural-language task description.
	Task string

	// Model is the opaque model client the engine plans with.
	Model interface{}

	// BrowserURL points at the shared browser's debugging endpoint.
	BrowserURL string

	// RunBatch replaces the engine's default batch execution entry point.
	RunBatch BatchFunc

	// StepHook, PlanHook observe the engine without affecting control flow.
	StepHook StepHook
	PlanHook PlanHook

	// MaxFailures bounds engine-internal retries.
	MaxFailures int
}

// Factory constructs an engine for one task run.
type Factory func(ctx context.Context, options Options) (Engine, error)
