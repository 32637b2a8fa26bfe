package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/webpilot/model/agent"
	"github.com/viant/webpilot/model/plan"
	"github.com/viant/webpilot/service/approval"
	"github.com/viant/webpilot/service/event"
	"github.com/viant/webpilot/service/interceptor"
)

// DefaultTimeout bounds a task run when no explicit timeout is configured.
const DefaultTimeout = 10 * time.Minute

// Outcome reports the result of a user-facing control operation.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func success(format string, args ...interface{}) Outcome {
	return Outcome{Success: true, Message: fmt.Sprintf(format, args...)}
}

func failure(format string, args ...interface{}) Outcome {
	return Outcome{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Options configures a controller.
type Options struct {
	// Factory constructs the execution engine for the run.
	Factory agent.Factory
	// Model is the opaque model client handed to the engine.
	Model interface{}
	// BrowserURL is the shared browser's debugging endpoint.
	BrowserURL string
	// Release returns the browser lease once the run finishes.
	Release func()
	// Acquire, when set, leases the shared browser at start time and
	// supersedes BrowserURL/Release.
	Acquire func(ctx context.Context) (browserURL string, release func(), err error)
	// Timeout bounds the whole run; DefaultTimeout when zero.
	Timeout time.Duration
	// MaxFailures bounds engine-internal retries.
	MaxFailures int
	// EventHandler, when set, receives every published event synchronously.
	EventHandler func(*event.Event)
}

// Controller coordinates one task's engine run with the approval gate,
// event log and plan log.  All user-facing control operations (approve,
// reject, resume, stop) go through the controller so status transitions stay
// consistent with engine state.
type Controller struct {
	task    *Task
	options Options

	gate   *approval.Gate
	events *event.Log
	plans  *plan.Log

	mu     sync.Mutex
	engine agent.Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a controller for the supplied task.
func NewController(aTask *Task, options Options) *Controller {
	var eventOptions []event.Option
	if options.EventHandler != nil {
		eventOptions = append(eventOptions, event.WithHandler(options.EventHandler))
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	return &Controller{
		task:    aTask,
		options: options,
		gate:    approval.NewGate(),
		events:  event.NewLog(eventOptions...),
		plans:   plan.NewLog(),
	}
}

// ID returns the controlled task id.
func (c *Controller) ID() string {
	return c.task.ID
}

// Task returns the controlled task.
func (c *Controller) Task() *Task {
	return c.task
}

// Events returns the task event log.
func (c *Controller) Events() *event.Log {
	return c.events
}

// Plans returns the task plan log.
func (c *Controller) Plans() *plan.Log {
	return c.plans
}

// Pending returns the action currently awaiting approval, or nil.
func (c *Controller) Pending() *approval.PendingAction {
	return c.gate.Pending()
}

// History returns the engine step history recorded so far.
func (c *Controller) History() []agent.StepRecord {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return nil
	}
	return engine.History()
}

// Start launches the engine run in the background.  The run is bounded by
// the configured timeout; exceeding it fails the task with a timeout event,
// distinct from engine failure.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		return fmt.Errorf("task %v already started", c.task.ID)
	}
	if c.task.Status().IsTerminal() {
		return fmt.Errorf("task %v is %v", c.task.ID, c.task.Status())
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.options.Timeout)

	if c.options.Acquire != nil {
		browserURL, release, err := c.options.Acquire(runCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to acquire browser for task %v: %w", c.task.ID, err)
		}
		c.options.BrowserURL = browserURL
		c.options.Release = release
	}

	gated := interceptor.New(c.gate, c.events)
	engine, err := c.options.Factory(runCtx, agent.Options{
		Task:        decorate(c.task.Instruction),
		Model:       c.options.Model,
		BrowserURL:  c.options.BrowserURL,
		RunBatch:    gated.RunBatch,
		StepHook:    c.onStep,
		PlanHook:    c.onPlan,
		MaxFailures: c.options.MaxFailures,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create engine for task %v: %w", c.task.ID, err)
	}
	c.engine = engine
	c.cancel = cancel
	c.done = make(chan struct{})
	c.task.SetStatus(StatusRunning)
	c.events.Publish(runCtx, event.New(event.TypeInfo, "task started"))

	go c.run(runCtx, cancel, engine)
	return nil
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, engine agent.Engine) {
	defer close(c.done)
	defer cancel()
	if c.options.Release != nil {
		defer c.options.Release()
	}
	err := engine.Run(ctx)
	switch {
	case err == nil:
		if c.task.SetStatus(StatusCompleted) {
			c.events.Publish(ctx, event.New(event.TypeInfo, "task completed"))
		}
	case errors.Is(err, context.DeadlineExceeded):
		message := fmt.Sprintf("task timed out after %s", c.options.Timeout)
		if c.task.Fail(message) {
			c.events.Publish(context.WithoutCancel(ctx), event.New(event.TypeTimeout, message))
		}
	case errors.Is(err, context.Canceled):
		// Stop already transitioned the task; nothing further to record.
	default:
		if c.task.Fail(err.Error()) {
			c.events.Publish(context.WithoutCancel(ctx),
				event.New(event.TypeError, fmt.Sprintf("task failed: %v", err)))
		}
	}
}

// Wait blocks until the background run finishes or ctx is cancelled.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return fmt.Errorf("task %v not started", c.task.ID)
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// decorate wraps the raw instruction with execution guidance so the engine
// proposes small, individually reviewable actions.
func decorate(instruction string) string {
	return fmt.Sprintf("Complete the following task step by step, proposing small verifiable actions:\n\n%s\n\nStop once the task goal is met.", instruction)
}

func (c *Controller) onStep(ctx context.Context, record agent.StepRecord) {
	c.events.Publish(ctx, event.New(event.TypeStepStarted,
		fmt.Sprintf("step %d started", record.StepNumber)).
		WithData(map[string]interface{}{
			"stepNumber": record.StepNumber,
			"url":        record.URL,
			"thought":    record.Thought,
			"nextGoal":   record.NextGoal,
		}))
}

func (c *Controller) onPlan(ctx context.Context, raw interface{}) {
	snapshot := plan.Normalize(raw)
	c.plans.Append(snapshot)
	c.events.Publish(ctx, event.New(event.TypePlannerUpdated, "planner produced a new snapshot").
		WithData(map[string]interface{}{
			"nextSteps": snapshot.NextSteps,
		}))
}

// Approve releases the pending action for execution.
func (c *Controller) Approve(ctx context.Context) Outcome {
	if status := c.task.Status(); status.IsTerminal() {
		return failure("task is %v", status)
	}
	if !c.gate.Resolve(approval.DecisionApproved) {
		return failure("no action awaiting approval")
	}
	c.events.Publish(ctx, event.New(event.TypeUserAction, "action approved"))
	return success("action approved")
}

// Reject declines the pending action; the task pauses until resumed.  The
// engine pause signal and the paused status are applied before the gate is
// resolved so a resume issued immediately after a successful rejection can
// never be lost.
func (c *Controller) Reject(ctx context.Context) Outcome {
	if status := c.task.Status(); status.IsTerminal() {
		return failure("task is %v", status)
	}
	if !c.gate.Waiting() {
		return failure("no action awaiting approval")
	}
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine != nil {
		engine.Pause()
	}
	c.task.SetStatus(StatusPaused)
	if !c.gate.Resolve(approval.DecisionRejected) {
		// Lost the race against a concurrent approve or a run cancellation;
		// undo the provisional pause.
		if engine != nil {
			engine.Resume()
		}
		if c.task.Status() == StatusPaused {
			c.task.SetStatus(StatusRunning)
		}
		return failure("no action awaiting approval")
	}
	c.events.Publish(ctx, event.New(event.TypeUserAction, "action rejected, task paused"))
	return success("action rejected, task paused")
}

// Resume reverts a rejection-induced pause and lets the engine replan.
func (c *Controller) Resume(ctx context.Context) Outcome {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	if engine == nil {
		return failure("task has no active engine")
	}
	if status := c.task.Status(); status != StatusPaused {
		return failure("task is %v, not paused", status)
	}
	c.task.SetStatus(StatusRunning)
	engine.Resume()
	c.events.Publish(ctx, event.New(event.TypeUserAction, "task resumed"))
	return success("task resumed")
}

// Stop terminates the run.  Cancelling the run context unblocks any approval
// wait; stopping an already terminal task is a no-op reporting success.
func (c *Controller) Stop(ctx context.Context) Outcome {
	if status := c.task.Status(); status.IsTerminal() {
		return success("task already %v", status)
	}
	c.task.SetStatus(StatusStopped)
	c.mu.Lock()
	engine := c.engine
	cancel := c.cancel
	c.mu.Unlock()
	if engine != nil {
		engine.Pause()
	}
	if cancel != nil {
		cancel()
	}
	c.events.Publish(context.WithoutCancel(ctx), event.New(event.TypeUserAction, "task stopped"))
	return success("task stopped")
}
