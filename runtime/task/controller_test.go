package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/webpilot/model/agent"
	"github.com/viant/webpilot/service/approval"
	"github.com/viant/webpilot/service/event"
)

// fakeEngine drives scripted batches through the injected RunBatch, parking
// on rejection until resumed; a rejected batch is abandoned in favour of the
// next one, mimicking a replan.
type fakeEngine struct {
	options agent.Options
	batches []agent.Batch

	mu       sync.Mutex
	resumeCh chan struct{}
	executed []string
}

func (e *fakeEngine) Run(ctx context.Context) error {
	for _, batch := range e.batches {
		if e.options.StepHook != nil {
			e.options.StepHook(ctx, agent.StepRecord{StepNumber: batch.StepNumber, URL: batch.URL, NextGoal: batch.NextGoal})
		}
		err := e.options.RunBatch(ctx, batch, e.execute)
		if err == nil {
			continue
		}
		if err == agent.ErrRejected {
			if waitErr := e.awaitResume(ctx); waitErr != nil {
				return waitErr
			}
			continue
		}
		return err
	}
	return nil
}

func (e *fakeEngine) execute(_ context.Context, action agent.Action) (agent.Result, error) {
	e.mu.Lock()
	e.executed = append(e.executed, action.Name)
	e.mu.Unlock()
	return agent.Result{}, nil
}

func (e *fakeEngine) Executed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.executed))
	copy(out, e.executed)
	return out
}

func (e *fakeEngine) Pause() {
	e.mu.Lock()
	if e.resumeCh == nil {
		e.resumeCh = make(chan struct{})
	}
	e.mu.Unlock()
}

func (e *fakeEngine) Resume() {
	e.mu.Lock()
	if e.resumeCh != nil {
		close(e.resumeCh)
		e.resumeCh = nil
	}
	e.mu.Unlock()
}

func (e *fakeEngine) awaitResume(ctx context.Context) error {
	e.mu.Lock()
	resumeCh := e.resumeCh
	e.mu.Unlock()
	if resumeCh == nil {
		return nil
	}
	select {
	case <-resumeCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *fakeEngine) History() []agent.StepRecord { return nil }

// blockingEngine parks until the run context ends.
type blockingEngine struct{}

func (e *blockingEngine) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (e *blockingEngine) Pause()                      {}
func (e *blockingEngine) Resume()                     {}
func (e *blockingEngine) History() []agent.StepRecord { return nil }

func newTestController(t *testing.T, batches []agent.Batch, timeout time.Duration) (*Controller, *fakeEngine) {
	t.Helper()
	engine := &fakeEngine{batches: batches}
	controller := NewController(New("book a flight"), Options{
		Factory: func(_ context.Context, options agent.Options) (agent.Engine, error) {
			engine.options = options
			return engine, nil
		},
		Timeout: timeout,
	})
	return controller, engine
}

func awaitPending(t *testing.T, controller *Controller) *approval.PendingAction {
	t.Helper()
	for i := 0; i < 200; i++ {
		if pending := controller.Pending(); pending != nil {
			return pending
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "no action became pending")
	return nil
}

func eventTypes(controller *Controller) []string {
	var out []string
	for _, anEvent := range controller.Events().Events() {
		out = append(out, anEvent.Type)
	}
	return out
}

func TestControllerApproveAll(t *testing.T) {
	controller, engine := newTestController(t, []agent.Batch{
		{StepNumber: 1, URL: "https://example.com", NextGoal: "search flights", Actions: []agent.Action{
			{Name: "navigate"},
			{Name: "type"},
			{Name: "click"},
		}},
	}, time.Minute)
	ctx := context.Background()
	require.NoError(t, controller.Start(ctx))
	assert.Equal(t, StatusRunning, controller.Task().Status())

	for i := 0; i < 3; i++ {
		pending := awaitPending(t, controller)
		assert.Equal(t, i, pending.Index)
		assert.Equal(t, 3, pending.Total)
		outcome := controller.Approve(ctx)
		assert.True(t, outcome.Success, outcome.Message)
	}
	require.NoError(t, controller.Wait(ctx))
	assert.Equal(t, StatusCompleted, controller.Task().Status())
	assert.Equal(t, []string{"navigate", "type", "click"}, engine.Executed())
	assert.Contains(t, eventTypes(controller), event.TypeStepStarted)
}

func TestControllerRejectPausesAndResume(t *testing.T) {
	controller, engine := newTestController(t, []agent.Batch{
		{StepNumber: 1, Actions: []agent.Action{
			{Name: "navigate"},
			{Name: "buy"},
			{Name: "confirm"},
		}},
		{StepNumber: 2, Actions: []agent.Action{
			{Name: "compare"},
		}},
	}, time.Minute)
	ctx := context.Background()
	require.NoError(t, controller.Start(ctx))

	awaitPending(t, controller)
	require.True(t, controller.Approve(ctx).Success)

	pending := awaitPending(t, controller)
	assert.Equal(t, "buy", pending.Name)
	outcome := controller.Reject(ctx)
	require.True(t, outcome.Success, outcome.Message)

	// A successful rejection reports paused immediately, not eventually.
	assert.Equal(t, StatusPaused, controller.Task().Status())

	// The remainder of the rejected batch never executed.
	assert.Equal(t, []string{"navigate"}, engine.Executed())
	assert.Nil(t, controller.Pending())

	// Resume is valid exactly once.
	assert.True(t, controller.Resume(ctx).Success)
	assert.False(t, controller.Resume(ctx).Success)

	awaitPending(t, controller)
	require.True(t, controller.Approve(ctx).Success)
	require.NoError(t, controller.Wait(ctx))
	assert.Equal(t, StatusCompleted, controller.Task().Status())
	assert.Equal(t, []string{"navigate", "compare"}, engine.Executed())
}

func TestControllerRejectThenImmediateResume(t *testing.T) {
	controller, engine := newTestController(t, []agent.Batch{
		{StepNumber: 1, Actions: []agent.Action{{Name: "buy"}}},
		{StepNumber: 2, Actions: []agent.Action{{Name: "compare"}}},
	}, time.Minute)
	ctx := context.Background()
	require.NoError(t, controller.Start(ctx))
	awaitPending(t, controller)

	// Resume issued back to back with a successful rejection must find the
	// task paused and take effect exactly once.
	require.True(t, controller.Reject(ctx).Success)
	outcome := controller.Resume(ctx)
	require.True(t, outcome.Success, outcome.Message)
	assert.Equal(t, StatusRunning, controller.Task().Status())

	awaitPending(t, controller)
	require.True(t, controller.Approve(ctx).Success)
	require.NoError(t, controller.Wait(ctx))
	assert.Equal(t, StatusCompleted, controller.Task().Status())
	assert.Equal(t, []string{"compare"}, engine.Executed())
}

func TestControllerDecisionWithoutPending(t *testing.T) {
	controller, _ := newTestController(t, nil, time.Minute)
	ctx := context.Background()

	outcome := controller.Approve(ctx)
	assert.False(t, outcome.Success)
	assert.Equal(t, "no action awaiting approval", outcome.Message)
	outcome = controller.Reject(ctx)
	assert.False(t, outcome.Success)
}

func TestControllerStopUnblocksGateAndIsIdempotent(t *testing.T) {
	controller, _ := newTestController(t, []agent.Batch{
		{StepNumber: 1, Actions: []agent.Action{{Name: "navigate"}}},
	}, time.Minute)
	ctx := context.Background()
	require.NoError(t, controller.Start(ctx))
	awaitPending(t, controller)

	outcome := controller.Stop(ctx)
	assert.True(t, outcome.Success)
	assert.Equal(t, StatusStopped, controller.Task().Status())
	require.NoError(t, controller.Wait(ctx))

	// Stopping again reports success without changing anything.
	outcome = controller.Stop(ctx)
	assert.True(t, outcome.Success)
	assert.Equal(t, "task already stopped", outcome.Message)
	assert.Equal(t, StatusStopped, controller.Task().Status())

	// Control operations on a terminal task fail cleanly.
	assert.False(t, controller.Approve(ctx).Success)
	assert.False(t, controller.Reject(ctx).Success)
	assert.False(t, controller.Resume(ctx).Success)
}

func TestControllerTimeout(t *testing.T) {
	controller := NewController(New("slow task"), Options{
		Factory: func(_ context.Context, options agent.Options) (agent.Engine, error) {
			return &blockingEngine{}, nil
		},
		Timeout: 30 * time.Millisecond,
	})
	ctx := context.Background()
	require.NoError(t, controller.Start(ctx))
	require.NoError(t, controller.Wait(ctx))

	assert.Equal(t, StatusFailed, controller.Task().Status())
	assert.Contains(t, controller.Task().Failure(), "timed out")
	assert.Contains(t, eventTypes(controller), event.TypeTimeout)
	assert.NotContains(t, eventTypes(controller), event.TypeError)
}

func TestControllerTasksAreIsolated(t *testing.T) {
	first, _ := newTestController(t, []agent.Batch{
		{StepNumber: 1, Actions: []agent.Action{{Name: "navigate"}}},
	}, time.Minute)
	second, _ := newTestController(t, []agent.Batch{
		{StepNumber: 1, Actions: []agent.Action{{Name: "click"}}},
	}, time.Minute)
	ctx := context.Background()
	require.NoError(t, first.Start(ctx))
	require.NoError(t, second.Start(ctx))

	awaitPending(t, first)
	awaitPending(t, second)

	// Approving the first task leaves the second waiting.
	require.True(t, first.Approve(ctx).Success)
	require.NoError(t, first.Wait(ctx))
	assert.Equal(t, StatusCompleted, first.Task().Status())
	assert.Equal(t, StatusRunning, second.Task().Status())
	assert.NotNil(t, second.Pending())

	require.True(t, second.Approve(ctx).Success)
	require.NoError(t, second.Wait(ctx))
	assert.Equal(t, StatusCompleted, second.Task().Status())
}

func TestControllerPlanHook(t *testing.T) {
	engine := &fakeEngine{}
	controller := NewController(New("research"), Options{
		Factory: func(_ context.Context, options agent.Options) (agent.Engine, error) {
			engine.options = options
			return engine, nil
		},
		Timeout: time.Minute,
	})
	ctx := context.Background()
	require.NoError(t, controller.Start(ctx))
	require.NoError(t, controller.Wait(ctx))

	engine.options.PlanHook(ctx, "Progress Evaluation: halfway\nNext Steps:\n1. open results\n2. compare prices")
	snapshots, seen := controller.Plans().Snapshots()
	require.Len(t, snapshots, 1)
	assert.False(t, seen)
	assert.Equal(t, []string{"open results", "compare prices"}, snapshots[0].NextSteps)
	assert.Contains(t, eventTypes(controller), event.TypePlannerUpdated)

	controller.Plans().MarkSeen()
	_, seen = controller.Plans().Snapshots()
	assert.True(t, seen)
}

func TestControllerBrowserLeaseReleasedOnce(t *testing.T) {
	var acquired, released int
	controller := NewController(New("quick task"), Options{
		Factory: func(_ context.Context, options agent.Options) (agent.Engine, error) {
			return &fakeEngine{options: options}, nil
		},
		Acquire: func(ctx context.Context) (string, func(), error) {
			acquired++
			return "http://127.0.0.1:9222", func() { released++ }, nil
		},
		Timeout: time.Minute,
	})
	ctx := context.Background()
	require.NoError(t, controller.Start(ctx))
	require.NoError(t, controller.Wait(ctx))

	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
	assert.Equal(t, StatusCompleted, controller.Task().Status())
}
