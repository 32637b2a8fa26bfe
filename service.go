package webpilot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/viant/webpilot/model/agent"
	"github.com/viant/webpilot/model/plan"
	"github.com/viant/webpilot/runtime/task"
	"github.com/viant/webpilot/service/approval"
	"github.com/viant/webpilot/service/browser"
	"github.com/viant/webpilot/service/event"
	"github.com/viant/webpilot/service/llm"
	"github.com/viant/webpilot/tracing"
)

// Service is the facade over task creation, control and inspection.  Each
// task runs an autonomous browser engine whose every action is gated on
// human approval.
type Service struct {
	config  *Config
	factory agent.Factory
	browser *browser.Manager

	mux   sync.Mutex
	model llm.Client

	registry     *task.Registry
	eventHandler func(taskID string, anEvent *event.Event)
}

// New creates the service.  An engine factory is required; the model client
// is resolved from credential profiles on first task creation unless
// injected.
func New(options ...Option) (*Service, error) {
	result := &Service{}
	for _, option := range options {
		option(result)
	}
	if result.factory == nil {
		return nil, fmt.Errorf("engine factory was empty")
	}
	if result.config == nil {
		result.config = DefaultConfig()
	}
	result.config.init()
	if err := result.config.Validate(); err != nil {
		return nil, err
	}
	if result.browser == nil {
		result.browser = browser.New(result.config.Browser)
	}
	result.registry = task.NewRegistry()
	if result.config.Tracing.Enabled {
		if err := tracing.Init("webpilot", "0.1.0", result.config.Tracing.OutputFile); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// TaskInfo is the externally visible task state.
type TaskInfo struct {
	ID          string                  `json:"id"`
	Instruction string                  `json:"instruction"`
	Status      task.Status             `json:"status"`
	Failure     string                  `json:"failure,omitempty"`
	Pending     *approval.PendingAction `json:"pending,omitempty"`
	Events      []*event.Event          `json:"events,omitempty"`
	Steps       []agent.StepRecord      `json:"steps,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// CreateTask registers a new task in the created state.  Model credentials
// are validated here so misconfiguration fails fast and never reaches a
// running engine.
func (s *Service) CreateTask(ctx context.Context, instruction string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "webpilot.CreateTask", "internal")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if strings.TrimSpace(instruction) == "" {
		err = fmt.Errorf("task instruction was empty")
		return "", err
	}
	model, err := s.ensureModel(ctx)
	if err != nil {
		return "", err
	}
	aTask := task.New(instruction)
	controller := task.NewController(aTask, task.Options{
		Factory:     s.factory,
		Model:       model,
		Acquire:     s.acquireBrowser,
		Timeout:     time.Duration(s.config.Task.Timeout),
		MaxFailures: s.config.Task.MaxFailures,
		EventHandler: func(anEvent *event.Event) {
			if s.eventHandler != nil {
				s.eventHandler(aTask.ID, anEvent)
			}
		},
	})
	if err = s.registry.Add(ctx, controller); err != nil {
		return "", err
	}
	span.WithAttributes(map[string]string{"task.id": aTask.ID})
	return aTask.ID, nil
}

// Start launches the background run of a created task.
func (s *Service) Start(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "webpilot.Start", "internal")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}
	err = controller.Start(ctx)
	return err
}

// Run creates a task and immediately starts it, returning the task id.
func (s *Service) Run(ctx context.Context, instruction string) (string, error) {
	id, err := s.CreateTask(ctx, instruction)
	if err != nil {
		return "", err
	}
	if err = s.Start(ctx, id); err != nil {
		_ = s.registry.Remove(ctx, id)
		return "", err
	}
	return id, nil
}

// Approve releases the task's pending action for execution.
func (s *Service) Approve(ctx context.Context, id string) (task.Outcome, error) {
	return s.control(ctx, id, "webpilot.Approve", (*task.Controller).Approve)
}

// Reject declines the task's pending action, pausing the task.
func (s *Service) Reject(ctx context.Context, id string) (task.Outcome, error) {
	return s.control(ctx, id, "webpilot.Reject", (*task.Controller).Reject)
}

// Resume unpauses a task after a rejection.
func (s *Service) Resume(ctx context.Context, id string) (task.Outcome, error) {
	return s.control(ctx, id, "webpilot.Resume", (*task.Controller).Resume)
}

// Stop terminates a task run.
func (s *Service) Stop(ctx context.Context, id string) (task.Outcome, error) {
	return s.control(ctx, id, "webpilot.Stop", (*task.Controller).Stop)
}

func (s *Service) control(ctx context.Context, id, name string, op func(*task.Controller, context.Context) task.Outcome) (task.Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, name, "internal")
	var err error
	defer func() { tracing.EndSpan(span, err) }()
	span.WithAttributes(map[string]string{"task.id": id})

	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return task.Outcome{}, err
	}
	return op(controller, ctx), nil
}

// Status returns the full task view: lifecycle state, pending action, event
// history and step history.
func (s *Service) Status(ctx context.Context, id string) (*TaskInfo, error) {
	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	aTask := controller.Task()
	return &TaskInfo{
		ID:          aTask.ID,
		Instruction: aTask.Instruction,
		Status:      aTask.Status(),
		Failure:     aTask.Failure(),
		Pending:     controller.Pending(),
		Events:      controller.Events().Events(),
		Steps:       controller.History(),
		CreatedAt:   aTask.CreatedAt,
		UpdatedAt:   aTask.UpdatedAt(),
	}, nil
}

// StatusOnly returns just the lifecycle state.
func (s *Service) StatusOnly(ctx context.Context, id string) (task.Status, error) {
	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return controller.Task().Status(), nil
}

// PendingAction returns the action awaiting approval, or nil when none.
func (s *Service) PendingAction(ctx context.Context, id string) (*approval.PendingAction, error) {
	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return controller.Pending(), nil
}

// PlanLog returns the ordered plan snapshots together with the seen flag.
func (s *Service) PlanLog(ctx context.Context, id string) ([]*plan.Snapshot, bool, error) {
	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return nil, false, err
	}
	snapshots, seen := controller.Plans().Snapshots()
	return snapshots, seen, nil
}

// MarkPlanSeen records that the latest plan snapshot has been observed.
func (s *Service) MarkPlanSeen(ctx context.Context, id string) error {
	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}
	controller.Plans().MarkSeen()
	return nil
}

// Listen registers a push consumer for the task's events; the returned stop
// function unsubscribes.
func (s *Service) Listen(ctx context.Context, id string, handler func(*event.Event)) (func(), error) {
	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return controller.Events().Listen(ctx, handler), nil
}

// Wait blocks until the task's background run finishes.
func (s *Service) Wait(ctx context.Context, id string) error {
	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}
	return controller.Wait(ctx)
}

// DeleteTask stops the task if needed and evicts it from the registry.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	controller, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}
	controller.Stop(ctx)
	return s.registry.Remove(ctx, id)
}

// Tasks returns the state of every registered task.
func (s *Service) Tasks(ctx context.Context) ([]*TaskInfo, error) {
	controllers, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*TaskInfo, 0, len(controllers))
	for _, controller := range controllers {
		info, err := s.Status(ctx, controller.ID())
		if err != nil {
			continue
		}
		result = append(result, info)
	}
	return result, nil
}

// ensureModel resolves the model client from credential profiles on first
// use; the mutex keeps concurrent task creations from racing on the field.
func (s *Service) ensureModel(ctx context.Context) (llm.Client, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.model != nil {
		return s.model, nil
	}
	client, err := llm.New(ctx, s.config.Model.WithEnvDefaults())
	if err != nil {
		return nil, err
	}
	s.model = client
	return client, nil
}

func (s *Service) acquireBrowser(ctx context.Context) (string, func(), error) {
	handle, err := s.browser.Acquire(ctx)
	if err != nil {
		return "", nil, err
	}
	return handle.DebugURL, handle.Release, nil
}
