package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/webpilot/service/dao"
	"github.com/viant/webpilot/service/dao/store"
)

// ErrTaskNotFound is returned when a task id is unknown to the registry.
var ErrTaskNotFound = errors.New("task not found")

// Registry tracks live task controllers by task id.  Concurrent tasks are
// fully isolated: each controller owns its own gate, event log and plan log.
type Registry struct {
	controllers dao.Service[string, Controller]
}

// NewRegistry creates an empty registry backed by an in-memory store.
func NewRegistry() *Registry {
	return &Registry{
		controllers: store.NewMemoryStore[string, Controller](func(c *Controller) string {
			return c.ID()
		}),
	}
}

// Add registers a controller.
func (r *Registry) Add(ctx context.Context, controller *Controller) error {
	if controller == nil {
		return fmt.Errorf("controller was nil")
	}
	return r.controllers.Save(ctx, controller)
}

// Lookup returns the controller for the supplied task id.
func (r *Registry) Lookup(ctx context.Context, id string) (*Controller, error) {
	controller, err := r.controllers.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if controller == nil {
		return nil, fmt.Errorf("%w: %v", ErrTaskNotFound, id)
	}
	return controller, nil
}

// Remove forgets the controller for the supplied task id.
func (r *Registry) Remove(ctx context.Context, id string) error {
	return r.controllers.Delete(ctx, id)
}

// List returns all registered controllers.
func (r *Registry) List(ctx context.Context) ([]*Controller, error) {
	return r.controllers.List(ctx)
}
