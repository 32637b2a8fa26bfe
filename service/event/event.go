package event

import "time"

// Standard event type tags.
const (
	TypeInfo              = "info"
	TypeError             = "error"
	TypeTimeout           = "timeout"
	TypeUserAction        = "user_action"
	TypeStepStarted       = "step_started"
	TypePlannerUpdated    = "planner_updated"
	TypeApprovalRequested = "approval_requested"
)

// Event is a tagged observability record emitted by any component.
type Event struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// New creates an event with the supplied tag and message.
func New(eventType, message string) *Event {
	return &Event{Type: eventType, Message: message}
}

// WithData attaches a structured payload to the event.
func (e *Event) WithData(data map[string]interface{}) *Event {
	e.Data = data
	return e
}
