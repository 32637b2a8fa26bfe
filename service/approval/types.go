package approval

import (
	"time"
)

// Decision is the tri-state outcome of an approval request.
type Decision int

const (
	DecisionUnset Decision = iota
	DecisionApproved
	DecisionRejected
)

// String returns a human readable decision name.
func (d Decision) String() string {
	switch d {
	case DecisionApproved:
		return "approved"
	case DecisionRejected:
		return "rejected"
	}
	return "unset"
}

// PendingAction describes the single action awaiting approval for a task.
// It exists only while a request is armed on the gate; at most one instance
// per task at any time.
type PendingAction struct {
	// Name is a human readable action label.
	Name string `json:"name"`
	// Action carries the opaque action payload normalised to a map.
	Action map[string]interface{} `json:"action,omitempty"`
	// Index/Total locate the action within its proposed batch.
	Index int `json:"index"`
	Total int `json:"total"`
	// URL is the page the action originates from.
	URL string `json:"url,omitempty"`
	// StepNumber is the planning step that proposed the batch.
	StepNumber int `json:"stepNumber"`
	// NextGoal is the engine's stated upcoming goal, when known.
	NextGoal string `json:"nextGoal,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
