// Package interceptor sits between the engine's planning cycle and the
// action-execution primitive, routing every proposed action through the
// approval gate before it is allowed to run.
//
// Approval granularity is per-action: for a batch of N proposed actions each
// action is published and decided individually, and a rejection halts the
// remainder of the batch.  The coarser per-batch variant trades control for
// fewer interruptions and is intentionally not implemented.
package interceptor

import (
	"context"
	"fmt"

	"github.com/viant/toolbox"
	"github.com/viant/webpilot/model/agent"
	"github.com/viant/webpilot/service/approval"
	"github.com/viant/webpilot/service/event"
)

// Interceptor gates batch action execution on human approval.
type Interceptor struct {
	gate   *approval.Gate
	events *event.Log
}

// New creates an interceptor bound to a task's gate and event log.
func New(gate *approval.Gate, events *event.Log) *Interceptor {
	return &Interceptor{gate: gate, events: events}
}

// RunBatch implements agent.BatchFunc.  Each action is published as the
// task's single PendingAction, decided through the gate, then executed via
// the supplied primitive.  The batch halts early on rejection, on a terminal
// action result, or when the primitive fails; pending state is always
// cleared once the batch resolves.
func (i *Interceptor) RunBatch(ctx context.Context, batch agent.Batch, exec agent.Executor) error {
	total := len(batch.Actions)
	for index, action := range batch.Actions {
		pending := &approval.PendingAction{
			Name:       action.Name,
			Action:     normalizePayload(action),
			Index:      index,
			Total:      total,
			URL:        batch.URL,
			StepNumber: batch.StepNumber,
			NextGoal:   batch.NextGoal,
		}
		i.events.Publish(ctx, event.New(event.TypeApprovalRequested,
			fmt.Sprintf("action %d/%d %q awaits approval", index+1, total, action.Name)).
			WithData(map[string]interface{}{
				"action":     pending.Action,
				"index":      index,
				"total":      total,
				"url":        batch.URL,
				"stepNumber": batch.StepNumber,
				"nextGoal":   batch.NextGoal,
			}))

		decision, err := i.gate.Request(ctx, pending)
		if err != nil {
			return err
		}
		if decision == approval.DecisionRejected {
			// The controller pauses the engine and flips the task status
			// before resolving a rejection; halting the batch is all that is
			// left to do here.
			return agent.ErrRejected
		}

		result, err := exec(ctx, action)
		if err != nil {
			return fmt.Errorf("failed to execute action %q: %w", action.Name, err)
		}
		if result.IsTerminal() {
			if result.Error != "" {
				return fmt.Errorf("action %q reported error: %s", action.Name, result.Error)
			}
			return nil
		}
	}
	return nil
}

// normalizePayload converts the opaque action payload into a map so that it
// can be surfaced to approvers regardless of the engine's concrete types.
func normalizePayload(action agent.Action) map[string]interface{} {
	if action.Payload == nil {
		return nil
	}
	if asMap, ok := action.Payload.(map[string]interface{}); ok {
		return asMap
	}
	aMap := map[string]interface{}{}
	if err := toolbox.DefaultConverter.AssignConverted(&aMap, action.Payload); err != nil || len(aMap) == 0 {
		return map[string]interface{}{"content": fmt.Sprintf("%v", action.Payload)}
	}
	return toolbox.DeleteEmptyKeys(aMap)
}
