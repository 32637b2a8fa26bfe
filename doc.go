// Package webpilot wraps an autonomous browser agent with a human-in-the-loop
// approval workflow.
//
// Every action the engine proposes is held at an approval gate until an
// operator approves or rejects it; rejection pauses the task until it is
// resumed, and the engine's periodic plan snapshots and step progress are
// observable throughout.  The package comes with pluggable service layers:
//
//   - approval    – single-slot gate suspending execution on a decision
//   - interceptor – per-action gating of the engine's proposed batches
//   - event       – per-task append-only event log with push consumption
//   - browser     – ref-counted shared Chrome instance over DevTools
//   - llm         – model-client selection from credential profiles
//   - task        – task lifecycle, controller and registry
//
// Webpilot is designed to be embedded in host applications.  End-users
// typically interact via the high-level Service façade exposed by the root
// package:
//
//	srv, _ := webpilot.New(webpilot.WithEngineFactory(factory))
//	id, _ := srv.Run(ctx, "find the cheapest flight to Lisbon")
//	pending, _ := srv.PendingAction(ctx, id)
//	srv.Approve(ctx, id)
//
// For more details see the individual sub-packages.
package webpilot
