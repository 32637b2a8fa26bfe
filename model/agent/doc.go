// Package agent defines the contracts between the webpilot runtime and the
// underlying planning/execution engine.  The engine itself is an external
// collaborator – webpilot only needs the ability to construct it with
// first-class hooks, drive it to completion, pause/resume its loop and read
// its step history.
package agent
