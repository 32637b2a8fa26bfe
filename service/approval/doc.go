// Package approval implements the human-in-the-loop approval gate.  Each
// task owns exactly one Gate; the execution loop arms it with the action
// awaiting review and blocks until an external actor records a decision or
// the task run is cancelled.
package approval
