package supervisor

import "time"

// Event kinds emitted over the supervisor lifecycle
const (
	EventChildStarted = "child_started"
	EventChildReady   = "child_ready"
	EventChildExited  = "child_exited"
	EventBreakerOpen  = "breaker_open"
	EventShutdown     = "shutdown"
)

// Event describes one supervisor lifecycle transition
type Event struct {
	Kind      string    `json:"kind"`
	Pid       int       `json:"pid,omitempty"`
	ExitCode  *int      `json:"exitCode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives supervisor lifecycle events. The status server implements
// this to stream events to connected clients; keeping it an interface here
// avoids a circular dependency between supervisor and server.
type EventSink interface {
	SupervisorEvent(event Event)
}
