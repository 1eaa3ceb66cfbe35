package sched

// TaskID uniquely identifies a task for the lifetime of a Runtime.
// IDs are assigned in increasing order and never reused.
type TaskID uint64

// Poll is the outcome of polling a task once.
type Poll int

const (
	// Pending means the task parked on a primitive and must be polled again.
	Pending Poll = iota
	// Ready means the task ran to completion and will be dropped.
	Ready
)

func (p Poll) String() string {
	switch p {
	case Pending:
		return "Pending"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Task is a suspended computation owned by the runtime.
//
// Poll resumes the computation from its last suspension point and runs it until
// it either completes (Ready) or parks on a primitive that cannot make progress
// yet (Pending). The Context is valid only for the duration of the call.
type Task interface {
	Poll(cx *Context) Poll
}

// TaskFunc adapts a function to the Task interface. The function carries its own
// state between polls, typically as an explicit state enum captured by a closure.
type TaskFunc func(cx *Context) Poll

// Poll calls f(cx).
func (f TaskFunc) Poll(cx *Context) Poll { return f(cx) }
