// internal/sched/schedulerEvent.go

package sched

import (
	"net/netip"
	"time"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusSpawn StatusKind = iota
	StatusPending
	StatusFinish
	StatusInput
	StatusTransmit
	StatusDrop
)

// StatusEvent is emitted on every poll outcome and every datagram crossing
// the runtime boundary. Time is the caller-supplied virtual time.
type StatusEvent struct {
	Time     time.Time
	Kind     StatusKind
	TaskID   TaskID
	Polls    int64     // polls of TaskID so far, task events only
	Deadline time.Time // zero when the task holds no deadline
	Local    netip.AddrPort
	Remote   netip.AddrPort
	Bytes    int
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusSpawn:
		return "Spawn"
	case StatusPending:
		return "Pending"
	case StatusFinish:
		return "Finish"
	case StatusInput:
		return "Input"
	case StatusTransmit:
		return "Transmit"
	case StatusDrop:
		return "Drop"
	default:
		return "Unknown"
	}
}

// isTaskEvent reports whether the event describes a task rather than a datagram.
func (sk StatusKind) isTaskEvent() bool {
	return sk == StatusSpawn || sk == StatusPending || sk == StatusFinish
}
