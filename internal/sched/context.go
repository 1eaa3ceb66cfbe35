package sched

import (
	"net/netip"
	"time"
)

// Context is the only channel through which a task observes time or exchanges
// datagrams. The runtime builds one per poll by moving its deadline map,
// outgoing queue and inbox into it, and moves them back out when the poll
// returns. Using a Context after that, or a nil Context, panics.
type Context struct {
	id  TaskID
	now time.Time

	deadlines *deadlines
	outgoing  *outbox
	incoming  *inbox

	released bool
}

// TaskID returns the id of the task being polled.
func (cx *Context) TaskID() TaskID {
	cx.mustBeLive()
	return cx.id
}

// Now returns the virtual time of this poll. It does not change mid-poll.
func (cx *Context) Now() time.Time {
	cx.mustBeLive()
	return cx.now
}

// SetDeadline records when the task wants to be polled again, replacing any
// deadline it set earlier in the same poll.
func (cx *Context) SetDeadline(at time.Time) {
	cx.mustBeLive()
	cx.deadlines.set(cx.id, at)
}

// BufferOutgoing queues a datagram for the caller to collect with
// Runtime.PollDatagram.
func (cx *Context) BufferOutgoing(local, remote netip.AddrPort, payload []byte) {
	cx.mustBeLive()
	cx.outgoing.push(Datagram{Local: local, Remote: remote, Payload: payload})
}

// TakeIncomingMatching removes and returns the oldest inbox payload received
// on local from exactly remote.
func (cx *Context) TakeIncomingMatching(local, remote netip.AddrPort) ([]byte, bool) {
	cx.mustBeLive()
	d, ok := cx.incoming.take(func(d Datagram) bool {
		return d.Local == local && d.Remote == remote
	})
	if !ok {
		return nil, false
	}
	return d.Payload, true
}

// TakeIncomingMatchingLocal removes and returns the oldest inbox entry received
// on local from any remote, together with the sender's address.
func (cx *Context) TakeIncomingMatchingLocal(local netip.AddrPort) (netip.AddrPort, []byte, bool) {
	cx.mustBeLive()
	d, ok := cx.incoming.take(func(d Datagram) bool {
		return d.Local == local
	})
	if !ok {
		return netip.AddrPort{}, nil, false
	}
	return d.Remote, d.Payload, true
}

func (cx *Context) mustBeLive() {
	if cx == nil {
		panic("sched: primitive used outside of a runtime poll")
	}
	if cx.released {
		panic("sched: effect context used after its poll returned")
	}
}
