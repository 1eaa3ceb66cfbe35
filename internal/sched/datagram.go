package sched

import (
	"net/netip"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// Datagram is one opaque payload keyed by the local socket it belongs to and
// the remote peer on the other end.
type Datagram struct {
	Local   netip.AddrPort
	Remote  netip.AddrPort
	Payload []byte
}

// outbox holds datagrams produced by tasks, in production order.
type outbox struct {
	q *linkedlistqueue.Queue
}

func newOutbox() *outbox {
	return &outbox{q: linkedlistqueue.New()}
}

func (o *outbox) push(d Datagram) { o.q.Enqueue(d) }

func (o *outbox) pop() (Datagram, bool) {
	v, ok := o.q.Dequeue()
	if !ok {
		return Datagram{}, false
	}
	return v.(Datagram), true
}

func (o *outbox) len() int { return o.q.Size() }

// inbox holds datagrams handed in by the caller, in arrival order.
// Lookups scan front to back so the oldest match is consumed first.
type inbox struct {
	l *arraylist.List
}

func newInbox() *inbox {
	return &inbox{l: arraylist.New()}
}

func (in *inbox) push(d Datagram) { in.l.Add(d) }

// dropOldest removes the head entry, used when the inbox is bounded.
func (in *inbox) dropOldest() (Datagram, bool) {
	v, ok := in.l.Get(0)
	if !ok {
		return Datagram{}, false
	}
	in.l.Remove(0)
	return v.(Datagram), true
}

func (in *inbox) take(match func(d Datagram) bool) (Datagram, bool) {
	idx, v := in.l.Find(func(_ int, value interface{}) bool {
		return match(value.(Datagram))
	})
	if idx < 0 {
		return Datagram{}, false
	}
	in.l.Remove(idx)
	return v.(Datagram), true
}

func (in *inbox) len() int { return in.l.Size() }
