// Package udp provides the datagram primitives of the runtime. None of them
// touch a socket: they move opaque payloads between a task and the runtime's
// outgoing queue and inbox.
package udp

import (
	"net/netip"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"

	"sairun/internal/sched"
)

// Message is a datagram received by Recv.
type Message struct {
	Remote  netip.AddrPort
	Payload []byte
}

// SendOp is the effect operation for sending a datagram from Local to Remote.
// Sending is synchronous from the task's point of view: it never suspends.
type SendOp struct {
	kont.Phantom[struct{}]
	Local   netip.AddrPort
	Remote  netip.AddrPort
	Payload []byte
}

// Poll buffers the datagram. It must be called once per send.
func (o SendOp) Poll(cx *sched.Context) {
	cx.BufferOutgoing(o.Local, o.Remote, o.Payload)
}

// DispatchEffect handles SendOp.
func (o SendOp) DispatchEffect(cx *sched.Context) (kont.Resumed, error) {
	o.Poll(cx)
	return struct{}{}, nil
}

// RecvOp is the effect operation for receiving the next datagram on Local
// from any remote.
type RecvOp struct {
	kont.Phantom[Message]
	Local netip.AddrPort
}

// Poll takes the oldest matching datagram from the inbox.
func (o RecvOp) Poll(cx *sched.Context) (Message, bool) {
	remote, payload, ok := cx.TakeIncomingMatchingLocal(o.Local)
	if !ok {
		return Message{}, false
	}
	return Message{Remote: remote, Payload: payload}, true
}

// DispatchEffect handles RecvOp.
// Returns iox.ErrWouldBlock if nothing for Local is buffered. No deadline is
// set, so only a later HandleInput can complete it.
func (o RecvOp) DispatchEffect(cx *sched.Context) (kont.Resumed, error) {
	m, ok := o.Poll(cx)
	if !ok {
		return nil, iox.ErrWouldBlock
	}
	return m, nil
}

// RecvFromOp is the effect operation for receiving the next datagram on Local
// sent by exactly Remote.
type RecvFromOp struct {
	kont.Phantom[[]byte]
	Local  netip.AddrPort
	Remote netip.AddrPort
}

// Poll takes the oldest datagram matching both addresses from the inbox.
func (o RecvFromOp) Poll(cx *sched.Context) ([]byte, bool) {
	return cx.TakeIncomingMatching(o.Local, o.Remote)
}

// DispatchEffect handles RecvFromOp.
// Returns iox.ErrWouldBlock if no datagram from Remote is buffered.
func (o RecvFromOp) DispatchEffect(cx *sched.Context) (kont.Resumed, error) {
	payload, ok := o.Poll(cx)
	if !ok {
		return nil, iox.ErrWouldBlock
	}
	return payload, nil
}

// SendTo sends payload from the local socket to remote.
func SendTo(local, remote netip.AddrPort, payload []byte) kont.Eff[struct{}] {
	return kont.Perform(SendOp{Local: local, Remote: remote, Payload: payload})
}

// Recv receives a datagram on the local socket. It yields the sender's
// address along with the payload.
func Recv(local netip.AddrPort) kont.Eff[Message] {
	return kont.Perform(RecvOp{Local: local})
}

// RecvFrom receives a datagram on the local socket from remote.
func RecvFrom(local, remote netip.AddrPort) kont.Eff[[]byte] {
	return kont.Perform(RecvFromOp{Local: local, Remote: remote})
}
