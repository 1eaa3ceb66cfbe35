package driver

import (
	"net/netip"
	"time"

	"github.com/emirpasic/gods/sets/hashset"

	"sairun/internal/sched"
)

// Sim drives a Runtime in virtual time with a loopback network: a datagram
// sent to a bound address is handed straight back to the runtime as input on
// that address. Everything else is collected as unrouted.
type Sim struct {
	rt       *sched.Runtime
	now      time.Time
	step     time.Duration
	bound    *hashset.Set
	unrouted []sched.Datagram
}

// NewSim creates a simulator starting at start that advances by step per Step.
func NewSim(rt *sched.Runtime, start time.Time, step time.Duration) *Sim {
	return &Sim{
		rt:    rt,
		now:   start,
		step:  step,
		bound: hashset.New(),
	}
}

// Bind makes addr reachable on the loopback network.
func (s *Sim) Bind(addr netip.AddrPort) {
	s.bound.Add(addr)
}

// Now returns the current virtual time.
func (s *Sim) Now() time.Time { return s.now }

// Spawn spawns task at the current virtual time and routes what it sent.
func (s *Sim) Spawn(task sched.Task) sched.TaskID {
	id := s.rt.Spawn(task, s.now)
	s.route()
	return id
}

// Step advances the virtual time by one step, fires the runtime's timeout
// handling and routes the resulting datagrams.
func (s *Sim) Step() {
	s.now = s.now.Add(s.step)
	s.rt.HandleTimeout(s.now)
	s.route()
}

// Run steps until every task finished or limit of virtual time elapsed.
// It returns the number of steps taken.
func (s *Sim) Run(limit time.Duration) int {
	end := s.now.Add(limit)
	steps := 0
	for !s.rt.IsFinished() && s.now.Before(end) {
		s.Step()
		steps++
	}
	return steps
}

// Unrouted returns the datagrams sent to addresses nobody bound, in send order.
func (s *Sim) Unrouted() []sched.Datagram {
	return s.unrouted
}

func (s *Sim) route() {
	for {
		d, ok := s.rt.PollDatagram()
		if !ok {
			return
		}
		if !s.bound.Contains(d.Remote) {
			s.unrouted = append(s.unrouted, d)
			continue
		}
		// the receiver sees the datagram on its own socket, from the sender
		s.rt.HandleInput(d.Remote, d.Local, d.Payload, s.now)
	}
}
