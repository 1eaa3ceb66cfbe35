package driver

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"sairun/internal/job"
	"sairun/internal/sched"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSimRunStopsAtLimit(t *testing.T) {
	rt := sched.New(sched.DefaultConfig(), nil)
	start := time.Unix(0, 0)
	sim := NewSim(rt, start, 250*time.Millisecond)
	sim.Spawn(sched.Eff(job.Sleep(time.Hour)))

	if steps := sim.Run(time.Second); steps != 4 {
		t.Fatalf("steps = %d; want 4", steps)
	}
	if !sim.Now().Equal(start.Add(time.Second)) {
		t.Fatalf("now = %v; want start+1s", sim.Now())
	}
	if rt.IsFinished() {
		t.Fatal("hour-long sleep finished")
	}
}

func TestSimRoutesOnlyToBoundAddresses(t *testing.T) {
	rt := sched.New(sched.DefaultConfig(), nil)
	echo := netip.MustParseAddrPort("10.0.0.1:7")
	other := netip.MustParseAddrPort("10.0.0.9:9")
	sim := NewSim(rt, time.Unix(0, 0), time.Millisecond)
	sim.Bind(echo)

	sim.Spawn(sched.Eff(job.Echo(echo, 1)))
	rt.HandleInput(echo, other, []byte("hello"), sim.Now())
	sim.Step()

	un := sim.Unrouted()
	if len(un) != 1 || un[0].Local != echo || un[0].Remote != other || string(un[0].Payload) != "hello" {
		t.Fatalf("unrouted = %+v; want the echo reply to the unbound sender", un)
	}
}

func TestTickClock(t *testing.T) {
	c := NewTickClock(1)
	c.Start(time.Millisecond)

	for i := 0; i < 3; i++ {
		select {
		case <-c.Ch:
		case <-time.After(time.Second):
			t.Fatal("no tick within a second")
		}
	}
	c.Stop()

	if c.Count() < 3 {
		t.Fatalf("count = %d; want at least 3", c.Count())
	}
	for range c.Ch {
	}
}

func TestUDPPingEcho(t *testing.T) {
	rt := sched.New(sched.DefaultConfig(), quietLogger())
	d := NewUDP(rt, 2*time.Millisecond, quietLogger())

	echo, err := d.Bind(netip.MustParseAddrPort("127.0.0.1:0"))
	if err != nil {
		t.Skipf("cannot bind loopback UDP: %v", err)
	}
	pinger, err := d.Bind(netip.MustParseAddrPort("127.0.0.1:0"))
	if err != nil {
		t.Skipf("cannot bind loopback UDP: %v", err)
	}

	var replies []job.Reply
	now := time.Now()
	rt.Spawn(sched.Eff(job.Echo(echo, 2)), now)
	rt.Spawn(sched.Eff(job.Ping(pinger, echo, 2, 10*time.Millisecond, func(r job.Reply) {
		replies = append(replies, r)
	})), now)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(replies) != 2 {
		t.Fatalf("got %d replies; want 2", len(replies))
	}
	for i, r := range replies {
		if r.Seq != i || string(r.Payload) != string(job.PingPayload(i)) {
			t.Fatalf("reply %d = %+v", i, r)
		}
	}
	if d.Dropped() != 0 {
		t.Fatalf("dropped = %d", d.Dropped())
	}
}
