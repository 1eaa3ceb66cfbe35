package sched_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.hybscloud.com/kont"

	"sairun/internal/sched"
	"sairun/internal/sleep"
	"sairun/internal/udp"
)

func mustPanic(t *testing.T, want string, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("no panic; want one containing %q", want)
		}
		if msg, _ := r.(string); !strings.Contains(msg, want) {
			t.Fatalf("panic %v; want one containing %q", r, want)
		}
	}()
	f()
}

func TestNilContextPanics(t *testing.T) {
	var cx *sched.Context
	mustPanic(t, "outside of a runtime poll", func() { cx.Now() })
	mustPanic(t, "outside of a runtime poll", func() {
		udp.SendOp{Local: src1, Remote: dst1}.Poll(cx)
	})
}

func TestContextUnusableAfterPoll(t *testing.T) {
	rt := newRuntime(t)
	var kept *sched.Context
	rt.Spawn(sched.TaskFunc(func(cx *sched.Context) sched.Poll {
		kept = cx
		return sched.Ready
	}), epoch)

	mustPanic(t, "after its poll returned", func() { kept.SetDeadline(epoch) })
	mustPanic(t, "after its poll returned", func() { kept.BufferOutgoing(src1, dst1, nil) })
}

func TestNowIsFixedWithinPoll(t *testing.T) {
	rt := newRuntime(t)
	var seen []time.Time
	rt.Spawn(sched.Eff(kont.Bind(sleep.Now(), func(a time.Time) kont.Eff[struct{}] {
		return kont.Map(sleep.Now(), func(b time.Time) struct{} {
			seen = []time.Time{a, b}
			return struct{}{}
		})
	})), epoch)

	if len(seen) != 2 || !seen[0].Equal(epoch) || !seen[1].Equal(epoch) {
		t.Fatalf("Now observed %v; want epoch twice", seen)
	}
}

func TestReentrantCallPanicsAndRuntimeRecovers(t *testing.T) {
	rt := newRuntime(t)
	mustPanic(t, "re-entered", func() {
		rt.Spawn(sched.TaskFunc(func(cx *sched.Context) sched.Poll {
			cx.SetDeadline(epoch.Add(time.Second))
			rt.Tick(epoch)
			return sched.Pending
		}), epoch)
	})

	if !rt.IsFinished() {
		t.Fatal("panicking task was kept")
	}
	if _, ok := rt.PollTimeout(); ok {
		t.Fatal("panicking task left a deadline behind")
	}

	rt.Spawn(sched.Eff(udp.SendTo(src1, dst1, []byte("after"))), epoch)
	if d, ok := rt.PollDatagram(); !ok || string(d.Payload) != "after" {
		t.Fatalf("PollDatagram = %+v, %v; want the runtime usable after a panic", d, ok)
	}
}

type unknownOp struct{ kont.Phantom[struct{}] }

func TestUnhandledEffectPanics(t *testing.T) {
	rt := newRuntime(t)
	mustPanic(t, "unhandled effect", func() {
		rt.Spawn(sched.Eff(kont.Perform(unknownOp{})), epoch)
	})
}

func TestCSVEventLog(t *testing.T) {
	rt := newRuntime(t)
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := rt.EnableCSVLogging(path); err != nil {
		t.Fatalf("EnableCSVLogging: %v", err)
	}

	rt.Spawn(sched.Eff(kont.Then(udp.SendTo(src1, dst1, []byte("x")), sleep.Until(epoch.Add(time.Second)))), epoch)
	rt.PollDatagram()
	rt.HandleTimeout(epoch.Add(time.Second))
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	var events []string
	for _, row := range rows[1:] {
		events = append(events, row[1])
	}
	want := []string{"Spawn", "Pending", "Transmit", "Finish"}
	if strings.Join(events, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v; want %v", events, want)
	}
	if rows[2][4] != epoch.Add(time.Second).Format(time.RFC3339Nano) {
		t.Fatalf("pending row deadline = %q", rows[2][4])
	}
	if rows[3][6] != dst1.String() || rows[3][7] != "1" {
		t.Fatalf("transmit row = %v", rows[3])
	}
}
