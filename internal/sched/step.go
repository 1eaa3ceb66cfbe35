package sched

import (
	"fmt"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Dispatcher is the structural interface for effect operations a kont
// computation may perform under this runtime.
//
// DispatchEffect is non-blocking: it returns iox.ErrWouldBlock when the
// operation cannot complete in this poll. The resume value must have the
// operation's result type.
type Dispatcher interface {
	DispatchEffect(cx *Context) (kont.Resumed, error)
}

// effTask drives a kont computation one effect at a time.
// A suspension whose operation would block is kept unconsumed and
// re-dispatched on the next poll.
type effTask struct {
	m       kont.Eff[struct{}]
	started bool
	susp    *kont.Suspension[struct{}]
}

// Eff wraps a kont computation as a Task. The computation does not start
// until the task is first polled.
func Eff(m kont.Eff[struct{}]) Task {
	return &effTask{m: m}
}

func (t *effTask) Poll(cx *Context) Poll {
	if !t.started {
		t.started = true
		_, t.susp = kont.Step(t.m)
		t.m = nil
	}
	for t.susp != nil {
		op, ok := t.susp.Op().(Dispatcher)
		if !ok {
			panic(fmt.Sprintf("sched: unhandled effect %T", t.susp.Op()))
		}
		v, err := op.DispatchEffect(cx)
		if err != nil {
			if iox.IsWouldBlock(err) {
				return Pending
			}
			panic(fmt.Sprintf("sched: effect %T failed: %v", op, err))
		}
		_, t.susp = t.susp.Resume(v)
	}
	return Ready
}
