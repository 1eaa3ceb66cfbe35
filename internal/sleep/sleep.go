// Package sleep provides the time primitives of the runtime: reading the
// poll's virtual time and parking a task until a deadline.
package sleep

import (
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"

	"sairun/internal/sched"
)

// UntilOp is the effect operation for waiting until a deadline.
// Perform(UntilOp{Deadline: t}) resumes once the virtual time reaches t.
type UntilOp struct {
	kont.Phantom[struct{}]
	Deadline time.Time
}

// Poll reports whether the deadline has passed. Otherwise it registers the
// deadline with the runtime so PollTimeout reflects it.
func (o UntilOp) Poll(cx *sched.Context) bool {
	if !cx.Now().Before(o.Deadline) {
		return true
	}
	cx.SetDeadline(o.Deadline)
	return false
}

// DispatchEffect handles UntilOp. Returns iox.ErrWouldBlock before the deadline.
func (o UntilOp) DispatchEffect(cx *sched.Context) (kont.Resumed, error) {
	if !o.Poll(cx) {
		return nil, iox.ErrWouldBlock
	}
	return struct{}{}, nil
}

// NowOp is the effect operation for reading the virtual time. Never blocks.
type NowOp struct {
	kont.Phantom[time.Time]
}

// DispatchEffect handles NowOp.
func (NowOp) DispatchEffect(cx *sched.Context) (kont.Resumed, error) {
	return cx.Now(), nil
}

// Until suspends the computation until the virtual time is at or past deadline.
func Until(deadline time.Time) kont.Eff[struct{}] {
	return kont.Perform(UntilOp{Deadline: deadline})
}

// Now yields the virtual time of the current poll.
func Now() kont.Eff[time.Time] {
	return kont.Perform(NowOp{})
}

// For suspends the computation for d, measured from the virtual time of the
// poll in which it starts.
func For(d time.Duration) kont.Eff[struct{}] {
	return kont.Bind(Now(), func(now time.Time) kont.Eff[struct{}] {
		return Until(now.Add(d))
	})
}
