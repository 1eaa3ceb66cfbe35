// internal/sched/scheduler.go

package sched

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/emirpasic/gods/maps/treemap"

	"sairun/internal/logging"
)

// Runtime is a single-threaded, externally driven task scheduler.
//
// It never performs I/O or reads a clock. The embedding loop feeds it time
// (Tick, HandleTimeout) and datagrams (HandleInput), then collects what the
// tasks produced (PollDatagram) and when they next need time (PollTimeout).
// A Runtime must not be used from more than one goroutine.
type Runtime struct {
	tasks     *treemap.Map // suspended tasks by TaskID, iterated in id order
	deadlines *deadlines   // nil while checked out into a Context
	outgoing  *outbox      // nil while checked out into a Context
	incoming  *inbox       // nil while checked out into a Context
	nextID    TaskID
	polling   bool
	now       time.Time        // latest virtual time supplied by the caller
	polls     map[TaskID]int64 // polls per suspended task

	inboxLimit int

	// logging-related
	logger    *slog.Logger
	csvFile   *os.File
	csvWriter *csv.Writer
}

// New creates a Runtime. A nil logger discards all output.
func New(cfg Config, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runtime{
		tasks:      treemap.NewWith(cmpTaskID),
		deadlines:  newDeadlines(),
		outgoing:   newOutbox(),
		incoming:   newInbox(),
		polls:      make(map[TaskID]int64),
		inboxLimit: cfg.InboxLimit,
		logger:     logger,
	}
}

// EnableCSVLogging opens the given file path for CSV logging of events.
func (r *Runtime) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create event log: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	w.Write([]string{"time", "event", "task_id", "polls", "deadline", "local", "remote", "bytes"})
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write event log header: %w", err)
	}
	r.csvFile = f
	r.csvWriter = w
	return nil
}

// Close flushes and closes the CSV event log, if one is open.
func (r *Runtime) Close() error {
	if r.csvFile == nil {
		return nil
	}
	r.csvWriter.Flush()
	werr := r.csvWriter.Error()
	cerr := r.csvFile.Close()
	r.csvFile, r.csvWriter = nil, nil
	if werr != nil {
		return fmt.Errorf("flush event log: %w", werr)
	}
	return cerr
}

// Spawn registers task under the next TaskID and polls it once at now.
// The task may already finish during this first poll.
func (r *Runtime) Spawn(task Task, now time.Time) TaskID {
	r.mustIdle()
	r.now = now

	id := r.nextID
	r.nextID++
	r.handleEvent(StatusEvent{Time: now, Kind: StatusSpawn, TaskID: id})

	r.pollTask(id, task, now)
	return id
}

// Tick polls every suspended task once, in TaskID order, with now as the
// virtual time.
func (r *Runtime) Tick(now time.Time) {
	r.mustIdle()
	r.now = now

	for _, key := range r.tasks.Keys() {
		id := key.(TaskID)
		v, ok := r.tasks.Get(id)
		if !ok {
			continue
		}
		r.tasks.Remove(id)
		r.pollTask(id, v.(Task), now)
	}
}

// HandleTimeout is Tick, meant to be called when the caller's timer armed
// from PollTimeout fires.
func (r *Runtime) HandleTimeout(now time.Time) {
	r.Tick(now)
}

// HandleInput appends a datagram received on local from remote to the inbox,
// then ticks all tasks. The payload is stored without copying.
func (r *Runtime) HandleInput(local, remote netip.AddrPort, payload []byte, now time.Time) {
	r.mustIdle()
	r.now = now

	if r.inboxLimit > 0 && r.incoming.len() >= r.inboxLimit {
		if old, ok := r.incoming.dropOldest(); ok {
			r.handleEvent(StatusEvent{
				Time:   now,
				Kind:   StatusDrop,
				Local:  old.Local,
				Remote: old.Remote,
				Bytes:  len(old.Payload),
			})
		}
	}
	r.incoming.push(Datagram{Local: local, Remote: remote, Payload: payload})
	r.handleEvent(StatusEvent{Time: now, Kind: StatusInput, Local: local, Remote: remote, Bytes: len(payload)})

	r.Tick(now)
}

// PollTimeout returns the earliest deadline of any suspended task.
func (r *Runtime) PollTimeout() (time.Time, bool) {
	r.mustIdle()
	return r.deadlines.next()
}

// PollDatagram pops the oldest datagram produced by the tasks.
func (r *Runtime) PollDatagram() (Datagram, bool) {
	r.mustIdle()
	d, ok := r.outgoing.pop()
	if !ok {
		return Datagram{}, false
	}
	r.handleEvent(StatusEvent{Time: r.now, Kind: StatusTransmit, Local: d.Local, Remote: d.Remote, Bytes: len(d.Payload)})
	return d, true
}

// IsFinished reports whether no task is suspended.
func (r *Runtime) IsFinished() bool {
	return r.tasks.Empty()
}

// Len returns the number of suspended tasks.
func (r *Runtime) Len() int {
	return r.tasks.Size()
}

// pollTask polls a task that is not in the table and either drops it or
// stores it back together with the deadline it set.
func (r *Runtime) pollTask(id TaskID, task Task, now time.Time) {
	res := r.runPoll(id, task, now)
	r.polls[id]++
	polls := r.polls[id]

	if res == Ready {
		r.deadlines.clear(id)
		delete(r.polls, id)
		r.handleEvent(StatusEvent{Time: now, Kind: StatusFinish, TaskID: id, Polls: polls})
		return
	}

	r.tasks.Put(id, task)
	deadline, _ := r.deadlines.get(id)
	r.handleEvent(StatusEvent{Time: now, Kind: StatusPending, TaskID: id, Polls: polls, Deadline: deadline})
}

// runPoll checks the buffers out into a Context, polls the task and checks
// them back in. A panicking task is dropped without a trace and the panic
// continues to the caller.
func (r *Runtime) runPoll(id TaskID, task Task, now time.Time) Poll {
	// the previous deadline only lives until the task is polled again
	r.deadlines.clear(id)

	cx := r.checkOut(id, now)
	returned := false
	defer func() {
		r.checkIn(cx)
		if !returned {
			r.deadlines.clear(id)
			delete(r.polls, id)
		}
	}()

	res := task.Poll(cx)
	returned = true
	return res
}

func (r *Runtime) checkOut(id TaskID, now time.Time) *Context {
	r.polling = true
	cx := &Context{
		id:        id,
		now:       now,
		deadlines: r.deadlines,
		outgoing:  r.outgoing,
		incoming:  r.incoming,
	}
	r.deadlines, r.outgoing, r.incoming = nil, nil, nil
	return cx
}

func (r *Runtime) checkIn(cx *Context) {
	r.deadlines, r.outgoing, r.incoming = cx.deadlines, cx.outgoing, cx.incoming
	cx.deadlines, cx.outgoing, cx.incoming = nil, nil, nil
	cx.released = true
	r.polling = false
}

func (r *Runtime) mustIdle() {
	if r.polling {
		panic("sched: runtime re-entered from inside a poll")
	}
}

func (r *Runtime) handleEvent(ev StatusEvent) {
	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		attrs := []any{slog.String("event", ev.Kind.String()), slog.Time("now", ev.Time)}
		if ev.Kind.isTaskEvent() {
			attrs = append(attrs, slog.Uint64("task", uint64(ev.TaskID)), slog.Int64("polls", ev.Polls))
			if !ev.Deadline.IsZero() {
				attrs = append(attrs, slog.Time("deadline", ev.Deadline))
			}
		} else {
			attrs = append(attrs,
				slog.String("local", ev.Local.String()),
				slog.String("remote", ev.Remote.String()),
				slog.Int("bytes", ev.Bytes))
		}
		r.logger.Debug("sched", attrs...)
	}

	if ev.Kind == StatusDrop {
		r.logger.Warn("inbox full, dropped oldest datagram",
			slog.String("local", ev.Local.String()),
			slog.String("remote", ev.Remote.String()))
	}

	// CSV output
	if r.csvWriter != nil {
		rec := []string{
			ev.Time.Format(time.RFC3339Nano),
			ev.Kind.String(),
			"", "", "", "", "", "",
		}
		if ev.Kind.isTaskEvent() {
			rec[2] = strconv.FormatUint(uint64(ev.TaskID), 10)
			rec[3] = strconv.FormatInt(ev.Polls, 10)
			if !ev.Deadline.IsZero() {
				rec[4] = ev.Deadline.Format(time.RFC3339Nano)
			}
		} else {
			rec[5] = ev.Local.String()
			rec[6] = ev.Remote.String()
			rec[7] = strconv.Itoa(ev.Bytes)
		}
		r.csvWriter.Write(rec)
		r.csvWriter.Flush()
	}
}

// cmpTaskID implements the Comparator for the task table.
func cmpTaskID(a, b interface{}) int {
	ia, ib := a.(TaskID), b.(TaskID)
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}
