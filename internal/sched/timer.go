package sched

import (
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// deadlines keeps at most one wake-up time per task and answers which one is
// the earliest. The tree is ordered by (deadline, id) so equal deadlines of
// different tasks coexist.
type deadlines struct {
	byID map[TaskID]time.Time
	rbt  *redblacktree.Tree
}

func newDeadlines() *deadlines {
	return &deadlines{
		byID: make(map[TaskID]time.Time),
		rbt:  redblacktree.NewWith(cmpDeadline),
	}
}

// set records or overwrites the deadline of id.
func (d *deadlines) set(id TaskID, at time.Time) {
	d.clear(id)
	d.byID[id] = at
	d.rbt.Put(deadlineKey{at: at, id: id}, id)
}

// clear removes the deadline of id, if any.
func (d *deadlines) clear(id TaskID) {
	at, ok := d.byID[id]
	if !ok {
		return
	}
	d.rbt.Remove(deadlineKey{at: at, id: id})
	delete(d.byID, id)
}

func (d *deadlines) get(id TaskID) (time.Time, bool) {
	at, ok := d.byID[id]
	return at, ok
}

// next returns the earliest deadline across all tasks.
func (d *deadlines) next() (time.Time, bool) {
	node := d.rbt.Left()
	if node == nil {
		return time.Time{}, false
	}
	return node.Key.(deadlineKey).at, true
}

func (d *deadlines) len() int { return len(d.byID) }

// deadlineKey is used as a key in the red-black tree.
type deadlineKey struct {
	at time.Time
	id TaskID
}

// cmpDeadline implements the Comparator for deadline ordering.
func cmpDeadline(a, b interface{}) int {
	ka, kb := a.(deadlineKey), b.(deadlineKey)
	switch {
	case ka.at.Before(kb.at):
		return -1
	case ka.at.After(kb.at):
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}
