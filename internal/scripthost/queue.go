package scripthost

import (
	"github.com/Workiva/go-datastructures/queue"

	lua "github.com/yuin/gopher-lua"
)

// taskKind discriminates what the worker should do with a dequeued task.
type taskKind int

const (
	taskCall taskKind = iota
	taskReload
	taskClose
)

// task is one unit of work a script's worker goroutine processes: either a
// named signal to invoke as a fresh coroutine, a previously-suspended
// coroutine to resume, or a lifecycle instruction.
type task struct {
	kind   taskKind
	fnName string
	thread *lua.LState
	args   []lua.LValue
}

// taskItem adapts task for Workiva's PriorityQueue, using a monotonically
// increasing sequence number as priority so the queue behaves as strict
// FIFO rather than reordering by any property of the task itself.
type taskItem struct {
	seq  int64
	task task
}

// Compare orders items by ascending sequence number, matching the
// ascending-priority convention used for the library's own timestamp-based
// priority queues.
func (t taskItem) Compare(other queue.Item) int {
	o := other.(taskItem)
	if t.seq > o.seq {
		return 1
	} else if t.seq == o.seq {
		return 0
	}
	return -1
}
