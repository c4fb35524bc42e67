package presence

import (
	"container/heap"
	"time"
)

// deadlineQueue is a min-heap of devices ordered by their next evaluation
// deadline. Each device records its own index so it can be fixed in place.
type deadlineQueue []*device

func (q deadlineQueue) Len() int { return len(q) }

func (q deadlineQueue) Less(i, j int) bool {
	if q[i].next.Equal(q[j].next) {
		return q[i].signature < q[j].signature
	}
	return q[i].next.Before(q[j].next)
}

func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *deadlineQueue) Push(x any) {
	d := x.(*device) //nolint:forcetypeassert // heap only holds devices
	d.index = len(*q)
	*q = append(*q, d)
}

func (q *deadlineQueue) Pop() any {
	old := *q
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	d.index = -1
	*q = old[:n-1]
	return d
}

// schedule adds d or moves it to match its current deadline.
func (q *deadlineQueue) schedule(d *device) {
	if d.index < 0 {
		heap.Push(q, d)
		return
	}
	heap.Fix(q, d.index)
}

// remove takes d out of the queue if present.
func (q *deadlineQueue) remove(d *device) {
	if d.index >= 0 {
		heap.Remove(q, d.index)
	}
}

// popDue removes and returns the earliest device if it is due at now.
func (q *deadlineQueue) popDue(now time.Time) *device {
	if len(*q) == 0 || (*q)[0].next.After(now) {
		return nil
	}
	return heap.Pop(q).(*device) //nolint:forcetypeassert // heap only holds devices
}

// peek returns the earliest deadline.
func (q deadlineQueue) peek() (time.Time, bool) {
	if len(q) == 0 {
		return time.Time{}, false
	}
	return q[0].next, true
}
