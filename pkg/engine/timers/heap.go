// Package timers implements the single monotonic deadline heap the engine
// schedules all of its timers on. The platform contract this heap is driven
// by is narrowed to two operations: "what time is it"
// (platform.Platform.SysElapsedTime) and "wake me in X ms" (the caller's
// own select/timer.Reset loop). The heap is deliberately decoupled from
// wall time: deadlines compare against an externally supplied elapsed-time
// reading, so the same code runs under a real clock and under the
// simulator's virtual ticks.
package timers

import "container/heap"

// Milliseconds is an elapsed-time timestamp, per platform.Platform.SysElapsedTime.
type Milliseconds int64

// Func is invoked when a timer fires. It receives the heap's current time.
type Func func(now Milliseconds)

// entry is one scheduled timer.
type entry struct {
	deadline Milliseconds
	seq      uint64 // breaks ties in FIFO order for equal deadlines
	fn       Func
	cancelled bool
	index    int // heap index, maintained by container/heap
}

// Handle lets a caller cancel a timer it previously scheduled. Cancelling a
// handle is the only way an owning object's destruction can prevent its
// timer from firing.
type Handle struct {
	e *entry
}

// Cancel prevents the timer from firing. It is safe to call more than once
// and safe to call after the timer has already fired.
func (h Handle) Cancel() {
	if h.e != nil {
		h.e.cancelled = true
	}
}

type pq []*entry

func (q pq) Len() int { return len(q) }
func (q pq) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	return q[i].seq < q[j].seq
}
func (q pq) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *pq) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *pq) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Heap is a min-heap of timer deadlines, owned by a single engine instance.
// It is not safe for concurrent use; the engine's single-threaded main loop
// is its only caller.
type Heap struct {
	q       pq
	nextSeq uint64
}

// New returns an empty Heap.
func New() *Heap {
	h := &Heap{}
	heap.Init(&h.q)
	return h
}

// Schedule arms fn to run at deadline (an absolute elapsed-time reading).
// The returned Handle may be used to cancel it.
func (h *Heap) Schedule(deadline Milliseconds, fn Func) Handle {
	e := &entry{deadline: deadline, seq: h.nextSeq, fn: fn}
	h.nextSeq++
	heap.Push(&h.q, e)
	return Handle{e: e}
}

// After is a convenience wrapper scheduling fn to run delay milliseconds
// after now.
func (h *Heap) After(now Milliseconds, delay Milliseconds, fn Func) Handle {
	return h.Schedule(now+delay, fn)
}

// NextDeadline returns the deadline of the earliest live (non-cancelled)
// timer, and false if the heap holds no live timers. Cancelled entries at
// the top are popped and discarded as a side effect.
func (h *Heap) NextDeadline() (Milliseconds, bool) {
	h.dropCancelled()
	if h.q.Len() == 0 {
		return 0, false
	}
	return h.q[0].deadline, true
}

// TimeoutMillis implements the engine's "timeout_ms()" query: the
// number of milliseconds until the next timer firing, or ok=false if none
// is scheduled ("no timer").
func (h *Heap) TimeoutMillis(now Milliseconds) (millis int64, ok bool) {
	d, has := h.NextDeadline()
	if !has {
		return 0, false
	}
	if d <= now {
		return 0, true
	}
	return int64(d - now), true
}

// Fire runs every timer whose deadline is <= now, in deadline order, then
// sequence order for ties. It must be called from the engine's single main
// loop between I/O processings, never concurrently with other engine work.
func (h *Heap) Fire(now Milliseconds) {
	for {
		h.dropCancelled()
		if h.q.Len() == 0 || h.q[0].deadline > now {
			return
		}
		e := heap.Pop(&h.q).(*entry)
		if e.cancelled {
			continue
		}
		e.fn(now)
	}
}

func (h *Heap) dropCancelled() {
	for h.q.Len() > 0 && h.q[0].cancelled {
		heap.Pop(&h.q)
	}
}

// Len reports the number of timers currently on the heap, including any
// not-yet-dropped cancelled entries. Intended for tests/metrics.
func (h *Heap) Len() int { return h.q.Len() }
