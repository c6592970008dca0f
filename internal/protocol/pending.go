package protocol

import (
	"sync"
	"time"
)

// flushDelay is the coalescing window between the first queued log line and
// the flush that forwards the batch to the sink.
const flushDelay = 200 * time.Millisecond

// pendingQueue accumulates log lines between sink flushes. The reader task
// appends; the flush drains atomically, so no concurrently appended line is
// ever lost.
type pendingQueue struct {
	mu    sync.Mutex
	lines []string
	armed bool
}

// Append queues a line and reports whether the caller should arm a flush.
// Only the append that makes the queue non-empty arms one; lines arriving
// during the coalescing window ride the already-armed flush.
func (q *pendingQueue) Append(line string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lines = append(q.lines, line)
	if q.armed {
		return false
	}
	q.armed = true
	return true
}

// Drain atomically removes and returns all queued lines in arrival order.
func (q *pendingQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	lines := q.lines
	q.lines = nil
	q.armed = false
	return lines
}

// Len reports the number of queued lines.
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}
