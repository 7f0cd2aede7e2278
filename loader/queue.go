package loader

import (
	"sync"

	"github.com/rerupp/weatherhist/datadir"
)

// ArchiveJob names one location's archive for the bulk loader to process:
// the database row id it mirrors into, the alias, and the archive file
// itself.
type ArchiveJob struct {
	LID   uint
	Alias string
	File  *datadir.WeatherFile
}

// ArchiveQueue is the one piece of cross-goroutine shared mutable state in
// the loader: a mutex-guarded vector popped by however many producer
// workers are configured, each pop atomic and uncontended beyond the lock.
type ArchiveQueue struct {
	mu      sync.Mutex
	entries []ArchiveJob
}

// NewArchiveQueue seeds a queue with jobs. Order is not meaningful: workers
// drain it with no ordering guarantee across producers.
func NewArchiveQueue(jobs []ArchiveJob) *ArchiveQueue {
	q := &ArchiveQueue{entries: make([]ArchiveJob, len(jobs))}
	copy(q.entries, jobs)
	return q
}

// pop removes and returns one job, or reports false once the queue is
// drained — the producer worker's exit signal.
func (q *ArchiveQueue) pop() (ArchiveJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return ArchiveJob{}, false
	}
	job := q.entries[0]
	q.entries = q.entries[1:]
	return job, true
}

// Len reports the number of jobs remaining, for progress reporting only;
// callers must not rely on it for control flow (it races with concurrent
// pops).
func (q *ArchiveQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
