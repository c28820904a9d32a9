package report

import (
	"sync"
	"time"
)

// Snapshot is the latest known state of a run.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	// Current is nil until the first progress event.
	Current *Record `json:"current,omitempty"`
	// Phases keeps the last record seen for each phase.
	Phases   map[Phase]Record `json:"phases"`
	Finished bool             `json:"finished"`
	Error    string           `json:"error,omitempty"`
}

// Board keeps a concurrency-safe snapshot of training progress for readers
// on other goroutines.
type Board struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewBoard(runID string) *Board {
	return &Board{snap: Snapshot{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Phases:    make(map[Phase]Record),
	}}
}

func (b *Board) Report(p Progress) {
	rec := NewRecord(b.snap.RunID, p)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.Current = &rec
	b.snap.Phases[p.Phase] = rec
}

// Finish marks the run as complete. A non-nil err is recorded.
func (b *Board) Finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap.Finished = true
	if err != nil {
		b.snap.Error = err.Error()
	}
}

// Snapshot returns a deep copy of the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.snap
	out.Phases = make(map[Phase]Record, len(b.snap.Phases))
	for k, v := range b.snap.Phases {
		v.Metrics = cloneMetrics(v.Metrics)
		out.Phases[k] = v
	}
	if b.snap.Current != nil {
		cur := *b.snap.Current
		cur.Metrics = cloneMetrics(cur.Metrics)
		out.Current = &cur
	}
	return out
}
