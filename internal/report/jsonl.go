package report

import (
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Record is the serialized form of a progress event.
type Record struct {
	RunID   string             `json:"run_id"`
	Time    time.Time          `json:"time"`
	Phase   Phase              `json:"phase"`
	Stage   Stage              `json:"stage"`
	Epoch   int                `json:"epoch"`
	Step    int                `json:"step"`
	Total   int                `json:"total"`
	Done    bool               `json:"done,omitempty"`
	Metrics map[string]float64 `json:"metrics"`
}

// NewRecord converts p into a Record tagged with runID.
func NewRecord(runID string, p Progress) Record {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return Record{
		RunID:   runID,
		Time:    ts.UTC(),
		Phase:   p.Phase,
		Stage:   p.Stage,
		Epoch:   p.Epoch,
		Step:    p.Step,
		Total:   p.Total,
		Done:    p.Done,
		Metrics: cloneMetrics(p.Metrics),
	}
}

// JSONL appends one JSON object per line for every epoch summary and every
// adversarial iteration. Per-batch pretraining progress is not written.
type JSONL struct {
	mu    sync.Mutex
	enc   *json.Encoder
	runID string
	err   error
}

func NewJSONL(w io.Writer, runID string) *JSONL {
	return &JSONL{enc: json.NewEncoder(w), runID: runID}
}

func (j *JSONL) Report(p Progress) {
	if !p.Done && p.Phase != PhaseAdversarial {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(NewRecord(j.runID, p))
}

// Err returns the first write error, if any. Writing stops after it.
func (j *JSONL) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}
