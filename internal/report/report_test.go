package report

import (
	"bufio"
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/organ/internal/logger"
)

func TestMultiFansOutInOrder(t *testing.T) {
	t.Parallel()

	var seen []string
	m := Multi{
		Func(func(Progress) { seen = append(seen, "a") }),
		Nop{},
		Func(func(Progress) { seen = append(seen, "b") }),
	}
	m.Report(Progress{})
	if strings.Join(seen, "") != "ab" {
		t.Fatalf("got %v want [a b]", seen)
	}
}

func TestJSONLWritesSummariesAndIterations(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	j := NewJSONL(&buf, "run-1")
	j.Report(Progress{Phase: PhaseGeneratorPretrain, Stage: StageTrain, Step: 1, Total: 3, Metrics: map[string]float64{"loss": 2}})
	j.Report(Progress{Phase: PhaseGeneratorPretrain, Stage: StageTrain, Step: 3, Total: 3, Done: true, Metrics: map[string]float64{"loss": 1.5}})
	j.Report(Progress{Phase: PhaseAdversarial, Stage: StageTrain, Step: 1, Total: 10, Metrics: map[string]float64{"reward": 0.4}})
	if err := j.Err(); err != nil {
		t.Fatalf("write: %v", err)
	}

	var recs []Record
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		recs = append(recs, r)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records want 2", len(recs))
	}
	if recs[0].RunID != "run-1" || !recs[0].Done || recs[0].Metrics["loss"] != 1.5 {
		t.Fatalf("unexpected summary record %+v", recs[0])
	}
	if recs[1].Phase != PhaseAdversarial || recs[1].Metrics["reward"] != 0.4 {
		t.Fatalf("unexpected iteration record %+v", recs[1])
	}
}

type failWriter struct{ n int }

func (w *failWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("disk full")
}

func TestJSONLStopsAfterError(t *testing.T) {
	t.Parallel()

	w := &failWriter{}
	j := NewJSONL(w, "x")
	p := Progress{Phase: PhaseAdversarial}
	j.Report(p)
	j.Report(p)
	if j.Err() == nil {
		t.Fatal("expected write error")
	}
	if w.n != 1 {
		t.Fatalf("got %d writes want 1", w.n)
	}
}

func TestBoardSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	b := NewBoard("run-2")
	metrics := map[string]float64{"loss": 1}
	b.Report(Progress{Phase: PhaseGeneratorPretrain, Stage: StageTrain, Step: 1, Total: 2, Metrics: metrics})
	metrics["loss"] = 99

	snap := b.Snapshot()
	if snap.Current == nil || snap.Current.Metrics["loss"] != 1 {
		t.Fatalf("board retained caller metrics: %+v", snap.Current)
	}
	snap.Current.Metrics["loss"] = 7
	snap.Phases[PhaseGeneratorPretrain].Metrics["loss"] = 7
	again := b.Snapshot()
	if again.Current.Metrics["loss"] != 1 || again.Phases[PhaseGeneratorPretrain].Metrics["loss"] != 1 {
		t.Fatal("snapshot mutation leaked into board")
	}

	b.Finish(errors.New("boom"))
	final := b.Snapshot()
	if !final.Finished || final.Error != "boom" {
		t.Fatalf("got finished=%v error=%q", final.Finished, final.Error)
	}
}

func TestLogThrottlesBatchProgress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLog(logger.JSON(&buf, slog.LevelDebug), time.Hour)
	for i := range 5 {
		l.Report(Progress{Phase: PhaseGeneratorPretrain, Stage: StageTrain, Step: i + 1, Total: 5})
	}
	l.Report(Progress{Phase: PhaseGeneratorPretrain, Stage: StageTrain, Step: 5, Total: 5, Done: true})
	l.Report(Progress{Phase: PhaseAdversarial, Stage: StageTrain, Step: 1, Total: 2})
	l.Report(Progress{Phase: PhaseAdversarial, Stage: StageTrain, Step: 2, Total: 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// One throttled batch line, one epoch summary, two iterations.
	if len(lines) != 4 {
		t.Fatalf("got %d lines want 4:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "epoch 0 done") {
		t.Fatalf("expected summary line, got %s", lines[1])
	}
}

func TestLogZeroIntervalLogsEveryBatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLog(logger.JSON(&buf, slog.LevelDebug), 0)
	for i := range 3 {
		l.Report(Progress{Phase: PhaseDiscriminatorPretrain, Stage: StageValidation, Step: i + 1, Total: 3})
	}
	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Fatalf("got %d lines want 3", n)
	}
}
