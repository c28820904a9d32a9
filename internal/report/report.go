// Package report carries training progress from the trainer to whatever is
// watching it: the log, a metrics file, or the status endpoint.
package report

import (
	"time"
)

// Phase names one of the three training phases.
type Phase string

const (
	PhaseGeneratorPretrain     Phase = "generator_pretrain"
	PhaseDiscriminatorPretrain Phase = "discriminator_pretrain"
	PhaseAdversarial           Phase = "adversarial"
)

// Stage distinguishes parameter-updating passes from validation passes.
type Stage string

const (
	StageTrain      Stage = "train"
	StageValidation Stage = "validation"
)

// Progress is one observation of a running phase.
type Progress struct {
	Phase Phase
	Stage Stage
	// Epoch is the zero-based epoch for pretraining phases and zero for the
	// adversarial phase.
	Epoch int
	// Step is the one-based batch (pretraining) or outer iteration
	// (adversarial) just completed. Total is its upper bound.
	Step  int
	Total int
	// Metrics holds the running values after this step. Keys are stable
	// names such as "loss" or "generator_loss".
	Metrics map[string]float64
	// Done marks the last report of an epoch or of the adversarial phase.
	Done bool
	Time time.Time
}

// Reporter receives progress. Implementations are called from the training
// goroutine and must not retain Metrics after returning.
type Reporter interface {
	Report(p Progress)
}

// Func adapts a function to the Reporter interface.
type Func func(p Progress)

func (f Func) Report(p Progress) { f(p) }

// Nop discards progress.
type Nop struct{}

func (Nop) Report(Progress) {}

// Multi fans progress out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(p Progress) {
	for _, r := range m {
		r.Report(p)
	}
}

func cloneMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
