package report

import (
	"fmt"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/samcharles93/organ/internal/logger"
)

// Log writes progress to a logger. Epoch and phase summaries (Done) and
// adversarial iterations are always logged; pretraining batch progress is
// throttled to at most one line per interval per phase and stage.
type Log struct {
	log      logger.Logger
	interval time.Duration
	throttle map[string]*rate.Sometimes
}

// NewLog returns a log sink. A zero interval logs every batch.
func NewLog(log logger.Logger, interval time.Duration) *Log {
	return &Log{
		log:      log,
		interval: interval,
		throttle: make(map[string]*rate.Sometimes),
	}
}

func (l *Log) Report(p Progress) {
	args := progressArgs(p)
	switch {
	case p.Done:
		l.log.Info(summary(p), args...)
	case p.Phase == PhaseAdversarial:
		l.log.Info("policy gradient", args...)
	default:
		key := string(p.Phase) + "/" + string(p.Stage)
		s, ok := l.throttle[key]
		if !ok {
			s = &rate.Sometimes{First: 1, Interval: l.interval}
			if l.interval <= 0 {
				s = &rate.Sometimes{Every: 1}
			}
			l.throttle[key] = s
		}
		s.Do(func() { l.log.Debug(stepMessage(p), args...) })
	}
}

func summary(p Progress) string {
	switch p.Phase {
	case PhaseGeneratorPretrain:
		return fmt.Sprintf("generator %s epoch %d done", p.Stage, p.Epoch)
	case PhaseDiscriminatorPretrain:
		return fmt.Sprintf("discriminator %s epoch %d done", p.Stage, p.Epoch)
	default:
		return "policy gradient done"
	}
}

func stepMessage(p Progress) string {
	switch p.Phase {
	case PhaseGeneratorPretrain:
		return fmt.Sprintf("generator %s (epoch #%d)", p.Stage, p.Epoch)
	case PhaseDiscriminatorPretrain:
		return fmt.Sprintf("discriminator %s (epoch #%d)", p.Stage, p.Epoch)
	default:
		return "policy gradient"
	}
}

func progressArgs(p Progress) []any {
	args := []any{"step", fmt.Sprintf("%d/%d", p.Step, p.Total)}
	keys := make([]string, 0, len(p.Metrics))
	for k := range p.Metrics {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, k, p.Metrics[k])
	}
	return args
}
