// Package organ trains a sequence generator against a discriminator in three
// phases: supervised generator pretraining, discriminator pretraining on
// real versus sampled sequences, and adversarial policy-gradient training
// with Monte Carlo rollout rewards.
package organ

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/samcharles93/organ/internal/batch"
	"github.com/samcharles93/organ/internal/logger"
	"github.com/samcharles93/organ/internal/model"
	"github.com/samcharles93/organ/internal/optim"
	"github.com/samcharles93/organ/internal/report"
	"github.com/samcharles93/organ/internal/tensor"
)

// ClipValue bounds every generator gradient component during policy
// gradient updates.
const ClipValue = 5

// Trainer runs the three training phases over a caller-owned model.
type Trainer struct {
	cfg      Config
	reporter report.Reporter
	rng      *rand.Rand
	now      func() time.Time
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithReporter sends progress to r.
func WithReporter(r report.Reporter) Option {
	return func(t *Trainer) {
		if r != nil {
			t.reporter = r
		}
	}
}

// New returns a trainer for cfg. The config is validated by Fit.
func New(cfg Config, opts ...Option) *Trainer {
	t := &Trainer{
		cfg:      cfg,
		reporter: report.Nop{},
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit trains m on the train records. Validation passes run only when val
// is non-empty. Phases run in order: generator pretraining, discriminator
// pretraining, then adversarial training. The first error aborts training.
func (t *Trainer) Fit(ctx context.Context, m model.Model, train, val []string) error {
	if err := t.cfg.Validate(); err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info("training",
		"device", m.Device().String(),
		"vocab", m.Vocabulary().Size(),
		"train", len(train),
		"validation", len(val),
		"workers", t.cfg.Workers(),
	)

	if err := t.PretrainGenerator(ctx, m, train, val); err != nil {
		return fmt.Errorf("generator pretraining: %w", err)
	}
	if err := t.PretrainDiscriminator(ctx, m, train, val); err != nil {
		return fmt.Errorf("discriminator pretraining: %w", err)
	}
	if err := t.TrainPolicyGradient(ctx, m, train); err != nil {
		return fmt.Errorf("policy gradient: %w", err)
	}
	log.Info("training finished")
	return nil
}

func (t *Trainer) report(p report.Progress) {
	p.Time = t.now()
	t.reporter.Report(p)
}

// loaderSeed gives each loader its own shuffle stream derived from the
// configured seed.
func (t *Trainer) loaderSeed(stream int64) int64 {
	return t.cfg.Seed*1_000_003 + stream
}

func (t *Trainer) generatorLoader(m model.Model, records []string, shuffle bool, stream int64) *batch.Loader[batch.GeneratorBatch] {
	pad := m.Vocabulary().Pad()
	return batch.NewLoader(records, m.Encode, func(seqs []batch.Sequence) batch.GeneratorBatch {
		return batch.CollateGenerator(seqs, pad)
	}, batch.Options{
		BatchSize: t.cfg.NBatch,
		Shuffle:   shuffle,
		Workers:   t.cfg.Workers(),
		Seed:      t.loaderSeed(stream),
	})
}

func (t *Trainer) paddedLoader(m model.Model, records []string, shuffle bool, stream int64) *batch.Loader[tensor.Tokens] {
	pad := m.Vocabulary().Pad()
	return batch.NewLoader(records, m.Encode, func(seqs []batch.Sequence) tensor.Tokens {
		return batch.CollatePadded(seqs, pad)
	}, batch.Options{
		BatchSize: t.cfg.NBatch,
		Shuffle:   shuffle,
		Workers:   t.cfg.Workers(),
		Seed:      t.loaderSeed(stream),
	})
}

func newAdam(params []*tensor.Param, lr float64) *optim.Adam {
	return optim.NewAdam(params, optim.AdamConfig{LR: lr})
}
