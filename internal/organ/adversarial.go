package organ

import (
	"context"
	"fmt"

	"github.com/samcharles93/organ/internal/batch"
	"github.com/samcharles93/organ/internal/logger"
	"github.com/samcharles93/organ/internal/loss"
	"github.com/samcharles93/organ/internal/metrics"
	"github.com/samcharles93/organ/internal/model"
	"github.com/samcharles93/organ/internal/optim"
	"github.com/samcharles93/organ/internal/report"
	"github.com/samcharles93/organ/internal/tensor"
)

// adversarial holds the optimisers and smoothed metrics of one policy
// gradient run.
type adversarial struct {
	genOpt  *optim.Adam
	discOpt *optim.Adam
	loader  *batch.Loader[tensor.Tokens]

	genLoss  *metrics.EMA
	reward   *metrics.EMA
	discLoss *metrics.EMA
}

// TrainPolicyGradient alternates generator policy-gradient updates, driven
// by rollout rewards, with discriminator updates on freshly sampled
// sequences.
func (t *Trainer) TrainPolicyGradient(ctx context.Context, m model.Model, train []string) error {
	log := logger.FromContext(ctx)
	a := &adversarial{
		genOpt:   newAdam(m.Generator().Parameters(), t.cfg.LR),
		discOpt:  newAdam(m.Discriminator().Parameters(), t.cfg.LR),
		loader:   t.paddedLoader(m, train, true, streamAdversarial),
		genLoss:  metrics.NewEMA(metrics.DefaultSmoothing),
		reward:   metrics.NewEMA(metrics.DefaultSmoothing),
		discLoss: metrics.NewEMA(metrics.DefaultSmoothing),
	}

	log.Info("policy gradient training",
		"iterations", t.cfg.PGIters,
		"generator_updates", t.cfg.GeneratorUpdates,
		"discriminator_updates", t.cfg.DiscriminatorUpdates,
		"rollouts", t.cfg.Rollouts,
	)
	for i := range t.cfg.PGIters {
		for range t.cfg.GeneratorUpdates {
			if err := t.generatorUpdate(m, a, i); err != nil {
				return fmt.Errorf("iteration %d: %w", i, err)
			}
		}
		for range t.cfg.DiscriminatorUpdates {
			if err := t.discriminatorUpdate(m, a, i); err != nil {
				return fmt.Errorf("iteration %d: %w", i, err)
			}
		}
		t.report(report.Progress{
			Phase:   report.PhaseAdversarial,
			Stage:   report.StageTrain,
			Step:    i + 1,
			Total:   t.cfg.PGIters,
			Metrics: a.metrics(),
			Done:    i+1 == t.cfg.PGIters,
		})
	}
	return nil
}

func (a *adversarial) metrics() map[string]float64 {
	out := make(map[string]float64, 3)
	if a.genLoss.Set() {
		out["generator_loss"] = a.genLoss.Value()
		out["reward"] = a.reward.Value()
	}
	if a.discLoss.Set() {
		out["discriminator_loss"] = a.discLoss.Value()
	}
	return out
}

// generatorUpdate samples a rollout with both modules in evaluation mode,
// then takes one clipped Adam step on the policy-gradient loss with both in
// training mode.
func (t *Trainer) generatorUpdate(m model.Model, a *adversarial, iter int) error {
	m.SetMode(model.ModeEval)
	r, err := m.Rollout(t.cfg.NBatch, t.cfg.Rollouts, t.cfg.MaxLength)
	if err != nil {
		return fmt.Errorf("rollout: %w", err)
	}
	m.SetMode(model.ModeTrain)

	r = r.SortByLength()
	cols := r.Sequences.C
	if cols < 2 {
		return fmt.Errorf("rollout sequences have %d columns, need at least 2", cols)
	}
	lengths := make([]int, len(r.Lengths))
	for i, l := range r.Lengths {
		lengths[i] = l - 1
	}

	gen := m.Generator()
	out, err := gen.Forward(r.Sequences.Slice(0, cols-1), lengths)
	if err != nil {
		return fmt.Errorf("generator forward: %w", err)
	}
	l, grad := loss.PolicyGradient(out.Scores, r.Sequences.Slice(1, cols), r.Rewards, out.Lengths)

	a.genOpt.ZeroGrad()
	out.Backward(grad)
	optim.ClipGradValue(gen.Parameters(), ClipValue)
	a.genOpt.Step()

	a.genLoss.Update(iter, l)
	a.reward.Update(iter, loss.MeanValid(r.Rewards, out.Lengths))
	return nil
}

// discriminatorUpdate pre-samples one generated batch per real-data batch,
// then runs DiscriminatorEpochs passes pairing the reshuffled generated
// batches with a pass over the real data. Pairing stops at the shorter side.
func (t *Trainer) discriminatorUpdate(m model.Model, a *adversarial, iter int) error {
	m.Generator().SetMode(model.ModeEval)
	disc := m.Discriminator()
	disc.SetMode(model.ModeTrain)

	fakes := make([]tensor.Tokens, a.loader.Len())
	for i := range fakes {
		seqs, _, err := m.SampleTensor(t.cfg.NBatch, t.cfg.MaxLength)
		if err != nil {
			return fmt.Errorf("sample: %w", err)
		}
		fakes[i] = seqs
	}

	for range t.cfg.DiscriminatorEpochs {
		t.rng.Shuffle(len(fakes), func(i, j int) { fakes[i], fakes[j] = fakes[j], fakes[i] })
		k := 0
		for data, err := range a.loader.Batches() {
			if err != nil {
				return err
			}
			if k >= len(fakes) {
				break
			}
			l, err := discriminatorStep(disc, fakes[k], data, a.discOpt)
			if err != nil {
				return err
			}
			k++
			a.discLoss.Update(iter, l)
		}
	}
	return nil
}
