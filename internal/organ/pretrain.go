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

const (
	streamGeneratorTrain int64 = iota
	streamGeneratorValidation
	streamDiscriminatorTrain
	streamDiscriminatorValidation
	streamAdversarial
)

// PretrainGenerator fits the generator to next-token prediction with
// cross-entropy that ignores padded targets.
func (t *Trainer) PretrainGenerator(ctx context.Context, m model.Model, train, val []string) error {
	log := logger.FromContext(ctx)
	trainLoader := t.generatorLoader(m, train, true, streamGeneratorTrain)
	var valLoader *batch.Loader[batch.GeneratorBatch]
	if len(val) > 0 {
		valLoader = t.generatorLoader(m, val, false, streamGeneratorValidation)
	}
	opt := newAdam(m.Generator().Parameters(), t.cfg.LR)

	log.Info("generator pretraining", "epochs", t.cfg.GeneratorPretrainEpochs, "batches", trainLoader.Len())
	for epoch := range t.cfg.GeneratorPretrainEpochs {
		if _, err := t.generatorEpoch(m, trainLoader, opt, epoch); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if valLoader != nil {
			if _, err := t.generatorEpoch(m, valLoader, nil, epoch); err != nil {
				return fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
		}
	}
	return nil
}

// generatorEpoch runs one pass over loader and returns the mean loss. A nil
// optimiser makes it a validation pass.
func (t *Trainer) generatorEpoch(m model.Model, loader *batch.Loader[batch.GeneratorBatch], opt *optim.Adam, epoch int) (float64, error) {
	gen := m.Generator()
	m.Discriminator().SetMode(model.ModeEval)
	stage := report.StageValidation
	if opt != nil {
		gen.SetMode(model.ModeTrain)
		stage = report.StageTrain
	} else {
		gen.SetMode(model.ModeEval)
	}
	pad := m.Vocabulary().Pad()

	var mean metrics.RunningMean
	total := loader.Len()
	step := 0
	for b, err := range loader.Batches() {
		if err != nil {
			return 0, err
		}
		out, err := gen.Forward(b.Prevs, b.Lengths)
		if err != nil {
			return 0, fmt.Errorf("generator forward: %w", err)
		}
		l, grad := loss.CrossEntropy(out.Scores, b.Nexts, pad)
		if opt != nil {
			opt.ZeroGrad()
			out.Backward(grad)
			opt.Step()
		}
		mean.Update(l)
		step++
		t.report(report.Progress{
			Phase:   report.PhaseGeneratorPretrain,
			Stage:   stage,
			Epoch:   epoch,
			Step:    step,
			Total:   total,
			Metrics: map[string]float64{"loss": mean.Value()},
			Done:    step == total,
		})
	}
	return mean.Value(), nil
}

// PretrainDiscriminator teaches the discriminator to separate real records
// (label 1) from generator samples (label 0).
func (t *Trainer) PretrainDiscriminator(ctx context.Context, m model.Model, train, val []string) error {
	log := logger.FromContext(ctx)
	trainLoader := t.paddedLoader(m, train, true, streamDiscriminatorTrain)
	var valLoader *batch.Loader[tensor.Tokens]
	if len(val) > 0 {
		valLoader = t.paddedLoader(m, val, false, streamDiscriminatorValidation)
	}
	opt := newAdam(m.Discriminator().Parameters(), t.cfg.LR)

	log.Info("discriminator pretraining", "epochs", t.cfg.DiscriminatorPretrainEpochs, "batches", trainLoader.Len())
	for epoch := range t.cfg.DiscriminatorPretrainEpochs {
		if _, err := t.discriminatorEpoch(m, trainLoader, opt, epoch); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if valLoader != nil {
			if _, err := t.discriminatorEpoch(m, valLoader, nil, epoch); err != nil {
				return fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
		}
	}
	return nil
}

func (t *Trainer) discriminatorEpoch(m model.Model, loader *batch.Loader[tensor.Tokens], opt *optim.Adam, epoch int) (float64, error) {
	disc := m.Discriminator()
	m.Generator().SetMode(model.ModeEval)
	stage := report.StageValidation
	if opt != nil {
		disc.SetMode(model.ModeTrain)
		stage = report.StageTrain
	} else {
		disc.SetMode(model.ModeEval)
	}

	var mean metrics.RunningMean
	total := loader.Len()
	step := 0
	for data, err := range loader.Batches() {
		if err != nil {
			return 0, err
		}
		fake, _, err := m.SampleTensor(t.cfg.NBatch, t.cfg.MaxLength)
		if err != nil {
			return 0, fmt.Errorf("sample: %w", err)
		}
		l, err := discriminatorStep(disc, fake, data, opt)
		if err != nil {
			return 0, err
		}
		mean.Update(l)
		step++
		t.report(report.Progress{
			Phase:   report.PhaseDiscriminatorPretrain,
			Stage:   stage,
			Epoch:   epoch,
			Step:    step,
			Total:   total,
			Metrics: map[string]float64{"loss": mean.Value()},
			Done:    step == total,
		})
	}
	return mean.Value(), nil
}

// discriminatorStep scores one fake and one real batch with the balanced
// objective and, when opt is non-nil, applies one update.
func discriminatorStep(disc model.Discriminator, fake, data tensor.Tokens, opt *optim.Adam) (float64, error) {
	fo, err := disc.Forward(fake)
	if err != nil {
		return 0, fmt.Errorf("discriminator forward (generated): %w", err)
	}
	ro, err := disc.Forward(data)
	if err != nil {
		return 0, fmt.Errorf("discriminator forward (real): %w", err)
	}
	b := loss.BalancedBCE(fo.Logits, ro.Logits)
	if opt != nil {
		opt.ZeroGrad()
		fo.Backward(b.FakeGrad)
		ro.Backward(b.RealGrad)
		opt.Step()
	}
	return b.Loss, nil
}
