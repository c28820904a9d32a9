// Package toy provides a small, fully differentiable generator and
// discriminator pair. It is the reference model for the trainer: small
// enough to train on a CPU in seconds, but exercising every operation the
// trainer needs, including Monte Carlo rollout rewards.
package toy

import (
	"fmt"

	"github.com/samcharles93/organ/internal/batch"
	"github.com/samcharles93/organ/internal/device"
	"github.com/samcharles93/organ/internal/logits"
	"github.com/samcharles93/organ/internal/model"
	"github.com/samcharles93/organ/internal/tensor"
	"github.com/samcharles93/organ/internal/tokenizer"
)

// Config sizes a toy Model.
type Config struct {
	Hidden      int
	Dropout     float32
	Temperature float32
	Seed        int64
}

// DefaultConfig returns the sizes used by the CLI.
func DefaultConfig() Config {
	return Config{Hidden: 32, Dropout: 0.1, Temperature: 1, Seed: 1}
}

// Model wires a Generator and Discriminator to a character vocabulary.
type Model struct {
	vocab   *tokenizer.CharVocab
	gen     *Generator
	disc    *Discriminator
	sampler *logits.Sampler
	dev     device.Info
	step    []float32
}

var _ model.Model = (*Model)(nil)

// New builds a model over vocab.
func New(vocab *tokenizer.CharVocab, cfg Config) *Model {
	if cfg.Hidden <= 0 {
		cfg.Hidden = DefaultConfig().Hidden
	}
	size := vocab.Size()
	return &Model{
		vocab: vocab,
		gen:   NewGenerator(size, cfg.Hidden, cfg.Dropout, cfg.Seed),
		disc:  NewDiscriminator(size, cfg.Hidden, vocab.Pad(), cfg.Dropout, cfg.Seed),
		sampler: logits.NewSampler(logits.SamplerConfig{
			Seed:        cfg.Seed,
			Temperature: cfg.Temperature,
			Banned:      []int{vocab.Pad(), vocab.BOS()},
		}),
		dev:  device.Detect(),
		step: make([]float32, size),
	}
}

func (m *Model) Generator() model.Generator         { return m.gen }
func (m *Model) Discriminator() model.Discriminator { return m.disc }
func (m *Model) Device() device.Info                { return m.dev }
func (m *Model) Vocabulary() model.Vocabulary       { return m.vocab }

// CharVocab returns the concrete vocabulary, for decoding samples.
func (m *Model) CharVocab() *tokenizer.CharVocab { return m.vocab }

func (m *Model) SetMode(mode model.Mode) {
	m.gen.SetMode(mode)
	m.disc.SetMode(mode)
}

func (m *Model) Encode(s string) (batch.Sequence, error) {
	ids, err := m.vocab.Encode(s)
	if err != nil {
		return nil, err
	}
	return batch.Sequence(ids), nil
}

// complete extends prefix by sampling until EOS or maxLen tokens.
func (m *Model) complete(prefix batch.Sequence, maxLen int) batch.Sequence {
	seq := append(make(batch.Sequence, 0, maxLen), prefix...)
	for len(seq) < maxLen && seq[len(seq)-1] != m.vocab.EOS() {
		m.gen.Step(m.step, seq[len(seq)-1])
		seq = append(seq, m.sampler.Sample(m.step))
	}
	return seq
}

func (m *Model) sample(n, maxLen int) []batch.Sequence {
	seqs := make([]batch.Sequence, n)
	for i := range seqs {
		seqs[i] = m.complete(batch.Sequence{m.vocab.BOS()}, maxLen)
	}
	return seqs
}

// SampleTensor draws n sequences of at most maxLen tokens, BOS included.
// Rows keep their sampling order.
func (m *Model) SampleTensor(n, maxLen int) (tensor.Tokens, []int, error) {
	if maxLen < 2 {
		return tensor.Tokens{}, nil, fmt.Errorf("sample: max length %d leaves no room after BOS", maxLen)
	}
	seqs := m.sample(n, maxLen)
	lens := make([]int, n)
	for i, s := range seqs {
		lens[i] = len(s)
	}
	return batch.Pad(seqs, m.vocab.Pad()), lens, nil
}

// Rollout samples n sequences and rewards each emitted token with the mean
// discriminator probability of numRollouts Monte Carlo completions of the
// prefix ending at that token. The final token is rewarded with the
// discriminator probability of the full sequence.
func (m *Model) Rollout(n, numRollouts, maxLen int) (*model.Rollout, error) {
	if maxLen < 2 {
		return nil, fmt.Errorf("rollout: max length %d leaves no room after BOS", maxLen)
	}
	if numRollouts < 1 {
		numRollouts = 1
	}
	seqs := m.sample(n, maxLen)
	lens := make([]int, n)
	for i, s := range seqs {
		lens[i] = len(s)
	}
	padded := batch.Pad(seqs, m.vocab.Pad())
	rewards := tensor.NewMat(n, max(padded.C-1, 0))

	full, err := m.approval(seqs)
	if err != nil {
		return nil, err
	}
	for i, s := range seqs {
		row := rewards.Row(i)
		for t := 1; t < len(s); t++ {
			if t == len(s)-1 {
				row[t-1] = full[i]
				continue
			}
			completions := make([]batch.Sequence, numRollouts)
			for r := range completions {
				completions[r] = m.complete(s[:t+1], maxLen)
			}
			probs, err := m.approval(completions)
			if err != nil {
				return nil, err
			}
			var sum float32
			for _, p := range probs {
				sum += p
			}
			row[t-1] = sum / float32(numRollouts)
		}
	}
	return &model.Rollout{Sequences: padded, Rewards: rewards, Lengths: lens}, nil
}

// approval returns sigmoid(discriminator logit) for each sequence.
func (m *Model) approval(seqs []batch.Sequence) ([]float32, error) {
	out, err := m.disc.Forward(batch.Pad(seqs, m.vocab.Pad()))
	if err != nil {
		return nil, fmt.Errorf("rollout: score completions: %w", err)
	}
	probs := make([]float32, len(out.Logits))
	for i, l := range out.Logits {
		probs[i] = tensor.Sigmoid(l)
	}
	return probs, nil
}
