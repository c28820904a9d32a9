// Package model defines the interfaces through which the trainer drives a
// sequence generator and its discriminator. Architectures live behind these
// interfaces; the trainer never constructs or frees a model.
package model

import (
	"github.com/samcharles93/organ/internal/batch"
	"github.com/samcharles93/organ/internal/device"
	"github.com/samcharles93/organ/internal/tensor"
)

// Mode selects the behaviour of stochastic layers and whether a module is
// expected to receive gradient updates.
type Mode int

const (
	ModeEval Mode = iota
	ModeTrain
)

func (m Mode) String() string {
	switch m {
	case ModeEval:
		return "eval"
	case ModeTrain:
		return "train"
	default:
		return "unknown"
	}
}

// Module is a trainable component with an explicit mode.
type Module interface {
	SetMode(Mode)
	Mode() Mode
	Parameters() []*tensor.Param
}

// GeneratorOutput is the result of a generator forward pass.
type GeneratorOutput struct {
	// Scores holds pre-softmax vocabulary scores, [batch x time x vocab].
	Scores *tensor.Tensor3
	// Lengths are the valid lengths of each row of Scores.
	Lengths []int
	// State is the architecture-specific final state, opaque to callers.
	State any
	// Backward accumulates parameter gradients given dLoss/dScores.
	Backward func(dScores *tensor.Tensor3)
}

// DiscriminatorOutput is the result of a discriminator forward pass.
type DiscriminatorOutput struct {
	// Logits holds one real-vs-generated logit per input row.
	Logits []float32
	// Backward accumulates parameter gradients given dLoss/dLogits.
	Backward func(dLogits []float32)
}

// Generator predicts the next token at every position of a padded batch.
type Generator interface {
	Module
	Forward(prevs tensor.Tokens, lengths []int) (*GeneratorOutput, error)
}

// Discriminator scores padded sequences as real (high) or generated (low).
type Discriminator interface {
	Module
	Forward(seqs tensor.Tokens) (*DiscriminatorOutput, error)
}

// Vocabulary exposes what the trainer needs to know about token indices.
type Vocabulary interface {
	Size() int
	Pad() int
}

// Rollout is a batch of sampled sequences with per-token rewards.
//
// Sequences rows are padded; Lengths are full row lengths including the
// leading begin token. Rewards has Sequences.C-1 columns and Rewards[i][t]
// is the reward for emitting Sequences[i][t+1].
type Rollout struct {
	Sequences tensor.Tokens
	Rewards   tensor.Mat
	Lengths   []int
}

// Model bundles a generator, a discriminator and the sampling operations
// that need both.
type Model interface {
	Generator() Generator
	Discriminator() Discriminator
	Device() device.Info
	Vocabulary() Vocabulary

	// SetMode switches generator and discriminator together.
	SetMode(Mode)

	// Encode converts a raw record into a token sequence.
	Encode(s string) (batch.Sequence, error)

	// SampleTensor draws n sequences of at most maxLen tokens from the
	// generator, padded, with their lengths.
	SampleTensor(n, maxLen int) (tensor.Tokens, []int, error)

	// Rollout samples n sequences and scores every emitted token by the
	// expected discriminator approval of numRollouts completions.
	Rollout(n, numRollouts, maxLen int) (*Rollout, error)
}
