package toy

import (
	"fmt"
	"math/rand"

	"github.com/samcharles93/organ/internal/model"
	"github.com/samcharles93/organ/internal/tensor"
)

// Generator is a minimal next-token language model: the previous token's
// embedding is projected back to vocabulary logits with W and Bias. It has
// no recurrence, so each position depends only on the token before it.
type Generator struct {
	Vocab   int
	Hidden  int
	Dropout float32

	Emb  tensor.Mat // [Vocab x Hidden] embedding matrix
	W    tensor.Mat // [Hidden x Vocab] projection weights
	Bias []float32  // [Vocab] bias added to logits

	params []*tensor.Param
	mode   model.Mode
	rng    *rand.Rand
}

// NewGenerator constructs a generator with the given vocabulary and hidden
// size. Embedding and projection are initialised from seed; biases are
// zeroed.
func NewGenerator(vocab, hidden int, dropout float32, seed int64) *Generator {
	g := &Generator{
		Vocab:   vocab,
		Hidden:  hidden,
		Dropout: dropout,
		Emb:     tensor.NewMat(vocab, hidden),
		W:       tensor.NewMat(hidden, vocab),
		Bias:    make([]float32, vocab),
		rng:     rand.New(rand.NewSource(seed + 101)),
	}
	tensor.FillRand(&g.Emb, seed+11)
	tensor.FillRand(&g.W, seed+23)
	g.params = []*tensor.Param{
		tensor.NewParam("generator.embedding", g.Emb.Data),
		tensor.NewParam("generator.projection", g.W.Data),
		tensor.NewParam("generator.bias", g.Bias),
	}
	return g
}

func (g *Generator) SetMode(m model.Mode)        { g.mode = m }
func (g *Generator) Mode() model.Mode            { return g.mode }
func (g *Generator) Parameters() []*tensor.Param { return g.params }

// Step writes the logits that follow token tok into dst. It always runs
// the deterministic evaluation path and is what sampling uses.
func (g *Generator) Step(dst []float32, tok int) {
	g.project(dst, g.Emb.Row(tok))
}

func (g *Generator) project(dst, h []float32) {
	copy(dst, g.Bias)
	for i := 0; i < g.Hidden; i++ {
		if h[i] == 0 {
			continue
		}
		tensor.Axpy(dst, h[i], g.W.Row(i))
	}
}

// Forward scores every valid position of prevs. Positions at or beyond a
// row's length are left at zero. In training mode the hidden activation is
// subject to inverted dropout.
func (g *Generator) Forward(prevs tensor.Tokens, lengths []int) (*model.GeneratorOutput, error) {
	if len(lengths) != prevs.R {
		return nil, fmt.Errorf("generator: %d lengths for %d rows", len(lengths), prevs.R)
	}
	scores := tensor.NewTensor3(prevs.R, prevs.C, g.Vocab)
	hidden := tensor.NewTensor3(prevs.R, prevs.C, g.Hidden)
	var mask *tensor.Tensor3
	if g.mode == model.ModeTrain && g.Dropout > 0 {
		mask = tensor.NewTensor3(prevs.R, prevs.C, g.Hidden)
	}

	for i := range prevs.R {
		if lengths[i] > prevs.C {
			return nil, fmt.Errorf("generator: row %d length %d exceeds width %d", i, lengths[i], prevs.C)
		}
		row := prevs.Row(i)
		for t := range lengths[i] {
			tok := row[t]
			if tok < 0 || tok >= g.Vocab {
				return nil, fmt.Errorf("generator: token %d out of range at (%d,%d)", tok, i, t)
			}
			h := hidden.At(i, t)
			copy(h, g.Emb.Row(tok))
			if mask != nil {
				dropout(h, mask.At(i, t), g.Dropout, g.rng)
			}
			g.project(scores.At(i, t), h)
		}
	}

	lens := append([]int(nil), lengths...)
	return &model.GeneratorOutput{
		Scores:  scores,
		Lengths: lens,
		Backward: func(dScores *tensor.Tensor3) {
			g.backward(prevs, lens, hidden, mask, dScores)
		},
	}, nil
}

func (g *Generator) backward(prevs tensor.Tokens, lengths []int, hidden, mask, dScores *tensor.Tensor3) {
	dEmb := g.params[0].Grad
	dW := g.params[1].Grad
	dBias := g.params[2].Grad
	dh := make([]float32, g.Hidden)

	for i := range prevs.R {
		row := prevs.Row(i)
		for t := range lengths[i] {
			d := dScores.At(i, t)
			h := hidden.At(i, t)
			tensor.Add(dBias, d)
			for k := 0; k < g.Hidden; k++ {
				tensor.Axpy(dW[k*g.Vocab:(k+1)*g.Vocab], h[k], d)
				dh[k] = tensor.Dot(g.W.Row(k), d)
			}
			if mask != nil {
				for k, m := range mask.At(i, t) {
					dh[k] *= m
				}
			}
			tok := row[t]
			tensor.Add(dEmb[tok*g.Hidden:(tok+1)*g.Hidden], dh)
		}
	}
}

// dropout zeroes each unit of h with probability p and rescales survivors
// by 1/(1-p). The applied multipliers are written to mask.
func dropout(h, mask []float32, p float32, rng *rand.Rand) {
	scale := 1 / (1 - p)
	for k := range h {
		if rng.Float32() < p {
			mask[k] = 0
		} else {
			mask[k] = scale
		}
		h[k] *= mask[k]
	}
}
