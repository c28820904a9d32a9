package toy

import (
	"fmt"
	"math/rand"

	"github.com/samcharles93/organ/internal/model"
	"github.com/samcharles93/organ/internal/tensor"
)

// Discriminator averages the embeddings of a sequence's non-pad tokens and
// maps the pooled vector to a single real-vs-generated logit.
type Discriminator struct {
	Vocab   int
	Hidden  int
	PadID   int
	Dropout float32

	Emb  tensor.Mat // [Vocab x Hidden]
	W    []float32  // [Hidden]
	Bias []float32  // [1]

	params []*tensor.Param
	mode   model.Mode
	rng    *rand.Rand
}

// NewDiscriminator constructs a discriminator initialised from seed.
func NewDiscriminator(vocab, hidden, pad int, dropout float32, seed int64) *Discriminator {
	d := &Discriminator{
		Vocab:   vocab,
		Hidden:  hidden,
		PadID:   pad,
		Dropout: dropout,
		Emb:     tensor.NewMat(vocab, hidden),
		W:       make([]float32, hidden),
		Bias:    make([]float32, 1),
		rng:     rand.New(rand.NewSource(seed + 202)),
	}
	tensor.FillRand(&d.Emb, seed+31)
	w := tensor.NewMatFromData(1, hidden, d.W)
	tensor.FillRand(&w, seed+47)
	d.params = []*tensor.Param{
		tensor.NewParam("discriminator.embedding", d.Emb.Data),
		tensor.NewParam("discriminator.weight", d.W),
		tensor.NewParam("discriminator.bias", d.Bias),
	}
	return d
}

func (d *Discriminator) SetMode(m model.Mode)        { d.mode = m }
func (d *Discriminator) Mode() model.Mode            { return d.mode }
func (d *Discriminator) Parameters() []*tensor.Param { return d.params }

// Forward returns one logit per row of seqs.
func (d *Discriminator) Forward(seqs tensor.Tokens) (*model.DiscriminatorOutput, error) {
	pooled := tensor.NewMat(seqs.R, d.Hidden)
	counts := make([]int, seqs.R)
	var mask *tensor.Mat
	if d.mode == model.ModeTrain && d.Dropout > 0 {
		m := tensor.NewMat(seqs.R, d.Hidden)
		mask = &m
	}

	out := make([]float32, seqs.R)
	for i := range seqs.R {
		h := pooled.Row(i)
		for j, tok := range seqs.Row(i) {
			if tok == d.PadID {
				continue
			}
			if tok < 0 || tok >= d.Vocab {
				return nil, fmt.Errorf("discriminator: token %d out of range at (%d,%d)", tok, i, j)
			}
			tensor.Add(h, d.Emb.Row(tok))
			counts[i]++
		}
		if counts[i] > 0 {
			inv := 1 / float32(counts[i])
			for k := range h {
				h[k] *= inv
			}
		}
		if mask != nil {
			dropout(h, mask.Row(i), d.Dropout, d.rng)
		}
		out[i] = tensor.Dot(d.W, h) + d.Bias[0]
	}

	return &model.DiscriminatorOutput{
		Logits: out,
		Backward: func(dLogits []float32) {
			d.backward(seqs, pooled, mask, counts, dLogits)
		},
	}, nil
}

func (d *Discriminator) backward(seqs tensor.Tokens, pooled tensor.Mat, mask *tensor.Mat, counts []int, dLogits []float32) {
	dEmb := d.params[0].Grad
	dW := d.params[1].Grad
	dBias := d.params[2].Grad
	dh := make([]float32, d.Hidden)

	for i, g := range dLogits {
		dBias[0] += g
		tensor.Axpy(dW, g, pooled.Row(i))
		if counts[i] == 0 {
			continue
		}
		scale := g / float32(counts[i])
		for k := range dh {
			dh[k] = scale * d.W[k]
		}
		if mask != nil {
			for k, m := range mask.Row(i) {
				dh[k] *= m
			}
		}
		for _, tok := range seqs.Row(i) {
			if tok == d.PadID {
				continue
			}
			tensor.Add(dEmb[tok*d.Hidden:(tok+1)*d.Hidden], dh)
		}
	}
}
