package toy

import (
	"math"
	"testing"

	"github.com/samcharles93/organ/internal/batch"
	"github.com/samcharles93/organ/internal/loss"
	"github.com/samcharles93/organ/internal/model"
	"github.com/samcharles93/organ/internal/tensor"
	"github.com/samcharles93/organ/internal/tokenizer"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	vocab := tokenizer.NewCharVocab([]string{"CCO", "c1ccccc1", "CN(C)C=O"})
	return New(vocab, Config{Hidden: 6, Temperature: 1, Seed: 5})
}

// TestForwardMatchesNaive compares Generator.Forward against a
// hand-computed projection of the previous token's embedding.
func TestForwardMatchesNaive(t *testing.T) {
	t.Parallel()

	g := NewGenerator(8, 6, 0, 5)
	prevs := tensor.Tokens{R: 1, C: 2, Data: []int{3, 4}}
	out, err := g.Forward(prevs, []int{2})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	for pos, tok := range prevs.Row(0) {
		h := g.Emb.Row(tok)
		for j := range g.Vocab {
			var sum float32
			for i := range g.Hidden {
				sum += h[i] * g.W.Row(i)[j]
			}
			ref := sum + g.Bias[j]
			if got := out.Scores.At(0, pos)[j]; math.Abs(float64(got-ref)) > 1e-5 {
				t.Fatalf("logit mismatch at (%d,%d): got %f, want %f", pos, j, got, ref)
			}
		}
	}
}

func TestForwardRejectsBadInput(t *testing.T) {
	t.Parallel()

	g := NewGenerator(4, 2, 0, 1)
	if _, err := g.Forward(tensor.Tokens{R: 1, C: 1, Data: []int{9}}, []int{1}); err == nil {
		t.Fatal("expected out-of-range token error")
	}
	if _, err := g.Forward(tensor.Tokens{R: 1, C: 1, Data: []int{0}}, []int{2}); err == nil {
		t.Fatal("expected length overflow error")
	}
}

func TestGeneratorGradientFiniteDifference(t *testing.T) {
	t.Parallel()

	g := NewGenerator(5, 3, 0, 2)
	prevs := tensor.Tokens{R: 2, C: 3, Data: []int{0, 1, 2, 3, 4, 0}}
	nexts := tensor.Tokens{R: 2, C: 3, Data: []int{1, 2, 3, 4, 0, 0}}
	lengths := []int{3, 2}
	const pad = 0

	lossAt := func() float64 {
		out, err := g.Forward(prevs, lengths)
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
		l, _ := loss.CrossEntropy(out.Scores, nexts, pad)
		return l
	}

	out, err := g.Forward(prevs, lengths)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	_, grad := loss.CrossEntropy(out.Scores, nexts, pad)
	out.Backward(grad)

	const h = 1e-2
	for _, p := range g.Parameters() {
		for _, idx := range []int{0, len(p.Data) / 2, len(p.Data) - 1} {
			orig := p.Data[idx]
			p.Data[idx] = orig + h
			up := lossAt()
			p.Data[idx] = orig - h
			down := lossAt()
			p.Data[idx] = orig
			num := (up - down) / (2 * h)
			if math.Abs(num-float64(p.Grad[idx])) > 2e-3 {
				t.Fatalf("%s[%d]: analytic %v numeric %v", p.Name, idx, p.Grad[idx], num)
			}
		}
	}
}

func TestDiscriminatorGradientFiniteDifference(t *testing.T) {
	t.Parallel()

	const pad = 4
	d := NewDiscriminator(5, 3, pad, 0, 3)
	// Scale weights up so the finite difference is well above noise.
	for i := range d.Emb.Data {
		d.Emb.Data[i] *= 50
	}
	for i := range d.W {
		d.W[i] *= 50
	}
	seqs := tensor.Tokens{R: 2, C: 3, Data: []int{0, 1, 2, 3, pad, pad}}

	lossAt := func() float64 {
		out, err := d.Forward(seqs)
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
		l, _ := loss.BCEWithLogits(out.Logits, 1)
		return l
	}

	out, err := d.Forward(seqs)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	_, grad := loss.BCEWithLogits(out.Logits, 1)
	out.Backward(grad)

	const h = 1e-2
	for _, p := range d.Parameters() {
		for _, idx := range []int{0, len(p.Data) - 1} {
			orig := p.Data[idx]
			p.Data[idx] = orig + h
			up := lossAt()
			p.Data[idx] = orig - h
			down := lossAt()
			p.Data[idx] = orig
			num := (up - down) / (2 * h)
			if math.Abs(num-float64(p.Grad[idx])) > 2e-3 {
				t.Fatalf("%s[%d]: analytic %v numeric %v", p.Name, idx, p.Grad[idx], num)
			}
		}
	}
	// The pad row of the embedding never receives gradient.
	for _, g := range d.Parameters()[0].Grad[pad*3 : pad*3+3] {
		if g != 0 {
			t.Fatalf("pad embedding received gradient %v", g)
		}
	}
}

func TestDropoutOnlyInTrainMode(t *testing.T) {
	t.Parallel()

	g := NewGenerator(4, 16, 0.5, 1)
	prevs := tensor.Tokens{R: 1, C: 1, Data: []int{2}}

	g.SetMode(model.ModeEval)
	a, _ := g.Forward(prevs, []int{1})
	b, _ := g.Forward(prevs, []int{1})
	for i := range a.Scores.Data {
		if a.Scores.Data[i] != b.Scores.Data[i] {
			t.Fatal("evaluation forward is not deterministic")
		}
	}

	g.SetMode(model.ModeTrain)
	differs := false
	for range 10 {
		c, _ := g.Forward(prevs, []int{1})
		for i := range a.Scores.Data {
			if c.Scores.Data[i] != a.Scores.Data[i] {
				differs = true
			}
		}
	}
	if !differs {
		t.Fatal("training forward never applied dropout")
	}
}

func TestSampleTensor(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	const maxLen = 12
	seqs, lens, err := m.SampleTensor(8, maxLen)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if seqs.R != 8 || len(lens) != 8 {
		t.Fatalf("shape: %d rows, %d lengths", seqs.R, len(lens))
	}
	vocab := m.CharVocab()
	for i, l := range lens {
		row := seqs.Row(i)
		if l < 2 || l > maxLen {
			t.Fatalf("row %d length %d outside [2,%d]", i, l, maxLen)
		}
		if row[0] != vocab.BOS() {
			t.Fatalf("row %d does not start with BOS: %v", i, row)
		}
		for j, tok := range row[1:l] {
			if tok == vocab.Pad() || tok == vocab.BOS() {
				t.Fatalf("row %d position %d holds special %d", i, j+1, tok)
			}
		}
		for _, tok := range row[l:] {
			if tok != vocab.Pad() {
				t.Fatalf("row %d: non-pad after length: %v", i, row)
			}
		}
	}
	if _, _, err := m.SampleTensor(1, 1); err == nil {
		t.Fatal("expected error for max length 1")
	}
}

func TestRolloutShapesAndRange(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	m.SetMode(model.ModeEval)
	r, err := m.Rollout(4, 3, 10)
	if err != nil {
		t.Fatalf("rollout: %v", err)
	}
	if r.Rewards.R != 4 || r.Rewards.C != r.Sequences.C-1 {
		t.Fatalf("rewards shape %dx%d for sequences %dx%d", r.Rewards.R, r.Rewards.C, r.Sequences.R, r.Sequences.C)
	}
	for i, l := range r.Lengths {
		row := r.Rewards.Row(i)
		for tt := range l - 1 {
			if row[tt] <= 0 || row[tt] >= 1 {
				t.Fatalf("reward (%d,%d)=%v outside (0,1)", i, tt, row[tt])
			}
		}
		for _, v := range row[l-1:] {
			if v != 0 {
				t.Fatalf("reward beyond length at row %d: %v", i, row)
			}
		}
	}
}

func TestModelSetModeJoint(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	m.SetMode(model.ModeTrain)
	if m.Generator().Mode() != model.ModeTrain || m.Discriminator().Mode() != model.ModeTrain {
		t.Fatal("joint train mode not applied")
	}
	m.Generator().SetMode(model.ModeEval)
	if m.Discriminator().Mode() != model.ModeTrain {
		t.Fatal("generator mode leaked into discriminator")
	}
}

func TestEncodeWrapsSequence(t *testing.T) {
	t.Parallel()

	m := newTestModel(t)
	seq, err := m.Encode("CCO")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := batch.Sequence{m.CharVocab().BOS()}
	if seq[0] != want[0] || len(seq) != 5 {
		t.Fatalf("unexpected encoding %v", seq)
	}
}
