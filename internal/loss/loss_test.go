package loss

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/samcharles93/organ/internal/tensor"
)

func randScores(rng *rand.Rand, b, t, v int) *tensor.Tensor3 {
	x := tensor.NewTensor3(b, t, v)
	for i := range x.Data {
		x.Data[i] = float32(rng.NormFloat64())
	}
	return x
}

func randTokens(rng *rand.Rand, r, c, vocab int) tensor.Tokens {
	tok := tensor.NewTokens(r, c, 0)
	for i := range tok.Data {
		tok.Data[i] = rng.Intn(vocab)
	}
	return tok
}

func randRewards(rng *rand.Rand, r, c int) tensor.Mat {
	m := tensor.NewMat(r, c)
	for i := range m.Data {
		m.Data[i] = rng.Float32()
	}
	return m
}

func logSoftmaxAt(x []float32, k int) float64 {
	lp := make([]float32, len(x))
	tensor.LogSoftmax(lp, x)
	return float64(lp[k])
}

func TestPolicyGradientMatchesDefinition(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	scores := randScores(rng, 2, 3, 5)
	targets := randTokens(rng, 2, 3, 5)
	rewards := randRewards(rng, 2, 3)
	lengths := []int{3, 1}

	got, _ := PolicyGradient(scores, targets, rewards, lengths)

	var want float64
	for i, l := range lengths {
		for tt := range l {
			want += float64(rewards.Row(i)[tt]) * logSoftmaxAt(scores.At(i, tt), targets.Row(i)[tt])
		}
	}
	want = -want / 4
	if math.Abs(got-want) > 1e-5 {
		t.Fatalf("loss: got %v want %v", got, want)
	}
}

func TestPolicyGradientPaddingInvariant(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(2))
	scores := randScores(rng, 2, 2, 4)
	targets := randTokens(rng, 2, 2, 4)
	rewards := randRewards(rng, 2, 2)
	lengths := []int{2, 1}
	base, _ := PolicyGradient(scores, targets, rewards, lengths)

	// Extend every row by three padded positions holding arbitrary data.
	const extra = 3
	wideScores := tensor.NewTensor3(2, 2+extra, 4)
	wideTargets := tensor.NewTokens(2, 2+extra, 0)
	wideRewards := tensor.NewMat(2, 2+extra)
	for i := range 2 {
		for tt := range 2 + extra {
			if tt < 2 {
				copy(wideScores.At(i, tt), scores.At(i, tt))
				wideTargets.Row(i)[tt] = targets.Row(i)[tt]
				wideRewards.Row(i)[tt] = rewards.Row(i)[tt]
				continue
			}
			for v := range 4 {
				wideScores.At(i, tt)[v] = float32(rng.NormFloat64() * 10)
			}
			wideTargets.Row(i)[tt] = rng.Intn(4)
			wideRewards.Row(i)[tt] = float32(rng.NormFloat64() * 100)
		}
	}
	// Row 1 also carries junk at position 1, which is past its length.
	wideRewards.Row(1)[1] = 1e6

	padded, grad := PolicyGradient(wideScores, wideTargets, wideRewards, lengths)
	if math.Abs(padded-base) > 1e-6 {
		t.Fatalf("padding changed loss: base %v padded %v", base, padded)
	}
	for i, l := range lengths {
		for tt := l; tt < 2+extra; tt++ {
			for _, g := range grad.At(i, tt) {
				if g != 0 {
					t.Fatalf("non-zero gradient at padded position (%d,%d)", i, tt)
				}
			}
		}
	}
}

func TestPolicyGradientLinearInReward(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	scores := randScores(rng, 3, 4, 6)
	targets := randTokens(rng, 3, 4, 6)
	rewards := randRewards(rng, 3, 4)
	lengths := []int{4, 3, 1}

	base, _ := PolicyGradient(scores, targets, rewards, lengths)
	const c = 2.5
	scaled := tensor.NewMatFromData(rewards.R, rewards.C, slices.Clone(rewards.Data))
	for i := range scaled.Data {
		scaled.Data[i] *= c
	}
	got, _ := PolicyGradient(scores, targets, scaled, lengths)
	if math.Abs(got-c*base) > 1e-5*math.Max(1, math.Abs(base)) {
		t.Fatalf("scaled loss: got %v want %v", got, c*base)
	}
}

func TestPolicyGradientShortRowSumsOneTerm(t *testing.T) {
	t.Parallel()

	// Lengths [2, 1]: row 0 contributes two terms, row 1 a single one.
	scores := tensor.NewTensor3(2, 2, 3)
	targets := tensor.Tokens{R: 2, C: 2, Data: []int{1, 2, 1, 0}}
	rewards := tensor.NewMatFromData(2, 2, []float32{1, 1, 1, 1})
	got, grad := PolicyGradient(scores, targets, rewards, []int{2, 1})

	// Uniform scores: every log-probability is -log 3.
	want := math.Log(3)
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("loss: got %v want %v", got, want)
	}
	nonZero := 0
	for i := range 2 {
		for tt := range 2 {
			for _, g := range grad.At(i, tt) {
				if g != 0 {
					nonZero++
					break
				}
			}
		}
	}
	if nonZero != 3 {
		t.Fatalf("expected gradient at 3 positions, got %d", nonZero)
	}
}

func TestPolicyGradientZeroLengths(t *testing.T) {
	t.Parallel()

	scores := tensor.NewTensor3(1, 2, 3)
	got, _ := PolicyGradient(scores, tensor.NewTokens(1, 2, 0), tensor.NewMat(1, 2), []int{0})
	if got != 0 || math.IsNaN(got) {
		t.Fatalf("expected zero loss for empty batch, got %v", got)
	}
}

func TestPolicyGradientGradientFiniteDifference(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(4))
	scores := randScores(rng, 2, 3, 4)
	targets := randTokens(rng, 2, 3, 4)
	rewards := randRewards(rng, 2, 3)
	lengths := []int{3, 2}
	_, grad := PolicyGradient(scores, targets, rewards, lengths)

	const h = 1e-2
	for _, idx := range []int{0, 5, 13, 22} {
		orig := scores.Data[idx]
		scores.Data[idx] = orig + h
		up, _ := PolicyGradient(scores, targets, rewards, lengths)
		scores.Data[idx] = orig - h
		down, _ := PolicyGradient(scores, targets, rewards, lengths)
		scores.Data[idx] = orig
		num := (up - down) / (2 * h)
		if math.Abs(num-float64(grad.Data[idx])) > 1e-3 {
			t.Fatalf("grad[%d]: analytic %v numeric %v", idx, grad.Data[idx], num)
		}
	}
}

func TestCrossEntropyIgnoresPad(t *testing.T) {
	t.Parallel()

	const pad = 0
	scores := tensor.NewTensor3(1, 3, 4)
	copy(scores.At(0, 0), []float32{0, 2, 0, 0})
	copy(scores.At(0, 2), []float32{9, -9, 9, 9})
	targets := tensor.Tokens{R: 1, C: 3, Data: []int{1, 3, pad}}

	got, grad := CrossEntropy(scores, targets, pad)
	want := -(logSoftmaxAt(scores.At(0, 0), 1) + logSoftmaxAt(scores.At(0, 1), 3)) / 2
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("loss: got %v want %v", got, want)
	}
	for _, g := range grad.At(0, 2) {
		if g != 0 {
			t.Fatalf("gradient leaked into ignored position: %v", grad.At(0, 2))
		}
	}
}

func TestCrossEntropyAllIgnored(t *testing.T) {
	t.Parallel()

	scores := tensor.NewTensor3(1, 2, 3)
	got, _ := CrossEntropy(scores, tensor.NewTokens(1, 2, 0), 0)
	if got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestBCEWithLogitsKnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		logit  float32
		target float32
		want   float64
	}{
		{0, 1, math.Ln2},
		{0, 0, math.Ln2},
		{50, 1, 0},
		{-50, 0, 0},
		{2, 0, math.Log1p(math.Exp(2))},
	}
	for _, tc := range tests {
		got, _ := BCEWithLogits([]float32{tc.logit}, tc.target)
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("BCE(%v, %v): got %v want %v", tc.logit, tc.target, got, tc.want)
		}
	}
}

func TestBalancedBCEIdenticalHalves(t *testing.T) {
	t.Parallel()

	// Same logits on both sides with the labels the halves are scored
	// against: the combined value equals a single BCE over one copy.
	logits := []float32{0.3, -1.2, 2.5}
	single0, _ := BCEWithLogits(logits, 0)
	single1, _ := BCEWithLogits(logits, 1)
	got := BalancedBCE(logits, logits)
	if want := (single0 + single1) / 2; math.Abs(got.Loss-want) > 1e-9 {
		t.Fatalf("balanced: got %v want %v", got.Loss, want)
	}

	// With logits at zero both labels score ln 2, so the halves cancel the
	// duplication exactly.
	zero := []float32{0, 0}
	single, _ := BCEWithLogits(zero, 1)
	if b := BalancedBCE(zero, zero); math.Abs(b.Loss-single) > 1e-9 {
		t.Fatalf("balanced zero logits: got %v want %v", b.Loss, single)
	}
}

func TestBalancedBCEGradHalved(t *testing.T) {
	t.Parallel()

	_, g := BCEWithLogits([]float32{1}, 1)
	b := BalancedBCE([]float32{1}, []float32{1})
	if math.Abs(float64(b.RealGrad[0]-g[0]/2)) > 1e-7 {
		t.Fatalf("real grad: got %v want %v", b.RealGrad[0], g[0]/2)
	}
}

func TestMeanValid(t *testing.T) {
	t.Parallel()

	r := tensor.NewMatFromData(2, 3, []float32{1, 2, 3, 10, 100, 1000})
	if got := MeanValid(r, []int{2, 1}); math.Abs(got-13.0/3) > 1e-9 {
		t.Fatalf("MeanValid: got %v want %v", got, 13.0/3)
	}
	if got := MeanValid(r, []int{0, 0}); got != 0 {
		t.Fatalf("MeanValid empty: got %v", got)
	}
}
