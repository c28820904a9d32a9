package optim

import (
	"math"
	"testing"

	"github.com/samcharles93/organ/internal/tensor"
)

func TestAdamFirstStepMovesByLR(t *testing.T) {
	t.Parallel()

	// After bias correction the first Adam step is lr * sign(g) for any
	// non-zero gradient.
	p := tensor.NewParam("w", []float32{1, 1, 1})
	p.Grad = []float32{0.5, -3, 0}
	opt := NewAdam([]*tensor.Param{p}, AdamConfig{LR: 0.1})
	opt.Step()

	want := []float32{0.9, 1.1, 1}
	for i := range want {
		if math.Abs(float64(p.Data[i]-want[i])) > 1e-5 {
			t.Fatalf("param[%d]: got %v want %v", i, p.Data[i], want[i])
		}
	}
}

func TestAdamMinimisesQuadratic(t *testing.T) {
	t.Parallel()

	p := tensor.NewParam("x", []float32{5})
	opt := NewAdam([]*tensor.Param{p}, AdamConfig{LR: 0.1})
	for range 500 {
		opt.ZeroGrad()
		p.Grad[0] = 2 * (p.Data[0] - 2)
		opt.Step()
	}
	if math.Abs(float64(p.Data[0]-2)) > 0.1 {
		t.Fatalf("expected x near 2, got %v", p.Data[0])
	}
}

func TestAdamZeroGrad(t *testing.T) {
	t.Parallel()

	p := tensor.NewParam("w", []float32{1})
	p.Grad[0] = 4
	opt := NewAdam([]*tensor.Param{p}, AdamConfig{LR: 1})
	opt.ZeroGrad()
	if p.Grad[0] != 0 {
		t.Fatalf("ZeroGrad left %v", p.Grad[0])
	}
}

func TestClipGradValue(t *testing.T) {
	t.Parallel()

	p := tensor.NewParam("w", make([]float32, 4))
	p.Grad = []float32{10, -10, 3, -5}
	ClipGradValue([]*tensor.Param{p}, 5)

	want := []float32{5, -5, 3, -5}
	for i := range want {
		if p.Grad[i] != want[i] {
			t.Fatalf("grad[%d]: got %v want %v", i, p.Grad[i], want[i])
		}
	}
}

func TestClipGradValueNoop(t *testing.T) {
	t.Parallel()

	p := tensor.NewParam("w", make([]float32, 1))
	p.Grad[0] = 100
	ClipGradValue([]*tensor.Param{p}, 0)
	if p.Grad[0] != 100 {
		t.Fatalf("clip of 0 should be a no-op, got %v", p.Grad[0])
	}
}
