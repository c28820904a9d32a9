// Package optim holds the first-order optimisers and gradient utilities used
// by the trainer.
package optim

import (
	"math"

	"github.com/samcharles93/organ/internal/tensor"
)

// AdamConfig holds the Adam hyperparameters. Zero Beta1, Beta2 and Eps
// fall back to 0.9, 0.999 and 1e-8.
type AdamConfig struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64
}

type adamState struct {
	m, v []float64
}

// Adam is the bias-corrected adaptive moment optimiser over a fixed set of
// parameters.
type Adam struct {
	cfg    AdamConfig
	params []*tensor.Param
	state  []adamState
	t      int
}

// NewAdam returns an optimiser over params.
func NewAdam(params []*tensor.Param, cfg AdamConfig) *Adam {
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-8
	}
	state := make([]adamState, len(params))
	for i, p := range params {
		state[i] = adamState{
			m: make([]float64, len(p.Data)),
			v: make([]float64, len(p.Data)),
		}
	}
	return &Adam{cfg: cfg, params: params, state: state}
}

// ZeroGrad clears the gradients of every parameter owned by the optimiser.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

// Step applies one update from the accumulated gradients. Gradients are
// left in place; callers zero them before the next backward pass.
func (a *Adam) Step() {
	a.t++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	b1Corr := 1 - math.Pow(b1, float64(a.t))
	b2Corr := 1 - math.Pow(b2, float64(a.t))

	for i, p := range a.params {
		st := a.state[i]
		for j, g32 := range p.Grad {
			g := float64(g32)
			st.m[j] = b1*st.m[j] + (1-b1)*g
			st.v[j] = b2*st.v[j] + (1-b2)*g*g
			mhat := st.m[j] / b1Corr
			vhat := st.v[j] / b2Corr
			p.Data[j] -= float32(a.cfg.LR * mhat / (math.Sqrt(vhat) + a.cfg.Eps))
		}
	}
}

// ClipGradValue clamps every gradient component of params to [-clip, clip].
// A non-positive clip is a no-op.
func ClipGradValue(params []*tensor.Param, clip float32) {
	if clip <= 0 {
		return
	}
	for _, p := range params {
		for j, g := range p.Grad {
			if g > clip {
				p.Grad[j] = clip
			} else if g < -clip {
				p.Grad[j] = -clip
			}
		}
	}
}
