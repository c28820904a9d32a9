// Package loss implements the training criteria. Every criterion returns the
// scalar loss together with its gradient with respect to the model outputs
// it was given, ready to be handed to the model's backward pass.
package loss

import (
	"math"

	"github.com/samcharles93/organ/internal/tensor"
)

// PolicyGradient computes the REINFORCE loss
//
//	-sum_i sum_{t<lengths[i]} rewards[i][t] * log softmax(scores[i][t])[targets[i][t]] / sum_i lengths[i]
//
// Positions at or beyond a row's length contribute neither to the sum nor to
// the gradient, whatever their target or reward. The normaliser is the total
// number of valid positions in the batch, not the batch size. When that total
// is zero the loss and gradient are zero.
func PolicyGradient(scores *tensor.Tensor3, targets tensor.Tokens, rewards tensor.Mat, lengths []int) (float64, *tensor.Tensor3) {
	grad := tensor.NewTensor3(scores.B, scores.T, scores.V)

	total := 0
	for _, l := range lengths {
		total += l
	}
	if total == 0 {
		return 0, grad
	}
	inv := 1 / float64(total)

	logp := make([]float32, scores.V)
	var sum float64
	for i := range scores.B {
		tgt := targets.Row(i)
		rew := rewards.Row(i)
		for t := range lengths[i] {
			tensor.LogSoftmax(logp, scores.At(i, t))
			r := float64(rew[t])
			sum += r * float64(logp[tgt[t]])

			// d/dscore of -r*logp[tgt]/N = r/N * (softmax - onehot)
			g := grad.At(i, t)
			scale := float32(r * inv)
			for v, lp := range logp {
				g[v] = scale * expf(lp)
			}
			g[tgt[t]] -= scale
		}
	}
	return -sum * inv, grad
}

// CrossEntropy is the mean next-token classification loss over every
// position whose target is not ignoreIndex. Ignored positions get a zero
// gradient. If every target is ignored the loss is zero.
func CrossEntropy(scores *tensor.Tensor3, targets tensor.Tokens, ignoreIndex int) (float64, *tensor.Tensor3) {
	grad := tensor.NewTensor3(scores.B, scores.T, scores.V)

	count := 0
	for i := range scores.B {
		for _, tgt := range targets.Row(i)[:scores.T] {
			if tgt != ignoreIndex {
				count++
			}
		}
	}
	if count == 0 {
		return 0, grad
	}
	inv := 1 / float64(count)

	logp := make([]float32, scores.V)
	var sum float64
	for i := range scores.B {
		row := targets.Row(i)
		for t := range scores.T {
			tgt := row[t]
			if tgt == ignoreIndex {
				continue
			}
			tensor.LogSoftmax(logp, scores.At(i, t))
			sum -= float64(logp[tgt])

			g := grad.At(i, t)
			scale := float32(inv)
			for v, lp := range logp {
				g[v] = scale * expf(lp)
			}
			g[tgt] -= scale
		}
	}
	return sum * inv, grad
}

// BCEWithLogits is the mean binary cross-entropy between sigmoid(logits) and
// a constant target, computed from logits for numerical stability.
func BCEWithLogits(logits []float32, target float32) (float64, []float32) {
	grad := make([]float32, len(logits))
	if len(logits) == 0 {
		return 0, grad
	}
	inv := 1 / float64(len(logits))
	y := float64(target)
	var sum float64
	for i, x := range logits {
		xf := float64(x)
		// max(x,0) - x*y + log(1+exp(-|x|)) == softplus(x) - x*y
		sum += tensor.Softplus(xf) - xf*y
		grad[i] = float32((float64(tensor.Sigmoid(x)) - y) * inv)
	}
	return sum * inv, grad
}

// Balanced is the discriminator objective: generated samples are labelled
// 0, real samples 1, and each half carries weight one half so the value does
// not depend on how many rows each side contributed.
type Balanced struct {
	Loss     float64
	FakeGrad []float32
	RealGrad []float32
}

// BalancedBCE combines BCEWithLogits over fake (target 0) and real
// (target 1) logits as (fake + real) / 2.
func BalancedBCE(fakeLogits, realLogits []float32) Balanced {
	fl, fg := BCEWithLogits(fakeLogits, 0)
	rl, rg := BCEWithLogits(realLogits, 1)
	for i := range fg {
		fg[i] /= 2
	}
	for i := range rg {
		rg[i] /= 2
	}
	return Balanced{Loss: fl/2 + rl/2, FakeGrad: fg, RealGrad: rg}
}

// MeanValid returns the mean of rewards over the positions inside each
// row's length, or zero when there are none.
func MeanValid(rewards tensor.Mat, lengths []int) float64 {
	var sum float64
	n := 0
	for i, l := range lengths {
		for _, r := range rewards.Row(i)[:l] {
			sum += float64(r)
		}
		n += l
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func expf(x float32) float32 {
	return float32(math.Exp(float64(x)))
}
