// Package metrics provides the scalar accumulators used to report training
// progress.
package metrics

// DefaultSmoothing is the exponential smoothing factor applied to the
// adversarial phase metrics.
const DefaultSmoothing = 0.1

// RunningMean is an incremental arithmetic mean.
type RunningMean struct {
	n     int
	value float64
}

// Update folds v into the mean and returns the new mean. The delta form
// keeps the mean of a constant stream exactly equal to that constant.
func (m *RunningMean) Update(v float64) float64 {
	m.n++
	m.value += (v - m.value) / float64(m.n)
	return m.value
}

// Value returns the current mean, zero before the first update.
func (m *RunningMean) Value() float64 { return m.value }

// EMA is an exponential moving average over training iterations:
// new = (1-alpha)*old + alpha*v. Every update made during iteration zero
// overwrites the value, so the average starts from the last observation of
// the first iteration rather than the first one.
type EMA struct {
	Alpha float64

	value float64
	set   bool
}

// NewEMA returns an EMA with the given smoothing factor.
func NewEMA(alpha float64) *EMA {
	return &EMA{Alpha: alpha}
}

// Update folds v, observed during iteration iter, into the average and
// returns the new value.
func (e *EMA) Update(iter int, v float64) float64 {
	if iter == 0 || !e.set {
		e.value = v
		e.set = true
		return e.value
	}
	e.value = e.value*(1-e.Alpha) + v*e.Alpha
	return e.value
}

// Value returns the current average, zero before the first update.
func (e *EMA) Value() float64 { return e.value }

// Set reports whether Update has been called.
func (e *EMA) Set() bool { return e.set }
