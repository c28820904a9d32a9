package logits

import (
	"math"
	"math/rand"
)

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed        int64
	Temperature float32
	// TopK restricts sampling to the k highest logits. Zero keeps the full
	// distribution, which is what policy-gradient training expects.
	TopK int
	// Banned token ids are never returned (for example pad and begin tokens
	// during generation).
	Banned []int
}

// Sampler draws token ids from logit vectors. It is not safe for
// concurrent use.
type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	banned map[int]struct{}
	topIdx []int
	topVal []float32
	prob   []float64
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature < 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	banned := make(map[int]struct{}, len(cfg.Banned))
	for _, id := range cfg.Banned {
		banned[id] = struct{}{}
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
		banned: banned,
	}
}

// Sample draws a single index from the provided logits vector:
//
//  1. Banned ids are dropped.
//  2. With a negative temperature the argmax is returned (greedy).
//  3. Otherwise logits are scaled by the inverse temperature and, when TopK
//     is set, only the k largest are kept.
//  4. A softmax over the survivors is computed relative to their maximum
//     and an index is drawn from it.
func (s *Sampler) Sample(logits []float32) int {
	if s.greedy {
		return s.argmax(logits)
	}

	invTemp := float32(1.0) / s.cfg.Temperature
	k := len(logits)
	if s.cfg.TopK > 0 {
		k = min(s.cfg.TopK, len(logits))
	}
	topIdx, topVal := s.topK(logits, k, invTemp)
	if len(topVal) == 0 {
		return 0
	}

	maxv := topVal[0]
	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	var sum float64
	for i := range topVal {
		e := math.Exp(float64(topVal[i] - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return topIdx[0]
	}

	r := s.rng.Float64() * sum
	var c float64
	for i := range prob {
		c += prob[i]
		if r < c {
			return topIdx[i]
		}
	}
	return topIdx[len(topIdx)-1]
}

// argmax returns the index of the maximum allowed value. If every value is
// banned it panics.
func (s *Sampler) argmax(x []float32) int {
	bestI := -1
	var bestV float32
	for i, v := range x {
		if _, ok := s.banned[i]; ok {
			continue
		}
		if bestI < 0 || v > bestV {
			bestV = v
			bestI = i
		}
	}
	if bestI < 0 {
		panic("argmax: no allowed index")
	}
	return bestI
}

// topK returns the indices and values of the k largest allowed elements in
// logits, scaled by invTemp, ordered from largest to smallest.
// This is an O(V*K) algorithm; vocabularies here are small.
func (s *Sampler) topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, l := range logits {
		if _, ok := s.banned[i]; ok {
			continue
		}
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)

		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}
