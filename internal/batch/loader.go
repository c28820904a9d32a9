package batch

import (
	"fmt"
	"iter"
	"math/rand"
)

// Transform encodes one raw record into a token sequence.
type Transform func(record string) (Sequence, error)

// Options configures a Loader.
type Options struct {
	// BatchSize is the number of records per batch. The last batch of a pass
	// may be smaller.
	BatchSize int
	// Shuffle reorders records at the start of every pass.
	Shuffle bool
	// Workers is the number of goroutines encoding and collating batches
	// ahead of the consumer. Values <= 1 collate inline.
	Workers int
	// Seed drives the shuffle order.
	Seed int64
}

// Loader streams collated batches from raw records. Each call to Batches
// is one pass over the data.
type Loader[T any] struct {
	records   []string
	transform Transform
	collate   func([]Sequence) T
	opts      Options
	rng       *rand.Rand
}

// NewLoader returns a loader over records. records is not copied and must
// not be modified while the loader is in use.
func NewLoader[T any](records []string, transform Transform, collate func([]Sequence) T, opts Options) *Loader[T] {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	return &Loader[T]{
		records:   records,
		transform: transform,
		collate:   collate,
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
	}
}

// Len returns the number of batches in one pass.
func (l *Loader[T]) Len() int {
	return (len(l.records) + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Records returns the number of raw records.
func (l *Loader[T]) Records() int {
	return len(l.records)
}

type result[T any] struct {
	batch T
	err   error
}

// Batches yields the batches of one pass in order. With more than one
// worker, batches are prepared concurrently but still yielded strictly in
// sequence. Iteration stops after the first error. Breaking out of the loop
// early releases the workers.
func (l *Loader[T]) Batches() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		order := l.order()
		n := l.Len()

		if l.opts.Workers <= 1 {
			for b := range n {
				batch, err := l.build(order, b)
				if !yield(batch, err) || err != nil {
					return
				}
			}
			return
		}

		done := make(chan struct{})
		defer close(done)

		slots := make([]chan result[T], n)
		for i := range slots {
			slots[i] = make(chan result[T], 1)
		}
		// In-flight batches are bounded so a slow consumer does not cause the
		// whole pass to be materialised.
		inflight := make(chan struct{}, 2*l.opts.Workers)
		jobs := make(chan int)

		go func() {
			defer close(jobs)
			for b := range n {
				select {
				case inflight <- struct{}{}:
				case <-done:
					return
				}
				select {
				case jobs <- b:
				case <-done:
					return
				}
			}
		}()

		for range l.opts.Workers {
			go func() {
				for b := range jobs {
					batch, err := l.build(order, b)
					slots[b] <- result[T]{batch: batch, err: err}
				}
			}()
		}

		for b := range n {
			r := <-slots[b]
			<-inflight
			if !yield(r.batch, r.err) || r.err != nil {
				return
			}
		}
	}
}

func (l *Loader[T]) order() []int {
	if l.opts.Shuffle {
		return l.rng.Perm(len(l.records))
	}
	order := make([]int, len(l.records))
	for i := range order {
		order[i] = i
	}
	return order
}

func (l *Loader[T]) build(order []int, b int) (T, error) {
	start := b * l.opts.BatchSize
	end := min(start+l.opts.BatchSize, len(order))
	seqs := make([]Sequence, 0, end-start)
	for _, idx := range order[start:end] {
		s, err := l.transform(l.records[idx])
		if err != nil {
			var zero T
			return zero, fmt.Errorf("encode record %d: %w", idx, err)
		}
		seqs = append(seqs, s)
	}
	return l.collate(seqs), nil
}
