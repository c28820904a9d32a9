// Package batch turns variable-length token sequences into rectangular,
// padded batches and streams them from raw records.
package batch

import (
	"cmp"
	"slices"

	"github.com/samcharles93/organ/internal/tensor"
)

// Sequence is an ordered list of token indices. Its length is the only
// terminator; no sentinel scan is performed.
type Sequence []int

// GeneratorBatch is the supervised next-token batch: Prevs holds every
// sequence without its last token, Nexts without its first. Lengths[i] is
// the original length of row i minus one.
type GeneratorBatch struct {
	Prevs   tensor.Tokens
	Nexts   tensor.Tokens
	Lengths []int
}

// SortByLength returns a copy of seqs ordered by descending length. Ties
// keep their input order.
func SortByLength(seqs []Sequence) []Sequence {
	out := slices.Clone(seqs)
	slices.SortStableFunc(out, func(a, b Sequence) int {
		return cmp.Compare(len(b), len(a))
	})
	return out
}

// Pad right-pads each sequence to the longest one with pad. Rows keep the
// order of seqs.
func Pad(seqs []Sequence, pad int) tensor.Tokens {
	maxLen := 0
	for _, s := range seqs {
		maxLen = max(maxLen, len(s))
	}
	out := tensor.NewTokens(len(seqs), maxLen, pad)
	for i, s := range seqs {
		copy(out.Row(i), s)
	}
	return out
}

// CollatePadded sorts seqs by descending length and pads them whole. It is
// the collation used for discriminator and sampling batches.
func CollatePadded(seqs []Sequence, pad int) tensor.Tokens {
	return Pad(SortByLength(seqs), pad)
}

// CollateGenerator sorts seqs by descending length, splits each into its
// previous and next tokens and pads both halves independently.
func CollateGenerator(seqs []Sequence, pad int) GeneratorBatch {
	sorted := SortByLength(seqs)
	prevs := make([]Sequence, len(sorted))
	nexts := make([]Sequence, len(sorted))
	lens := make([]int, len(sorted))
	for i, s := range sorted {
		if len(s) == 0 {
			continue
		}
		prevs[i] = s[:len(s)-1]
		nexts[i] = s[1:]
		lens[i] = len(s) - 1
	}
	return GeneratorBatch{
		Prevs:   Pad(prevs, pad),
		Nexts:   Pad(nexts, pad),
		Lengths: lens,
	}
}

// Unpad recovers the original rows of a padded matrix by truncating each
// row to its recorded length.
func Unpad(t tensor.Tokens, lengths []int) []Sequence {
	out := make([]Sequence, t.R)
	for i := range t.R {
		out[i] = slices.Clone(Sequence(t.Row(i)[:lengths[i]]))
	}
	return out
}
