package tokenizer

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// ErrUnknownSymbol is returned by a strict vocabulary when a record holds a
// character it has never seen.
var ErrUnknownSymbol = errors.New("unknown symbol")

// CharVocab is a character-level vocabulary for SMILES strings. Symbols are
// the sorted set of characters seen at construction followed by the four
// specials BOS, EOS, Pad and Unk.
type CharVocab struct {
	symbols []string
	index   map[rune]int
	strict  bool

	bos, eos, pad, unk int
}

var _ Tokenizer = (*CharVocab)(nil)

// NewCharVocab builds a vocabulary from every character in records.
func NewCharVocab(records []string) *CharVocab {
	seen := map[rune]struct{}{}
	for _, r := range records {
		for _, c := range r {
			seen[c] = struct{}{}
		}
	}
	chars := make([]rune, 0, len(seen))
	for c := range seen {
		chars = append(chars, c)
	}
	slices.Sort(chars)

	symbols := make([]string, 0, len(chars)+4)
	for _, c := range chars {
		symbols = append(symbols, string(c))
	}
	symbols = append(symbols, BOS, EOS, Pad, Unk)
	v, _ := newCharVocab(symbols)
	return v
}

func newCharVocab(symbols []string) (*CharVocab, error) {
	v := &CharVocab{
		symbols: symbols,
		index:   make(map[rune]int, len(symbols)),
		bos:     -1, eos: -1, pad: -1, unk: -1,
	}
	for i, s := range symbols {
		switch s {
		case BOS:
			v.bos = i
		case EOS:
			v.eos = i
		case Pad:
			v.pad = i
		case Unk:
			v.unk = i
		default:
			r := []rune(s)
			if len(r) != 1 {
				return nil, fmt.Errorf("symbol %q is not a single character", s)
			}
			v.index[r[0]] = i
		}
	}
	if v.bos < 0 || v.eos < 0 || v.pad < 0 || v.unk < 0 {
		return nil, errors.New("vocabulary is missing a special token")
	}
	return v, nil
}

// SetStrict makes Encode fail on unseen characters instead of mapping them
// to Unk.
func (v *CharVocab) SetStrict(strict bool) { v.strict = strict }

func (v *CharVocab) Size() int { return len(v.symbols) }
func (v *CharVocab) BOS() int  { return v.bos }
func (v *CharVocab) EOS() int  { return v.eos }
func (v *CharVocab) Pad() int  { return v.pad }
func (v *CharVocab) Unk() int  { return v.unk }

// Symbol returns the string form of id.
func (v *CharVocab) Symbol(id int) string {
	if id < 0 || id >= len(v.symbols) {
		return Unk
	}
	return v.symbols[id]
}

// Symbols returns a copy of the symbol table.
func (v *CharVocab) Symbols() []string {
	return slices.Clone(v.symbols)
}

// Encode maps text to ids wrapped in BOS and EOS.
func (v *CharVocab) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text)+2)
	ids = append(ids, v.bos)
	for _, c := range text {
		id, ok := v.index[c]
		if !ok {
			if v.strict {
				return nil, fmt.Errorf("%w %q in %q", ErrUnknownSymbol, c, text)
			}
			id = v.unk
		}
		ids = append(ids, id)
	}
	return append(ids, v.eos), nil
}

// Decode maps ids back to text. BOS and Pad are skipped and decoding stops
// at the first EOS.
func (v *CharVocab) Decode(ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		switch id {
		case v.bos, v.pad:
			continue
		case v.eos:
			return b.String(), nil
		}
		if id < 0 || id >= len(v.symbols) {
			return "", fmt.Errorf("token id %d out of range", id)
		}
		if id == v.unk {
			b.WriteString("?")
			continue
		}
		b.WriteString(v.symbols[id])
	}
	return b.String(), nil
}

type charVocabJSON struct {
	Symbols []string `json:"symbols"`
}

// WriteJSON serialises the symbol table.
func (v *CharVocab) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(charVocabJSON{Symbols: v.symbols})
}

// ReadCharVocab loads a symbol table written by WriteJSON.
func ReadCharVocab(r io.Reader) (*CharVocab, error) {
	var raw charVocabJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	return newCharVocab(raw.Symbols)
}
