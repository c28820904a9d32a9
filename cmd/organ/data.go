package main

import (
	"fmt"
	"os"

	"github.com/samcharles93/organ/internal/dataset"
	"github.com/samcharles93/organ/internal/tokenizer"
)

type records struct {
	train []string
	val   []string
	vocab *tokenizer.CharVocab
}

// loadRecords reads the datasets named by d and resolves the vocabulary,
// either from --vocab or from every character in the records.
func loadRecords(d dataFlags) (records, error) {
	var r records
	var err error
	if r.train, err = dataset.Load(d.train); err != nil {
		return r, err
	}
	if d.val != "" {
		if r.val, err = dataset.Load(d.val); err != nil {
			return r, err
		}
	}

	if d.vocab != "" {
		f, err := os.Open(d.vocab)
		if err != nil {
			return r, fmt.Errorf("open vocabulary: %w", err)
		}
		defer func() { _ = f.Close() }()
		if r.vocab, err = tokenizer.ReadCharVocab(f); err != nil {
			return r, fmt.Errorf("%s: %w", d.vocab, err)
		}
	} else {
		all := make([]string, 0, len(r.train)+len(r.val))
		all = append(all, r.train...)
		all = append(all, r.val...)
		r.vocab = tokenizer.NewCharVocab(all)
	}
	r.vocab.SetStrict(d.strict)
	return r, nil
}

func writeVocab(path string, v *tokenizer.CharVocab) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vocabulary file: %w", err)
	}
	if err := v.WriteJSON(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vocabulary: %w", err)
	}
	return f.Close()
}
