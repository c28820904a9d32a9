package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/organ/internal/logger"
	"github.com/samcharles93/organ/internal/model"
	"github.com/samcharles93/organ/internal/organ"
	"github.com/samcharles93/organ/internal/report"
	"github.com/samcharles93/organ/internal/toy"
)

func sampleCmd() *cli.Command {
	var (
		data dataFlags
		cfg  organ.Config
		mo   modelOptions
		n    int
	)

	flags := append(data.flags(), hyperFlags(&cfg)...)
	flags = append(flags, mo.flags()...)
	flags = append(flags, &cli.IntFlag{
		Name:        "n",
		Usage:       "number of sequences to print",
		Value:       10,
		Destination: &n,
	})

	return &cli.Command{
		Name:  "sample",
		Usage: "Pretrain the generator only and print sampled SMILES",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			fc, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			applyTrainConfig(c, fc, &cfg, &mo)
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := logger.FromContext(ctx)

			recs, err := loadRecords(data)
			if err != nil {
				return err
			}
			m := toy.New(recs.vocab, mo.config(cfg.Seed))
			trainer := organ.New(cfg, organ.WithReporter(report.NewLog(log, 2*time.Second)))
			if err := trainer.PretrainGenerator(ctx, m, recs.train, recs.val); err != nil {
				return err
			}

			m.SetMode(model.ModeEval)
			out, err := sampleStrings(m, n, cfg.MaxLength)
			if err != nil {
				return err
			}
			for _, s := range out {
				fmt.Println(s)
			}
			return nil
		},
	}
}

// sampleStrings draws n sequences from the generator and decodes them.
func sampleStrings(m *toy.Model, n, maxLen int) ([]string, error) {
	seqs, lens, err := m.SampleTensor(n, maxLen)
	if err != nil {
		return nil, err
	}
	vocab := m.CharVocab()
	out := make([]string, n)
	for i, l := range lens {
		s, err := vocab.Decode(seqs.Row(i)[:l])
		if err != nil {
			return nil, fmt.Errorf("decode sample %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
