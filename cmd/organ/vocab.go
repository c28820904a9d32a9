package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/organ/internal/dataset"
	"github.com/samcharles93/organ/internal/tokenizer"
)

func vocabCmd() *cli.Command {
	var out string
	return &cli.Command{
		Name:      "vocab",
		Usage:     "Build the character vocabulary of one or more datasets",
		ArgsUsage: "<dataset>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "write the vocabulary as JSON to this file instead of printing it",
				Destination: &out,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return fmt.Errorf("vocab: at least one dataset is required")
			}
			var all []string
			for _, p := range paths {
				recs, err := dataset.Load(p)
				if err != nil {
					return err
				}
				all = append(all, recs...)
			}
			v := tokenizer.NewCharVocab(all)
			if out != "" {
				return writeVocab(out, v)
			}
			fmt.Fprintf(os.Stdout, "%d records, %d symbols\n", len(all), v.Size())
			for id, s := range v.Symbols() {
				fmt.Fprintf(os.Stdout, "%4d  %q\n", id, s)
			}
			return nil
		},
	}
}
