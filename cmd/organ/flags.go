package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/organ/internal/organ"
	"github.com/samcharles93/organ/internal/toy"
)

var (
	logLevel  string
	logFormat string
	debug     bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// dataFlags selects the training records and vocabulary.
type dataFlags struct {
	train  string
	val    string
	vocab  string
	strict bool
}

func (d *dataFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "train",
			Usage:       "training records (.smi, .txt, .csv or .jsonl)",
			Required:    true,
			Destination: &d.train,
		},
		&cli.StringFlag{
			Name:        "val",
			Usage:       "optional validation records",
			Destination: &d.val,
		},
		&cli.StringFlag{
			Name:        "vocab",
			Usage:       "load the vocabulary from a JSON file instead of building it from the data",
			Destination: &d.vocab,
		},
		&cli.BoolFlag{
			Name:        "strict",
			Usage:       "reject records with symbols outside the vocabulary",
			Destination: &d.strict,
		},
	}
}

// hyperFlags binds every training hyperparameter to cfg. Defaults come from
// organ.DefaultConfig.
func hyperFlags(cfg *organ.Config) []cli.Flag {
	def := organ.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML file with training settings; explicit flags take precedence",
		},
		&cli.IntFlag{Name: "n-batch", Usage: "batch size", Value: def.NBatch, Destination: &cfg.NBatch},
		&cli.Float64Flag{Name: "lr", Usage: "Adam learning rate", Value: def.LR, Destination: &cfg.LR},
		&cli.IntFlag{Name: "n-jobs", Usage: "loader workers (1 = inline, 0 = one per core)", Value: def.NJobs, Destination: &cfg.NJobs},
		&cli.IntFlag{Name: "generator-pretrain-epochs", Usage: "generator pretraining epochs", Value: def.GeneratorPretrainEpochs, Destination: &cfg.GeneratorPretrainEpochs},
		&cli.IntFlag{Name: "discriminator-pretrain-epochs", Usage: "discriminator pretraining epochs", Value: def.DiscriminatorPretrainEpochs, Destination: &cfg.DiscriminatorPretrainEpochs},
		&cli.IntFlag{Name: "pg-iters", Usage: "adversarial iterations", Value: def.PGIters, Destination: &cfg.PGIters},
		&cli.IntFlag{Name: "generator-updates", Usage: "generator updates per iteration", Value: def.GeneratorUpdates, Destination: &cfg.GeneratorUpdates},
		&cli.IntFlag{Name: "discriminator-updates", Usage: "discriminator updates per iteration", Value: def.DiscriminatorUpdates, Destination: &cfg.DiscriminatorUpdates},
		&cli.IntFlag{Name: "discriminator-epochs", Usage: "passes over the data per discriminator update", Value: def.DiscriminatorEpochs, Destination: &cfg.DiscriminatorEpochs},
		&cli.IntFlag{Name: "rollouts", Usage: "Monte Carlo completions per prefix", Value: def.Rollouts, Destination: &cfg.Rollouts},
		&cli.IntFlag{Name: "max-length", Usage: "maximum sampled sequence length in tokens", Value: def.MaxLength, Destination: &cfg.MaxLength},
		&cli.Int64Flag{Name: "seed", Usage: "random seed", Value: def.Seed, Destination: &cfg.Seed},
	}
}

// modelOptions sizes the reference model.
type modelOptions struct {
	hidden      int
	dropout     float64
	temperature float64
}

func (o *modelOptions) flags() []cli.Flag {
	def := toy.DefaultConfig()
	return []cli.Flag{
		&cli.IntFlag{Name: "hidden", Usage: "embedding width", Value: def.Hidden, Destination: &o.hidden},
		&cli.Float64Flag{Name: "dropout", Usage: "dropout probability in training mode", Value: float64(def.Dropout), Destination: &o.dropout},
		&cli.Float64Flag{Name: "temperature", Usage: "sampling temperature", Value: float64(def.Temperature), Destination: &o.temperature},
	}
}

func (o *modelOptions) config(seed int64) toy.Config {
	return toy.Config{
		Hidden:      o.hidden,
		Dropout:     float32(o.dropout),
		Temperature: float32(o.temperature),
		Seed:        seed,
	}
}
