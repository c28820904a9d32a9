package organ

import (
	"errors"
	"fmt"

	"github.com/samcharles93/organ/internal/device"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid training config")

// Config holds the training hyperparameters.
type Config struct {
	NBatch int     `yaml:"n_batch"`
	LR     float64 `yaml:"lr"`
	// NJobs is the number of loader workers. 1 collates inline; 0 picks one
	// worker per logical core.
	NJobs int `yaml:"n_jobs"`

	GeneratorPretrainEpochs     int `yaml:"generator_pretrain_epochs"`
	DiscriminatorPretrainEpochs int `yaml:"discriminator_pretrain_epochs"`

	PGIters              int `yaml:"pg_iters"`
	GeneratorUpdates     int `yaml:"generator_updates"`
	DiscriminatorUpdates int `yaml:"discriminator_updates"`
	DiscriminatorEpochs  int `yaml:"discriminator_epochs"`
	Rollouts             int `yaml:"rollouts"`
	MaxLength            int `yaml:"max_length"`

	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the ORGAN defaults.
func DefaultConfig() Config {
	return Config{
		NBatch:                      64,
		LR:                          1e-4,
		NJobs:                       1,
		GeneratorPretrainEpochs:     50,
		DiscriminatorPretrainEpochs: 50,
		PGIters:                     1000,
		GeneratorUpdates:            1,
		DiscriminatorUpdates:        1,
		DiscriminatorEpochs:         10,
		Rollouts:                    16,
		MaxLength:                   100,
		Seed:                        1,
	}
}

// Validate reports the first setting that cannot be trained with.
func (c Config) Validate() error {
	switch {
	case c.NBatch <= 0:
		return fmt.Errorf("%w: n_batch must be positive, got %d", ErrInvalidConfig, c.NBatch)
	case c.LR <= 0:
		return fmt.Errorf("%w: lr must be positive, got %g", ErrInvalidConfig, c.LR)
	case c.NJobs < 0:
		return fmt.Errorf("%w: n_jobs must not be negative, got %d", ErrInvalidConfig, c.NJobs)
	case c.MaxLength < 2:
		return fmt.Errorf("%w: max_length must be at least 2, got %d", ErrInvalidConfig, c.MaxLength)
	case c.Rollouts <= 0:
		return fmt.Errorf("%w: rollouts must be positive, got %d", ErrInvalidConfig, c.Rollouts)
	}
	counts := []struct {
		name string
		v    int
	}{
		{"generator_pretrain_epochs", c.GeneratorPretrainEpochs},
		{"discriminator_pretrain_epochs", c.DiscriminatorPretrainEpochs},
		{"pg_iters", c.PGIters},
		{"generator_updates", c.GeneratorUpdates},
		{"discriminator_updates", c.DiscriminatorUpdates},
		{"discriminator_epochs", c.DiscriminatorEpochs},
	}
	for _, n := range counts {
		if n.v < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidConfig, n.name, n.v)
		}
	}
	return nil
}

// Workers resolves NJobs to a loader worker count.
func (c Config) Workers() int {
	if c.NJobs == 0 {
		return device.DefaultWorkers()
	}
	return c.NJobs
}
