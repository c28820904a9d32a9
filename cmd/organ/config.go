package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/organ/internal/organ"
)

// FileConfig is the YAML training configuration. All fields are pointers so
// we can distinguish "not set" from zero values.
type FileConfig struct {
	NBatch *int     `yaml:"n_batch"`
	LR     *float64 `yaml:"lr"`
	NJobs  *int     `yaml:"n_jobs"`

	GeneratorPretrainEpochs     *int `yaml:"generator_pretrain_epochs"`
	DiscriminatorPretrainEpochs *int `yaml:"discriminator_pretrain_epochs"`

	PGIters              *int `yaml:"pg_iters"`
	GeneratorUpdates     *int `yaml:"generator_updates"`
	DiscriminatorUpdates *int `yaml:"discriminator_updates"`
	DiscriminatorEpochs  *int `yaml:"discriminator_epochs"`
	Rollouts             *int `yaml:"rollouts"`
	MaxLength            *int `yaml:"max_length"`

	Seed *int64 `yaml:"seed"`

	Model struct {
		Hidden      *int     `yaml:"hidden"`
		Dropout     *float64 `yaml:"dropout"`
		Temperature *float64 `yaml:"temperature"`
	} `yaml:"model"`

	StatusAddr string `yaml:"status_addr"`
	MetricsOut string `yaml:"metrics_out"`
}

// loadConfig reads a YAML config file. An empty path yields a zero config.
func loadConfig(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// applyTrainConfig applies config file values to the training settings
// when the corresponding CLI flag was not explicitly set.
func applyTrainConfig(c *cli.Command, fc FileConfig, cfg *organ.Config, mo *modelOptions) {
	setInt := func(flag string, dst *int, v *int) {
		if v != nil && !c.IsSet(flag) {
			*dst = *v
		}
	}
	setInt("n-batch", &cfg.NBatch, fc.NBatch)
	setInt("n-jobs", &cfg.NJobs, fc.NJobs)
	setInt("generator-pretrain-epochs", &cfg.GeneratorPretrainEpochs, fc.GeneratorPretrainEpochs)
	setInt("discriminator-pretrain-epochs", &cfg.DiscriminatorPretrainEpochs, fc.DiscriminatorPretrainEpochs)
	setInt("pg-iters", &cfg.PGIters, fc.PGIters)
	setInt("generator-updates", &cfg.GeneratorUpdates, fc.GeneratorUpdates)
	setInt("discriminator-updates", &cfg.DiscriminatorUpdates, fc.DiscriminatorUpdates)
	setInt("discriminator-epochs", &cfg.DiscriminatorEpochs, fc.DiscriminatorEpochs)
	setInt("rollouts", &cfg.Rollouts, fc.Rollouts)
	setInt("max-length", &cfg.MaxLength, fc.MaxLength)
	if fc.LR != nil && !c.IsSet("lr") {
		cfg.LR = *fc.LR
	}
	if fc.Seed != nil && !c.IsSet("seed") {
		cfg.Seed = *fc.Seed
	}

	if mo == nil {
		return
	}
	setInt("hidden", &mo.hidden, fc.Model.Hidden)
	if fc.Model.Dropout != nil && !c.IsSet("dropout") {
		mo.dropout = *fc.Model.Dropout
	}
	if fc.Model.Temperature != nil && !c.IsSet("temperature") {
		mo.temperature = *fc.Model.Temperature
	}
}
