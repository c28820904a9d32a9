package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/organ/internal/logger"
	"github.com/samcharles93/organ/internal/organ"
	"github.com/samcharles93/organ/internal/report"
	"github.com/samcharles93/organ/internal/status"
	"github.com/samcharles93/organ/internal/toy"
)

func trainCmd() *cli.Command {
	var (
		data             dataFlags
		cfg              organ.Config
		mo               modelOptions
		statusAddr       string
		metricsOut       string
		vocabOut         string
		progressInterval time.Duration
		samples          int
	)

	flags := append(data.flags(), hyperFlags(&cfg)...)
	flags = append(flags, mo.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "status-addr",
			Usage:       "serve training status over HTTP on this address (e.g. 127.0.0.1:8090)",
			Destination: &statusAddr,
		},
		&cli.StringFlag{
			Name:        "metrics-out",
			Usage:       "append JSON-lines progress records to this file",
			Destination: &metricsOut,
		},
		&cli.StringFlag{
			Name:        "vocab-out",
			Usage:       "write the vocabulary used for training to this JSON file",
			Destination: &vocabOut,
		},
		&cli.DurationFlag{
			Name:        "progress-interval",
			Usage:       "minimum time between per-batch progress lines (debug level)",
			Value:       2 * time.Second,
			Destination: &progressInterval,
		},
		&cli.IntFlag{
			Name:        "samples",
			Usage:       "number of sequences to sample and log after training",
			Value:       5,
			Destination: &samples,
		},
	)

	return &cli.Command{
		Name:  "train",
		Usage: "Pretrain and adversarially train a generator on SMILES records",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			fc, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			applyTrainConfig(c, fc, &cfg, &mo)
			if fc.StatusAddr != "" && !c.IsSet("status-addr") {
				statusAddr = fc.StatusAddr
			}
			if fc.MetricsOut != "" && !c.IsSet("metrics-out") {
				metricsOut = fc.MetricsOut
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runID := uuid.NewString()
			log := logger.FromContext(ctx).With("run", runID)
			ctx = logger.WithContext(ctx, log)

			recs, err := loadRecords(data)
			if err != nil {
				return err
			}
			if vocabOut != "" {
				if err := writeVocab(vocabOut, recs.vocab); err != nil {
					return err
				}
			}
			m := toy.New(recs.vocab, mo.config(cfg.Seed))

			board := report.NewBoard(runID)
			reporters := report.Multi{report.NewLog(log, progressInterval), board}

			var metrics *report.JSONL
			if metricsOut != "" {
				f, err := os.OpenFile(metricsOut, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("open metrics file: %w", err)
				}
				defer func() { _ = f.Close() }()
				metrics = report.NewJSONL(f, runID)
				reporters = append(reporters, metrics)
			}

			if statusAddr != "" {
				srvCtx, stop := context.WithCancel(ctx)
				done := serveStatus(srvCtx, log, statusAddr, board)
				defer func() {
					stop()
					<-done
				}()
			}

			trainer := organ.New(cfg, organ.WithReporter(reporters))
			err = trainer.Fit(ctx, m, recs.train, recs.val)
			board.Finish(err)
			if err != nil {
				return err
			}
			if metrics != nil {
				if err := metrics.Err(); err != nil {
					log.Warn("metrics file incomplete", "path", metricsOut, "error", err)
				}
			}

			if samples > 0 {
				out, err := sampleStrings(m, samples, cfg.MaxLength)
				if err != nil {
					return err
				}
				for _, s := range out {
					log.Info("sample", "smiles", s)
				}
			}
			return nil
		},
	}
}

// serveStatus runs the status endpoint until ctx is cancelled. The returned
// channel is closed once the server has stopped.
func serveStatus(ctx context.Context, log logger.Logger, addr string, board *report.Board) <-chan struct{} {
	e := echo.New()
	e.Use(middleware.Recover())
	status.NewServer(board).Register(e)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("starting status server", "address", addr)
		sc := echo.StartConfig{
			Address: addr,
			BeforeServeFunc: func(srv *http.Server) error {
				srv.ReadHeaderTimeout = 10 * time.Second
				return nil
			},
		}
		if err := sc.Start(ctx, e); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server stopped", "error", err)
		}
	}()
	return done
}
