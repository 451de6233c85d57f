package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"calldesk/internal/config"
	"calldesk/internal/customers"
	"calldesk/internal/extraction"
	"calldesk/internal/jobs"
	"calldesk/internal/logging"
	"calldesk/internal/notify"
	"calldesk/internal/pipeline"
	"calldesk/internal/store"
	"calldesk/internal/transcribe"
)

// daemon owns everything that must be released on shutdown.
type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	lock    *flock.Flock
	store   *store.Store
	manager *pipeline.Manager
	cron    *cron.Cron
}

// bootstrap acquires the single-instance lock and wires the pipeline.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return nil, errors.New("another calldeskd instance is already running")
	}

	st, err := store.Open(cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	// Calls left mid-stage by an unclean shutdown go back to their start
	// status before the pipeline begins polling.
	reset, err := st.ResetStuckProcessing(context.Background())
	if err != nil {
		st.Close()
		_ = lock.Unlock()
		return nil, err
	}
	if reset > 0 {
		logger.Info("reset stuck processing calls", slog.Int64("count", reset))
	}

	notifier := notify.NewService(cfg)
	engine, err := extraction.NewEngine(cfg, logger)
	if err != nil {
		st.Close()
		_ = lock.Unlock()
		return nil, err
	}
	matcher := customers.NewMatcher(cfg, st, logger)
	orchestrator := jobs.NewOrchestrator(cfg, st, matcher, notifier, logger)

	manager := pipeline.NewManager(cfg, st, pipeline.StageSet{
		Transcriber: pipeline.NewTranscribeStage(transcribe.NewFromConfig(cfg, logger), logger),
		Extractor:   pipeline.NewExtractStage(st, engine, notifier, logger),
		Matcher:     pipeline.NewMatchStage(cfg, st, orchestrator, notifier, logger),
	}, notifier, logger)

	d := &daemon{
		cfg:     cfg,
		logger:  logger,
		lock:    lock,
		store:   st,
		manager: manager,
	}
	if cfg.Analytics.Enabled {
		d.cron = buildAnalyticsCron(cfg, st, logger)
	}
	return d, nil
}

// buildAnalyticsCron schedules the nightly customer-aggregate rebuild.
func buildAnalyticsCron(cfg *config.Config, st *store.Store, logger *slog.Logger) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(cfg.Analytics.RefreshSchedule, func() {
		refreshed, err := st.RefreshCustomerAggregates(context.Background())
		if err != nil {
			logger.Error("customer aggregate refresh failed", logging.Error(err))
			return
		}
		logger.Info("customer aggregates refreshed", slog.Int64("customers", refreshed))
	})
	if err != nil {
		logger.Error("invalid analytics refresh schedule",
			slog.String("schedule", cfg.Analytics.RefreshSchedule),
			logging.Error(err),
		)
		return nil
	}
	return c
}

func (d *daemon) Start(ctx context.Context) error {
	if err := d.manager.Start(ctx); err != nil {
		return err
	}
	if d.cron != nil {
		d.cron.Start()
	}
	d.logger.Info("calldeskd started",
		slog.String("database", d.store.Path()),
		slog.Int("poll_interval_seconds", d.cfg.Workflow.QueuePollInterval),
	)
	return nil
}

func (d *daemon) Stop() {
	if d.cron != nil {
		ctx := d.cron.Stop()
		<-ctx.Done()
	}
	d.manager.Stop()
}

func (d *daemon) Close() {
	if d.store != nil {
		d.store.Close()
	}
	if d.lock != nil {
		_ = d.lock.Unlock()
	}
}
