package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CamiloRuizJ/rexeli/constants"
	"github.com/CamiloRuizJ/rexeli/internal/common"
	"github.com/CamiloRuizJ/rexeli/internal/llm/openai"
	"github.com/CamiloRuizJ/rexeli/internal/metrics"
	"github.com/CamiloRuizJ/rexeli/internal/repository"
	"github.com/CamiloRuizJ/rexeli/internal/resilience"
	"github.com/CamiloRuizJ/rexeli/internal/storage/localfs"
	"github.com/CamiloRuizJ/rexeli/internal/training"
)

// rexelid runs the background side of the pipeline: it scans the per-type
// training triggers on a cron schedule, starts fine-tuning jobs when a
// verified corpus crosses its threshold, and polls running jobs until
// they reach a terminal state.
func main() {
	cfg := common.LoadConfig()
	log := common.NewLogger("rexelid", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("config.invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	}, log)
	if err != nil {
		log.Error("db.open", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Error("db.schema", "error", err)
		os.Exit(1)
	}

	store, err := localfs.New(cfg.Storage.RootDir)
	if err != nil {
		log.Error("storage.open", "error", err)
		os.Exit(1)
	}

	exec := resilience.NewExecutor(resilience.DefaultConfig())
	mm := metrics.NewModelMetrics("rexelid")
	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, exec, mm, log)

	docs := repository.NewTrainingDocumentRepository(db, log)
	jobs := repository.NewFineTuningJobRepository(db, log)
	models := repository.NewModelVersionRepository(db, log)
	triggers := repository.NewTrainingTriggerRepository(db, log)

	coordinator := training.NewCoordinator(docs, jobs, models, triggers, client, store, log)

	for _, dt := range constants.AllDocumentTypes() {
		if _, err := triggers.GetOrCreate(ctx, dt,
			int64(cfg.FineTuning.TriggerInterval), int64(cfg.FineTuning.MinCorpusSize)); err != nil {
			log.Error("trigger.seed", "type", string(dt), "error", err)
			os.Exit(1)
		}
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.FineTuning.TriggerCron, func() {
		if err := coordinator.ScanTriggers(ctx, cfg.FineTuning.BaseModel, 0.2); err != nil {
			log.Error("trigger.scan", "error", err)
		}
	}); err != nil {
		log.Error("cron.schedule", "spec", cfg.FineTuning.TriggerCron, "error", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	go func() {
		ticker := time.NewTicker(cfg.FineTuning.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := coordinator.PollRunningJobs(ctx, cfg.FineTuning.AutoDeploy); err != nil {
					log.Error("job.poll", "error", err)
				}
			}
		}
	}()

	log.Info("rexelid.started",
		"trigger_cron", cfg.FineTuning.TriggerCron,
		"poll_interval", cfg.FineTuning.PollInterval.String(),
	)
	<-ctx.Done()
	log.Info("rexelid.stopping")
}
