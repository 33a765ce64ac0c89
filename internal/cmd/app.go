package cmd

import (
	"fmt"

	"github.com/khushiGit123/jira-gen/internal/backend"
	"github.com/khushiGit123/jira-gen/internal/config"
	"github.com/khushiGit123/jira-gen/internal/jira"
	"github.com/khushiGit123/jira-gen/internal/logging"
	"github.com/khushiGit123/jira-gen/internal/orchestrator"
	"github.com/khushiGit123/jira-gen/internal/run"
	"github.com/khushiGit123/jira-gen/internal/stage"
)

// app bundles the wired pipeline for the commands.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *run.Store
	orch   *orchestrator.Orchestrator
}

// buildApp loads config and wires the pipeline.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	runner := stage.NewRunner(
		backend.NewHTTP(cfg.Backend, backend.WithLogger(logger)),
		cfg.Retry,
		stage.WithLogger(logger),
	)

	// An unconfigured client short-circuits to a skip note, so sync wiring
	// is unconditional.
	syncer := jira.NewClient(cfg.Jira, cfg.Retry, jira.WithLogger(logger))

	store := run.NewStore()
	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		orch:   orchestrator.New(cfg, runner, syncer, store, logger),
	}, nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}
