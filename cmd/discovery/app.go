package main

import (
	"context"
	"fmt"

	"discovery/pkg/config"
	"discovery/pkg/discovery"
	"discovery/pkg/export"
	"discovery/pkg/interview"
	"discovery/pkg/llm"
	"discovery/pkg/llm/middleware"
	"discovery/pkg/llm/provider"
	"discovery/pkg/logx"
	"discovery/pkg/metrics"
	"discovery/pkg/persistence"
	"discovery/pkg/resilience/retry"
	"discovery/pkg/session"
	"discovery/pkg/workflow"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg       config.Config
	logger    *logx.Logger
	bank      *interview.Bank
	store     *persistence.Store // nil for the memory driver
	recorder  *metrics.Recorder  // nil when metrics are disabled
	exporter  export.Exporter
	sessions  *session.Manager
	workflows *workflow.Service
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: logx.NewLogger("discovery")}

	bank, err := loadBank(cfg.Archetypes)
	if err != nil {
		return nil, err
	}
	a.bank = bank

	storage, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	// A typed-nil *Recorder must never reach the interfaces below.
	var llmRecorder middleware.Recorder
	managerOpts := []session.Option{}
	var observers []workflow.Observer
	if cfg.Metrics.Enabled {
		a.recorder = metrics.NewRecorder(cfg.Metrics.Namespace)
		llmRecorder = a.recorder
		managerOpts = append(managerOpts, session.WithMetrics(a.recorder))
		observers = append(observers, workflow.RecordMetrics(a.recorder))
	}

	a.exporter = export.NopExporter{}
	if cfg.Export.Enabled {
		s3, err := export.NewS3Exporter(export.S3Config{
			Endpoint:  cfg.Export.Endpoint,
			Region:    cfg.Export.Region,
			AccessKey: cfg.Export.AccessKey,
			SecretKey: cfg.Export.SecretKey,
			Bucket:    cfg.Export.Bucket,
			UseSSL:    cfg.Export.UseSSL,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
		a.exporter = s3
	}
	managerOpts = append(managerOpts, session.WithExporter(a.exporter))
	a.sessions = session.NewManager(storage, bank, managerOpts...)

	client, err := provider.New(cfg, llmRecorder)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	if client == nil {
		a.logger.Info("no llm provider configured, adaptive interviews use built-in questions")
	}

	activityOpts := []discovery.Option{discovery.WithMaxExchanges(cfg.Workflow.MaxExchanges)}
	if counter, err := llm.NewTokenCounter(); err != nil {
		a.logger.Warn("token counter unavailable, using estimates: %v", err)
	} else {
		activityOpts = append(activityOpts, discovery.WithTokenCounter(counter))
	}
	activities, err := discovery.New(client, activityOpts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create activities: %w", err)
	}

	hostCfg := workflow.HostConfig{
		Retry: retry.Config{
			MaxAttempts:   cfg.Resilience.Retry.MaxAttempts,
			InitialDelay:  cfg.Resilience.Retry.InitialDelay,
			MaxDelay:      cfg.Resilience.Retry.MaxDelay,
			BackoffFactor: cfg.Resilience.Retry.BackoffFactor,
			Jitter:        cfg.Resilience.Retry.Jitter,
		},
		AttemptTimeout: cfg.Resilience.Timeout,
	}
	svcCfg := workflow.ServiceConfig{
		Activities: activities,
		NewHost:    func() workflow.Host { return workflow.NewLocalHost(hostCfg) },
		Observers:  observers,
		Options: []workflow.Option{
			workflow.WithResponseTimeout(cfg.Workflow.ResponseTimeout),
			workflow.WithMaxExchanges(cfg.Workflow.MaxExchanges),
		},
		CacheSize: cfg.Workflow.CacheSize,
	}
	if a.store != nil {
		svcCfg.Store = a.store.Workflows()
	}
	a.workflows, err = workflow.NewService(svcCfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create workflow service: %w", err)
	}
	return a, nil
}

func loadBank(path string) (*interview.Bank, error) {
	if path == "" {
		return interview.DefaultBank(), nil
	}
	bank, err := interview.LoadBankYAML(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load archetypes: %w", err)
	}
	return bank, nil
}

func (a *app) openStorage(ctx context.Context) (session.Storage, error) {
	var err error
	switch a.cfg.Storage.Driver {
	case config.StorageSQLite:
		a.store, err = persistence.OpenSQLite(ctx, a.cfg.Storage.SQLitePath)
	case config.StoragePostgres:
		a.store, err = persistence.OpenPostgres(ctx, a.cfg.Storage.DSN)
	default:
		a.logger.Warn("using in-memory storage, sessions and adaptive runs are lost on exit")
		return session.NewMemoryStorage(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", a.cfg.Storage.Driver, err)
	}
	return a.store.Sessions(), nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage: %v", err)
	}
}

// setup is the common prologue of the commands that need the wired graph.
func setup(ctx context.Context, common *commonFlags) (*app, error) {
	cfg, err := loadConfig(common)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}
