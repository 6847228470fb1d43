package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/config"
	"github.com/mohammad-safakhou/hermes/internal/agent"
	"github.com/mohammad-safakhou/hermes/internal/assistant"
	"github.com/mohammad-safakhou/hermes/internal/docs"
	"github.com/mohammad-safakhou/hermes/internal/logging"
	"github.com/mohammad-safakhou/hermes/internal/scheduler"
	"github.com/mohammad-safakhou/hermes/internal/selector"
	"github.com/mohammad-safakhou/hermes/internal/telemetry"
	"github.com/mohammad-safakhou/hermes/internal/workflow"
	"github.com/mohammad-safakhou/hermes/provider"
	"github.com/mohammad-safakhou/hermes/session"
	"github.com/mohammad-safakhou/hermes/tools/clock"
	"github.com/mohammad-safakhou/hermes/tools/email"
	"github.com/mohammad-safakhou/hermes/tools/music"
	"github.com/mohammad-safakhou/hermes/tools/weather"
	"github.com/mohammad-safakhou/hermes/tools/web_fetch"
)

// app holds every long-lived component built from configuration.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	store     session.Store
	llm       provider.Provider
	selector  *selector.Selector
	engine    *workflow.Engine
	scheduler *scheduler.Scheduler
	assistant *assistant.Assistant
	docs      *docs.Service
}

func loadApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, telemetry: tel}

	if a.llm, err = provider.NewProvider(cfg.LLM); err != nil {
		return nil, err
	}
	if a.store, err = session.NewStore(ctx, cfg.Storage); err != nil {
		return nil, err
	}

	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Selector.Fetcher), web_fetch.Options{
		Timeout:   cfg.Selector.Timeout,
		UserAgent: cfg.Selector.UserAgent,
		Cookie:    cfg.Selector.Cookie,
	})
	if err != nil {
		return nil, err
	}
	if a.selector, err = selector.New(cfg.Selector, fetcher, a.llm,
		selector.WithLogger(logger), selector.WithMetrics(tel.Metrics)); err != nil {
		return nil, err
	}
	ag := agent.New(a.llm,
		agent.WithLogger(logger),
		agent.WithMetrics(tel.Metrics),
		agent.WithMaxRounds(cfg.LLM.MaxToolRounds))

	if err := a.buildEngine(ag); err != nil {
		return nil, err
	}

	a.scheduler = scheduler.New(
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(tel.Metrics),
		scheduler.WithTick(cfg.Scheduler.Tick))
	if err := a.buildAssistant(ag); err != nil {
		return nil, err
	}

	pageFetcher, err := web_fetch.NewWebFetcher(web_fetch.HTTPFetcherType, web_fetch.Options{UserAgent: cfg.Selector.UserAgent})
	if err != nil {
		return nil, err
	}
	if a.docs, err = docs.NewService(cfg.Docs, pageFetcher, a.llm, docs.WithLogger(logger)); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) buildEngine(ag *agent.Agent) error {
	markers := a.cfg.Workflow.Markers
	downloader, err := music.NewDownloader(a.cfg.Download, markers, music.WithLogger(a.logger))
	if err != nil {
		return err
	}
	search, err := agent.NewRegistry(music.NewSearchTool(a.selector, markers.CandidatesFound))
	if err != nil {
		return err
	}
	download, err := agent.NewRegistry(music.NewDownloadTool(downloader))
	if err != nil {
		return err
	}
	a.engine, err = workflow.New(a.store, ag,
		agent.Profile{Name: "analysis", Instructions: workflow.Instructions, Tools: search},
		agent.Profile{Name: "download", Instructions: workflow.Instructions, Tools: download},
		workflow.WithLogger(a.logger),
		workflow.WithMetrics(a.telemetry.Metrics),
		workflow.WithMarkers(workflow.MarkersFromConfig(markers)),
		workflow.WithMaxDownloadIterations(a.cfg.Workflow.MaxDownloadIterations),
		workflow.WithDownloadTool(music.DownloadToolName))
	return err
}

func (a *app) buildAssistant(ag *agent.Agent) error {
	tools := []agent.Tool{
		clock.New(nil),
		email.New(email.NewSMTPSender(a.cfg.Mail), a.scheduler, email.WithLogger(a.logger)),
	}
	if path := a.cfg.Weather.DistrictFile; path != "" {
		districts, err := weather.LoadDistrictFile(path)
		if err != nil {
			return fmt.Errorf("weather districts: %w", err)
		}
		tools = append(tools, weather.New(a.cfg.Weather, districts, weather.WithLogger(a.logger)))
	} else {
		a.logger.Warn("weather.district_file not set, weather tool disabled")
	}
	reg, err := agent.NewRegistry(tools...)
	if err != nil {
		return err
	}
	a.assistant = assistant.New(ag, reg, a.store, assistant.WithLogger(a.logger))
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.scheduler.Shutdown(ctx); err != nil {
		a.logger.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := a.docs.Close(); err != nil {
		a.logger.Warn("docs index close", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close", zap.Error(err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}
