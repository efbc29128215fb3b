package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/rival/internal/analyzer"
	"github.com/FranksOps/rival/internal/cache"
	"github.com/FranksOps/rival/internal/config"
	"github.com/FranksOps/rival/internal/fingerprint"
	"github.com/FranksOps/rival/internal/llm"
	"github.com/FranksOps/rival/internal/pipeline"
	"github.com/FranksOps/rival/internal/report"
	"github.com/FranksOps/rival/internal/scraper"
	"github.com/FranksOps/rival/internal/serp"
	"github.com/FranksOps/rival/pkg/httpclient"
	"github.com/FranksOps/rival/pkg/proxy"
	"github.com/FranksOps/rival/pkg/ratelimit"
	"github.com/FranksOps/rival/pkg/useragent"
)

// app is the wired collector. The store is owned here and closed by Close.
type app struct {
	store     *cache.Store
	pipeline  *pipeline.Pipeline
	assembler *report.Assembler
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cache.Store, error) {
	backend, err := cache.OpenBackend(ctx, cache.BackendConfig{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DSN,
		Prefix: cfg.Store.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	return cache.New(backend, cache.Config{
		Policy:  cfg.Policy(),
		Timeout: cfg.Store.Timeout,
		Logger:  logger,
	}), nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	searchClient, err := httpclient.New(httpclient.Config{Timeout: cfg.Search.Timeout})
	if err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}
	searcher, err := serp.New(serp.Config{
		Provider: cfg.Search.Provider,
		APIKey:   cfg.Search.APIKey(),
		EngineID: cfg.Search.EngineID,
		Endpoint: cfg.Search.Endpoint,
		Logger:   logger,
	}, searchClient)
	if err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	provider, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey(),
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, err
	}
	an := analyzer.New(provider, analyzer.Config{
		Limiter:         ratelimit.NewLimiter(cfg.LLM.RPS, 0),
		MaxContentChars: cfg.LLM.MaxContentChars,
		Logger:          logger,
	})

	pcfg := pipeline.Config{
		Concurrency:    cfg.Pipeline.Concurrency,
		SearchTimeout:  cfg.Search.Timeout,
		FetchTimeout:   cfg.Fetch.Timeout,
		AnalyzeTimeout: cfg.LLM.Timeout,
		FetchPages:     cfg.Search.FetchPages,
	}
	if cfg.Competitor.MaxPages > 1 {
		pcfg.Crawler = scraper.NewCrawler(scraper.CrawlConfig{
			MaxPages:      cfg.Competitor.MaxPages,
			MaxDepth:      cfg.Competitor.MaxDepth,
			RespectRobots: cfg.Competitor.RespectRobots,
			UseSitemap:    cfg.Competitor.UseSitemap,
			ExtraTimeout:  cfg.Fetch.Timeout,
		}, fetcher, logger)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("collector ready",
		"store", cfg.Store.Driver,
		"search", searcher.Name(),
		"llm", provider.Name(),
		"model", provider.Model(),
		"crawl_pages", cfg.Competitor.MaxPages,
	)
	return &app{
		store:     store,
		pipeline:  pipeline.New(pcfg, store, searcher, fetcher, an, logger),
		assembler: report.NewAssembler(an, report.AssemblerConfig{Timeout: cfg.LLM.Timeout, Logger: logger}),
	}, nil
}

func newFetcher(cfg *config.Config, logger *slog.Logger) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.Fingerprint)
	if err != nil {
		return nil, err
	}
	strategy, err := useragent.ParseStrategy(cfg.Fetch.UAStrategy)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if cfg.Fetch.ProxyFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.LoadFile(cfg.Fetch.ProxyFile); err != nil {
			return nil, err
		}
		logger.Info("loaded proxies", "count", proxies.Len())
	}

	return scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		ProxyPool:    proxies,
		UAPool:       useragent.NewPool(cfg.Fetch.UserAgents, strategy),
		Fingerprint:  profile,
		Limiter:      ratelimit.NewLimiter(cfg.Fetch.RPS, cfg.Fetch.Jitter),
		Logger:       logger,
	})
}

func (a *app) Close() error {
	return a.store.Close()
}
