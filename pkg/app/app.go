// Package app assembles a research engine from configuration. Both the CLI
// and the HTTP server start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mikeboe/deep-research/pkg/agents"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/delivery"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/research/tools"
)

// Pipeline is a ready engine plus the resources it holds open.
type Pipeline struct {
	Engine  *research.Engine
	closers []func() error
}

// Close releases the pipeline's connections.
func (p *Pipeline) Close() {
	for _, c := range p.closers {
		_ = c()
	}
}

// Build creates the models, search backend, agents and deliverer described
// by cfg and returns an engine sequencing them.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{}

	models, err := buildModels(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, err := tools.NewProvider(tools.ProviderName(cfg.SearchProvider), cfg.SearchApiKey(), cfg.SearchTimeout)
	if err != nil {
		return nil, err
	}
	if cfg.RedisURL != "" {
		rdb, err := tools.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Search cache unavailable", "error", err)
		} else {
			p.closers = append(p.closers, rdb.Close)
			provider = tools.NewCachedProvider(provider, tools.NewRedisCache(rdb), cfg.SearchCacheTTL, logger)
		}
	}
	fetcher := tools.NewFetcher(&http.Client{Timeout: cfg.SearchTimeout}, 0)

	rc := cfg.Research()
	roles := agents.Build(models, provider, fetcher, rc, cfg.EvaluatorReportLimit, agents.Options{
		Logger:      logger,
		MaxAttempts: cfg.LLMMaxAttempts,
	})
	roles.Deliverer = buildDeliverer(cfg, logger)

	engine, err := research.NewEngine(rc, roles, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Engine = engine
	return p, nil
}

func buildModels(ctx context.Context, cfg *config.Config) (agents.Models, error) {
	provider := clients.Provider(cfg.LLMProvider)
	reasoningModel, fastModel := clients.DefaultModels(provider)
	if cfg.ReasoningModel != "" {
		reasoningModel = clients.ModelType(cfg.ReasoningModel)
	}
	if cfg.FastModel != "" {
		fastModel = clients.ModelType(cfg.FastModel)
	}

	reasoning, err := clients.New(ctx, clients.Settings{Provider: provider, APIKey: cfg.LLMApiKey(), Model: reasoningModel})
	if err != nil {
		return agents.Models{}, fmt.Errorf("failed to create reasoning model: %w", err)
	}
	fast, err := clients.New(ctx, clients.Settings{Provider: provider, APIKey: cfg.LLMApiKey(), Model: fastModel})
	if err != nil {
		return agents.Models{}, fmt.Errorf("failed to create fast model: %w", err)
	}
	return agents.Models{Reasoning: reasoning, Fast: fast}, nil
}

// buildDeliverer mails through SendGrid when it is fully configured and
// otherwise only logs the message it would have sent.
func buildDeliverer(cfg *config.Config, logger *slog.Logger) research.Deliverer {
	var mailer delivery.Mailer = delivery.LogMailer{Logger: logger}
	if cfg.EmailEnabled() {
		mailer = delivery.NewSendGridMailer(cfg.SendGridApiKey, cfg.EmailFromName)
	}
	return delivery.NewEmailDeliverer(mailer, cfg.EmailFrom, cfg.EmailTo, logger)
}
