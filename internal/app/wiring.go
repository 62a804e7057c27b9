package app

import (
	"context"
	"fmt"

	"ai-weekly-planner/internal/config"
	"ai-weekly-planner/internal/ghost"
	"ai-weekly-planner/internal/llm"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/planner"
)

// NewGenerator selects the generation backend: the HTTP proxy when
// GENERATION_PROXY_URL is set, Gemini otherwise. The returned close func
// releases the backend and is never nil.
func NewGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, func() error, error) {
	var (
		gen     llm.Generator
		closeFn = func() error { return nil }
	)
	if cfg.GenerationProxyURL != "" {
		gen = llm.NewProxyClient(cfg.GenerationProxyURL, cfg.GeminiModel)
	} else {
		client, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		gen, closeFn = client, client.Close
	}
	return llm.NewThrottledGenerator(gen, cfg.MinCallInterval), closeFn, nil
}

// NewPlanner builds a planner tuned by the configuration.
func NewPlanner(cfg *config.Config, gen llm.Generator, log *logger.Logger) (*planner.Planner, error) {
	policy, err := planner.PolicyByName(cfg.DayAttemptPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to select attempt policy: %w", err)
	}
	return planner.NewPlanner(gen,
		planner.WithModel(cfg.GeminiModel),
		planner.WithTokenLimit(cfg.ModelTokenLimit),
		planner.WithThresholds(cfg.SimilarityUnique, cfg.SimilarityReject),
		planner.WithDayAttempts(policy),
		planner.WithBatchSize(cfg.BatchSize),
		planner.WithLogger(log.Named("planner")),
	), nil
}

// NewGhostClient returns nil when publishing is not configured.
func NewGhostClient(cfg *config.Config) ghost.Client {
	if !cfg.GhostEnabled() {
		return nil
	}
	return ghost.NewClient(cfg)
}
