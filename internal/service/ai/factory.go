package ai

import (
	"context"

	"github.com/rs/zerolog"

	"askbridge/internal/config"
	"askbridge/internal/service/ai/cli"
)

// NewClients builds one client per tool according to its configured mode.
func NewClients(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]ChatClient, error) {
	var clients []ChatClient

	if cfg.Codex.Mode == config.ModeAPI {
		c, err := NewOpenAIModelClient(ctx, APIConfig{
			APIKey:  cfg.Codex.APIKey,
			BaseURL: cfg.Codex.BaseURL,
			Model:   cfg.Codex.APIModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	} else {
		runner := cli.NewCodexRunner(cfg.Codex.Command, cfg.Codex.DisabledMCPServers, logger)
		clients = append(clients, NewCodexClient(runner, cfg.Codex.Fallback, logger))
	}

	if cfg.Claude.Mode == config.ModeAPI {
		c, err := NewClaudeModelClient(ctx, APIConfig{
			APIKey:  cfg.Claude.APIKey,
			BaseURL: cfg.Claude.BaseURL,
			Model:   cfg.Claude.APIModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	} else {
		runner := cli.NewClaudeRunner(cfg.Claude.Command, cfg.Claude.Model, logger)
		clients = append(clients, NewClaudeClient(runner, cfg.Claude.Fallback, logger))
	}

	logger.Info().
		Str("codex_mode", cfg.Codex.Mode).
		Str("claude_mode", cfg.Claude.Mode).
		Msg("chat clients ready")
	return clients, nil
}
