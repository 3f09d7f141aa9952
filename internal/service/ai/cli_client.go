package ai

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"askbridge/internal/models"
	"askbridge/internal/service/ai/cli"
)

// ComposeFunc serializes a message sequence into a single CLI prompt.
type ComposeFunc func(messages []models.ChatMessage) string

// CLIClient answers chats by running a command-line backend. With fallback
// enabled a failed run still produces a usable, clearly labelled answer.
type CLIClient struct {
	tool     models.Tool
	runner   cli.Runner
	compose  ComposeFunc
	fallback bool
	logger   zerolog.Logger
}

func NewCLIClient(tool models.Tool, runner cli.Runner, compose ComposeFunc, fallback bool, logger zerolog.Logger) *CLIClient {
	return &CLIClient{
		tool:     tool,
		runner:   runner,
		compose:  compose,
		fallback: fallback,
		logger:   logger.With().Str("client", string(tool)+"-cli").Logger(),
	}
}

// NewCodexClient wires the codex runner with role-prefixed prompt lines.
func NewCodexClient(runner cli.Runner, fallback bool, logger zerolog.Logger) *CLIClient {
	return NewCLIClient(models.ToolCodex, runner, ComposeRolePrefixed, fallback, logger)
}

// NewClaudeClient wires the claude runner with a system + user prompt.
func NewClaudeClient(runner cli.Runner, fallback bool, logger zerolog.Logger) *CLIClient {
	return NewCLIClient(models.ToolClaude, runner, ComposeSystemAndUser, fallback, logger)
}

func (c *CLIClient) Supports(tool models.Tool) bool { return tool == c.tool }

func (c *CLIClient) Chat(ctx context.Context, messages []models.ChatMessage, opts ChatOptions) (*ChatResult, error) {
	out, err := c.runner.Run(ctx, c.compose(messages), opts.Timeout)
	if err != nil {
		if !c.fallback {
			return nil, err
		}
		c.logger.Warn().Err(err).Str("command", c.runner.Name()).Msg("cli failed, returning fallback answer")
		return &ChatResult{
			Content: BuildFallbackAnswer(c.tool, messages, err),
			Raw: map[string]any{
				"source":   string(c.tool) + "-fallback",
				"fallback": true,
				"error":    map[string]any{"message": err.Error()},
			},
		}, nil
	}

	raw := map[string]any{
		"source":     string(c.tool) + "-cli",
		"command":    c.runner.Name(),
		"exitCode":   out.ExitCode,
		"durationMs": out.Duration.Milliseconds(),
	}
	if len(out.Warnings) > 0 {
		raw["warnings"] = out.Warnings
	}
	return &ChatResult{Content: out.Content, Raw: raw}, nil
}

// ComposeRolePrefixed renders one "ROLE: content" line per message.
func ComposeRolePrefixed(messages []models.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, strings.ToUpper(string(m.Role))+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// ComposeSystemAndUser joins the last system message and the last user
// message with a blank line. Earlier turns are not forwarded.
func ComposeSystemAndUser(messages []models.ChatMessage) string {
	var system, user string
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = m.Content
		case models.RoleUser:
			user = m.Content
		}
	}
	switch {
	case system == "":
		return user
	case user == "":
		return system
	}
	return system + "\n\n" + user
}
