package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const claudeLabel = "Claude CLI"

// ClaudeRunner drives `claude -p` in plain text mode.
type ClaudeRunner struct {
	command string
	model   string
	logger  zerolog.Logger
}

// NewClaudeRunner returns a runner for the given executable. An empty model
// leaves the choice to the CLI.
func NewClaudeRunner(command, model string, logger zerolog.Logger) *ClaudeRunner {
	if command == "" {
		command = "claude"
	}
	return &ClaudeRunner{
		command: command,
		model:   strings.TrimSpace(model),
		logger:  logger.With().Str("runner", "claude").Logger(),
	}
}

func (r *ClaudeRunner) Name() string { return r.command }

// Args returns the argument vector for prompt.
func (r *ClaudeRunner) Args(prompt string) []string {
	args := []string{"-p"}
	if r.model != "" {
		args = append(args, "--model", r.model)
	}
	return append(args, prompt)
}

func (r *ClaudeRunner) Run(ctx context.Context, prompt string, timeout time.Duration) (*Output, error) {
	r.logger.Debug().Int("prompt_len", len(prompt)).Str("model", r.model).Msg("starting claude")
	res, err := Run(ctx, Process{Name: r.command, Args: r.Args(prompt), Label: claudeLabel}, timeout, nil)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(res.Stdout)
	out := &Output{
		Content:  content,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Duration: res.Duration,
	}
	if res.ExitCode == 0 {
		return out, nil
	}
	if content == "" {
		return nil, exitFailure(claudeLabel, res, nil)
	}
	r.logger.Warn().Int("exit_code", res.ExitCode).Msg("claude exited non-zero but produced an answer")
	out.Warnings = append(out.Warnings, fmt.Sprintf("exit code %d", res.ExitCode))
	return out, nil
}
