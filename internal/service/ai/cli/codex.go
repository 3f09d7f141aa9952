package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const codexLabel = "Codex CLI"

// CodexRunner drives `codex exec --json` and assembles the answer from the
// agent messages of its event stream.
type CodexRunner struct {
	command     string
	disabledMCP []string
	logger      zerolog.Logger
}

// NewCodexRunner returns a runner for the given executable. Every name in
// disabledMCP is switched off for the invocation through a config override.
func NewCodexRunner(command string, disabledMCP []string, logger zerolog.Logger) *CodexRunner {
	if command == "" {
		command = "codex"
	}
	return &CodexRunner{
		command:     command,
		disabledMCP: append([]string(nil), disabledMCP...),
		logger:      logger.With().Str("runner", "codex").Logger(),
	}
}

func (r *CodexRunner) Name() string { return r.command }

// Args returns the argument vector for prompt.
func (r *CodexRunner) Args(prompt string) []string {
	args := make([]string, 0, 3+2*len(r.disabledMCP))
	args = append(args, "exec", "--json")
	for _, name := range r.disabledMCP {
		args = append(args, "-c", fmt.Sprintf("mcp_servers.%s.enabled=false", name))
	}
	return append(args, prompt)
}

func (r *CodexRunner) Run(ctx context.Context, prompt string, timeout time.Duration) (*Output, error) {
	var (
		messages    []string
		diagnostics []string
		warnings    []string
		lineNo      int
	)
	onLine := func(line []byte) {
		lineNo++
		switch ev := DecodeEvent(line).(type) {
		case AgentMessage:
			if text := strings.TrimSpace(ev.Text); text != "" {
				messages = append(messages, text)
			}
		case ErrorEvent:
			if ev.Message != "" {
				diagnostics = append(diagnostics, ev.Message)
			}
		case Unrecognized:
			if ev.Malformed && len(strings.TrimSpace(string(line))) > 0 {
				r.logger.Warn().Int("line", lineNo).Msg("skipping malformed event line")
				warnings = append(warnings, fmt.Sprintf("line %d: malformed event", lineNo))
			}
		}
	}

	r.logger.Debug().Int("prompt_len", len(prompt)).Strs("disabled_mcp", r.disabledMCP).Msg("starting codex")
	res, err := Run(ctx, Process{Name: r.command, Args: r.Args(prompt), Label: codexLabel}, timeout, onLine)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(strings.Join(messages, "\n\n"))
	if content == "" {
		if res.ExitCode != 0 {
			return nil, exitFailure(codexLabel, res, diagnostics)
		}
		if len(diagnostics) > 0 {
			return nil, fmt.Errorf("%s reported: %s", codexLabel, strings.Join(diagnostics, "; "))
		}
		return nil, fmt.Errorf("%s returned no agent message", codexLabel)
	}

	for _, d := range diagnostics {
		warnings = append(warnings, "error event: "+d)
	}
	if res.ExitCode != 0 {
		r.logger.Warn().Int("exit_code", res.ExitCode).Msg("codex exited non-zero but produced an answer")
		warnings = append(warnings, fmt.Sprintf("exit code %d", res.ExitCode))
	}
	return &Output{
		Content:  content,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Duration: res.Duration,
		Warnings: warnings,
	}, nil
}
