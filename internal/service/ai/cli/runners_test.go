package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askbridge/internal/models"
)

func TestCodexArgs(t *testing.T) {
	r := NewCodexRunner("codex", []string{"serena", "playwright"}, zerolog.Nop())
	assert.Equal(t, []string{
		"exec", "--json",
		"-c", "mcp_servers.serena.enabled=false",
		"-c", "mcp_servers.playwright.enabled=false",
		"SYSTEM: hi",
	}, r.Args("SYSTEM: hi"))

	assert.Equal(t, []string{"exec", "--json", "p"}, NewCodexRunner("", nil, zerolog.Nop()).Args("p"))
	assert.Equal(t, "codex", NewCodexRunner("", nil, zerolog.Nop()).Name())
}

func TestCodexCollectsAgentMessages(t *testing.T) {
	record, argsFile := argsRecorder(t)
	script := writeScript(t, record+`
cat <<'EOF'
{"type":"thread.started","thread_id":"t1"}
{"type":"item.completed","item":{"type":"agent_message","text":"  最初の回答  "}}
this is not json

{"id":"0","msg":{"type":"agent_message","message":"続き"}}
EOF`)

	r := NewCodexRunner(script, []string{"serena"}, zerolog.Nop())
	out, err := r.Run(context.Background(), "USER: 質問", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "最初の回答\n\n続き", out.Content)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, []string{"line 3: malformed event"}, out.Warnings)
	assert.Equal(t, []string{"exec", "--json", "-c", "mcp_servers.serena.enabled=false", "USER: 質問"}, readArgs(t, argsFile))
}

func TestCodexExitPolicy(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		content  string
		warnings []string
		errMsg   string
		exitErr  bool
	}{
		{
			name:     "non-zero exit with answer succeeds",
			body:     `echo '{"type":"item.completed","item":{"type":"agent_message","text":"ok"}}'; exit 3`,
			content:  "ok",
			warnings: []string{"exit code 3"},
		},
		{
			name:     "error event before answer is kept as warning",
			body:     `echo '{"type":"error","message":"retrying"}'; echo '{"type":"item.completed","item":{"type":"agent_message","text":"ok"}}'`,
			content:  "ok",
			warnings: []string{"error event: retrying"},
		},
		{
			name:    "stderr wins without answer",
			body:    `echo '{"type":"turn.failed","error":{"message":"usage limit"}}'; echo 'not authenticated' >&2; exit 1`,
			errMsg:  "not authenticated",
			exitErr: true,
		},
		{
			name:    "error events without stderr",
			body:    `echo '{"type":"turn.failed","error":{"message":"usage limit"}}'; exit 1`,
			errMsg:  "usage limit",
			exitErr: true,
		},
		{
			name:    "synthesized message",
			body:    `exit 7`,
			errMsg:  "Codex CLI exited with code 7",
			exitErr: true,
		},
		{
			name:   "clean exit without answer",
			body:   `echo '{"type":"thread.started"}'`,
			errMsg: "Codex CLI returned no agent message",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCodexRunner(writeScript(t, tt.body), nil, zerolog.Nop())
			out, err := r.Run(context.Background(), "p", 5*time.Second)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Nil(t, out)
				assert.Equal(t, tt.errMsg, err.Error())
				assert.Equal(t, tt.exitErr, errors.Is(err, models.ErrCLINonZeroExit))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.content, out.Content)
			assert.Equal(t, tt.warnings, out.Warnings)
		})
	}
}

func TestCodexTimeout(t *testing.T) {
	r := NewCodexRunner(writeScript(t, `exec sleep 30`), nil, zerolog.Nop())
	_, err := r.Run(context.Background(), "p", 150*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCLITimeout))
	assert.Contains(t, err.Error(), "Codex CLI")
}

func TestClaudeArgs(t *testing.T) {
	assert.Equal(t, []string{"-p", "--model", "sonnet", "prompt"}, NewClaudeRunner("claude", " sonnet ", zerolog.Nop()).Args("prompt"))
	assert.Equal(t, []string{"-p", "prompt"}, NewClaudeRunner("", "", zerolog.Nop()).Args("prompt"))
}

func TestClaudeReturnsTrimmedStdout(t *testing.T) {
	record, argsFile := argsRecorder(t)
	script := writeScript(t, record+`
printf '\n  - 改善: 余白を広げる\n\n'`)

	out, err := NewClaudeRunner(script, "opus", zerolog.Nop()).Run(context.Background(), "sys\n\nuser", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "- 改善: 余白を広げる", out.Content)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, []string{"-p", "--model", "opus", "sys", "", "user"}, readArgs(t, argsFile))
}

func TestClaudeExitPolicy(t *testing.T) {
	t.Run("empty output on success", func(t *testing.T) {
		out, err := NewClaudeRunner(writeScript(t, `exit 0`), "", zerolog.Nop()).Run(context.Background(), "p", 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "", out.Content)
	})

	t.Run("answer despite failure", func(t *testing.T) {
		out, err := NewClaudeRunner(writeScript(t, `echo answer; exit 2`), "", zerolog.Nop()).Run(context.Background(), "p", 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "answer", out.Content)
		assert.Equal(t, 2, out.ExitCode)
		assert.Equal(t, []string{"exit code 2"}, out.Warnings)
	})

	t.Run("stderr", func(t *testing.T) {
		_, err := NewClaudeRunner(writeScript(t, `echo 'Invalid API key' >&2; exit 1`), "", zerolog.Nop()).Run(context.Background(), "p", 5*time.Second)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrCLINonZeroExit))
		assert.Equal(t, "Invalid API key", err.Error())
	})

	t.Run("synthesized", func(t *testing.T) {
		_, err := NewClaudeRunner(writeScript(t, `exit 2`), "", zerolog.Nop()).Run(context.Background(), "p", 5*time.Second)
		require.Error(t, err)
		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 2, exitErr.Code)
		assert.Equal(t, "Claude CLI exited with code 2", err.Error())
	})
}
