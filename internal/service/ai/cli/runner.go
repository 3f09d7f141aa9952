package cli

import (
	"context"
	"strings"
	"time"
)

// Runner executes one prompt against a command-line model backend.
type Runner interface {
	// Name is the executable the runner spawns.
	Name() string
	Run(ctx context.Context, prompt string, timeout time.Duration) (*Output, error)
}

// Output is the usable answer of a finished invocation.
type Output struct {
	Content  string
	Stderr   string
	ExitCode int
	Duration time.Duration
	// Warnings collects recoverable stream problems (malformed lines, error
	// events followed by an answer, non-zero exits with content).
	Warnings []string
}

// exitFailure builds the error for a run that produced no usable content.
func exitFailure(label string, res *Result, diagnostics []string) *ExitError {
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(strings.Join(diagnostics, "\n"))
	}
	return &ExitError{Command: label, Code: res.ExitCode, Stderr: detail}
}
