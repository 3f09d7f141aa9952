// Package cli runs language-model command-line tools as subprocesses.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"askbridge/internal/models"
)

const (
	// DefaultTimeout bounds one CLI invocation unless the caller overrides it.
	DefaultTimeout = 300 * time.Second
	// killGrace is how long a process may linger after SIGTERM, or its
	// output may stay open after it exits, before it is killed and its pipes
	// are closed.
	killGrace = 3 * time.Second
)

// Process describes one command invocation. Label names the program in
// error messages and defaults to Name.
type Process struct {
	Name  string
	Args  []string
	Label string
}

func (p Process) label() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Name
}

// Result is what a finished process produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// TimeoutError reports a process terminated by its deadline.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Command, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return models.ErrCLITimeout }

// ExitError reports a process that exited non-zero without usable output.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
}

func (e *ExitError) Unwrap() error { return models.ErrCLINonZeroExit }

// Run starts proc, hands every complete stdout line to onLine (may be nil)
// and waits for the process to exit. A non-zero exit is reported through
// Result.ExitCode, not as an error; errors are reserved for spawn failures
// and the deadline. The deadline timer is released on every return path.
func Run(ctx context.Context, proc Process, timeout time.Duration, onLine func([]byte)) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := &lineWriter{onLine: onLine}
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, proc.Name, proc.Args...)
	cmd.Env = os.Environ()
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return terminateGroup(cmd)
	}
	cmd.WaitDelay = killGrace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", proc.Name, err)
	}
	waitErr := cmd.Wait()
	// Helpers left behind by the CLI do not outlive the invocation.
	killGroup(cmd)
	stdout.flush()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, &TimeoutError{Command: proc.label(), Timeout: timeout}
	}
	if waitErr != nil && ctx.Err() != nil {
		return res, fmt.Errorf("%s canceled: %w", proc.label(), ctx.Err())
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		// The CLI itself exited; a leftover child kept its output open.
		res.ExitCode = cmd.ProcessState.ExitCode()
		return res, nil
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("wait %s: %w", proc.label(), waitErr)
	}
	return res, nil
}

// lineWriter keeps everything written to it and reports each complete line
// (without the trailing newline) as soon as it arrives.
type lineWriter struct {
	all     bytes.Buffer
	pending []byte
	onLine  func([]byte)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.all.Write(p)
	if w.onLine == nil {
		return len(p), nil
	}
	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		w.onLine(bytes.TrimRight(w.pending[:idx], "\r"))
		w.pending = w.pending[idx+1:]
	}
	return len(p), nil
}

// flush delivers a final unterminated line.
func (w *lineWriter) flush() {
	if w.onLine != nil && len(w.pending) > 0 {
		w.onLine(bytes.TrimRight(w.pending, "\r"))
	}
	w.pending = nil
}

func (w *lineWriter) String() string { return w.all.String() }
