// Package media wraps the ffmpeg and ffprobe invocations the pipeline needs:
// re-encoding an artifact to a smaller representation, splitting it into
// fixed-duration segments, and probing its duration.
package media

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CommandResult captures one external command invocation.
type CommandResult struct {
	Command  string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Command: name,
		Args:    args,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// EncodeOptions is the target representation for compression and chunking.
type EncodeOptions struct {
	SampleRate int
	Channels   int
	Bitrate    string
}

// DefaultEncodeOptions is mono, 16 kHz, 48 kbps.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{SampleRate: 16000, Channels: 1, Bitrate: "48k"}
}

func (o EncodeOptions) args() []string {
	if o.SampleRate <= 0 || o.Channels <= 0 || strings.TrimSpace(o.Bitrate) == "" {
		o = DefaultEncodeOptions()
	}
	return []string{
		"-ac", strconv.Itoa(o.Channels),
		"-ar", strconv.Itoa(o.SampleRate),
		"-b:a", o.Bitrate,
	}
}

// WithTimeout bounds every command run through r by d. A zero d returns r.
func WithTimeout(r Runner, d time.Duration) Runner {
	if d <= 0 {
		return r
	}
	return timeoutRunner{runner: r, timeout: d}
}

type timeoutRunner struct {
	runner  Runner
	timeout time.Duration
}

func (t timeoutRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.runner.Run(ctx, name, args...)
}
