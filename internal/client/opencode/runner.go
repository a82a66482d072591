package opencodeclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const service = "opencode"

// Runner executes the opencode CLI. Arguments are passed straight to the
// process, never through a shell, and at most maxConcurrent runs are in
// flight at once.
type Runner struct {
	binary    string
	sem       *semaphore.Weighted
	log       *slog.Logger
	waitDelay time.Duration
}

func NewRunner(log *slog.Logger, binary string, maxConcurrent int) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{
		binary:    binary,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		log:       log,
		waitDelay: 2 * time.Second,
	}
}

// RunAgent runs `opencode run --agent <agent> <prompt>`.
func (r *Runner) RunAgent(ctx context.Context, agent, prompt string) (dto.AgentRun, error) {
	return r.Run(ctx, "run", "--agent", agent, prompt)
}

// RunPrompt runs `opencode run <prompt>` with the default agent.
func (r *Runner) RunPrompt(ctx context.Context, prompt string) (dto.AgentRun, error) {
	return r.Run(ctx, "run", prompt)
}

// Run waits for a free slot, runs the binary and returns its output. A
// cancelled or expired ctx kills the process. Exit status decides success:
// stderr on a zero exit is only an error when stdout is empty.
func (r *Runner) Run(ctx context.Context, args ...string) (dto.AgentRun, error) {
	var out dto.AgentRun
	log := logger.FromContext(ctx)

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return out, fmt.Errorf("waiting for a free opencode slot: %w", err)
	}
	defer r.sem.Release(1)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.waitDelay

	start := time.Now()
	err := cmd.Run()
	out.Duration = time.Since(start)
	out.Stdout = strings.TrimSpace(stdout.String())
	out.Stderr = strings.TrimSpace(stderr.String())
	out.ExitCode = cmd.ProcessState.ExitCode()

	log.Debug("opencode finished",
		"args", len(args),
		"exit_code", out.ExitCode,
		"duration", out.Duration)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("opencode interrupted: %w", ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		msg := out.Stderr
		if msg == "" {
			msg = fmt.Sprintf("opencode exited with status %d", out.ExitCode)
		}
		return out, errs.NewExternalServiceError(service, msg, false, err)
	case err != nil:
		return out, errs.NewExternalServiceError(service, "Failed to start opencode: "+err.Error(), false, err)
	}

	if out.Stdout == "" {
		msg := out.Stderr
		if msg == "" {
			msg = "opencode returned no output"
		}
		return out, errs.NewExternalServiceError(service, msg, false, nil)
	}
	if out.Stderr != "" {
		log.Warn("opencode wrote to stderr", "stderr", logger.Preview(out.Stderr, 200))
	}
	return out, nil
}

// Available reports whether the binary can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

func (r *Runner) Healthy(context.Context) bool {
	return r.Available()
}
