package engine

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tfharrelson/md-flow/internal/ctxlog"
)

// DefaultBinary is the engine binary looked up in PATH.
const DefaultBinary = "gmx"

// Command runs invocations with the engine binary.
type Command struct {
	binary string
	env    []string
}

type CommandOption func(c *Command)

// WithBinary sets the engine binary, a name looked up in PATH or a path.
func WithBinary(binary string) CommandOption {
	return func(c *Command) {
		c.binary = binary
	}
}

// NewCommand returns an Engine running DefaultBinary. Tools inherit the environment of the
// process with GMX_MAXBACKUP=-1, so outputs are overwritten in place instead of backed up.
func NewCommand(opts ...CommandOption) *Command {
	c := &Command{
		binary: DefaultBinary,
		env:    []string{"GMX_MAXBACKUP=-1"},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes inv and waits for the tool to exit. Cancelling ctx kills the tool.
func (c *Command) Run(ctx context.Context, inv Invocation) (Result, error) {
	if inv.Tool == "" {
		return Result{}, errors.New("tool must be set")
	}

	logger := ctxlog.FromContext(ctx).With("tool", inv.Tool)
	argv := inv.Argv()

	cmd := exec.CommandContext(ctx, c.binary, argv...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), c.env...)
	setProcessGroup(cmd)
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running tool.", "argv", argv, "dir", inv.Dir)
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		toolErr := &ExternalToolError{
			Tool:     inv.Tool,
			Args:     argv,
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			toolErr.Err = ctx.Err()
		}
		logger.Error("Tool failed.", "exit_code", toolErr.ExitCode, "duration", elapsed)

		return Result{}, toolErr
	}

	res, err := Complete(inv, stdout.String(), elapsed)
	if err != nil {
		var toolErr *ExternalToolError
		if errors.As(err, &toolErr) {
			toolErr.Stderr = stderr.String()
		}
		return Result{}, err
	}
	logger.Debug("Tool completed.", "duration", elapsed)

	return res, nil
}
