// Package process runs external binaries and captures their output.
package process

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/jensneuse/abstractlogger"
	"github.com/pkg/errors"
)

// ErrStart is returned when the binary could not be started at all.
var ErrStart = errors.New("start process")

// Result is the outcome of a process that ran to completion.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Executor runs a binary. A non-zero exit code is reported through Result, not as an error.
type Executor interface {
	Exec(ctx context.Context, binary string, args []string, stdin io.Reader) (Result, error)
}

// OSExecutor runs binaries with os/exec.
type OSExecutor struct {
	logger abstractlogger.Logger
}

func NewOSExecutor(logger abstractlogger.Logger) *OSExecutor {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &OSExecutor{logger: logger}
}

func (e *OSExecutor) Exec(ctx context.Context, binary string, args []string, stdin io.Reader) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("process.Exec",
		abstractlogger.String("binary", binary),
		abstractlogger.Any("args", args),
	)

	if err := cmd.Start(); err != nil {
		return Result{}, errors.Wrapf(ErrStart, "%s: %v", binary, err)
	}

	err := cmd.Wait()
	result := Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, errors.Wrapf(ctxErr, "run %s", binary)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		e.logger.Debug("process.Exec",
			abstractlogger.String("binary", binary),
			abstractlogger.Int("exitCode", result.ExitCode),
		)
		return result, nil
	}
	return result, errors.Wrapf(err, "run %s", binary)
}
