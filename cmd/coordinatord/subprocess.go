package main

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/netsuite-assist/coordinator/internal/repository"
)

// execSubprocess is the default repository.Subprocess implementation:
// os/exec under a hard timeout with a caller-supplied minimal environment.
// sandbox isolation beyond that (containers, microVMs, remote workspaces)
// is an operator-supplied Subprocess this type is swapped out for; it is
// not this binary's concern.
type execSubprocess struct{}

func (execSubprocess) Run(ctx context.Context, argv []string, cwd string, env []string, timeout time.Duration) (repository.SubprocessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = cwd
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := repository.SubprocessResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}
