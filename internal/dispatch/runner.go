package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/entity"
)

// JobRunner runs a single job in a run path.
type JobRunner interface {
	Run(ctx context.Context, job *entity.Job, runPath string) error
}

// JobRunnerFunc adapts a function to JobRunner.
type JobRunnerFunc func(ctx context.Context, job *entity.Job, runPath string) error

// Run calls f.
func (f JobRunnerFunc) Run(ctx context.Context, job *entity.Job, runPath string) error {
	return f(ctx, job, runPath)
}

// ExecRunner starts the job executable as a child process. Paths in the
// executable spec are relative to the run path.
type ExecRunner struct{}

// Run starts the executable with its argument list and waits for it. The
// job fails when the process fails, when its error file exists afterwards,
// or when its target file does not.
func (ExecRunner) Run(ctx context.Context, job *entity.Job, runPath string) error {
	ext := job.ExtJob()
	logger := ctxlog.FromContext(ctx).With("job", job.Name(), "executable", ext.Executable)

	if err := checkArgs(ext); err != nil {
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}

	if ext.MaxRunningMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ext.MaxRunningMinutes)*time.Minute)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, ext.Executable, ext.ArgList...)
	cmd.Dir = runPath
	cmd.Env = append(os.Environ(), environ(ext.Environment)...)
	cmd.Env = append(cmd.Env, environ(ext.ExecEnv)...)

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	if ext.Stdout != "" {
		f, err := os.Create(resolve(runPath, ext.Stdout))
		if err != nil {
			return fmt.Errorf("job %s: opening stdout: %w", job.Name(), err)
		}
		closers = append(closers, f)
		cmd.Stdout = f
	}
	if ext.Stderr != "" {
		f, err := os.Create(resolve(runPath, ext.Stderr))
		if err != nil {
			return fmt.Errorf("job %s: opening stderr: %w", job.Name(), err)
		}
		closers = append(closers, f)
		cmd.Stderr = f
	}
	if ext.Stdin != "" {
		f, err := os.Open(resolve(runPath, ext.Stdin))
		if err != nil {
			return fmt.Errorf("job %s: opening stdin: %w", job.Name(), err)
		}
		closers = append(closers, f)
		cmd.Stdin = f
	}

	logger.Debug("Starting job", "args", ext.ArgList, "runPath", runPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}

	if ext.ErrorFile != "" {
		if _, err := os.Stat(resolve(runPath, ext.ErrorFile)); err == nil {
			return fmt.Errorf("job %s: error file %s was created", job.Name(), ext.ErrorFile)
		}
	}
	if ext.TargetFile != "" {
		if _, err := os.Stat(resolve(runPath, ext.TargetFile)); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("job %s: target file %s was not created", job.Name(), ext.TargetFile)
		}
	}
	return nil
}

func checkArgs(ext entity.ExtJob) error {
	n := len(ext.ArgList)
	if ext.MinArg > 0 && n < ext.MinArg {
		return fmt.Errorf("needs at least %d arguments, got %d", ext.MinArg, n)
	}
	if ext.MaxArg > 0 && n > ext.MaxArg {
		return fmt.Errorf("takes at most %d arguments, got %d", ext.MaxArg, n)
	}
	return nil
}

func resolve(runPath, p string) string {
	if filepath.IsAbs(p) || runPath == "" {
		return p
	}
	return filepath.Join(runPath, p)
}

func environ(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
