package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vk/ensembleeval/internal/app"
)

// Exit codes.
const (
	ExitFailure     = 1
	ExitUsage       = 2
	ExitTooFewReals = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

// NewRootCommand builds the command tree. Command output goes to outW.
func NewRootCommand(outW io.Writer, appOpts ...app.Option) *cobra.Command {
	root := &cobra.Command{
		Use:   "ensembleeval",
		Short: "Evaluate ensembles of simulation realizations",
		Long: `ensembleeval runs every active realization of an ensemble, tracks the
state of each job and reports it to an aggregator over websockets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(
		newRunCommand(appOpts),
		newServeCommand(appOpts),
		newSnapshotCommand(),
	)
	return root
}

// Execute runs the command line args and maps failures to ExitErrors.
func Execute(ctx context.Context, args []string, outW io.Writer, appOpts ...app.Option) error {
	slog.Debug("CLI parser started.", "args", args)
	root := NewRootCommand(outW, appOpts...)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if errors.Is(err, app.ErrTooFewRealizations) {
		return &ExitError{Code: ExitTooFewReals, Message: err.Error()}
	}
	return &ExitError{Code: ExitFailure, Message: err.Error()}
}
