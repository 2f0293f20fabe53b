package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Run executes the CLI with args (excluding argv[0]) and returns the semantic
// exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) (Result, error) {
	c, root := newCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if c.ran {
		return c.result, err
	}
	if err != nil {
		var invErr *InvocationError
		if !errors.As(err, &invErr) {
			err = invalidInvocationf("%v", err)
		}
		return Result{ExitCode: ExitCode(err)}, err
	}
	return Result{ExitCode: ExitSuccess}, nil
}

// PrintError writes err the way the binary reports fatal errors.
func PrintError(w io.Writer, err error) {
	if err == nil || errors.Is(err, errAnalysisFailed) {
		return
	}
	fmt.Fprintf(w, "buildweaver: %v\n", err)
}
