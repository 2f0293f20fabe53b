package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"buildweaver/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result, err := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	cli.PrintError(os.Stderr, err)
	os.Exit(result.ExitCode)
}
