package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/lemos/y7converter/internal/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cc := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	cc.close()
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errs.IsKind(err, errs.Canceled) {
			errs.Report(err)
		}
		stop()
		os.Exit(1)
	}
}
