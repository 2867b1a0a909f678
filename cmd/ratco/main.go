// Command ratco runs a simulated software company on an idea.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ratco/ratco/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
