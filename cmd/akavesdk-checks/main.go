// Command akavesdk-checks runs the repository quality gates and exits
// non-zero when any of them fails.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akave-ai/akavesdk/private/checks"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := checks.NewRunner(checks.Suite()...)
	results, err := runner.Run(ctx)

	fmt.Print(checks.Summary(results))

	if err != nil {
		os.Exit(1)
	}
}
