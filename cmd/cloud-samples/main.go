// cloud-samples runs small, self-contained samples against Google Cloud DLP,
// KMS and Video Stitcher.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloudsamples/internal/apperrors"
)

func main() {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(level); err != nil {
		slog.Error("Sample failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func run(level *slog.LevelVar) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return newRootCmd(gcpClients(), level).ExecuteContext(ctx)
}
