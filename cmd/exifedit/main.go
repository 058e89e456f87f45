package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vbonduro/exifedit/internal/config"
	"github.com/vbonduro/exifedit/internal/metadata"
	"github.com/vbonduro/exifedit/internal/metadata/exiftool"
	"github.com/vbonduro/exifedit/internal/metadata/native"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// execute runs the command line. The log file stays open until the error,
// if any, has been logged.
func execute(ctx context.Context) error {
	defer releaseEnv()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		slog.Error("failed to execute command", "error", err)
	}
	return err
}

func releaseEnv() {
	if env.cleanup != nil {
		env.cleanup()
		env.cleanup = nil
	}
}

func newCodec(cfg *config.Config, logger *slog.Logger) (metadata.Codec, error) {
	switch cfg.MetadataBackend {
	case config.BackendExiftool:
		logger.Info("using exiftool metadata backend", "binary", cfg.ExiftoolPath)
		return exiftool.NewCodec(cfg.ExiftoolPath)
	default:
		logger.Debug("using native metadata backend")
		return native.NewCodec(), nil
	}
}

func closeCodec(codec metadata.Codec, logger *slog.Logger) {
	if err := metadata.Close(codec); err != nil {
		logger.Error("failed to close metadata codec", "error", err)
	}
}
