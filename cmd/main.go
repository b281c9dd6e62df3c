package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vejrstation-node/internal/app"
	"vejrstation-node/internal/config"
	"vejrstation-node/internal/logging"
)

var version = "dev"
var appName = "vejrstation-node"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting station node",
		"log_level", cfg.LogLevel.String(),
		"cadence", cfg.SensorCadence,
		"i2c_bus", cfg.I2CBus,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("node run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("station node stopped")
}
