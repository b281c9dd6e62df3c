package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"vejrstation-node/internal/config"
)

// New builds the process logger. It doubles as the node's diagnostic console,
// so every line carries the station's client id.
func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newLogger(os.Stdout, cfg, version, appName)
}

func newLogger(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName, "node", cfg.MQTTClientID)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"node", cfg.MQTTClientID,
		"sensor_backend", cfg.SensorBackend,
	)
}

// Component tags logger with the subsystem that writes through it.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
