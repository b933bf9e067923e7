package logger

import (
	"log/slog"
	"os"

	"go.uber.org/fx/fxevent"

	"github.com/polkiloo/fooddelivery/internal/config"
)

// New creates a JSON slog.Logger at the configured level. Unknown levels fall back to info.
func New(cfg *config.Config) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})
	return slog.New(handler).With(slog.String("service", "fooddelivery"))
}

// NewFxLogger routes fx container events through the application logger.
func NewFxLogger(logger *slog.Logger) fxevent.Logger {
	return &fxevent.SlogLogger{Logger: logger}
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
