package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger from configuration: JSON when
// LOG_FORMAT=json, text otherwise. Production output omits source locations.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: !cfg.IsProduction()}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
