package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always logs JSON for the
// aggregator; development defaults to text with source locations so ledger
// failures point at the offending call site.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
}
