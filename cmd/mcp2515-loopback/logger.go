package main

import (
	"log/slog"
	"os"

	"github.com/knieriem/mcp2515/v2/internal/logging"
)

func setupLogger(format, level string) *slog.Logger {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	l := logging.New(format, lvl, os.Stderr).With("app", "mcp2515-loopback")
	logging.Set(l)
	return l
}
