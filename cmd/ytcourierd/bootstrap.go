package main

import (
	"path/filepath"

	"log/slog"

	"ytcourier/internal/config"
	"ytcourier/internal/logging"
)

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "ytcourier.log"),
		},
	})
}
