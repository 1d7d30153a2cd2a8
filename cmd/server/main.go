package main

import (
	"os"

	"go.uber.org/zap"

	"clipcast/config"
	"clipcast/internal/server"
	"clipcast/internal/storage"
	"clipcast/log"
)

func main() {
	log.InitLogger()
	defer log.GetLogger().Sync()

	if !config.LoadConfig() {
		return
	}

	if err := config.CheckConfig(); err != nil {
		log.GetLogger().Error("invalid configuration", zap.Error(err))
		return
	}

	storage.InitDB()

	// Zombie cleanup: sessions and jobs left active by a previous process.
	if count, err := storage.MarkStaleSessions(); err != nil {
		log.GetLogger().Warn("failed to mark stale sessions", zap.Error(err))
	} else if count > 0 {
		log.GetLogger().Info("reset stale playing sessions", zap.Int64("count", count))
	}
	if count, err := storage.MarkStaleJobs(); err != nil {
		log.GetLogger().Warn("failed to mark stale jobs", zap.Error(err))
	} else if count > 0 {
		log.GetLogger().Info("failed stale export jobs", zap.Int64("count", count))
	}

	if err := server.StartBackend(); err != nil {
		log.GetLogger().Error("backend startup failed", zap.Error(err))
		os.Exit(1)
	}
}
