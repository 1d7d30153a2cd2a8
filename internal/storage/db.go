package storage

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clipcast/config"
	"clipcast/internal/types"
	"clipcast/log"
)

var DB *gorm.DB

// dataDirResolver is a seam for tests.
var dataDirResolver = func() string {
	if config.Conf.App.DataDir != "" {
		return config.Conf.App.DataDir
	}
	return "data"
}

func InitDB() {
	dbPath := resolveDBPath()

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.GetLogger().Fatal("failed to create database directory", zap.String("dir", dir), zap.Error(err))
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.GetLogger().Fatal("failed to connect database", zap.Error(err))
	}

	err = DB.AutoMigrate(&types.PreviewSession{}, &types.ExportJob{}, &types.TtsCacheRecord{})
	if err != nil {
		log.GetLogger().Fatal("failed to migrate database", zap.Error(err))
	}

	log.GetLogger().Info("Database initialized successfully", zap.String("path", dbPath))
}

func resolveDBPath() string {
	return filepath.Join(dataDirResolver(), "clipcast.db")
}
