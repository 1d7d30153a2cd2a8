package log

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

const logFileName = "clipcast.log"

// LogDir can be overridden before InitLogger to relocate the log file.
// Empty means current directory.
var LogDir = "logs"

func InitLogger() {
	logDir := ResolveLogDir()

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		panic("failed to create log directory: " + err.Error())
	}

	logFilePath := filepath.Join(logDir, logFileName)
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		panic("failed to open log file: " + err.Error())
	}

	fileSyncer := zapcore.AddSync(file)
	consoleSyncer := zapcore.AddSync(os.Stdout)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileSyncer, zap.DebugLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), consoleSyncer, zap.InfoLevel),
	)

	Logger = zap.New(core, zap.AddCaller())
}

func ResolveLogDir() string {
	dir := strings.TrimSpace(LogDir)
	if dir == "" {
		return "."
	}
	return dir
}

func ResolveLogFilePath() string {
	return filepath.Join(ResolveLogDir(), logFileName)
}

func GetLogger() *zap.Logger {
	if Logger == nil {
		// Tests and library consumers may not call InitLogger.
		Logger = zap.NewNop()
	}
	return Logger
}
