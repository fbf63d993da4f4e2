package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// GetLogger returns the shared process logger. Debug output is enabled when
// ANCHOR_TARGET_DEBUG is set in the environment.
func GetLogger() *zap.Logger {
	once.Do(func() {
		level := zapcore.InfoLevel
		if os.Getenv("ANCHOR_TARGET_DEBUG") != "" {
			level = zapcore.DebugLevel
		}

		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)

		l, err := cfg.Build()
		if err != nil {
			logger = zap.NewNop()
			return
		}
		logger = l
	})
	return logger
}
