package cmd

import (
	"fmt"
	"strings"

	log "github.com/jensneuse/abstractlogger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a zap logger wrapped as abstractlogger.Logger.
// Debug logging uses zap's development config, every other level the production config.
func newLogger(level string) (log.Logger, func(), error) {
	var (
		zapLevel zapcore.Level
		logLevel log.Level
	)
	switch strings.ToLower(level) {
	case "debug":
		zapLevel, logLevel = zapcore.DebugLevel, log.DebugLevel
	case "", "info":
		zapLevel, logLevel = zapcore.InfoLevel, log.InfoLevel
	case "warn", "warning":
		zapLevel, logLevel = zapcore.WarnLevel, log.WarnLevel
	case "error":
		zapLevel, logLevel = zapcore.ErrorLevel, log.ErrorLevel
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", level)
	}

	config := zap.NewProductionConfig()
	if zapLevel == zapcore.DebugLevel {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.OutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, nil, err
	}
	return log.NewZapLogger(logger, logLevel), func() { _ = logger.Sync() }, nil
}
