package cmd

import (
	"fmt"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (abstractlogger.Logger, func(), error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	return abstractlogger.NewZapLogger(logger, abstractLevel(zapLevel)), func() { _ = logger.Sync() }, nil
}

func abstractLevel(level zapcore.Level) abstractlogger.Level {
	switch level {
	case zapcore.DebugLevel:
		return abstractlogger.DebugLevel
	case zapcore.InfoLevel:
		return abstractlogger.InfoLevel
	case zapcore.WarnLevel:
		return abstractlogger.WarnLevel
	default:
		return abstractlogger.ErrorLevel
	}
}
