package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the process logger and installs it as the zap global.
func Init(level string, development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(l)
	return l, nil
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func L() *zap.Logger { return zap.L() }

func Debug(msg string, fields ...zap.Field) { zap.L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { zap.L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { zap.L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { zap.L().Error(msg, fields...) }

// Sync flushes buffered entries; the error from syncing a terminal is ignored.
func Sync() { _ = zap.L().Sync() }
