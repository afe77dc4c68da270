package logger

import (
	"github.com/cozy-creator/medpredict/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// NewLogger builds a zap logger for the configured environment: JSON at info
// level for prod, a no-op logger for test and a console logger otherwise.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	switch cfg.Environment {
	case "prod", "production":
		zcfg := zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return zcfg.Build()
	case "test":
		return zap.NewNop(), nil
	default:
		return zap.NewDevelopment()
	}
}

func MustNewLogger(cfg *config.Config) *zap.Logger {
	return zap.Must(NewLogger(cfg))
}

func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	var err error
	logger, err = NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}

func GetLogger() *zap.Logger {
	if logger == nil {
		panic("logger not initialized")
	}

	return logger
}

// Named returns a child of the global logger, or a no-op logger when none
// has been initialised.
func Named(name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(name)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
