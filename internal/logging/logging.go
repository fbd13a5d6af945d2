// Package logging builds the zap loggers shared by the fittrack binaries.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger, or a human-friendly console logger when
// env names a development environment.
func New(env, service string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "development", "dev", "local":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", service), zap.String("env", env)), nil
}
