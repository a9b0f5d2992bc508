// Package logging builds the zap loggers used across the engine. The
// sugared logger satisfies the transport and session Logger interface
// without an adapter.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnv names the environment variable that picks the log level:
// debug, info, warn, or error.
const LevelEnv = "PRINT_ENGINE_LOG"

// New returns a sugared logger at the level named by LevelEnv, info
// when unset. Development mode uses the human console encoder instead
// of JSON.
func New(development bool) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if v := os.Getenv(LevelEnv); v != "" {
		if parsed, err := zapcore.ParseLevel(v); err == nil {
			level = parsed
		}
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
