package log

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = newLogger(Config{Level: "info", Format: "console"})
)

// Setup replaces the global logger with one built from the given config.
// Safe to call multiple times; the last call wins.
func Setup(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	logger = newLogger(cfg)
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return logger
}

func newLogger(cfg Config) *zap.Logger {
	level := zapcore.InfoLevel
	if l, err := zapcore.ParseLevel(cfg.Level); err == nil {
		level = l
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, writeSyncer(cfg), level)

	return zap.New(core, zap.AddCallerSkip(1))
}

// Debug logs a debug message with fields derived from ctx by the registered hooks.
func Debug(ctx context.Context, msg string, fields ...Field) {
	current().Debug(msg, applyHooks(ctx, msg, fields)...)
}

// Info logs an info message.
func Info(ctx context.Context, msg string, fields ...Field) {
	current().Info(msg, applyHooks(ctx, msg, fields)...)
}

// Warn logs a warning message.
func Warn(ctx context.Context, msg string, fields ...Field) {
	current().Warn(msg, applyHooks(ctx, msg, fields)...)
}

// Error logs an error message.
func Error(ctx context.Context, msg string, fields ...Field) {
	current().Error(msg, applyHooks(ctx, msg, fields)...)
}

// Sync flushes buffered log entries.
func Sync() error {
	return current().Sync()
}
