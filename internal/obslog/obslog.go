// Package obslog wraps go.uber.org/zap: a small constructor producing a
// *zap.Logger configured from a handful of fields, optional file rotation
// via gopkg.in/natefinch/lumberjack.v2. Every other package takes a
// *zap.Logger (or nil, meaning "silent") rather than depending on this
// package, so obslog only needs to exist at the one place a logger gets
// constructed.
package obslog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction. The zero value is production JSON
// logging at Info level to stderr, no rotation.
type Config struct {
	Development bool
	Level       zapcore.Level
	LogFile     string // "" disables rotation, logs go to stderr
	MaxSizeMB   int    // lumberjack default 100 when <= 0
	MaxBackups  int    // lumberjack default 3 when <= 0
	MaxAgeDays  int    // lumberjack default 28 when <= 0
}

// New builds a *zap.Logger from cfg. Never fails: a broken LogFile falls
// back to stderr-only rather than erroring the caller's store construction.
func New(cfg Config) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Development {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sink := zapcore.Lock(os.Stderr)
	if cfg.LogFile != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		})
	}

	core := zapcore.NewCore(encoder, sink, cfg.Level)
	return zap.New(core)
}

// Noop returns a logger that discards everything, for callers (and tests)
// that don't want a Config.
func Noop() *zap.Logger { return zap.NewNop() }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
