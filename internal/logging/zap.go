package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.SugaredLogger to Logger. The relay uses it for
// JSON output; key/value pairs map onto zap's sugared "w" methods.
type ZapLogger struct {
	l *zap.SugaredLogger
}

func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{l: l.Sugar()}
}

// NewProductionZapLogger builds a JSON zap logger at the given level.
func NewProductionZapLogger(level string) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}

func (z *ZapLogger) Debug(_ context.Context, msg string, args ...any) {
	z.l.Debugw(msg, args...)
}

func (z *ZapLogger) Info(_ context.Context, msg string, args ...any) {
	z.l.Infow(msg, args...)
}

func (z *ZapLogger) Warn(_ context.Context, msg string, args ...any) {
	z.l.Warnw(msg, args...)
}

func (z *ZapLogger) Error(_ context.Context, msg string, args ...any) {
	z.l.Errorw(msg, args...)
}

func (z *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{l: z.l.With(args...)}
}

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error {
	return z.l.Sync()
}
