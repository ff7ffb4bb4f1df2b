package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log = zap.NewNop()
)

// Init builds the process logger and installs it as zap's global logger.
func Init(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	l, err := cfg.Build(zap.Fields(zap.String("service", "vpms-console")))
	if err != nil {
		return nil, err
	}
	Set(l)
	return l, nil
}

func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	log = l
	mu.Unlock()
	zap.ReplaceGlobals(l)
}

// L returns the process logger. It is a no-op logger until Init or Set runs.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Named returns a child logger for a component, falling back to L when l is nil.
func Named(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = L()
	}
	return l.Named(name)
}

func Sync() {
	_ = L().Sync()
}
