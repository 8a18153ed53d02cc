package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors zap levels with a smaller surface for callers.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	mu      sync.RWMutex
	atom    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	backend = newBackend()
)

func newBackend() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

// SetLevel changes the global minimum level.
func SetLevel(level Level) {
	switch level {
	case DEBUG:
		atom.SetLevel(zapcore.DebugLevel)
	case INFO:
		atom.SetLevel(zapcore.InfoLevel)
	case WARN:
		atom.SetLevel(zapcore.WarnLevel)
	case ERROR:
		atom.SetLevel(zapcore.ErrorLevel)
	}
}

// SetBackend swaps the underlying logger. Tests use this to silence output.
func SetBackend(l *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	backend = l
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func flatten(component string, fields map[string]interface{}) []interface{} {
	kv := make([]interface{}, 0, 2+2*len(fields))
	kv = append(kv, "component", component)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}

// DebugCF logs at debug level with a component tag and structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	current().Debugw(msg, flatten(component, fields)...)
}

// InfoCF logs at info level with a component tag and structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	current().Infow(msg, flatten(component, fields)...)
}

// WarnCF logs at warn level with a component tag and structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	current().Warnw(msg, flatten(component, fields)...)
}

// ErrorCF logs at error level with a component tag and structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	current().Errorw(msg, flatten(component, fields)...)
}
