// Package log holds the process-wide zap logger. Subsystems take a named
// child with Named; until Init is called every logger is a no-op, so library
// code and tests stay silent.
package log

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output encodings
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options selects the minimum level and the encoding
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Format is json or console. Empty means json.
	Format string
}

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init replaces the process logger
func Init(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(opts.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var cfg zap.Config
	switch opts.Format {
	case "", FormatJSON:
		cfg = zap.NewProductionConfig()
	case FormatConsole:
		cfg = zap.NewDevelopmentConfig()
	default:
		return fmt.Errorf("invalid log format %q: use %s or %s", opts.Format, FormatJSON, FormatConsole)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}

	mu.Lock()
	base = logger
	mu.Unlock()
	return nil
}

// Logger returns the process logger
func Logger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sugar()
}

// Named returns a child of the process logger for a subsystem
func Named(name string) *zap.SugaredLogger {
	return Logger().Named(name)
}

// Sync flushes any buffered log entries
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}
