// Package logging provides the leveled, named loggers used by the backup behavior, the action
// server and the simulator. Entries fan out to appenders and are encoded with zap.
package logging

import (
	"context"
	"sync"
)

// Logger writes structured entries. Keys and values alternate in keysAndValues.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	// CDebugw also logs below the logger's level when ctx is in debug mode.
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})

	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	SetLevel(level Level)
	Sync() error
}

var (
	globalMu     sync.RWMutex
	globalLogger = NewLogger("recovery")
)

// ReplaceGlobal sets the logger that components fall back to when they are built without one.
func ReplaceGlobal(logger Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// Global returns the fallback logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// NewLogger returns a logger that writes Info and above to stdout in UTC.
func NewLogger(name string) Logger {
	return newImpl(name, INFO, true, NewStdoutAppender())
}

// NewDebugLogger is NewLogger at Debug.
func NewDebugLogger(name string) Logger {
	return newImpl(name, DEBUG, true, NewStdoutAppender())
}
