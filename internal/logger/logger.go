package logger

import (
	"log"
	"strings"
	"sync/atomic"
)

// Level controls which messages are emitted.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var minLevel atomic.Int32

// SetLevel sets the minimum level from a config string ("debug", "info",
// "warn", "error"). Unknown values fall back to info.
func SetLevel(s string) {
	switch strings.ToLower(s) {
	case "debug":
		minLevel.Store(int32(LevelDebug))
	case "warn", "warning":
		minLevel.Store(int32(LevelWarn))
	case "error":
		minLevel.Store(int32(LevelError))
	default:
		minLevel.Store(int32(LevelInfo))
	}
}

func enabled(l Level) bool {
	return int32(l) >= minLevel.Load()
}

// Info logs informational messages
func Info(format string, args ...interface{}) {
	if enabled(LevelInfo) {
		log.Printf("INFO: "+format, args...)
	}
}

// Warn logs warning messages
func Warn(format string, args ...interface{}) {
	if enabled(LevelWarn) {
		log.Printf("WARN: "+format, args...)
	}
}

// Error logs error messages
func Error(format string, args ...interface{}) {
	if enabled(LevelError) {
		log.Printf("ERROR: "+format, args...)
	}
}

// Debug logs debug messages
func Debug(format string, args ...interface{}) {
	if enabled(LevelDebug) {
		log.Printf("DEBUG: "+format, args...)
	}
}
