package events

import (
	"fmt"
	"sync"

	"github.com/lumengallery/lumen/internal/logger"
)

var (
	globalBus EventBus
	globalMu  sync.RWMutex
)

// SetGlobalEventBus installs the process-wide event bus.
func SetGlobalEventBus(bus EventBus) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalBus = bus
}

// GetGlobalEventBus returns the process-wide event bus, or nil before
// server initialization.
func GetGlobalEventBus() EventBus {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalBus
}

// stdLogger adapts internal/logger to the EventLogger interface.
type stdLogger struct{}

// NewStdLogger returns an EventLogger backed by the process logger.
func NewStdLogger() EventLogger {
	return stdLogger{}
}

func (stdLogger) Debug(msg string, fields ...interface{}) { logger.Debug("%s", format(msg, fields)) }
func (stdLogger) Info(msg string, fields ...interface{})  { logger.Info("%s", format(msg, fields)) }
func (stdLogger) Warn(msg string, fields ...interface{})  { logger.Warn("%s", format(msg, fields)) }
func (stdLogger) Error(msg string, fields ...interface{}) { logger.Error("%s", format(msg, fields)) }

func format(msg string, fields []interface{}) string {
	if len(fields) == 0 {
		return msg
	}
	out := msg
	for i := 0; i+1 < len(fields); i += 2 {
		out += " "
		if k, ok := fields[i].(string); ok {
			out += k + "="
		}
		out += stringify(fields[i+1])
	}
	return out
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
