package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents a log severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// ParseLevel converts a level name ("debug", "info", ...) to a Level.
// Unknown names fall back to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	mu         sync.RWMutex
	minLevel   = LevelInfo
	jsonFormat = false
	output     io.Writer = os.Stderr
)

// SetLevel sets the minimum level that will be emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetJSONFormat switches between key=value lines and JSON lines.
func SetJSONFormat(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonFormat = enabled
}

// SetOutput redirects log output. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug logs a debug message for a component.
func Debug(component, message string) { emit(LevelDebug, component, message, nil) }

// Info logs an informational message for a component.
func Info(component, message string) { emit(LevelInfo, component, message, nil) }

// Warn logs a warning message for a component.
func Warn(component, message string) { emit(LevelWarn, component, message, nil) }

// Error logs an error message for a component.
func Error(component, message string) { emit(LevelError, component, message, nil) }

// DebugCF logs a debug event with structured fields.
func DebugCF(component, event string, fields map[string]interface{}) {
	emit(LevelDebug, component, event, fields)
}

// InfoCF logs an informational event with structured fields.
func InfoCF(component, event string, fields map[string]interface{}) {
	emit(LevelInfo, component, event, fields)
}

// WarnCF logs a warning event with structured fields.
func WarnCF(component, event string, fields map[string]interface{}) {
	emit(LevelWarn, component, event, fields)
}

// ErrorCF logs an error event with structured fields.
func ErrorCF(component, event string, fields map[string]interface{}) {
	emit(LevelError, component, event, fields)
}

func emit(level Level, component, message string, fields map[string]interface{}) {
	mu.RLock()
	defer mu.RUnlock()

	if level < minLevel {
		return
	}

	ts := time.Now().Format(time.RFC3339)

	if jsonFormat {
		entry := map[string]interface{}{
			"time":      ts,
			"level":     levelNames[level],
			"component": component,
			"message":   message,
		}
		for k, v := range fields {
			entry[k] = v
		}
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(output, "%s %s [%s] %s (marshal error: %v)\n", ts, levelNames[level], component, message, err)
			return
		}
		fmt.Fprintln(output, string(data))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s] %s", ts, levelNames[level], component, message)

	// Sort field keys for stable output
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	fmt.Fprintln(output, b.String())
}
