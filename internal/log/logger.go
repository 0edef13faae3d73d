package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "WARN" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Logger interface defines structured logging methods
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// DefaultLogger is the default implementation of Logger
type DefaultLogger struct {
	mu         sync.Mutex
	level      Level
	jsonOutput bool
	out        io.Writer
	colors     bool
	now        func() time.Time
}

var (
	defaultLogger *DefaultLogger
	once          sync.Once
)

// New creates a new logger with the given configuration. Output defaults
// to os.Stderr.
func New(cfg LoggerConfig) *DefaultLogger {
	l := &DefaultLogger{
		level:      cfg.Level,
		jsonOutput: cfg.JSONOutput,
		out:        cfg.Output,
		now:        time.Now,
	}
	if l.out == nil {
		l.out = os.Stderr
	}
	l.colors = isTerminal(l.out)
	return l
}

// Default returns the default logger instance
func Default() *DefaultLogger {
	once.Do(func() {
		defaultLogger = New(LoggerConfig{Level: InfoLevel})
	})
	return defaultLogger
}

// isTerminal reports whether w is a terminal that should receive colors.
func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// formatMessage formats the message with key-value args
func formatMessage(msg string, args ...interface{}) string {
	if len(args) == 0 {
		return msg
	}

	var sb strings.Builder
	sb.WriteString(msg)

	if len(args)%2 != 0 {
		sb.WriteString(" ")
		sb.WriteString(fmt.Sprintf("%v", args[0]))
		args = args[1:]
	}

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", args[i+1]))
	}

	return sb.String()
}

// fields turns key-value args into a map for JSON output.
func fields(args ...interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args)/2)
	if len(args)%2 != 0 {
		out["extra"] = fmt.Sprintf("%v", args[0])
		args = args[1:]
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		switch v := args[i+1].(type) {
		case error:
			out[key] = v.Error()
		case fmt.Stringer:
			out[key] = v.String()
		default:
			out[key] = v
		}
	}
	return out
}

// colorize wraps the message with ANSI color codes if colors are enabled
func (l *DefaultLogger) colorize(level Level, msg string) string {
	if !l.colors {
		return msg
	}
	return getColor(level) + msg + "\033[0m"
}

// getColor returns the ANSI color code for the given level
func getColor(level Level) string {
	switch level {
	case DebugLevel:
		return "\033[36m" // Cyan
	case InfoLevel:
		return "\033[32m" // Green
	case WarnLevel:
		return "\033[33m" // Yellow
	case ErrorLevel:
		return "\033[31m" // Red
	default:
		return ""
	}
}

func (l *DefaultLogger) log(level Level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}
	timestamp := l.now().Format("2006-01-02 15:04:05")

	if l.jsonOutput {
		entry := fields(args...)
		entry["timestamp"] = timestamp
		entry["level"] = level.String()
		entry["message"] = msg
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(map[string]string{
				"timestamp": timestamp,
				"level":     level.String(),
				"message":   formatMessage(msg, args...),
			})
		}
		fmt.Fprintln(l.out, string(data))
		return
	}

	fmt.Fprintf(l.out, "[%s] %s: %s\n", timestamp, level.String(), l.colorize(level, formatMessage(msg, args...)))
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) { l.log(DebugLevel, msg, args...) }

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...interface{}) { l.log(InfoLevel, msg, args...) }

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) { l.log(WarnLevel, msg, args...) }

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) { l.log(ErrorLevel, msg, args...) }

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonOutput = enabled
}

// Enabled reports whether messages at level would be written.
func (l *DefaultLogger) Enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.level
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) SetLevel(Level)               {}
func (nopLogger) SetJSONOutput(bool)           {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

// Dump renders v with its field names for debug output.
func Dump(v interface{}) string {
	return pretty.Sprint(v)
}
