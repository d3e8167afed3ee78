package logger

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger wraps zerolog and redacts PII from key/value pairs
type Logger struct {
	mu    sync.RWMutex
	level LogLevel
	zl    zerolog.Logger
	isDev bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Initialize sets up the default logger instance. Development mode writes
// human-readable console output; otherwise one JSON object per line.
func Initialize(level LogLevel, isDev bool) {
	once.Do(func() {
		var out io.Writer = os.Stdout
		if isDev {
			out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		defaultLogger = New(out, level, isDev)
	})
}

// New builds a standalone logger writing to w.
func New(w io.Writer, level LogLevel, isDev bool) *Logger {
	return &Logger{
		level: level,
		zl:    zerolog.New(w).With().Timestamp().Str("service", "setora").Logger(),
		isDev: isDev,
	}
}

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	Initialize(INFO, false)
	return defaultLogger
}

// SetLevel updates the log level
func SetLevel(level LogLevel) {
	GetLogger().setLevel(level)
}

func (l *Logger) setLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// redactEmail redacts email addresses for privacy
func redactEmail(email string) string {
	if email == "" {
		return ""
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "****"
	}

	local := parts[0]
	domain := parts[1]

	if len(local) <= 2 {
		return "****@" + domain
	}

	return local[0:1] + "****" + local[len(local)-1:] + "@" + domain
}

// hashUserID creates a consistent hash for user IDs
func hashUserID(userID interface{}) string {
	str := fmt.Sprintf("%v", userID)
	hash := sha256.Sum256([]byte(str))
	return fmt.Sprintf("user_%x", hash[:4])
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:4] + "****"
}

// redactValue redacts sensitive values based on the key name
func redactValue(key string, value interface{}) interface{} {
	keyLower := strings.ToLower(key)

	if strings.Contains(keyLower, "password") {
		return "[REDACTED]"
	}

	if err, ok := value.(error); ok {
		value = err.Error()
	}
	valueStr := fmt.Sprintf("%v", value)

	if strings.Contains(keyLower, "email") {
		return redactEmail(valueStr)
	}

	if strings.Contains(keyLower, "userid") || strings.Contains(keyLower, "user_id") {
		return hashUserID(value)
	}

	if strings.Contains(keyLower, "session") || strings.Contains(keyLower, "token") {
		return truncateID(valueStr)
	}

	return value
}

func (l *Logger) shouldLog(level LogLevel) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *Logger) log(level LogLevel, msg string, keysAndValues ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	var event *zerolog.Event
	switch level {
	case DEBUG:
		event = l.zl.Debug()
	case WARN:
		event = l.zl.Warn()
	case ERROR:
		event = l.zl.Error()
	default:
		event = l.zl.Info()
	}

	l.mu.RLock()
	redact := !l.isDev || l.level > DEBUG
	l.mu.RUnlock()

	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		var value interface{}
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}

		if redact {
			value = redactValue(key, value)
		} else if err, ok := value.(error); ok {
			value = err.Error()
		}

		event = event.Interface(key, value)
	}

	event.Msg(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(DEBUG, msg, keysAndValues...)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(INFO, msg, keysAndValues...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(WARN, msg, keysAndValues...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(ERROR, msg, keysAndValues...)
}

// Package-level convenience functions

func Debug(msg string, keysAndValues ...interface{}) {
	GetLogger().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	GetLogger().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	GetLogger().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	GetLogger().Error(msg, keysAndValues...)
}

// ParseLevel converts a string to a LogLevel
func ParseLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}
