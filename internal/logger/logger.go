// Package logger is Tickarr's process-wide leveled logger. Messages go to
// stdout, to a rotating file once Init is called, to a small in-memory
// history, and to any live subscribers (the WebSocket hub streams these).
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity level of a log message.
type LogLevel string

const (
	Debug LogLevel = "DEBUG"
	Info  LogLevel = "INFO"
	Warn  LogLevel = "WARN"
	Error LogLevel = "ERROR"
)

// historySize is how many recent entries Recent can return.
const historySize = 200

// LogFileName is the name of the rotated log file inside the log directory.
const LogFileName = "tickarr.log"

// LogEntry is a single log message as streamed to clients.
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
}

var (
	mu         sync.Mutex
	minLevel   = Info
	listeners  []chan LogEntry
	history    []LogEntry
	fileLogger *lumberjack.Logger
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetFlags(0) // timestamp is written by Log
}

func levelPriority(level LogLevel) int {
	switch level {
	case Debug:
		return 0
	case Info:
		return 1
	case Warn:
		return 2
	case Error:
		return 3
	default:
		return 1
	}
}

// AtLeast reports whether level is as severe as min or more.
func AtLeast(level, min LogLevel) bool {
	return levelPriority(level) >= levelPriority(min)
}

// ParseLevel maps "debug", "info", "warn" and "error" to a LogLevel.
// Anything else is Info.
func ParseLevel(level string) LogLevel {
	switch level {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// SetLevel sets the minimum level that is written.
func SetLevel(level string) {
	mu.Lock()
	minLevel = ParseLevel(level)
	current := minLevel
	mu.Unlock()
	log.Printf("Log level set to: %s", current)
}

// GetLevel returns the current minimum level.
func GetLevel() LogLevel {
	mu.Lock()
	defer mu.Unlock()
	return minLevel
}

// Init adds a rotating log file in logDir next to stdout output.
func Init(logDir string) error {
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	fileLogger = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, fileLogger))
	return nil
}

// Close flushes and detaches the log file, reverting to stdout only.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	log.SetOutput(os.Stdout)
	if fileLogger == nil {
		return nil
	}
	err := fileLogger.Close()
	fileLogger = nil
	return err
}

// GetLogDir returns the directory of the log file, or "" before Init.
func GetLogDir() string {
	mu.Lock()
	defer mu.Unlock()
	if fileLogger != nil {
		return filepath.Dir(fileLogger.Filename)
	}
	return ""
}

// Subscribe returns a channel receiving every entry written from now on.
// Slow subscribers miss entries rather than block logging.
func Subscribe() chan LogEntry {
	mu.Lock()
	defer mu.Unlock()
	ch := make(chan LogEntry, 100)
	listeners = append(listeners, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func Unsubscribe(ch chan LogEntry) {
	mu.Lock()
	defer mu.Unlock()
	for i, l := range listeners {
		if l == ch {
			listeners = append(listeners[:i], listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Recent returns up to n of the most recent entries, oldest first.
func Recent(n int) []LogEntry {
	mu.Lock()
	defer mu.Unlock()
	if n <= 0 || n > len(history) {
		n = len(history)
	}
	out := make([]LogEntry, n)
	copy(out, history[len(history)-n:])
	return out
}

// Log writes a formatted message at level.
func Log(level LogLevel, format string, v ...interface{}) {
	mu.Lock()
	if levelPriority(level) < levelPriority(minLevel) {
		mu.Unlock()
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Message:   fmt.Sprintf(format, v...),
	}

	history = append(history, entry)
	if len(history) > historySize {
		history = history[len(history)-historySize:]
	}
	for _, ch := range listeners {
		select {
		case ch <- entry:
		default:
		}
	}
	mu.Unlock()

	log.Printf("%s [%s] %s", entry.Timestamp, entry.Level, entry.Message)
}

// Debugf logs at DEBUG level.
func Debugf(format string, v ...interface{}) {
	Log(Debug, format, v...)
}

// Infof logs at INFO level.
func Infof(format string, v ...interface{}) {
	Log(Info, format, v...)
}

// Warnf logs at WARN level.
func Warnf(format string, v ...interface{}) {
	Log(Warn, format, v...)
}

// Errorf logs at ERROR level.
func Errorf(format string, v ...interface{}) {
	Log(Error, format, v...)
}
