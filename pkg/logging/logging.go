package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SlogLevel maps a LogLevel onto the corresponding slog level.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogEntry is the structured entry delivered to channel subscribers when
// an embedding host wants to render logs itself.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Subsystem string
	Message   string
	Err       error
}

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
	entryChannel  chan LogEntry
)

const entryChannelBufferSize = 2048

// Init initializes the logger for CLI use, writing to the given output.
// This should be called once at application startup.
func Init(level LogLevel, output io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: level.SlogLevel(),
	})
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// InitWithChannel initializes the logger and additionally returns a
// channel that receives every entry, for hosts that embed the manager
// and display logs in their own surface.
func InitWithChannel(level LogLevel) <-chan LogEntry {
	Init(level, os.Stderr)

	mu.Lock()
	defer mu.Unlock()
	entryChannel = make(chan LogEntry, entryChannelBufferSize)
	return entryChannel
}

// CloseChannel closes the subscriber channel. Should be called on
// application shutdown when InitWithChannel was used.
func CloseChannel() {
	mu.Lock()
	defer mu.Unlock()
	if entryChannel != nil {
		close(entryChannel)
		entryChannel = nil
	}
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	mu.RLock()
	logger := defaultLogger
	ch := entryChannel
	mu.RUnlock()

	if ch != nil {
		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Subsystem: subsystem,
			Message:   msg,
			Err:       err,
		}
		select {
		case ch <- entry:
		default:
			// Subscriber is not keeping up; drop rather than block the caller.
		}
	}

	if logger == nil {
		// Logger not initialized; fall back to stderr so nothing is lost.
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", level, subsystem, msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
		}
		return
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogAttrs(context.Background(), level.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}
