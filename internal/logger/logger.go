package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	logger       = newLogger(os.Stdout, "text")
	output       io.Closer
)

func (l Level) String() string {
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

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts a level name (case-insensitive) into a Level.
// Unknown names map to LevelInfo.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	currentLevel = ParseLevel(level)
	logger = logger.Level(currentLevel.zerolog())
}

// GetLevel returns the active minimum level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// Configure sets level, format ("text" or "json") and destination in one step.
//
// Output accepts "stdout", "stderr" or a file path. A file is opened in append
// mode and replaces any previously configured file, which is closed.
func Configure(level, format, dest string) error {
	var w io.Writer
	var closer io.Closer

	switch strings.ToLower(dest) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log output %s: %w", dest, err)
		}
		w = f
		closer = f
	}

	mu.Lock()
	defer mu.Unlock()

	if output != nil {
		_ = output.Close()
	}
	output = closer
	currentLevel = ParseLevel(level)
	logger = newLogger(w, format).Level(currentLevel.zerolog())

	return nil
}

// SetOutput redirects log output, keeping the current level. Used by tests.
func SetOutput(w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, format).Level(currentLevel.zerolog())
}

func newLogger(w io.Writer, format string) zerolog.Logger {
	if strings.ToLower(format) == "json" {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05",
	}).With().Timestamp().Logger()
}

func log(level Level, format string, v ...any) {
	mu.RLock()
	l := logger
	threshold := currentLevel
	mu.RUnlock()

	if level < threshold {
		return
	}

	message := fmt.Sprintf(format, v...)
	l.WithLevel(level.zerolog()).Msg(message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
