// Package logging is a thin zerolog wrapper. It self-initializes with a
// quiet default (fatal-only) so library code can log before main has
// parsed flags; Init reconfigures it once flags are known.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level re-exports zerolog's level type so callers don't import zerolog
// just to configure logging.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config controls where and how much the process logs.
type Config struct {
	Level     Level
	Output    io.Writer
	Pretty    bool
	LogToFile bool
}

var (
	mu          sync.Mutex
	logger      = zerolog.New(os.Stderr).Level(FatalLevel).With().Timestamp().Logger()
	logFilePath string
)

// Init reconfigures the process logger.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	if cfg.LogToFile {
		path := filepath.Join(os.TempDir(), fmt.Sprintf("opencode-%s.log", time.Now().Format("20060102-150405")))
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			logFilePath = path
			out = io.MultiWriter(out, f)
		}
	}

	logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// GetLogFilePath returns the path of the tee'd log file, if one is open.
func GetLogFilePath() string {
	mu.Lock()
	defer mu.Unlock()
	return logFilePath
}

// ParseLevel maps a flag value to a level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Logger returns the current process logger.
func Logger() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func Debug() *zerolog.Event { l := Logger(); return l.Debug() }
func Info() *zerolog.Event  { l := Logger(); return l.Info() }
func Warn() *zerolog.Event  { l := Logger(); return l.Warn() }
func Error() *zerolog.Event { l := Logger(); return l.Error() }
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }
