// Package logger is the process-wide leveled logger. Output goes to
// stdout as printf-formatted lines; the level is set once at startup from
// configuration.
package logger

import (
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLevel = LevelInfo
	out          = stdlog.New(os.Stdout, "", 0)
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

// SetLevel selects the minimum level that is emitted. Unknown names leave
// the level unchanged.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	}
}

func emit(level Level, format string, v ...any) {
	if level < currentLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	out.Printf("[%s] [%s] %s", timestamp, level, fmt.Sprintf(format, v...))
}

func Debug(format string, v ...any) { emit(LevelDebug, format, v...) }

func Info(format string, v ...any) { emit(LevelInfo, format, v...) }

func Warn(format string, v ...any) { emit(LevelWarn, format, v...) }

func Error(format string, v ...any) { emit(LevelError, format, v...) }
