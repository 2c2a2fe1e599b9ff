// Package logger provides the engine's structured logging, shared by the
// bufferpool and storage layers and the demo command for diagnostic output
// (vfs and page do not log). It is never used for control flow.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	Log *logrus.Logger
)

// Config controls where engine log output goes and at what level.
type Config struct {
	ErrorLogPath string
	InfoLogPath  string
	Level        string
}

// CustomFormatter renders "[time] [LEVL] (caller) message" lines.
type CustomFormatter struct {
	TimestampFormat string
}

func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	caller := getCaller()

	msg := fmt.Sprintf("[%s] [%s] (%s) %s\n", timestamp, level, caller, entry.Message)
	return []byte(msg), nil
}

func getCaller() string {
	for i := 2; i < 20; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.Contains(file, "/logrus/") ||
			strings.Contains(file, "logger.go") ||
			strings.Contains(file, "sirupsen") {
			continue
		}
		fn := runtime.FuncForPC(pc).Name()
		return fmt.Sprintf("%s:%s:%d", filepath.Base(file), fn, line)
	}
	return "unknown:unknown:0"
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// New builds a logrus-backed logger writing to stdout plus, when
// cfg.InfoLogPath is set, an on-disk log file. cfg.ErrorLogPath is not used.
func New(cfg Config) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&CustomFormatter{TimestampFormat: "15:04:05 2006/01/02"})
	l.SetLevel(parseLevel(cfg.Level))

	var writers []io.Writer
	writers = append(writers, os.Stdout)
	if cfg.InfoLogPath != "" {
		if f, err := openLogFile(cfg.InfoLogPath); err == nil {
			writers = append(writers, f)
		}
	}
	l.SetOutput(io.MultiWriter(writers...))
	return l
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// Default returns a package-level logger, lazily initialized with sane
// defaults, for call sites that don't carry an explicit *logrus.Logger.
func Default() *logrus.Logger {
	if Log == nil {
		Log = New(Config{Level: "info"})
	}
	return Log
}
