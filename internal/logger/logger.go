package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	"attendance/internal/config"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

// Fields is structured context attached to a log entry.
type Fields = logrus.Fields

// Logger provides leveled logging (info/warning/error/critical) to a rotating
// file and stderr.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a Logger writing to stderr and, outside tests, to one
// file per day under the configured log directory.
func NewLogger(cfg *config.Config) *Logger {
	base := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)
	base.SetFormatter(&formatter.Formatter{
		NoColors:        cfg.AppEnv == "production",
		TimestampFormat: "02 Jan 06 - 15:04:05",
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})

	writers := []io.Writer{os.Stderr}
	if cfg.AppEnv != "test" && cfg.LogDirectory != "" {
		writers = append(writers, newDailyWriter(cfg.LogDirectory))
	}
	base.SetOutput(io.MultiWriter(writers...))
	base.SetReportCaller(true)

	return &Logger{entry: logrus.NewEntry(base)}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// WithFields returns a child logger carrying fields on every entry.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

// Critical writes an error-level entry tagged severity=critical. It marks
// conditions that need operator attention, such as an in-memory attendance
// mark that could not be persisted.
func (l *Logger) Critical(format string, v ...interface{}) {
	l.entry.WithField("severity", "critical").Errorf(format, v...)
}
