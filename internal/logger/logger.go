package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger = logrus.New()

// Init configures the package logger and returns it.
func Init(level, format string) *logrus.Logger {
	Logger = New(level, format)
	return Logger
}

// New builds a logrus logger writing to stdout.
func New(level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(parseLevel(level))

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func parseLevel(value string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(value))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func Info(msg string, args ...any) {
	Logger.Infof(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Errorf(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debugf(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warnf(msg, args...)
}
