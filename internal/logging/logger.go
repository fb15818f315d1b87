// Package logging configures the process-wide structured logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the default process-wide logger, ready to use before Configure
// is called.
var Logger = New("info", "stdout")

// New builds a logrus.Logger at the given level ("debug", "info", "warn",
// "error") writing JSON-formatted entries to stdout or to the named file.
// An unopenable file falls back to stdout with a warning rather than
// failing construction.
func New(level, output string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(parseLevel(level))

	if output == "stdout" || output == "" {
		logger.SetOutput(os.Stdout)
	} else {
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.SetOutput(os.Stdout)
			logger.WithError(err).Warnf("logging: could not open %s, falling back to stdout", output)
		} else {
			logger.SetOutput(file)
		}
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	return logger
}

// Configure updates the package-level Logger's level and output in place,
// so components that captured Logger at construction pick up the change.
func Configure(level, output string) {
	fresh := New(level, output)
	Logger.SetLevel(fresh.Level)
	Logger.SetOutput(fresh.Out)
	Logger.SetFormatter(fresh.Formatter)
}

func parseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
