package logging

import (
	"io" // Discard writer for tests

	"github.com/sirupsen/logrus" // Structured logging
)

// New builds the process logger. Production logs are JSON, development logs are text with full timestamps.
func New(level string, json bool) *logrus.Logger {
	l := logrus.New()
	if json {
		l.SetFormatter(&logrus.JSONFormatter{}) // Machine readable in production
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true}) // Human readable locally
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel // Unknown levels fall back to info
	}
	l.SetLevel(lvl)
	return l
}

// Discard returns a logger that writes nothing
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
