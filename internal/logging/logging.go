// Package logging configures the process-wide logrus logger and hands out
// per-component entries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var root = newRoot(os.Stdout)

func newRoot(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Configure sets level ("debug", "info", ...) and format ("text" or "json").
func Configure(level, format string) error {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	root.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		root.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// SetOutput redirects all component loggers.
func SetOutput(out io.Writer) {
	root.SetOutput(out)
}

// New returns a logger entry tagged with component.
func New(component string) *logrus.Entry {
	return root.WithField("component", component)
}

// Discard returns an entry that drops everything. Useful in tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// OrDefault returns log, or a component logger when log is nil.
func OrDefault(log *logrus.Entry, component string) *logrus.Entry {
	if log == nil {
		return New(component)
	}
	return log
}
