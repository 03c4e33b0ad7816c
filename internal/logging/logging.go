// Package logging builds the logrus loggers used across the service.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

// Formats accepted by New
const (
	FormatText = "text"
	FormatJSON = "json"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// New returns a logger writing to out at the given level and format
func New(level, format string, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()

	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)

	if level == "" {
		level = logrus.InfoLevel.String()
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	log.SetLevel(logLevel)

	switch strings.ToLower(format) {
	case "", FormatText:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", format)
	}

	return log, nil
}

// Discard returns a logger that drops everything
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}

// TraceEnabled reports whether l would emit trace entries
func TraceEnabled(l logrus.FieldLogger) bool {
	switch v := l.(type) {
	case *logrus.Logger:
		return v.IsLevelEnabled(logrus.TraceLevel)
	case *logrus.Entry:
		return v.Logger.IsLevelEnabled(logrus.TraceLevel)
	default:
		return false
	}
}

// Dump renders v for trace output
func Dump(v any) string {
	return dumper.Sdump(v)
}
