// Package logging provides the structured logger shared by every weather
// package. It builds a logrus.Logger with stream separation so warn/info/debug
// records go to stdout while error/fatal records go to stderr, matching how
// containerized log collectors expect the two streams to be used.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors the subset of logrus levels the weather packages care about.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls how New builds a logger.
type Config struct {
	Level     Level  // minimum level that will be emitted
	Format    string // "json" or "text"
	Component string // included on every record as "component"
	AddCaller bool   // include file:line of the log call
}

// DefaultConfig returns the logger defaults used when the caller does not
// override anything; Default is built from it.
func DefaultConfig() Config {
	return Config{
		Level:     LevelInfo,
		Format:    "text",
		Component: "weather",
		AddCaller: false,
	}
}

// streamSplitter routes records below error level to out and error/fatal
// records to errOut. logrus calls Write once per formatted record, so the
// split only needs to inspect the already-rendered bytes for the level
// token logrus' text/json formatters always include.
type streamSplitter struct {
	out    io.Writer
	errOut io.Writer
}

func (s *streamSplitter) Write(p []byte) (int, error) {
	if looksLikeErrorRecord(p) {
		return s.errOut.Write(p)
	}
	return s.out.Write(p)
}

func looksLikeErrorRecord(p []byte) bool {
	for _, marker := range [][]byte{[]byte("level=error"), []byte("level=fatal"), []byte(`"level":"error"`), []byte(`"level":"fatal"`)} {
		if contains(p, marker) {
			return true
		}
	}
	return false
}

func contains(haystack, needle []byte) bool {
	if len(needle) == 0 || len(haystack) < len(needle) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return true
		}
	}
	return false
}

// New builds a *logrus.Logger from cfg.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger.SetReportCaller(cfg.AddCaller)
	logger.SetOutput(&streamSplitter{out: os.Stdout, errOut: os.Stderr})

	return logger
}

// Default is the package-level logger used by code that does not thread a
// *logrus.Logger through explicitly (producers/consumers spawned by the
// threaded loader, mostly).
var Default = New(DefaultConfig())

// With returns Default annotated with the given component, for subsystems
// that want consistent field tagging without constructing their own logger.
func With(component string) *logrus.Entry {
	return Default.WithField("component", component)
}
