// Package logging wraps github.com/sirupsen/logrus behind the minimal
// chronoq.Logger contract (Infof/Warnf/Errorf), the same dependency the
// teacher reaches for in internal/metrics/metrics.go, generalized from a
// bare *logrus.Logger field into a small adapter the rest of this
// repository can construct from config.LogConfig.
package logging

import (
	"io"
	"os"

	"github.com/arjunv/chronoq/config"
	"github.com/sirupsen/logrus"
)

// Logger adapts a *logrus.Entry to chronoq.Logger.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger from the given name and config.LogConfig, configuring
// level, formatter (json or text), and output (stderr, or a file if
// cfg.File is set).
func New(name string, cfg config.LogConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if cfg.Format == "text" {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			out = f
		}
	}
	base.SetOutput(out)

	return &Logger{entry: base.WithField("component", name)}
}

// With returns a Logger scoped with an additional field, e.g. a job key.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
