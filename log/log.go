// Package log is a thin wrapper around logrus used by the engine, config,
// session and CLI code in this module so log level, output and format are
// configured in one place.
package log

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Fields aliases logrus.Fields.
type Fields = logrus.Fields

// Entry aliases logrus.Entry.
type Entry = logrus.Entry

// Logger is the interface the engine and store use to emit diagnostics.
type Logger interface {
	Debug(...interface{})
	Debugf(string, ...interface{})

	Info(...interface{})
	Infof(string, ...interface{})

	Warn(...interface{})
	Warnf(string, ...interface{})

	Error(...interface{})
	Errorf(string, ...interface{})

	WithField(key string, value interface{}) *Entry
	WithFields(Fields) *Entry

	SetLevel(string) error
	SetOutput(io.Writer)
	SetJSONFormatter()

	WithContext(context.Context) Logger
}

type logger struct {
	entry *logrus.Entry
}

// New returns a new, independent logger.
func New() Logger {
	l := logrus.New()
	return logger{entry: logrus.NewEntry(l)}
}

func (l logger) WithContext(ctx context.Context) Logger {
	return logger{l.entry.WithContext(ctx)}
}

func (l logger) Debug(args ...interface{})            { l.entry.Debug(args...) }
func (l logger) Debugf(f string, args ...interface{}) { l.entry.Debugf(f, args...) }
func (l logger) Info(args ...interface{})             { l.entry.Info(args...) }
func (l logger) Infof(f string, args ...interface{})  { l.entry.Infof(f, args...) }
func (l logger) Warn(args ...interface{})             { l.entry.Warn(args...) }
func (l logger) Warnf(f string, args ...interface{})  { l.entry.Warnf(f, args...) }
func (l logger) Error(args ...interface{})            { l.entry.Error(args...) }
func (l logger) Errorf(f string, args ...interface{}) { l.entry.Errorf(f, args...) }

func (l logger) WithField(key string, value interface{}) *Entry {
	return l.entry.WithField(key, value)
}

func (l logger) WithFields(fields Fields) *Entry {
	return l.entry.WithFields(fields)
}

func (l logger) SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.entry.Logger.SetLevel(lvl)
	return nil
}

func (l logger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

func (l logger) SetJSONFormatter() {
	l.entry.Logger.SetFormatter(&logrus.JSONFormatter{})
}

var defaultLogger = New()

// Global returns the module-wide default logger.
func Global() Logger {
	return defaultLogger
}

// SetGlobal replaces the module-wide default logger, e.g. to inject a
// test logger that records entries.
func SetGlobal(l Logger) {
	defaultLogger = l
}
