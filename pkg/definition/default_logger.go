// Package definition supplies the default Logger and Storage
// implementations, mirroring the teacher's pkg/mcast/definition package.
package definition

import (
	"github.com/sirupsen/logrus"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// DefaultLogger is the default types.Logger implementation, backed by
// logrus instead of the teacher's hand-rolled prefix-over-log.Logger.
// logrus was already a transitive dependency of the teacher (pulled in by
// jabolina/relt); this promotes it to a direct, deliberately-used one.
type DefaultLogger struct {
	entry *logrus.Logger
	debug bool
}

// NewDefaultLogger returns a logger writing structured text lines to
// stderr at info level by default.
func NewDefaultLogger() *DefaultLogger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{entry: log}
}

func (l *DefaultLogger) Info(v ...interface{})                   { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{})    { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})                    { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{})    { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{})                   { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{})   { l.entry.Errorf(format, v...) }

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(v...)
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.entry.Debugf(format, v...)
	}
}

func (l *DefaultLogger) Fatal(v ...interface{})                 { l.entry.Fatal(v...) }
func (l *DefaultLogger) Fatalf(format string, v ...interface{}) { l.entry.Fatalf(format, v...) }
func (l *DefaultLogger) Panic(v ...interface{})                 { l.entry.Panic(v...) }
func (l *DefaultLogger) Panicf(format string, v ...interface{}) { l.entry.Panicf(format, v...) }

// ToggleDebug enables or disables debug-level output and returns the new
// state, the exact contract of the teacher's DefaultLogger.ToggleDebug.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}

var _ types.Logger = (*DefaultLogger)(nil)
