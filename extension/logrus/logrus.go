// Package logrus adapts logrus.FieldLogger to the streamvault.Logger
// interface.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/streamvault/streamvault"
)

var _ streamvault.Logger = &Wrapper{}

// Wrapper embeds a logrus.FieldLogger to implement streamvault.Logger.
type Wrapper struct {
	logrus.FieldLogger
}

// Wrap adapts logger to streamvault.Logger.
func Wrap(logger logrus.FieldLogger) *Wrapper {
	return &Wrapper{logger}
}

// Error writes a log with log level error.
func (w *Wrapper) Error(msg string) {
	w.FieldLogger.Error(msg)
}

// Warn writes a log with log level warning.
func (w *Wrapper) Warn(msg string) {
	w.FieldLogger.Warn(msg)
}

// Info writes a log with log level info.
func (w *Wrapper) Info(msg string) {
	w.FieldLogger.Info(msg)
}

// Debug writes a log with log level debug.
func (w *Wrapper) Debug(msg string) {
	w.FieldLogger.Debug(msg)
}

// WithField adds a field to the log entry.
func (w *Wrapper) WithField(key string, val interface{}) streamvault.Logger {
	return Wrap(w.FieldLogger.WithField(key, val))
}

// WithFields adds a set of fields to the log entry.
func (w *Wrapper) WithFields(fields streamvault.Fields) streamvault.Logger {
	logrusFields := make(logrus.Fields, len(fields))
	for k, v := range fields {
		logrusFields[k] = v
	}
	return Wrap(w.FieldLogger.WithFields(logrusFields))
}

// WithError adds an error as a single field to the log entry.
func (w *Wrapper) WithError(err error) streamvault.Logger {
	return Wrap(w.FieldLogger.WithError(err))
}
