// Package zap adapts go.uber.org/zap to the streamvault.Logger interface.
package zap

import (
	"go.uber.org/zap"

	"github.com/streamvault/streamvault"
)

var _ streamvault.Logger = Adapter{}

// Adapter implements streamvault.Logger on top of a *zap.Logger. Fields
// added through WithField/WithFields/WithError accumulate in the adapter
// itself and are only handed to zap when an entry is emitted, so a field
// chain built for a level that ends up filtered never clones a zap core.
type Adapter struct {
	logger *zap.Logger
	fields []zap.Field
}

// Wrap adapts logger to streamvault.Logger.
func Wrap(logger *zap.Logger) Adapter {
	return Adapter{logger: logger}
}

// Debug emits msg at debug level with the accumulated fields.
func (a Adapter) Debug(msg string) { a.logger.Debug(msg, a.fields...) }

// Info emits msg at info level with the accumulated fields.
func (a Adapter) Info(msg string) { a.logger.Info(msg, a.fields...) }

// Warn emits msg at warn level with the accumulated fields.
func (a Adapter) Warn(msg string) { a.logger.Warn(msg, a.fields...) }

// Error emits msg at error level with the accumulated fields.
func (a Adapter) Error(msg string) { a.logger.Error(msg, a.fields...) }

// extend returns a copy of a carrying the additional fields. The backing
// slice is never shared between copies, so two chains branching off the
// same adapter cannot clobber each other's fields.
func (a Adapter) extend(fields ...zap.Field) Adapter {
	merged := make([]zap.Field, 0, len(a.fields)+len(fields))
	merged = append(merged, a.fields...)
	merged = append(merged, fields...)
	return Adapter{logger: a.logger, fields: merged}
}

// WithField returns a Logger that will emit key/value with every entry.
func (a Adapter) WithField(key string, value interface{}) streamvault.Logger {
	return a.extend(zap.Any(key, value))
}

// WithFields returns a Logger that will emit every entry of fields.
func (a Adapter) WithFields(fields streamvault.Fields) streamvault.Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return a.extend(zapFields...)
}

// WithError returns a Logger that will emit err as an "error" field.
func (a Adapter) WithError(err error) streamvault.Logger {
	return a.extend(zap.Error(err))
}
