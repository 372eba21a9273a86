package observability

import (
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

// StructuredLogger tags every entry with the component that produced it.
type StructuredLogger struct {
	logger    *zap.Logger
	component string
}

// NewStructuredLogger creates a logger for component. A nil base logger is
// replaced with a no-op logger.
func NewStructuredLogger(base *zap.Logger, component string) *StructuredLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &StructuredLogger{
		logger:    base.With(zap.String("component", component)),
		component: component,
	}
}

// WithOperation creates an operation-specific logger
func (sl *StructuredLogger) WithOperation(operation string, fields ...zap.Field) *OperationLogger {
	fields = append(fields, zap.String("operation", operation))
	return &OperationLogger{
		logger:    sl.logger.With(fields...),
		startTime: time.Now(),
	}
}

// Debug logs a debug message
func (sl *StructuredLogger) Debug(msg string, fields ...zap.Field) {
	sl.logger.Debug(msg, fields...)
}

// Info logs an info message
func (sl *StructuredLogger) Info(msg string, fields ...zap.Field) {
	sl.logger.Info(msg, fields...)
}

// Warn logs a warning message
func (sl *StructuredLogger) Warn(msg string, fields ...zap.Field) {
	sl.logger.Warn(msg, fields...)
}

// Error logs an error message
func (sl *StructuredLogger) Error(msg string, fields ...zap.Field) {
	sl.logger.Error(msg, fields...)
}

// OperationLogger provides operation-specific logging
type OperationLogger struct {
	logger    *zap.Logger
	startTime time.Time
}

// Debug logs a debug message for the operation
func (ol *OperationLogger) Debug(msg string, fields ...zap.Field) {
	ol.logger.Debug(msg, fields...)
}

// Info logs an info message for the operation
func (ol *OperationLogger) Info(msg string, fields ...zap.Field) {
	ol.logger.Info(msg, fields...)
}

// Warn logs a warning message for the operation
func (ol *OperationLogger) Warn(msg string, fields ...zap.Field) {
	ol.logger.Warn(msg, fields...)
}

// LogStart logs the start of an operation
func (ol *OperationLogger) LogStart(msg string, fields ...zap.Field) {
	allFields := append(fields, zap.String("phase", "start"))
	ol.logger.Info(msg, allFields...)
}

// LogProgress logs operation progress at debug level
func (ol *OperationLogger) LogProgress(msg string, progress float64, fields ...zap.Field) {
	allFields := append(fields,
		zap.String("phase", "progress"),
		zap.Float64("progress_percent", progress*100),
		zap.Duration("elapsed", time.Since(ol.startTime)),
	)
	ol.logger.Debug(msg, allFields...)
}

// LogComplete logs the completion of an operation
func (ol *OperationLogger) LogComplete(msg string, fields ...zap.Field) {
	duration := time.Since(ol.startTime)
	allFields := append(fields,
		zap.String("phase", "complete"),
		zap.Duration("total_duration", duration),
	)
	ol.logger.Info(msg, allFields...)
}

// LogError logs an operation error with its bencherrors type and details.
func (ol *OperationLogger) LogError(msg string, err error, fields ...zap.Field) {
	duration := time.Since(ol.startTime)
	allFields := append(fields,
		zap.String("phase", "error"),
		zap.Duration("duration_before_error", duration),
		zap.String("error_type", string(bencherrors.TypeOf(err))),
		zap.Error(err),
	)
	if details := bencherrors.DetailsOf(err); len(details) > 0 {
		allFields = append(allFields, zap.Any("details", details))
	}
	ol.logger.Error(msg, allFields...)
}
