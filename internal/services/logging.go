package services

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ServiceLogger records the outcome of service operations with a level and
// status derived from the error kind.
type ServiceLogger struct {
	logger *slog.Logger
}

func NewServiceLogger(logger *slog.Logger, component string) *ServiceLogger {
	return &ServiceLogger{logger: logger.With("component", component)}
}

func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID string, resourceID uint, resourceType string, duration time.Duration, err error) {
	level, status := classify(err)

	attrs := []any{
		"operation", operation,
		"status", status,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"duration_ms", duration.Milliseconds(),
	}
	if userID != "" {
		attrs = append(attrs, "user_id", userID)
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}

	l.logger.Log(ctx, level, "Service operation", attrs...)
}

// Track returns a func that logs the operation when deferred with the
// final error.
func (l *ServiceLogger) Track(ctx context.Context, operation, userID string, resourceID uint, resourceType string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		l.LogOperation(ctx, operation, userID, resourceID, resourceType, time.Since(start), err)
	}
}

func classify(err error) (slog.Level, string) {
	switch {
	case err == nil:
		return slog.LevelInfo, "success"
	case IsValidation(err):
		return slog.LevelWarn, "validation_error"
	case IsNotFound(err):
		return slog.LevelWarn, "not_found"
	case IsConflict(err):
		return slog.LevelWarn, "conflict"
	case IsWindowViolation(err):
		return slog.LevelWarn, "window_violation"
	case errors.Is(err, ErrMandatoryUnanswered), errors.Is(err, ErrQuestionNotInPaper):
		return slog.LevelWarn, "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return slog.LevelWarn, "cancelled"
	default:
		return slog.LevelError, "error"
	}
}
