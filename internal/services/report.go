package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// reportIntegrationFailure records a best-effort integration failure. The
// ERROR record is persisted to system_logs by the log pipeline.
func reportIntegrationFailure(ctx context.Context, action string, err error, attrs ...any) {
	args := append([]any{"action", action, "error", err}, attrs...)
	slog.ErrorContext(ctx, "integration step failed", args...)

	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("action", action)
		hub.CaptureException(fmt.Errorf("%s: %w", action, err))
	})
}
