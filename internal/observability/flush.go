package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry drains buffered telemetry during graceful shutdown, after
// in-flight requests have completed. Metrics are pull-based and need no
// flush; only log buffers are synced.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := logger.Sync(); err != nil {
		return fmt.Errorf("sync logs: %w", err)
	}
	return nil
}
